// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/rebalancing"
	"github.com/aristath/allocator/internal/modules/report"
	"github.com/aristath/allocator/internal/utils"
)

// Config holds application configuration
type Config struct {
	LogLevel       string
	Port           int
	DevMode        bool
	AllowedOrigins []string

	// Price history the scheduled jobs and the CLI read.
	PriceHistoryFile string
	Assets           []string // empty = every column of the file

	RiskTolerance float64  // 1-10 level
	TargetReturn  *float64 // annualized; nil = risk tolerance mode
	TimeHorizon   float64  // years

	RebalanceFrequency      string
	RebalanceThreshold      float64
	RebalanceSchedule       string // cron spec; empty disables the job
	FrontierRefreshSchedule string // cron spec; empty disables the job
	Simulations             int
	SimulationSteps         int
	SimulationSeed          uint64
	CorrelatedDraws         bool
	ValueWithOptimalWeights bool
	RiskFreeRate            float64
	CacheSize               int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	targetReturn, err := getEnvAsOptionalFloat("TARGET_RETURN")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		Port:                    getEnvAsInt("PORT", 8080),
		DevMode:                 getEnvAsBool("DEV_MODE", false),
		AllowedOrigins:          utils.ParseList(getEnv("ALLOWED_ORIGINS", "")),
		PriceHistoryFile:        getEnv("PRICE_HISTORY_FILE", ""),
		Assets:                  utils.ParseList(getEnv("ASSETS", "")),
		RiskTolerance:           getEnvAsFloat("RISK_TOLERANCE", domain.DefaultRiskLevel),
		TargetReturn:            targetReturn,
		TimeHorizon:             getEnvAsFloat("TIME_HORIZON", 1),
		RebalanceFrequency:      getEnv("REBALANCE_FREQUENCY", domain.Quarterly.String()),
		RebalanceThreshold:      getEnvAsFloat("REBALANCE_THRESHOLD", 0.03),
		RebalanceSchedule:       getEnv("REBALANCE_SCHEDULE", "0 18 * * 1-5"),
		FrontierRefreshSchedule: getEnv("FRONTIER_REFRESH_SCHEDULE", "@hourly"),
		Simulations:             getEnvAsInt("SIMULATIONS", 1000),
		SimulationSteps:         getEnvAsInt("SIMULATION_STEPS", 252),
		SimulationSeed:          uint64(getEnvAsInt("SIMULATION_SEED", 42)),
		CorrelatedDraws:         getEnvAsBool("CORRELATED_DRAWS", false),
		ValueWithOptimalWeights: getEnvAsBool("VALUE_WITH_OPTIMAL_WEIGHTS", false),
		RiskFreeRate:            getEnvAsFloat("RISK_FREE_RATE", 0.02),
		CacheSize:               getEnvAsInt("CACHE_SIZE", 128),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and parses the schedule and frequency.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if _, err := domain.RiskToleranceFromLevel(c.RiskTolerance); err != nil {
		return fmt.Errorf("invalid RISK_TOLERANCE: %w", err)
	}
	if !(c.TimeHorizon > 0) {
		return fmt.Errorf("TIME_HORIZON must be positive, got %v", c.TimeHorizon)
	}
	if _, err := domain.ParseFrequency(c.RebalanceFrequency); err != nil {
		return fmt.Errorf("invalid REBALANCE_FREQUENCY: %w", err)
	}
	if c.RebalanceThreshold < 0 || c.RebalanceThreshold >= 1 {
		return fmt.Errorf("REBALANCE_THRESHOLD must be in [0, 1), got %v", c.RebalanceThreshold)
	}
	for name, spec := range map[string]string{
		"REBALANCE_SCHEDULE":        c.RebalanceSchedule,
		"FRONTIER_REFRESH_SCHEDULE": c.FrontierRefreshSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}
	if c.Simulations < 1 || c.SimulationSteps < 1 {
		return fmt.Errorf("SIMULATIONS and SIMULATION_STEPS must be positive")
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("CACHE_SIZE must be positive, got %d", c.CacheSize)
	}
	return nil
}

// RiskToleranceValue returns the configured level scaled to (0, 1].
func (c *Config) RiskToleranceValue() float64 {
	v, _ := domain.RiskToleranceFromLevel(c.RiskTolerance)
	return v
}

// Frequency returns the parsed rebalance frequency.
func (c *Config) Frequency() domain.Frequency {
	f, err := domain.ParseFrequency(c.RebalanceFrequency)
	if err != nil {
		return domain.Quarterly
	}
	return f
}

// ReportDefaults returns the report settings requests fall back to.
func (c *Config) ReportDefaults() report.Request {
	return report.Request{
		Assets:                  c.Assets,
		RiskTolerance:           c.RiskToleranceValue(),
		TargetReturn:            c.TargetReturn,
		HorizonYears:            c.TimeHorizon,
		Simulations:             c.Simulations,
		Steps:                   c.SimulationSteps,
		Seed:                    c.SimulationSeed,
		Correlated:              c.CorrelatedDraws,
		ValueWithOptimalWeights: c.ValueWithOptimalWeights,
		RiskFreeRate:            c.RiskFreeRate,
	}
}

// RebalanceOptions returns the options scheduled rebalance runs use.
func (c *Config) RebalanceOptions() rebalancing.Options {
	return rebalancing.Options{
		RiskTolerance: c.RiskToleranceValue(),
		Frequency:     c.Frequency(),
		Threshold:     c.RebalanceThreshold,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsOptionalFloat(key string) (*float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return &f, nil
}
