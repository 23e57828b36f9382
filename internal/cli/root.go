// Package cli implements the allocator command line tool. Every command
// prints its result as JSON on stdout and logs on stderr.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/di"
	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/marketdata"
	"github.com/aristath/allocator/pkg/logger"
)

type app struct {
	cfg       *config.Config
	container *di.Container
	log       zerolog.Logger

	historyFile string
	assets      []string
	riskLevel   float64
	logLevel    string
	pretty      bool

	cfgOverrides overrides
}

// overrides holds subcommand flags that replace configuration values.
type overrides struct {
	horizon     float64
	simulations int
	steps       int
	seed        uint64
	correlated  bool
	frequency   string
	threshold   float64
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "allocator",
		Short:         "Mean-variance allocation, frontier, simulation and rebalancing",
		Long:          `Optimizes portfolio weights from a CSV price history, sweeps the efficient frontier, simulates price paths and replays walk-forward rebalances. Defaults come from the environment (.env supported).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.historyFile, "history", "", "CSV price history (default $PRICE_HISTORY_FILE)")
	flags.StringSliceVar(&a.assets, "assets", nil, "asset columns to use (default $ASSETS, else all)")
	flags.Float64Var(&a.riskLevel, "risk", 0, "risk tolerance level 1-10 (default $RISK_TOLERANCE)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (default $LOG_LEVEL)")
	flags.BoolVar(&a.pretty, "pretty", false, "indent JSON output")

	root.AddCommand(
		a.optimizeCmd(),
		a.frontierCmd(),
		a.simulateCmd(),
		a.rebalanceCmd(),
		a.reportCmd(),
		a.priceCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("history") {
		cfg.PriceHistoryFile = a.historyFile
	}
	if flags.Changed("assets") {
		cfg.Assets = a.assets
	}
	if flags.Changed("risk") {
		if _, err := domain.RiskToleranceFromLevel(a.riskLevel); err != nil {
			return err
		}
		cfg.RiskTolerance = a.riskLevel
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	o := a.cfgOverrides
	if flags.Changed("horizon") {
		cfg.TimeHorizon = o.horizon
	}
	if flags.Changed("simulations") {
		cfg.Simulations = o.simulations
	}
	if flags.Changed("steps") {
		cfg.SimulationSteps = o.steps
	}
	if flags.Changed("seed") {
		cfg.SimulationSeed = o.seed
	}
	if flags.Changed("correlated") {
		cfg.CorrelatedDraws = o.correlated
	}
	if flags.Changed("frequency") {
		cfg.RebalanceFrequency = o.frequency
	}
	if flags.Changed("threshold") {
		cfg.RebalanceThreshold = o.threshold
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.New(logger.Config{Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})
	a.container = &di.Container{Config: cfg, Log: a.log}
	return di.InitializeServices(a.container, a.log)
}

func (a *app) history(ctx context.Context) (*marketdata.PriceHistory, error) {
	if a.cfg.PriceHistoryFile == "" {
		return nil, fmt.Errorf("no price history: pass --history or set PRICE_HISTORY_FILE")
	}
	h, err := marketdata.LoadCSVFile(ctx, a.cfg.PriceHistoryFile)
	if err != nil {
		return nil, err
	}
	return h.Select(a.cfg.Assets)
}

func (a *app) snapshot(ctx context.Context) (domain.Snapshot, *marketdata.PriceHistory, error) {
	h, err := a.history(ctx)
	if err != nil {
		return domain.Snapshot{}, nil, err
	}
	snap, err := h.Snapshot()
	return snap, h, err
}

func (a *app) print(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if a.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
