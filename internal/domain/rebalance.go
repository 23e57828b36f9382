package domain

import (
	"strings"
	"time"
)

// Frequency is a rebalance period length in trading days.
type Frequency int

const (
	Quarterly Frequency = 63
	Yearly    Frequency = 252
)

// ParseFrequency maps a label to a Frequency. Matching is case-insensitive.
func ParseFrequency(label string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "quarterly":
		return Quarterly, nil
	case "yearly":
		return Yearly, nil
	default:
		return 0, InvalidInputf("unknown rebalance frequency %q", label)
	}
}

// String returns the frequency label.
func (f Frequency) String() string {
	switch f {
	case Quarterly:
		return "Quarterly"
	case Yearly:
		return "Yearly"
	default:
		return "Unknown"
	}
}

// Days returns the period length in trading days.
func (f Frequency) Days() int {
	return int(f)
}

// RebalanceEvent is emitted once per walk-forward window.
type RebalanceEvent struct {
	RunID          string         `json:"run_id"`
	Period         int            `json:"period"`
	Boundary       int            `json:"boundary"`
	WindowEnd      int            `json:"window_end"`
	Weights        Weights        `json:"weights"`
	ExpectedReturn float64        `json:"expected_return"`
	Volatility     float64        `json:"volatility"`
	DecisionPoint  *DecisionPoint `json:"decision_point,omitempty"`
	Adjusted       bool           `json:"adjusted"`
	At             time.Time      `json:"at"`
}

// ReturnPct returns the expected return in percent.
func (e RebalanceEvent) ReturnPct() float64 { return e.ExpectedReturn * 100 }

// VolatilityPct returns the volatility in percent.
func (e RebalanceEvent) VolatilityPct() float64 { return e.Volatility * 100 }
