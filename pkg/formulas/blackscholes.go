package formulas

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidOptionInput is returned for out-of-domain pricing inputs.
var ErrInvalidOptionInput = errors.New("invalid option pricing input")

// OptionType is either a call or a put.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// ParseOptionType accepts "call" or "put" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch OptionType(strings.ToLower(strings.TrimSpace(s))) {
	case Call:
		return Call, nil
	case Put:
		return Put, nil
	}
	return "", fmt.Errorf("%w: option type must be 'call' or 'put', got %q", ErrInvalidOptionInput, s)
}

// OptionInput describes a European option.
type OptionInput struct {
	Spot       float64    `json:"spot"`
	Strike     float64    `json:"strike"`
	Maturity   float64    `json:"maturity"`
	RiskFree   float64    `json:"risk_free"`
	Volatility float64    `json:"volatility"`
	Type       OptionType `json:"type"`
}

// Validate checks the Black-Scholes domain: positive spot, strike, maturity
// and volatility, non-negative rate.
func (in OptionInput) Validate() error {
	switch {
	case in.Spot <= 0:
		return fmt.Errorf("%w: spot price must be positive", ErrInvalidOptionInput)
	case in.Strike <= 0:
		return fmt.Errorf("%w: strike price must be positive", ErrInvalidOptionInput)
	case in.Maturity <= 0:
		return fmt.Errorf("%w: time to maturity must be positive", ErrInvalidOptionInput)
	case in.RiskFree < 0:
		return fmt.Errorf("%w: risk-free rate cannot be negative", ErrInvalidOptionInput)
	case in.Volatility <= 0:
		return fmt.Errorf("%w: volatility must be positive", ErrInvalidOptionInput)
	}
	_, err := ParseOptionType(string(in.Type))
	return err
}

// RiskNeutralPrice prices a European option with the Black-Scholes formula.
func RiskNeutralPrice(in OptionInput) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	typ, _ := ParseOptionType(string(in.Type))

	sqrtT := math.Sqrt(in.Maturity)
	d1 := (math.Log(in.Spot/in.Strike) + (in.RiskFree+0.5*in.Volatility*in.Volatility)*in.Maturity) / (in.Volatility * sqrtT)
	d2 := d1 - in.Volatility*sqrtT
	discount := math.Exp(-in.RiskFree * in.Maturity)

	n := distuv.UnitNormal
	if typ == Call {
		return in.Spot*n.CDF(d1) - in.Strike*discount*n.CDF(d2), nil
	}
	return in.Strike*discount*n.CDF(-d2) - in.Spot*n.CDF(-d1), nil
}
