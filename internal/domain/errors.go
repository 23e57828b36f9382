package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the numeric modules. Callers match them with errors.Is.
var (
	// ErrInvalidInput reports malformed or inconsistent inputs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInfeasibleTarget reports a target return no long-only portfolio can reach.
	ErrInfeasibleTarget = errors.New("infeasible target return")
	// ErrNonConvergence reports a solver that stopped with constraints still violated.
	ErrNonConvergence = errors.New("optimizer did not converge")
)

// InvalidInputf wraps ErrInvalidInput with a formatted detail message.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ConvergenceError carries the best iterate of a solve that did not meet its
// constraint tolerance. It unwraps to ErrNonConvergence.
type ConvergenceError struct {
	Weights  []float64
	Return   float64
	Risk     float64
	Residual float64
	Reason   string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: %s (residual=%.3g)", ErrNonConvergence, e.Reason, e.Residual)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrNonConvergence
}
