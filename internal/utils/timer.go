package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowOperation is the duration above which a timed operation logs a warning.
const SlowOperation = 30 * time.Second

// Timer measures one named operation.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	slow  time.Duration
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
		slow:  SlowOperation,
	}
}

// SetSlowThreshold overrides the warning threshold. Zero disables the warning.
func (t *Timer) SetSlowThreshold(d time.Duration) {
	t.slow = d
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	duration := time.Since(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Operation completed")

	if t.slow > 0 && duration > t.slow {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Dur("threshold", t.slow).
			Msg("Slow operation detected")
	}
	return duration
}

// OperationTimer provides a defer-friendly way to time a function:
//
//	defer utils.OperationTimer("frontier_refresh", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	t := NewTimer(operation, log)
	return func() { t.Stop() }
}
