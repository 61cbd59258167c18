package habit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeFormat reports a time string that is not HH:MM 24h.
	ErrInvalidTimeFormat = errors.New("invalid time format, want HH:MM")
	// ErrInvalidInterval reports a non-positive interval step.
	ErrInvalidInterval = errors.New("interval minutes must be positive")
)

// RuleError scopes a compile failure to one rule (and optionally one time
// entry within it). Rule errors never abort the batch; the compiler reports
// them alongside whatever it could materialize.
type RuleError struct {
	HabitID   int
	RuleIndex int
	Value     string // offending time string, if any
	Err       error
}

func (e *RuleError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("habit %d rule %d: %q: %v", e.HabitID, e.RuleIndex, e.Value, e.Err)
	}
	return fmt.Sprintf("habit %d rule %d: %v", e.HabitID, e.RuleIndex, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }
