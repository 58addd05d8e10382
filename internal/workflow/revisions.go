package workflow

import "prism/internal/config"

// RevisionLedger tracks named bounded retry counters. Counters are scoped to
// a stage or to the workflow by naming convention (e.g. "stage_3.design" or
// "replan"); the ledger itself treats names as opaque.
type RevisionLedger struct {
	Counters map[string]int `json:"counters,omitempty"`
}

// Increment bumps the named counter if it is still below its configured max.
// The max is resolved from limits by configKey, falling back to defaultMax.
// Returns the counter's value after the call and whether it was incremented.
// A counter already at or above its max is returned unchanged, never clamped
// down, so an over-limit value stays visible to the caller.
func (l *RevisionLedger) Increment(name, configKey string, limits config.Limits, defaultMax int) (int, bool) {
	max := limits.RevisionMax(configKey, defaultMax)
	current := l.Counters[name] // missing reads as 0
	if current >= max {
		return current, false
	}
	if l.Counters == nil {
		l.Counters = make(map[string]int)
	}
	l.Counters[name] = current + 1
	return current + 1, true
}

// Value returns the current value of a counter (0 when never incremented).
func (l *RevisionLedger) Value(name string) int { return l.Counters[name] }

// ResetAll zeroes every counter. Only a human override or a backtrack may
// call this.
func (l *RevisionLedger) ResetAll() {
	for k := range l.Counters {
		l.Counters[k] = 0
	}
}

// Reset zeroes one counter.
func (l *RevisionLedger) Reset(name string) {
	if l.Counters != nil {
		l.Counters[name] = 0
	}
}

func (l RevisionLedger) clone() RevisionLedger {
	if l.Counters == nil {
		return RevisionLedger{}
	}
	cp := make(map[string]int, len(l.Counters))
	for k, v := range l.Counters {
		cp[k] = v
	}
	return RevisionLedger{Counters: cp}
}
