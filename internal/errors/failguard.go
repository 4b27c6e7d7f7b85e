package errors

import (
	"sync"
)

// FailureGuard trips after a run of consecutive failures. The latch loop
// uses it to halt a session whose portal login has expired instead of
// burning through every remaining item.
type FailureGuard struct {
	mu sync.Mutex

	threshold   int
	consecutive int
	tripped     bool

	onTrip func(consecutive int)
}

// NewFailureGuard creates a guard that trips after threshold consecutive
// failures. A threshold of 0 disables the guard.
func NewFailureGuard(threshold int) *FailureGuard {
	return &FailureGuard{threshold: threshold}
}

// OnTrip sets a callback invoked once when the guard trips.
func (g *FailureGuard) OnTrip(fn func(consecutive int)) {
	g.mu.Lock()
	g.onTrip = fn
	g.mu.Unlock()
}

// RecordSuccess resets the consecutive failure count.
func (g *FailureGuard) RecordSuccess() {
	g.mu.Lock()
	g.consecutive = 0
	g.mu.Unlock()
}

// RecordFailure records a failure and returns true if the guard is now
// tripped.
func (g *FailureGuard) RecordFailure() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutive++
	if g.threshold > 0 && !g.tripped && g.consecutive >= g.threshold {
		g.tripped = true
		if g.onTrip != nil {
			g.onTrip(g.consecutive)
		}
	}
	return g.tripped
}

// Tripped reports whether the guard has tripped.
func (g *FailureGuard) Tripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped
}

// Consecutive returns the current consecutive failure count.
func (g *FailureGuard) Consecutive() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consecutive
}

// Reset clears the guard back to its initial state.
func (g *FailureGuard) Reset() {
	g.mu.Lock()
	g.consecutive = 0
	g.tripped = false
	g.mu.Unlock()
}

// GuardTrippedError is returned when the guard halts a run.
type GuardTrippedError struct {
	Consecutive int
}

// Error implements the error interface.
func (e *GuardTrippedError) Error() string {
	return "too many consecutive failures, halting run"
}
