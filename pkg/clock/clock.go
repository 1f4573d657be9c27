// Package clock provides a deterministic clock abstraction for signaldb.
//
// GUARDRAIL: the storage engine MUST NOT call time.Now() directly.
// Inject a Clock instead, so a whole upsert batch observes one instant
// (spec: "the engine never recomputes the clock mid-batch") and tests can
// assert bitemporal behavior without racing the wall clock.
//
// Usage:
//
//	// In production code
//	type Engine struct {
//	    clock clock.Clock
//	}
//
//	func (e *Engine) Upsert(ctx context.Context, items []instrument.Instrument) error {
//	    now := e.clock.Now()  // one instant for the whole batch
//	    // ...
//	}
//
//	// In tests
//	fixed := clock.NewFixed(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
//	eng, err := impl_mongo.NewEngine(ctx, db, impl_mongo.WithClock(fixed))
package clock

import "time"

// Clock provides the current time.
// All storage-engine logic should depend on this interface, not time.Now().
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual system time.
// Use only at application entry points (cmd/signaldb).
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns a fixed time.
// Use for deterministic testing.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.T
}

// FuncClock wraps a function as a Clock.
// Useful for tests that need to advance time across several calls.
type FuncClock func() time.Time

// Now calls the wrapped function.
func (f FuncClock) Now() time.Time {
	return f()
}

// NewReal returns a Clock that uses the real system time.
func NewReal() Clock {
	return RealClock{}
}

// NewFixed returns a Clock that always returns the given time.
func NewFixed(t time.Time) Clock {
	return FixedClock{T: t}
}

// NewFunc returns a Clock backed by a custom function.
func NewFunc(f func() time.Time) Clock {
	return FuncClock(f)
}

// Verify interface compliance at compile time.
var (
	_ Clock = RealClock{}
	_ Clock = FixedClock{}
	_ Clock = FuncClock(nil)
)
