// Package clock supplies the time source used to stamp stored instances.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in UTC.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Fake is a deterministic clock. Every call to Now returns the current
// reading and then moves it forward by step, so instances stamped in a
// row keep their creation order.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFake creates a clock that starts at start and ticks by step.
// A zero step freezes the clock.
func NewFake(start time.Time, step time.Duration) *Fake {
	return &Fake{current: start, step: step}
}

// Now returns the reading and advances it by one step.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.current
	f.current = f.current.Add(f.step)
	return t
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the clock forward by d without consuming a reading.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}
