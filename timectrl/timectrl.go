package timectrl

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source for the flight loop. The mission controller never
// calls time.Now directly; everything is driven through this interface so the
// state machine can be exercised in tests with a manual clock.
type Clock interface {
	// Now returns the current mission clock reading. The reading is
	// monotonic for the lifetime of the process, like millis() on a
	// microcontroller.
	Now() time.Time
}

// SystemClock reads the host's wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Manual is a hand-advanced clock for tests.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual constructs a manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time. Implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to the given instant.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Mode describes how the Runner paces loop iterations.
type Mode int

const (
	// RealTime sleeps between iterations so ticks land on wall-clock
	// boundaries.
	RealTime Mode = iota
	// Accelerated iterates as fast as the loop body allows while still
	// advancing the manual clock by Tick each pass. Used for simulation
	// runs and soak tests.
	Accelerated
)

// Runner drives a tick function at a fixed interval. It is the Go rendition
// of the firmware's free-running loop(): one non-blocking pass per tick, no
// work between passes.
type Runner struct {
	Tick time.Duration
	Mode Mode

	clock *Manual // only used in Accelerated mode
}

// NewRunner constructs a runner. In Accelerated mode the provided manual
// clock is advanced by Tick on every pass; in RealTime mode clock may be nil
// and the tick function sees the system clock via its argument.
func NewRunner(tick time.Duration, mode Mode, clock *Manual) *Runner {
	return &Runner{Tick: tick, Mode: mode, clock: clock}
}

// Run invokes fn once per tick until the context is cancelled or fn returns
// an error. The error is handed back to the caller; a run loop error is how
// the flight software requests a full restart.
func (r *Runner) Run(ctx context.Context, fn func(now time.Time) error) error {
	if r.Mode == Accelerated {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			r.clock.Advance(r.Tick)
			if err := fn(r.clock.Now()); err != nil {
				return err
			}
		}
	}

	ticker := time.NewTicker(r.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := fn(now); err != nil {
				return err
			}
		}
	}
}
