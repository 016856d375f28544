package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clk := NewManual(start)

	clk.Advance(42 * time.Second)

	if got := clk.Now(); !got.Equal(start.Add(42 * time.Second)) {
		t.Fatalf("Now() = %v, want %v", got, start.Add(42*time.Second))
	}
}

func TestManualSet(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clk := NewManual(start)

	newNow := start.Add(time.Hour)
	clk.Set(newNow)

	if got := clk.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestRunnerAcceleratedAdvancesClock(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	clk := NewManual(start)
	r := NewRunner(10*time.Millisecond, Accelerated, clk)

	var ticks int
	stop := errors.New("stop")
	err := r.Run(context.Background(), func(now time.Time) error {
		ticks++
		if ticks == 5 {
			return stop
		}
		return nil
	})

	if !errors.Is(err, stop) {
		t.Fatalf("Run returned %v, want sentinel", err)
	}
	expected := start.Add(50 * time.Millisecond)
	if got := clk.Now(); !got.Equal(expected) {
		t.Fatalf("clock = %v, want %v", got, expected)
	}
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	clk := NewManual(time.Unix(0, 0))
	r := NewRunner(time.Millisecond, Accelerated, clk)

	ctx, cancel := context.WithCancel(context.Background())
	var ticks int
	err := r.Run(ctx, func(now time.Time) error {
		ticks++
		if ticks == 3 {
			cancel()
		}
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}
