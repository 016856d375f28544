package antenna

import (
	"context"
	"testing"
	"time"

	"github.com/edsonpavoni/orbitalTemple/timectrl"
)

type fakeSwitch struct{ pressed bool }

func (f *fakeSwitch) Pressed() bool { return f.pressed }

type fakeWire struct {
	activations   int
	deactivations int
	active        bool
}

func (f *fakeWire) Activate() {
	f.activations++
	f.active = true
}

func (f *fakeWire) Deactivate() {
	f.deactivations++
	f.active = false
}

func testConfig() Config {
	return Config{
		HeatDuration: 90 * time.Second,
		CoolDuration: 90 * time.Second,
		RetryWait:    15 * time.Minute,
		MaxRetries:   3,
	}
}

func TestAlreadyReleasedCompletesWithoutActuation(t *testing.T) {
	sw := &fakeSwitch{pressed: false}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	d := NewDeployer(testConfig(), sw, wire, nil, nil)

	if ev := d.Tick(context.Background(), clk.Now()); ev != EventDeployed {
		t.Fatalf("first tick event = %v, want EventDeployed", ev)
	}
	if !d.Deployed() || d.State() != Complete {
		t.Fatalf("state = %v deployed = %v", d.State(), d.Deployed())
	}
	if wire.activations != 0 {
		t.Fatalf("burn wire fired %d times on an already-free antenna", wire.activations)
	}
}

func TestHeatCycleActivatesThenCools(t *testing.T) {
	sw := &fakeSwitch{pressed: true}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	ctx := context.Background()
	d := NewDeployer(testConfig(), sw, wire, nil, nil)

	d.Tick(ctx, clk.Now())
	if d.State() != Heating || !wire.active {
		t.Fatalf("after first tick state = %v wire active = %v", d.State(), wire.active)
	}

	clk.Advance(91 * time.Second)
	d.Tick(ctx, clk.Now())
	if d.State() != Cooling {
		t.Fatalf("state = %v, want Cooling", d.State())
	}
	if wire.active {
		t.Fatal("wire still energized after entering Cooling")
	}

	// Release during cooling is only observed once the cool period ends.
	sw.pressed = false
	clk.Advance(91 * time.Second)
	if ev := d.Tick(ctx, clk.Now()); ev != EventDeployed {
		t.Fatalf("event = %v, want EventDeployed", ev)
	}
}

func TestReleaseDuringHeatingStopsWireImmediately(t *testing.T) {
	sw := &fakeSwitch{pressed: true}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	ctx := context.Background()
	d := NewDeployer(testConfig(), sw, wire, nil, nil)

	d.Tick(ctx, clk.Now())
	clk.Advance(10 * time.Second)
	sw.pressed = false
	if ev := d.Tick(ctx, clk.Now()); ev != EventDeployed {
		t.Fatalf("event = %v, want EventDeployed", ev)
	}
	if wire.active {
		t.Fatal("wire still energized after mid-heating release")
	}
}

func TestRetryThenSuccess(t *testing.T) {
	sw := &fakeSwitch{pressed: true}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	ctx := context.Background()
	d := NewDeployer(testConfig(), sw, wire, nil, nil)

	d.Tick(ctx, clk.Now()) // Idle -> Heating
	clk.Advance(90 * time.Second)
	d.Tick(ctx, clk.Now()) // Heating -> Cooling
	clk.Advance(90 * time.Second)
	if ev := d.Tick(ctx, clk.Now()); ev != EventRetryScheduled {
		t.Fatalf("event = %v, want EventRetryScheduled", ev)
	}
	if d.State() != RetryWait || d.Retries() != 1 {
		t.Fatalf("state = %v retries = %d", d.State(), d.Retries())
	}

	sw.pressed = false
	clk.Advance(time.Minute)
	if ev := d.Tick(ctx, clk.Now()); ev != EventDeployed {
		t.Fatalf("event = %v, want EventDeployed", ev)
	}
}

func TestRetryWaitElapsesBackToIdle(t *testing.T) {
	sw := &fakeSwitch{pressed: true}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	ctx := context.Background()
	d := NewDeployer(testConfig(), sw, wire, nil, nil)

	d.Tick(ctx, clk.Now())
	clk.Advance(90 * time.Second)
	d.Tick(ctx, clk.Now())
	clk.Advance(90 * time.Second)
	d.Tick(ctx, clk.Now()) // retry scheduled

	clk.Advance(15 * time.Minute)
	d.Tick(ctx, clk.Now()) // RetryWait -> Idle
	if d.State() != Idle {
		t.Fatalf("state = %v, want Idle", d.State())
	}
	d.Tick(ctx, clk.Now())
	if d.State() != Heating || wire.activations != 2 {
		t.Fatalf("state = %v activations = %d, want second heating", d.State(), wire.activations)
	}
}

func TestRetriesExhaustedReportsFailureAndTerminates(t *testing.T) {
	sw := &fakeSwitch{pressed: true}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	ctx := context.Background()
	cfg := testConfig()
	d := NewDeployer(cfg, sw, wire, nil, nil)

	var failed bool
	for i := 0; i < 3; i++ {
		d.Tick(ctx, clk.Now()) // Idle -> Heating
		clk.Advance(cfg.HeatDuration)
		d.Tick(ctx, clk.Now()) // Heating -> Cooling
		clk.Advance(cfg.CoolDuration)
		ev := d.Tick(ctx, clk.Now())
		switch ev {
		case EventRetryScheduled:
			clk.Advance(cfg.RetryWait)
			d.Tick(ctx, clk.Now()) // back to Idle
		case EventFailed:
			failed = true
		default:
			t.Fatalf("cycle %d event = %v", i, ev)
		}
	}

	if !failed {
		t.Fatal("never saw EventFailed after exhausting retries")
	}
	if d.Deployed() {
		t.Fatal("deployed flag set on failure")
	}
	if d.State() != Complete {
		t.Fatalf("state = %v, want Complete (terminal)", d.State())
	}
	if ev := d.Tick(ctx, clk.Now()); ev != EventNone {
		t.Fatalf("terminal state still reports %v", ev)
	}
}

func TestLongPhasesFeedWatchdog(t *testing.T) {
	sw := &fakeSwitch{pressed: true}
	wire := &fakeWire{}
	clk := timectrl.NewManual(time.Unix(0, 0))
	ctx := context.Background()

	feeds := 0
	d := NewDeployer(testConfig(), sw, wire, func() { feeds++ }, nil)

	d.Tick(ctx, clk.Now()) // Idle, no feed yet
	if feeds != 0 {
		t.Fatalf("Idle fed the watchdog %d times", feeds)
	}
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
		d.Tick(ctx, clk.Now()) // Heating
	}
	if feeds != 5 {
		t.Fatalf("Heating fed the watchdog %d times, want 5", feeds)
	}
}
