// Package antenna drives the burn-wire deployment sequence as a polled state
// machine. The restraint switch reads "pressed" while the antenna is stowed;
// energizing the burn wire melts the restraint line until the switch releases.
package antenna

import (
	"context"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// Switch reads the deployment restraint switch.
type Switch interface {
	// Pressed reports true while the antenna is still stowed.
	Pressed() bool
}

// BurnWire controls the resistive deployment actuator.
type BurnWire interface {
	Activate()
	Deactivate()
}

// State is the deployment sub-machine state.
type State int

const (
	Idle State = iota
	Heating
	Cooling
	RetryWait
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Heating:
		return "heating"
	case Cooling:
		return "cooling"
	case RetryWait:
		return "retry_wait"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Event tells the mission controller what a tick concluded. The controller
// owns persistence and downlink, so the sub-machine only reports.
type Event int

const (
	// EventNone means the sequence is still in progress.
	EventNone Event = iota
	// EventDeployed means the switch released. Terminal, success.
	EventDeployed
	// EventRetryScheduled means a heat/cool cycle failed and another
	// attempt is queued after the retry wait.
	EventRetryScheduled
	// EventFailed means every retry was exhausted with the switch still
	// pressed. Terminal; the mission proceeds on whatever antenna
	// performance the partial deployment gives us.
	EventFailed
)

// Config carries the burn cycle timings.
type Config struct {
	HeatDuration time.Duration
	CoolDuration time.Duration
	RetryWait    time.Duration
	MaxRetries   int
}

// DefaultConfig mirrors the flight timings.
func DefaultConfig() Config {
	return Config{
		HeatDuration: 90 * time.Second,
		CoolDuration: 90 * time.Second,
		RetryWait:    15 * time.Minute,
		MaxRetries:   3,
	}
}

// Deployer runs the deployment sequence. Single caller, no locking.
type Deployer struct {
	cfg  Config
	sw   Switch
	wire BurnWire
	feed func()
	log  logging.Logger

	state      State
	stateStart time.Time
	retries    int
	wireActive bool
	deployed   bool
}

// NewDeployer builds a deployer in Idle. feed is the watchdog feeder, called
// on every tick of the long-running phases; it may be nil.
func NewDeployer(cfg Config, sw Switch, wire BurnWire, feed func(), log logging.Logger) *Deployer {
	if log == nil {
		log = logging.Noop()
	}
	if feed == nil {
		feed = func() {}
	}
	return &Deployer{
		cfg:  cfg,
		sw:   sw,
		wire: wire,
		feed: feed,
		log:  logging.Subsystem(log, "ant"),
	}
}

// State returns the current sub-machine state.
func (d *Deployer) State() State { return d.state }

// Deployed reports whether the switch ever released.
func (d *Deployer) Deployed() bool { return d.deployed }

// Retries returns the count of failed heat/cool cycles.
func (d *Deployer) Retries() int { return d.retries }

func (d *Deployer) succeed(ctx context.Context, why string) Event {
	d.setWire(false)
	d.deployed = true
	d.state = Complete
	d.log.Info(ctx, "antenna deployed", logging.String("via", why))
	return EventDeployed
}

func (d *Deployer) setWire(on bool) {
	if on == d.wireActive {
		return
	}
	d.wireActive = on
	if on {
		d.wire.Activate()
	} else {
		d.wire.Deactivate()
	}
}

// Tick advances the sequence. Terminal states return EventNone forever after
// their first report.
func (d *Deployer) Tick(ctx context.Context, now time.Time) Event {
	elapsed := now.Sub(d.stateStart)

	switch d.state {
	case Idle:
		if !d.sw.Pressed() {
			// Already free, no burn needed. The actuator must never
			// fire in this case.
			return d.succeed(ctx, "switch released at start")
		}
		d.log.Info(ctx, "switch pressed, starting burn wire heating")
		d.setWire(true)
		d.state = Heating
		d.stateStart = now

	case Heating:
		d.feed()
		if !d.sw.Pressed() {
			return d.succeed(ctx, "released during heating")
		}
		if elapsed >= d.cfg.HeatDuration {
			d.log.Info(ctx, "heating complete, cooling down")
			d.setWire(false)
			d.state = Cooling
			d.stateStart = now
		}

	case Cooling:
		d.feed()
		if elapsed >= d.cfg.CoolDuration {
			if !d.sw.Pressed() {
				return d.succeed(ctx, "released after cooling")
			}
			d.retries++
			d.log.Warn(ctx, "deployment attempt failed",
				logging.Int("attempt", d.retries))
			if d.retries >= d.cfg.MaxRetries {
				d.log.Error(ctx, "deployment retries exhausted")
				d.state = Complete
				return EventFailed
			}
			d.state = RetryWait
			d.stateStart = now
			return EventRetryScheduled
		}

	case RetryWait:
		d.feed()
		if !d.sw.Pressed() {
			return d.succeed(ctx, "released during retry wait")
		}
		if elapsed >= d.cfg.RetryWait {
			d.log.Info(ctx, "retry wait complete, attempting again")
			d.state = Idle
			d.stateStart = now
		}

	case Complete:
	}
	return EventNone
}
