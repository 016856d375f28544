// Package beacon implements the adaptive beacon scheduler. The satellite
// announces itself frequently until the ground station finds it, then backs
// off to save power and channel time, then speeds back up if the ground goes
// quiet for too long.
package beacon

import (
	"context"
	"fmt"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// Mode is the current beacon cadence regime.
type Mode int

const (
	// ModeAcquisition runs before any ground contact: beacon often so the
	// ground station can find and track us.
	ModeAcquisition Mode = iota
	// ModeSteady runs after contact while the link is warm.
	ModeSteady
	// ModeLost runs after contact once the ground has been silent past the
	// lost threshold.
	ModeLost
)

func (m Mode) String() string {
	switch m {
	case ModeAcquisition:
		return "acquisition"
	case ModeSteady:
		return "steady"
	case ModeLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Config carries the cadence and payload settings.
type Config struct {
	AcquisitionInterval time.Duration
	SteadyInterval      time.Duration
	LostInterval        time.Duration
	LostThreshold       time.Duration

	// MinVoltage gates transmission. A reading below this skips the send
	// but still advances the schedule. Zero disables the gate.
	MinVoltage float64

	MsgSearching string
	MsgConnected string
	MsgLost      string
}

// DefaultConfig mirrors the flight defaults.
func DefaultConfig() Config {
	return Config{
		AcquisitionInterval: time.Minute,
		SteadyInterval:      time.Hour,
		LostInterval:        5 * time.Minute,
		LostThreshold:       24 * time.Hour,
		MinVoltage:          3.3,
		MsgSearching:        "ORBITAL TEMPLE:SEARCHING",
		MsgConnected:        "ORBITAL TEMPLE:ALIVE",
		MsgLost:             "ORBITAL TEMPLE:LOST",
	}
}

// Status is the mission data a beacon payload reports. The controller fills
// it in on every tick so the scheduler stays free of mission bookkeeping.
type Status struct {
	MissionElapsed time.Duration
	BootCount      uint32

	// BatteryVolts is the last sensor reading, or a negative value when
	// the reading failed. An unreadable battery never withholds a beacon.
	BatteryVolts float64
}

// Transmit sends one downlink line.
type Transmit func(ctx context.Context, line string) error

// Scheduler decides when to beacon and builds the payload. Not safe for
// concurrent use; the mission loop is the single caller.
type Scheduler struct {
	cfg  Config
	log  logging.Logger
	send Transmit

	contactEstablished bool
	lastContact        time.Time
	lastBeacon         time.Time
	haveBeaconed       bool

	onFirstContact func()

	// OnSent is an optional metrics hook invoked after each transmission.
	OnSent func(mode Mode)
}

// NewScheduler builds a scheduler. send must be non-nil.
func NewScheduler(cfg Config, send Transmit, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Noop()
	}
	return &Scheduler{
		cfg:  cfg,
		log:  logging.Subsystem(log, "beacon"),
		send: send,
	}
}

// SetFirstContactHook registers the one-shot side effect fired on the first
// ground contact of the mission. It runs at most once.
func (s *Scheduler) SetFirstContactHook(fn func()) {
	s.onFirstContact = fn
}

// ContactEstablished reports whether any authenticated command has ever been
// received.
func (s *Scheduler) ContactEstablished() bool {
	return s.contactEstablished
}

// RegisterContact records an authenticated command from the ground. The
// false to true transition fires the first-contact hook exactly once;
// repeated calls only refresh the last-contact time.
func (s *Scheduler) RegisterContact(now time.Time) {
	first := !s.contactEstablished
	s.contactEstablished = true
	s.lastContact = now
	if first {
		s.log.Info(context.Background(), "first ground contact established")
		if s.onFirstContact != nil {
			s.onFirstContact()
		}
	}
}

// CurrentMode classifies the link at time now.
func (s *Scheduler) CurrentMode(now time.Time) Mode {
	if !s.contactEstablished {
		return ModeAcquisition
	}
	if now.Sub(s.lastContact) > s.cfg.LostThreshold {
		return ModeLost
	}
	return ModeSteady
}

// Interval returns the cadence for the current mode.
func (s *Scheduler) Interval(now time.Time) time.Duration {
	switch s.CurrentMode(now) {
	case ModeAcquisition:
		return s.cfg.AcquisitionInterval
	case ModeLost:
		return s.cfg.LostInterval
	default:
		return s.cfg.SteadyInterval
	}
}

// MaybeSend transmits a beacon when the schedule is due. A low battery skips
// the transmission but still advances the schedule, so a recovering battery
// does not trigger a burst of queued beacons.
func (s *Scheduler) MaybeSend(ctx context.Context, now time.Time, st Status) {
	if s.haveBeaconed && now.Sub(s.lastBeacon) < s.Interval(now) {
		return
	}
	if s.cfg.MinVoltage > 0 && st.BatteryVolts >= 0 && st.BatteryVolts < s.cfg.MinVoltage {
		s.log.Warn(ctx, "battery low, skipping beacon",
			logging.Float64("volts", st.BatteryVolts))
		s.lastBeacon = now
		s.haveBeaconed = true
		return
	}
	s.Send(ctx, now, st)
}

// Send transmits a beacon immediately regardless of schedule. The mission
// controller uses it for the initial beacon on entering Operational.
func (s *Scheduler) Send(ctx context.Context, now time.Time, st Status) {
	mode := s.CurrentMode(now)
	line := s.payload(mode, st)
	s.log.Info(ctx, "sending beacon",
		logging.String("mode", mode.String()), logging.String("payload", line))
	if err := s.send(ctx, line); err != nil {
		s.log.Warn(ctx, "beacon transmission failed", logging.Any("error", err))
	} else if s.OnSent != nil {
		s.OnSent(mode)
	}
	s.lastBeacon = now
	s.haveBeaconed = true
}

func (s *Scheduler) payload(mode Mode, st Status) string {
	msg := s.cfg.MsgConnected
	switch mode {
	case ModeAcquisition:
		msg = s.cfg.MsgSearching
	case ModeLost:
		msg = s.cfg.MsgLost
	}
	contact := "NO"
	if s.contactEstablished {
		contact = "YES"
	}
	return fmt.Sprintf("%s|%s|B:%d|C:%s|V:%.1f",
		msg, FormatElapsed(st.MissionElapsed), st.BootCount, contact, st.BatteryVolts)
}

// FormatElapsed renders mission elapsed time as T+HH:MM:SS. Hours grow past
// two digits rather than wrapping.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("T+%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
