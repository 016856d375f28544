package integrity

import (
	"context"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// Snapshot is the set of mission-critical fields kept under TMR protection.
// These are the values whose corruption could cost the mission: the state
// machines, the deployment flag, and the boot counter.
type Snapshot struct {
	MissionState    uint8
	AntennaState    uint8
	AntennaDeployed bool
	GroundContact   bool
	BootCount       uint32
}

// Guard owns the TMR cells for the mission-critical fields and scrubs them on
// a fixed interval. The mission controller is the only writer; the guard is a
// data-integrity mechanism, not a concurrency one.
type Guard struct {
	missionState    TMR[uint8]
	antennaState    TMR[uint8]
	antennaDeployed TMR[bool]
	groundContact   TMR[bool]
	bootCount       TMR[uint32]

	interval  time.Duration
	lastScrub time.Time

	corrections uint32

	log logging.Logger

	// OnCorrection, if set, is invoked with the number of cells corrected
	// by a scrub pass. Used to feed the SEU metrics counter.
	OnCorrection func(n int)
}

// DefaultScrubInterval matches the original firmware's 10-second cadence.
const DefaultScrubInterval = 10 * time.Second

// NewGuard constructs a guard with all cells at their zero values.
func NewGuard(interval time.Duration, log logging.Logger, now time.Time) *Guard {
	if interval <= 0 {
		interval = DefaultScrubInterval
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Guard{
		interval:  interval,
		lastScrub: now,
		log:       logging.Subsystem(log, "rad"),
	}
}

// Store writes every field of s into its TMR cell.
func (g *Guard) Store(s Snapshot) {
	g.missionState.Write(s.MissionState)
	g.antennaState.Write(s.AntennaState)
	g.antennaDeployed.Write(s.AntennaDeployed)
	g.groundContact.Write(s.GroundContact)
	g.bootCount.Write(s.BootCount)
}

// Load votes every cell and returns the agreed snapshot. A catastrophic
// disagreement in any cell aborts the load.
func (g *Guard) Load() (Snapshot, error) {
	var s Snapshot
	var err error
	if s.MissionState, err = g.missionState.Read(); err != nil {
		return Snapshot{}, err
	}
	if s.AntennaState, err = g.antennaState.Read(); err != nil {
		return Snapshot{}, err
	}
	if s.AntennaDeployed, err = g.antennaDeployed.Read(); err != nil {
		return Snapshot{}, err
	}
	if s.GroundContact, err = g.groundContact.Read(); err != nil {
		return Snapshot{}, err
	}
	if s.BootCount, err = g.bootCount.Read(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Tick scrubs all cells when the interval has elapsed. Returns
// ErrCatastrophic when voting cannot resolve a cell; the caller must treat
// that as a restart condition.
func (g *Guard) Tick(ctx context.Context, now time.Time) error {
	if now.Sub(g.lastScrub) < g.interval {
		return nil
	}
	n, err := g.scrubAll()
	g.lastScrub = now
	if err != nil {
		g.log.Error(ctx, "TMR voting failed, escalating to restart")
		return err
	}
	if n > 0 {
		g.corrections += uint32(n)
		g.log.Warn(ctx, "scrub corrected SEUs",
			logging.Int("corrected", n),
			logging.Uint32("total", g.corrections))
		if g.OnCorrection != nil {
			g.OnCorrection(n)
		}
	}
	return nil
}

func (g *Guard) scrubAll() (int, error) {
	n := 0
	scrubs := []func() (bool, error){
		g.missionState.Scrub,
		g.antennaState.Scrub,
		g.antennaDeployed.Scrub,
		g.groundContact.Scrub,
		g.bootCount.Scrub,
	}
	for _, scrub := range scrubs {
		corrected, err := scrub()
		if err != nil {
			return n, err
		}
		if corrected {
			n++
		}
	}
	return n, nil
}

// Corrections returns the cumulative SEU correction count since boot.
func (g *Guard) Corrections() uint32 { return g.corrections }

// SinceLastScrub reports how long ago the last scrub pass ran.
func (g *Guard) SinceLastScrub(now time.Time) time.Duration {
	return now.Sub(g.lastScrub)
}

// MissionStateCell exposes the mission-state cell for fault-injection tests.
func (g *Guard) MissionStateCell() *TMR[uint8] { return &g.missionState }

// BootCountCell exposes the boot-count cell for fault-injection tests.
func (g *Guard) BootCountCell() *TMR[uint32] { return &g.bootCount }
