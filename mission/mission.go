// Package mission owns the top-level flight state machine. A single
// controller instance holds every piece of mission-critical state and is
// mutated only from its Tick method, so the single-writer rule is enforced
// by construction rather than by locking.
package mission

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/antenna"
	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/command"
	"github.com/edsonpavoni/orbitalTemple/internal/filestore"
	"github.com/edsonpavoni/orbitalTemple/internal/integrity"
	"github.com/edsonpavoni/orbitalTemple/internal/logging"
	"github.com/edsonpavoni/orbitalTemple/internal/observability"
	"github.com/edsonpavoni/orbitalTemple/internal/persist"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/telemetry"
	"github.com/edsonpavoni/orbitalTemple/internal/transfer"
	"go.opentelemetry.io/otel/trace"
)

// State is the top-level mission state.
type State uint8

const (
	Boot State = iota
	WaitDeploy
	Deploying
	Operational
	Error
)

func (s State) String() string {
	switch s {
	case Boot:
		return "boot"
	case WaitDeploy:
		return "wait_deploy"
	case Deploying:
		return "deploying"
	case Operational:
		return "operational"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ErrRestartRequested is returned from Tick when the only safe way forward
// is a full software restart. State has already been saved best-effort by
// the time it surfaces; the process owner re-initializes everything.
var ErrRestartRequested = errors.New("mission: restart requested")

// Config carries the controller timings.
type Config struct {
	DeployWait         time.Duration
	TelemetryInterval  time.Duration
	ErrorRetryInterval time.Duration

	// MaxRecoveryAttempts caps consecutive failed radio recoveries before
	// the controller gives up and requests a full restart. 1 restarts on
	// the first failure. Defaults to 3.
	MaxRecoveryAttempts int
}

// Watchdog is the external liveness collaborator.
type Watchdog interface {
	Feed()
}

// Deps wires the controller's collaborators. All are required except
// Metrics.
type Deps struct {
	Link     *radio.Link
	Parser   *command.Parser
	Beacons  *beacon.Scheduler
	Deployer *antenna.Deployer
	Guard    *integrity.Guard
	Store    *persist.Store
	Files    *filestore.Store
	Transfer *transfer.Manager
	Sensors  telemetry.Source
	Watchdog Watchdog
	Metrics  *observability.FlightCollector
	Log      logging.Logger
	Tracer   trace.Tracer
}

// Controller runs the mission.
type Controller struct {
	cfg        Config
	link       *radio.Link
	parser     *command.Parser
	dispatcher *command.Dispatcher
	beacons    *beacon.Scheduler
	deployer   *antenna.Deployer
	guard      *integrity.Guard
	store      *persist.Store
	files      *filestore.Store
	xfer       *transfer.Manager
	sensors    telemetry.Source
	watchdog   Watchdog
	metrics    *observability.FlightCollector
	log        logging.Logger
	formatter  *telemetry.Formatter

	state            State
	stateStart       time.Time
	bootCount        uint32
	missionStart     time.Time
	deployed         bool
	lastTelemetry    time.Time
	lastRecovery     time.Time
	lastDropped      uint64
	recoveryAttempts int
	restartPending   bool
	lastSnap         integrity.Snapshot

	// now is the tick timestamp, valid while Tick runs. Handlers read it
	// instead of the wall clock so accelerated test time stays coherent.
	now time.Time
}

// NewController wires a controller. Call Boot before the first Tick.
func NewController(cfg Config, deps Deps) *Controller {
	log := deps.Log
	if log == nil {
		log = logging.Noop()
	}
	if cfg.MaxRecoveryAttempts <= 0 {
		cfg.MaxRecoveryAttempts = 3
	}
	c := &Controller{
		cfg:       cfg,
		link:      deps.Link,
		parser:    deps.Parser,
		beacons:   deps.Beacons,
		deployer:  deps.Deployer,
		guard:     deps.Guard,
		store:     deps.Store,
		files:     deps.Files,
		xfer:      deps.Transfer,
		sensors:   deps.Sensors,
		watchdog:  deps.Watchdog,
		metrics:   deps.Metrics,
		log:       logging.Subsystem(log, "mission"),
		formatter: telemetry.NewFormatter(),
	}
	c.dispatcher = command.NewDispatcher(log, deps.Tracer)
	c.registerHandlers()

	if c.metrics != nil {
		c.beacons.OnSent = func(m beacon.Mode) {
			c.metrics.Beacons.WithLabelValues(m.String()).Inc()
		}
		c.guard.OnCorrection = func(n int) {
			c.metrics.SEUCorrections.Add(float64(n))
		}
	}
	// First contact is a mission milestone: checkpoint state and stamp the
	// metric. The scheduler guarantees at-most-once.
	c.beacons.SetFirstContactHook(func() {
		if c.metrics != nil {
			c.metrics.FirstContact.Set(float64(c.now.Unix()))
		}
		c.save(context.Background())
	})
	return c
}

// Boot restores persisted state. A valid record with the antenna already
// deployed resumes directly in Operational; everything else starts the
// deployment sequence from the top.
func (c *Controller) Boot(ctx context.Context, now time.Time) {
	st, restored := c.store.Boot(ctx, uint32(now.Unix()))
	c.bootCount = st.BootCount
	c.missionStart = time.Unix(int64(st.MissionStart), 0)
	c.deployed = restored && st.AntennaDeployed
	c.now = now

	if c.deployed {
		c.log.Info(ctx, "resuming operational mission",
			logging.Uint32("boot_count", c.bootCount))
		c.enterOperational(ctx, now)
	} else {
		c.state = Boot
		c.stateStart = now
		c.log.Info(ctx, "fresh deployment sequence",
			logging.Uint32("boot_count", c.bootCount),
			logging.Bool("restored", restored))
	}

	if c.metrics != nil {
		c.metrics.BootCount.Set(float64(c.bootCount))
	}
	c.syncGuard()
	c.save(ctx)
}

// State returns the current mission state.
func (c *Controller) State() State { return c.state }

// BootCount returns the persisted boot counter.
func (c *Controller) BootCount() uint32 { return c.bootCount }

// AntennaDeployed reports whether deployment ever succeeded.
func (c *Controller) AntennaDeployed() bool { return c.deployed }

// MissionTime formats elapsed mission time as T+HH:MM:SS.
func (c *Controller) MissionTime(now time.Time) string {
	return beacon.FormatElapsed(now.Sub(c.missionStart))
}

// Tick advances the mission by one loop iteration. The only non-nil error
// it returns is ErrRestartRequested.
func (c *Controller) Tick(ctx context.Context, now time.Time) error {
	c.now = now
	c.watchdog.Feed()

	if err := c.guard.Tick(ctx, now); err != nil {
		// Three-way TMR disagreement. Memory can no longer be
		// trusted; save what we have and start over.
		c.log.Error(ctx, "catastrophic memory disagreement", logging.Any("error", err))
		return c.requestRestart(ctx)
	}
	if err := c.restoreFromGuard(ctx); err != nil {
		c.log.Error(ctx, "catastrophic memory disagreement", logging.Any("error", err))
		return c.requestRestart(ctx)
	}
	if c.metrics != nil {
		c.metrics.LastScrubTime.Set(float64(now.Add(-c.guard.SinceLastScrub(now)).Unix()))
	}

	// Drain every packet the receive goroutine buffered since last tick.
	for {
		pkt, ok := c.link.Poll()
		if !ok {
			break
		}
		c.processPacket(ctx, now, pkt)
		if c.restartPending {
			return c.requestRestart(ctx)
		}
	}
	if dropped := c.link.Dropped(); dropped > c.lastDropped {
		if c.metrics != nil {
			c.metrics.PacketsDropped.Add(float64(dropped - c.lastDropped))
		}
		c.lastDropped = dropped
	}

	switch c.state {
	case Boot:
		c.log.Info(ctx, "boot complete, waiting before deployment")
		c.state = WaitDeploy
		c.stateStart = now

	case WaitDeploy:
		c.beacons.MaybeSend(ctx, now, c.beaconStatus(now))
		if now.Sub(c.stateStart) >= c.cfg.DeployWait {
			c.log.Info(ctx, "wait complete, starting deployment")
			c.state = Deploying
			c.stateStart = now
		}

	case Deploying:
		c.beacons.MaybeSend(ctx, now, c.beaconStatus(now))
		switch c.deployer.Tick(ctx, now) {
		case antenna.EventDeployed:
			c.deployed = true
			c.enterOperational(ctx, now)
			c.save(ctx)
			c.transmit(ctx, "OK:ANTENNA_DEPLOYED|"+c.MissionTime(now))
		case antenna.EventRetryScheduled:
			c.transmit(ctx, "WARN:ANT_RETRY_WAIT|"+c.MissionTime(now))
		case antenna.EventFailed:
			// Partial capability beats spinning here forever.
			c.enterOperational(ctx, now)
			c.save(ctx)
			c.transmit(ctx, "ERR:ANT_DEPLOY_FAILED|"+c.MissionTime(now))
		}

	case Operational:
		c.beacons.MaybeSend(ctx, now, c.beaconStatus(now))

		if now.Sub(c.lastTelemetry) >= c.cfg.TelemetryInterval {
			c.transmit(ctx, c.telemetryFrame(now))
			c.lastTelemetry = now
		}

		c.transmitAll(ctx, c.xfer.CheckTimeout(now))

		if c.link.NeedsRecovery() {
			c.log.Warn(ctx, "radio link needs recovery")
			if c.metrics != nil {
				c.metrics.RadioRecoveries.Inc()
			}
			if err := c.link.Recover(ctx); err != nil {
				c.recoveryAttempts = 1
				if c.recoveryAttempts >= c.cfg.MaxRecoveryAttempts {
					c.log.Error(ctx, "radio unrecoverable, restarting",
						logging.Any("error", err))
					return c.requestRestart(ctx)
				}
				c.log.Error(ctx, "radio recovery failed, entering error state",
					logging.Any("error", err))
				c.state = Error
				c.stateStart = now
				c.lastRecovery = now
				c.save(ctx)
			} else {
				c.recoveryAttempts = 0
			}
		}

	case Error:
		if now.Sub(c.lastRecovery) >= c.cfg.ErrorRetryInterval {
			c.lastRecovery = now
			c.watchdog.Feed()
			if err := c.link.Recover(ctx); err != nil {
				c.recoveryAttempts++
				if c.recoveryAttempts >= c.cfg.MaxRecoveryAttempts {
					// A dead transport cannot be waited out. Save
					// and hand the problem to a full restart.
					c.log.Error(ctx, "radio unrecoverable, restarting",
						logging.Int("attempts", c.recoveryAttempts))
					return c.requestRestart(ctx)
				}
			} else {
				c.log.Info(ctx, "link recovered, resuming operations")
				c.recoveryAttempts = 0
				c.enterOperational(ctx, now)
			}
		}
	}

	c.syncGuard()
	return nil
}

func (c *Controller) requestRestart(ctx context.Context) error {
	c.save(ctx)
	if c.metrics != nil {
		c.metrics.Restarts.Inc()
	}
	return ErrRestartRequested
}

func (c *Controller) enterOperational(ctx context.Context, now time.Time) {
	c.state = Operational
	c.stateStart = now
	c.lastTelemetry = now
	c.log.Info(ctx, "entering operational mode")
	c.beacons.Send(ctx, now, c.beaconStatus(now))
}

// save persists mission state best-effort. Storage failure is logged and
// swallowed; losing a checkpoint must never take down the mission.
func (c *Controller) save(ctx context.Context) {
	st := persist.State{
		MissionState:    uint8(c.state),
		BootCount:       c.bootCount,
		AntennaDeployed: c.deployed,
		MissionStart:    uint32(c.missionStart.Unix()),
	}
	if err := c.store.Save(ctx, st); err != nil {
		c.log.Warn(ctx, "state save failed", logging.Any("error", err))
	}
}

// syncGuard writes the protected fields into their TMR cells, but only when
// something actually changed. Rewriting all three copies on every tick would
// erase a single-copy upset before the scrub pass could correct it.
func (c *Controller) syncGuard() {
	snap := integrity.Snapshot{
		MissionState:    uint8(c.state),
		AntennaState:    uint8(c.deployer.State()),
		AntennaDeployed: c.deployed,
		GroundContact:   c.beacons.ContactEstablished(),
		BootCount:       c.bootCount,
	}
	if snap != c.lastSnap {
		c.guard.Store(snap)
		c.lastSnap = snap
	}
}

// restoreFromGuard votes the TMR cells and writes the agreed values back
// into the working fields, so a corrected upset actually reaches the
// mission state instead of lingering in shadow copies.
func (c *Controller) restoreFromGuard(ctx context.Context) error {
	snap, err := c.guard.Load()
	if err != nil {
		return err
	}
	state := State(snap.MissionState)
	if state != c.state || snap.AntennaDeployed != c.deployed || snap.BootCount != c.bootCount {
		c.log.Warn(ctx, "mission fields restored from voted copies",
			logging.String("state", state.String()),
			logging.Bool("deployed", snap.AntennaDeployed),
			logging.Uint32("boot_count", snap.BootCount))
		c.state = state
		c.deployed = snap.AntennaDeployed
		c.bootCount = snap.BootCount
	}
	return nil
}

func (c *Controller) beaconStatus(now time.Time) beacon.Status {
	snap := c.sensors.Read()
	return beacon.Status{
		MissionElapsed: now.Sub(c.missionStart),
		BootCount:      c.bootCount,
		BatteryVolts:   snap.BatteryVolts,
	}
}

func (c *Controller) telemetryFrame(now time.Time) string {
	c.watchdog.Feed()
	snap := c.sensors.Read()
	snap.StorageFreePct = c.files.FreePercent()
	return c.formatter.Frame(now.Sub(c.missionStart), snap, uint64(c.guard.Corrections()))
}

func (c *Controller) transmit(ctx context.Context, line string) {
	if line == "" {
		return
	}
	if err := c.link.Transmit(ctx, line); err != nil {
		c.log.Warn(ctx, "downlink failed", logging.Any("error", err))
	}
}

func (c *Controller) transmitAll(ctx context.Context, lines []string) {
	for _, line := range lines {
		c.transmit(ctx, line)
	}
}

// processPacket validates and executes one uplink packet. Rejected packets
// answer only when the rejection policy says so.
func (c *Controller) processPacket(ctx context.Context, now time.Time, raw string) {
	c.watchdog.Feed()

	msg, err := c.parser.Parse(raw)
	if err != nil {
		var rej *command.RejectError
		if errors.As(err, &rej) {
			c.log.Warn(ctx, "command rejected",
				logging.String("reason", rej.Reason.String()))
			if c.metrics != nil {
				c.metrics.CommandRejected(rej.Reason.String())
			}
			c.transmit(ctx, rej.Reason.Response())
		}
		return
	}

	if c.metrics != nil {
		c.metrics.CommandAccepted()
	}
	c.beacons.RegisterContact(now)
	c.transmitAll(ctx, c.dispatcher.Dispatch(ctx, msg))
}

func (c *Controller) registerHandlers() {
	d := c.dispatcher

	d.Register("Ping", func(ctx context.Context, msg command.Message) []string {
		return []string{"PONG|" + c.MissionTime(c.now)}
	})

	d.Register("GetState", func(ctx context.Context, msg command.Message) []string {
		ant := "PENDING"
		if c.deployed {
			ant = "DEPLOYED"
		}
		return []string{fmt.Sprintf("STATE:%d|BOOTS:%d|ANT:%s", c.state, c.bootCount, ant)}
	})

	d.Register("ForceOperational", func(ctx context.Context, msg command.Message) []string {
		c.deployed = true
		c.enterOperational(ctx, c.now)
		c.save(ctx)
		return []string{"OK:FORCED_OPERATIONAL"}
	})

	d.Register("GetRadStatus", func(ctx context.Context, msg command.Message) []string {
		return []string{fmt.Sprintf("RAD:SEU_TOTAL:%d|LAST_SCRUB:%ds_ago",
			c.guard.Corrections(), int(c.guard.SinceLastScrub(c.now).Seconds()))}
	})

	d.Register("MCURestart", func(ctx context.Context, msg command.Message) []string {
		c.restartPending = true
		return []string{"OK:RESTARTING"}
	})

	d.Register("Status", func(ctx context.Context, msg command.Message) []string {
		return []string{c.telemetryFrame(c.now)}
	})

	d.Register("ListDir", func(ctx context.Context, msg command.Message) []string {
		return c.files.List(msg.Path)
	})
	d.Register("CreateDir", func(ctx context.Context, msg command.Message) []string {
		return c.files.Mkdir(msg.Path)
	})
	d.Register("RemoveDir", func(ctx context.Context, msg command.Message) []string {
		return c.files.Rmdir(msg.Path)
	})
	d.Register("WriteFile", func(ctx context.Context, msg command.Message) []string {
		return c.files.Write(msg.Path, []byte(msg.Data))
	})
	d.Register("AppendFile", func(ctx context.Context, msg command.Message) []string {
		return c.files.Append(msg.Path, []byte(msg.Data))
	})
	d.Register("ReadFile", func(ctx context.Context, msg command.Message) []string {
		return c.files.Read(msg.Path)
	})
	d.Register("RenameFile", func(ctx context.Context, msg command.Message) []string {
		return c.files.Rename(msg.Path, msg.Data)
	})
	d.Register("DeleteFile", func(ctx context.Context, msg command.Message) []string {
		return c.files.Delete(msg.Path)
	})
	d.Register("TestFileIO", func(ctx context.Context, msg command.Message) []string {
		return c.selfTestFileIO()
	})

	d.Register("ImageStart", func(ctx context.Context, msg command.Message) []string {
		if msg.Path == "" {
			return []string{"ERR:IMG_NO_FILENAME"}
		}
		chunks, size, ok := parseStartParams(msg.Data)
		if !ok {
			return []string{"ERR:IMG_INVALID_PARAMS"}
		}
		return c.xfer.Start(c.now, msg.Path, chunks, size)
	})
	d.Register("ImageChunk", func(ctx context.Context, msg command.Message) []string {
		if msg.Data == "" {
			return []string{"ERR:IMG_EMPTY_CHUNK"}
		}
		n, err := strconv.Atoi(msg.Path)
		if err != nil {
			return []string{"ERR:IMG_INVALID_CHUNK"}
		}
		return c.xfer.Chunk(c.now, n, msg.Data)
	})
	d.Register("ImageEnd", func(ctx context.Context, msg command.Message) []string {
		return c.xfer.End()
	})
	d.Register("ImageCancel", func(ctx context.Context, msg command.Message) []string {
		return c.xfer.Cancel()
	})
	d.Register("ImageStatus", func(ctx context.Context, msg command.Message) []string {
		return []string{c.xfer.Status()}
	})
}

// selfTestFileIO writes, reads back, and removes a scratch file so the
// ground can verify storage health before trusting it with an image.
func (c *Controller) selfTestFileIO() []string {
	const scratch = "/.fileio_test"
	payload := []byte("FILEIO:" + c.MissionTime(c.now))

	if err := c.files.Put(scratch, payload); err != nil {
		return []string{"ERR:FILEIO_WRITE"}
	}
	lines := c.files.Read(scratch)
	c.files.Delete(scratch)
	for _, l := range lines {
		if strings.HasPrefix(l, "ERR:") {
			return []string{"ERR:FILEIO_READ"}
		}
	}
	return []string{"OK:FILEIO_TEST_PASSED"}
}

// parseStartParams splits "totalChunks:expectedSize".
func parseStartParams(data string) (chunks, size int, ok bool) {
	idx := strings.IndexByte(data, ':')
	if idx < 0 {
		return 0, 0, false
	}
	chunks, err := strconv.Atoi(data[:idx])
	if err != nil {
		return 0, 0, false
	}
	size, err = strconv.Atoi(data[idx+1:])
	if err != nil {
		return 0, 0, false
	}
	return chunks, size, true
}
