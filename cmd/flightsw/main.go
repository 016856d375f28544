// Command flightsw runs the Orbital Temple flight software. By default it
// flies on simulated hardware over a UDP radio, which is the bench and
// ground-test configuration; -hw=gpio binds the real deployment switch,
// burn wire, and watchdog strobe pins.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/antenna"
	"github.com/edsonpavoni/orbitalTemple/internal/auth"
	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/command"
	"github.com/edsonpavoni/orbitalTemple/internal/config"
	"github.com/edsonpavoni/orbitalTemple/internal/filestore"
	"github.com/edsonpavoni/orbitalTemple/internal/hw"
	"github.com/edsonpavoni/orbitalTemple/internal/integrity"
	"github.com/edsonpavoni/orbitalTemple/internal/logging"
	"github.com/edsonpavoni/orbitalTemple/internal/observability"
	"github.com/edsonpavoni/orbitalTemple/internal/persist"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/telemetry"
	"github.com/edsonpavoni/orbitalTemple/internal/transfer"
	"github.com/edsonpavoni/orbitalTemple/mission"
	"github.com/edsonpavoni/orbitalTemple/timectrl"
	"go.opentelemetry.io/otel"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML flight configuration (empty = defaults)")
	hwMode := flag.String("hw", "sim", "hardware binding: sim or gpio")
	accelerated := flag.Bool("accelerated", false, "run the mission clock as fast as the loop allows (bench soak mode)")
	switchPin := flag.Int("switch-pin", 17, "BCM pin of the deployment restraint switch (gpio mode)")
	wirePin := flag.Int("burnwire-pin", 27, "BCM pin of the burn-wire MOSFET gate (gpio mode)")
	watchdogPin := flag.Int("watchdog-pin", 22, "BCM pin of the external watchdog strobe (gpio mode)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.String("error", err.Error()))
		os.Exit(1)
	}

	collector, err := observability.NewFlightCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.Metrics.ListenAddr, collector, log)

	tracingShutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}

	board, err := bindHardware(*hwMode, *switchPin, *wirePin, *watchdogPin)
	if err != nil {
		log.Error(ctx, "failed to bind hardware", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer board.close()

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	// The flight computer restarts the process on MCURestart or when memory
	// integrity is lost. Here the restart is a fresh flight stack in the
	// same process, picking up where the persisted record left off.
	for {
		err := fly(stopCtx, cfg, board, collector, *accelerated, log)
		if errors.Is(err, mission.ErrRestartRequested) {
			log.Warn(ctx, "restart requested, re-initialising flight stack")
			continue
		}
		if err != nil {
			log.Error(ctx, "flight loop failed", logging.String("error", err.Error()))
		}
		break
	}

	observability.ShutdownWithTimeout(ctx, tracingShutdown, log)
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}

// fly builds one complete flight stack and ticks it until shutdown or a
// restart request.
func fly(ctx context.Context, cfg config.Config, board *hardware, collector *observability.FlightCollector, accelerated bool, log logging.Logger) error {
	transport, err := openTransport(cfg.Radio)
	if err != nil {
		return err
	}

	link := radio.NewLink(transport, log)
	link.Start()
	defer link.Stop()

	key, err := cfg.Key()
	if err != nil {
		return err
	}
	signer := auth.NewSigner(key)

	files, err := filestore.New(filestore.Config{
		Root:       cfg.Storage.FilesRoot,
		QuotaBytes: cfg.Storage.QuotaBytes,
	}, board.watchdog.Feed, log)
	if err != nil {
		return err
	}

	now := time.Now()
	ctrl := mission.NewController(mission.Config{
		DeployWait:          cfg.Timing.DeployWait.Std(),
		TelemetryInterval:   cfg.Timing.TelemetryInterval.Std(),
		ErrorRetryInterval:  cfg.Timing.ErrorRetryInterval.Std(),
		MaxRecoveryAttempts: cfg.Timing.MaxRecoveryAttempts,
	}, mission.Deps{
		Link:   link,
		Parser: command.NewParser(cfg.SatID, signer),
		Beacons: beacon.NewScheduler(beacon.Config{
			AcquisitionInterval: cfg.Beacon.AcquisitionInterval.Std(),
			SteadyInterval:      cfg.Beacon.SteadyInterval.Std(),
			LostInterval:        cfg.Beacon.LostInterval.Std(),
			LostThreshold:       cfg.Beacon.LostThreshold.Std(),
			MinVoltage:          cfg.Beacon.MinVoltage,
			MsgSearching:        beacon.DefaultConfig().MsgSearching,
			MsgConnected:        beacon.DefaultConfig().MsgConnected,
			MsgLost:             beacon.DefaultConfig().MsgLost,
		}, link.Transmit, log),
		Deployer: antenna.NewDeployer(antenna.Config{
			HeatDuration: cfg.Timing.HeatDuration.Std(),
			CoolDuration: cfg.Timing.CoolDuration.Std(),
			RetryWait:    cfg.Timing.RetryWait.Std(),
			MaxRetries:   cfg.Timing.MaxRetries,
		}, board.sw, board.wire, board.watchdog.Feed, log),
		Guard:    integrity.NewGuard(cfg.Timing.ScrubInterval.Std(), log, now),
		Store:    persist.NewStore(persist.NewFileStorage(cfg.Storage.StatePath), log),
		Files:    files,
		Transfer: transfer.NewManager(transfer.DefaultConfig(), files, log),
		Sensors:  board.sensors,
		Watchdog: board.watchdog,
		Metrics:  collector,
		Log:      log,
		Tracer:   otel.Tracer("flightsw"),
	})
	ctrl.Boot(ctx, now)

	mode := timectrl.RealTime
	var clock *timectrl.Manual
	if accelerated {
		mode = timectrl.Accelerated
		clock = timectrl.NewManual(now)
	}
	runner := timectrl.NewRunner(cfg.Timing.Tick.Std(), mode, clock)
	err = runner.Run(ctx, func(t time.Time) error {
		return ctrl.Tick(ctx, t)
	})
	if errors.Is(err, context.Canceled) {
		log.Info(ctx, "shutting down flight software")
		return nil
	}
	return err
}

// hardware groups the physical bindings the mission needs.
type hardware struct {
	sw       antenna.Switch
	wire     antenna.BurnWire
	watchdog hw.Watchdog
	sensors  telemetry.Source
	close    func()
}

func bindHardware(mode string, switchPin, wirePin, watchdogPin int) (*hardware, error) {
	switch mode {
	case "sim":
		sw := hw.NewSimSwitch(true)
		wire := &hw.SimBurnWire{ReleaseSwitch: sw}
		return &hardware{
			sw:       sw,
			wire:     wire,
			watchdog: &hw.SimWatchdog{},
			sensors:  hw.NewSimSensors(),
			close:    func() {},
		}, nil
	case "gpio":
		closeGPIO, err := hw.OpenGPIO()
		if err != nil {
			return nil, err
		}
		return &hardware{
			sw:       hw.NewGPIOSwitch(switchPin),
			wire:     hw.NewGPIOBurnWire(wirePin),
			watchdog: hw.NewGPIOWatchdog(watchdogPin),
			// The sensor bus driver is bench-only for now; flight
			// telemetry reads the simulated block until the I2C
			// bindings land.
			sensors: hw.NewSimSensors(),
			close:   func() { closeGPIO() },
		}, nil
	default:
		return nil, errors.New("unknown hardware mode " + mode)
	}
}

func openTransport(cfg config.Radio) (radio.Transport, error) {
	var transport radio.Transport
	switch cfg.Transport {
	case "udp":
		transport = radio.NewUDPTransport(cfg.ListenAddr, cfg.PeerAddr)
	case "serial":
		transport = radio.NewSerialTransport(cfg.Device, cfg.Baud)
	case "loopback":
		transport = radio.NewLoopback()
	default:
		return nil, errors.New("unknown radio transport " + cfg.Transport)
	}
	if err := transport.Open(); err != nil {
		return nil, err
	}
	return transport, nil
}

func serveMetrics(addr string, collector *observability.FlightCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
