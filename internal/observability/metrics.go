package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FlightCollector bundles the Prometheus metrics of the flight software.
// Registration tolerates an already-populated registry so a restart within
// the same process reuses the existing collectors.
type FlightCollector struct {
	gatherer prometheus.Gatherer

	SEUCorrections  prometheus.Counter
	Commands        *prometheus.CounterVec
	Beacons         *prometheus.CounterVec
	RadioRecoveries prometheus.Counter
	PacketsDropped  prometheus.Counter
	Restarts        prometheus.Counter
	BootCount       prometheus.Gauge
	LastScrubTime   prometheus.Gauge
	FirstContact    prometheus.Gauge
}

// NewFlightCollector registers the flight metrics against reg, defaulting to
// the global Prometheus registry when nil.
func NewFlightCollector(reg prometheus.Registerer) (*FlightCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	seu, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fsw_seu_corrections_total",
		Help: "Cumulative single-event upsets corrected by TMR scrubbing.",
	}), "fsw_seu_corrections_total")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fsw_commands_total",
		Help: "Uplink commands by outcome; rejected commands carry the reason.",
	}, []string{"outcome", "reason"})
	commands, err = registerCounterVec(reg, commands, "fsw_commands_total")
	if err != nil {
		return nil, err
	}

	beacons := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fsw_beacons_sent_total",
		Help: "Beacons transmitted, labeled by cadence mode.",
	}, []string{"mode"})
	beacons, err = registerCounterVec(reg, beacons, "fsw_beacons_sent_total")
	if err != nil {
		return nil, err
	}

	recoveries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fsw_radio_recoveries_total",
		Help: "Radio link recovery attempts.",
	}), "fsw_radio_recoveries_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fsw_packets_dropped_total",
		Help: "Uplink packets dropped because the receive ring was full.",
	}), "fsw_packets_dropped_total")
	if err != nil {
		return nil, err
	}

	restarts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fsw_restarts_total",
		Help: "Full software restarts triggered by catastrophic conditions.",
	}), "fsw_restarts_total")
	if err != nil {
		return nil, err
	}

	bootCount, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsw_boot_count",
		Help: "Persisted boot counter of the current mission.",
	}), "fsw_boot_count")
	if err != nil {
		return nil, err
	}

	lastScrub, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsw_last_scrub_timestamp_seconds",
		Help: "Unix time of the most recent TMR scrub pass.",
	}), "fsw_last_scrub_timestamp_seconds")
	if err != nil {
		return nil, err
	}

	firstContact, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsw_first_contact_timestamp_seconds",
		Help: "Unix time of the first authenticated ground contact, 0 until it happens.",
	}), "fsw_first_contact_timestamp_seconds")
	if err != nil {
		return nil, err
	}

	return &FlightCollector{
		gatherer:        gatherer,
		SEUCorrections:  seu,
		Commands:        commands,
		Beacons:         beacons,
		RadioRecoveries: recoveries,
		PacketsDropped:  dropped,
		Restarts:        restarts,
		BootCount:       bootCount,
		LastScrubTime:   lastScrub,
		FirstContact:    firstContact,
	}, nil
}

// CommandAccepted records a dispatched authenticated command.
func (c *FlightCollector) CommandAccepted() {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues("accepted", "").Inc()
}

// CommandRejected records a refused command with its reason.
func (c *FlightCollector) CommandRejected(reason string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues("rejected", reason).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FlightCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
