// Package hw binds the flight software to hardware: the deployment switch,
// the burn-wire driver, the external watchdog, and the sensor block. The sim
// implementations run the full software on a desk; the GPIO ones run it on
// the flight computer.
package hw

import (
	"sync"

	"github.com/edsonpavoni/orbitalTemple/internal/telemetry"
)

// Watchdog is the external liveness collaborator. Feed must be called during
// any long-running operation or the hardware forces a restart.
type Watchdog interface {
	Feed()
}

// SimSwitch is a settable deployment switch.
type SimSwitch struct {
	mu      sync.Mutex
	pressed bool
}

// NewSimSwitch builds a switch; pressed means the antenna is stowed.
func NewSimSwitch(pressed bool) *SimSwitch {
	return &SimSwitch{pressed: pressed}
}

func (s *SimSwitch) Pressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pressed
}

// SetPressed changes the simulated restraint state.
func (s *SimSwitch) SetPressed(pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressed = pressed
}

// SimBurnWire records actuator activity.
type SimBurnWire struct {
	mu          sync.Mutex
	active      bool
	activations int

	// ReleaseSwitch, when set, flips the bound switch to released on
	// activation, simulating a restraint that burns through instantly.
	ReleaseSwitch *SimSwitch
}

func (w *SimBurnWire) Activate() {
	w.mu.Lock()
	w.active = true
	w.activations++
	sw := w.ReleaseSwitch
	w.mu.Unlock()
	if sw != nil {
		sw.SetPressed(false)
	}
}

func (w *SimBurnWire) Deactivate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = false
}

// Active reports whether the wire is currently energized.
func (w *SimBurnWire) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Activations returns how many times the wire was energized.
func (w *SimBurnWire) Activations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activations
}

// SimWatchdog counts feeds.
type SimWatchdog struct {
	mu    sync.Mutex
	feeds int
}

func (w *SimWatchdog) Feed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.feeds++
}

// Feeds returns the cumulative feed count.
func (w *SimWatchdog) Feeds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feeds
}

// SimSensors returns a configurable snapshot.
type SimSensors struct {
	mu   sync.Mutex
	snap telemetry.Snapshot
}

// NewSimSensors builds a healthy sensor block on a full battery.
func NewSimSensors() *SimSensors {
	return &SimSensors{snap: telemetry.Snapshot{
		BatteryVolts:   4.1,
		TempC:          21.5,
		Lux:            300,
		IMUOK:          true,
		SDOK:           true,
		RFOK:           true,
		StorageFreePct: -1,
	}}
}

func (s *SimSensors) Read() telemetry.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Set replaces the snapshot returned by Read.
func (s *SimSensors) Set(snap telemetry.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}
