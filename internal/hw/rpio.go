package hw

import (
	"fmt"

	"github.com/stianeikeland/go-rpio"
)

// OpenGPIO maps the GPIO memory range. Call once before constructing pin
// bindings; the returned closer unmaps it.
func OpenGPIO() (func() error, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}
	return rpio.Close, nil
}

// GPIOSwitch reads the deployment restraint switch on a GPIO pin. The switch
// pulls the pin high while the antenna is stowed.
type GPIOSwitch struct {
	pin rpio.Pin
}

// NewGPIOSwitch configures the pin as a pulled-down input.
func NewGPIOSwitch(bcmPin int) *GPIOSwitch {
	pin := rpio.Pin(bcmPin)
	pin.Input()
	pin.PullDown()
	return &GPIOSwitch{pin: pin}
}

func (s *GPIOSwitch) Pressed() bool {
	return s.pin.Read() == rpio.High
}

// GPIOBurnWire drives the burn-wire MOSFET gate.
type GPIOBurnWire struct {
	pin rpio.Pin
}

// NewGPIOBurnWire configures the pin as an output, de-energized.
func NewGPIOBurnWire(bcmPin int) *GPIOBurnWire {
	pin := rpio.Pin(bcmPin)
	pin.Output()
	pin.Low()
	return &GPIOBurnWire{pin: pin}
}

func (w *GPIOBurnWire) Activate()   { w.pin.High() }
func (w *GPIOBurnWire) Deactivate() { w.pin.Low() }

// GPIOWatchdog strobes the external watchdog timer input.
type GPIOWatchdog struct {
	pin rpio.Pin
}

// NewGPIOWatchdog configures the watchdog strobe pin.
func NewGPIOWatchdog(bcmPin int) *GPIOWatchdog {
	pin := rpio.Pin(bcmPin)
	pin.Output()
	return &GPIOWatchdog{pin: pin}
}

// Feed toggles the strobe line. The external timer resets on the edge.
func (w *GPIOWatchdog) Feed() {
	w.pin.Toggle()
}
