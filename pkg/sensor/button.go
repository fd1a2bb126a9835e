package sensor

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/platform"
)

// ButtonSensor debounces a single switch and reports press and release
// edges. By default the switch is wired to ground with the internal pull-up
// enabled, so it reads Low while pressed.
type ButtonSensor struct {
	p         platform.Platform
	pin       int
	threshold int
	active    gpio.Level
	pull      gpio.Pull

	state   debouncer
	pending bool
}

type ButtonOption func(*ButtonSensor)

// WithActiveLevel sets the level the pin reads while the button is pressed.
func WithActiveLevel(l gpio.Level) ButtonOption {
	return func(b *ButtonSensor) { b.active = l }
}

// WithPull sets the pull resistor configured on Begin.
func WithPull(p gpio.Pull) ButtonOption {
	return func(b *ButtonSensor) { b.pull = p }
}

// NewButtonSensor returns a sensor that accepts a change after threshold
// consecutive disagreeing scans. A threshold of 0 accepts on the first one.
func NewButtonSensor(p platform.Platform, pin, threshold int, opts ...ButtonOption) *ButtonSensor {
	if threshold < 0 {
		threshold = 0
	}
	b := &ButtonSensor{
		p:         p,
		pin:       pin,
		threshold: threshold,
		active:    gpio.Low,
		pull:      gpio.PullUp,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *ButtonSensor) Begin() {
	b.p.ConfigureInput(b.pin, b.pull)
	b.state = debouncer{}
	b.pending = false
}

func (b *ButtonSensor) Scan() {
	pressed := b.p.DigitalRead(b.pin) == b.active
	if b.state.step(pressed, b.threshold) {
		// Flipping back to the reported state before a Read cancels the
		// pending edge.
		b.pending = b.state.debounced != b.state.lastReported
	}
}

func (b *ButtonSensor) Read() Reading {
	if !b.pending {
		return Reading{}
	}
	b.state.lastReported = b.state.debounced
	b.pending = false
	return Reading{HasValue: true, Value: boolValue(b.state.debounced), Type: Button, Pin: b.pin}
}

func (b *ButtonSensor) Type() InputType { return Button }

func (b *ButtonSensor) Pin() int { return b.pin }

func boolValue(v bool) int16 {
	if v {
		return 1
	}
	return 0
}
