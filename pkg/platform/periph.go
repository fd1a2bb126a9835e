package platform

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/config"
)

// Periph drives real hardware through periph.io. Digital pins are host
// GPIOs addressed by number; analog pins are ADS1115 channels.
type Periph struct {
	logger     *zap.Logger
	pins       map[int]gpio.PinIO
	bus        i2c.BusCloser
	adc        *ads1115
	lastAnalog map[int]int
}

// NewPeriph initializes the host and resolves every pin the configuration
// refers to. An unknown pin fails construction.
func NewPeriph(cfg config.Config, logger *zap.Logger) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p := &Periph{
		logger:     logger,
		pins:       make(map[int]gpio.PinIO),
		lastAnalog: make(map[int]int),
	}
	for _, n := range cfg.DigitalPins() {
		name := fmt.Sprintf("GPIO%d", n)
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("unknown pin %s", name)
		}
		p.pins[n] = pin
	}
	if len(cfg.Analogs) > 0 {
		for _, a := range cfg.Analogs {
			if a.Pin < 0 || a.Pin >= ads1115Channels {
				return nil, fmt.Errorf("analog pin %d: ADS1115 has channels 0-%d", a.Pin, ads1115Channels-1)
			}
		}
		bus, err := i2creg.Open(cfg.I2CBus)
		if err != nil {
			return nil, fmt.Errorf("open i2c: %w", err)
		}
		p.bus = bus
		p.adc = &ads1115{
			dev:        &i2c.Dev{Addr: uint16(cfg.I2CAddress), Bus: bus},
			sampleRate: cfg.SampleRate,
		}
	}
	logger.Info("periph platform ready",
		zap.Int("digital_pins", len(p.pins)),
		zap.Bool("adc", p.adc != nil))
	return p, nil
}

func (p *Periph) pin(n int) gpio.PinIO {
	pin, ok := p.pins[n]
	if !ok {
		p.logger.Warn("pin not configured", zap.Int("pin", n))
	}
	return pin
}

func (p *Periph) ConfigureInput(n int, pull gpio.Pull) {
	pin := p.pin(n)
	if pin == nil {
		return
	}
	if err := pin.In(pull, gpio.NoEdge); err != nil {
		p.logger.Warn("configure input", zap.Int("pin", n), zap.Error(err))
	}
}

func (p *Periph) ConfigureOutput(n int, level gpio.Level) {
	p.DigitalWrite(n, level)
}

func (p *Periph) DigitalWrite(n int, level gpio.Level) {
	pin := p.pin(n)
	if pin == nil {
		return
	}
	if err := pin.Out(level); err != nil {
		p.logger.Warn("digital write", zap.Int("pin", n), zap.Error(err))
	}
}

// DigitalRead reads High for pins it does not know, which is the idle level
// of a pulled-up input.
func (p *Periph) DigitalRead(n int) gpio.Level {
	pin := p.pin(n)
	if pin == nil {
		return gpio.High
	}
	return pin.Read()
}

// AnalogRead returns the last good value for the channel when a conversion
// fails.
func (p *Periph) AnalogRead(n int) int {
	if p.adc == nil {
		p.logger.Warn("analog read without ADC", zap.Int("pin", n))
		return 0
	}
	v, err := p.adc.read(n)
	if err != nil {
		p.logger.Warn("analog read", zap.Int("pin", n), zap.Error(err))
		return p.lastAnalog[n]
	}
	p.lastAnalog[n] = v
	return v
}

func (p *Periph) DelayMicroseconds(us int) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

// Close releases the I²C bus and returns all configured pins to high
// impedance.
func (p *Periph) Close() error {
	var err error
	for n, pin := range p.pins {
		if e := pin.In(gpio.Float, gpio.NoEdge); e != nil {
			err = multierr.Append(err, fmt.Errorf("release pin %d: %w", n, e))
		}
	}
	if p.bus != nil {
		err = multierr.Append(err, p.bus.Close())
	}
	return err
}
