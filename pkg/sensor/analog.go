package sensor

import (
	"math"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/platform"
)

const (
	MaxSensitivity = 10
	// MaxSendInterval forces a reading after this many scans without one.
	MaxSendInterval = 200
	// DeadZone is the largest change from the last sent value that is still
	// treated as noise.
	DeadZone = 2
	// SmoothingWeight is the share of each new sample in the moving
	// average. A step settles to within half a unit of a full-scale step in 27 scans and
	// a single-sample spike moves the estimate by a quarter of its height.
	SmoothingWeight = 0.25
)

// AnalogSensor smooths an analog input with an exponential moving average
// and reports it only when it has moved beyond the dead zone and the
// sensitivity-derived minimum interval has passed, or when the heartbeat
// interval runs out.
type AnalogSensor struct {
	p               platform.Platform
	pin             int
	sensitivity     int
	minSendInterval int

	filtered       float64
	lastSent       float64
	scansSinceSend int
	initialized    bool
}

// NewAnalogSensor clamps sensitivity to 0..MaxSensitivity. Higher values
// allow readings more often: at 10 every scan may report, at 0 only every
// eleventh.
func NewAnalogSensor(p platform.Platform, pin, sensitivity int) *AnalogSensor {
	sensitivity = max(0, min(sensitivity, MaxSensitivity))
	return &AnalogSensor{
		p:               p,
		pin:             pin,
		sensitivity:     sensitivity,
		minSendInterval: MaxSensitivity + 1 - sensitivity,
	}
}

// Sensitivity returns the clamped sensitivity.
func (a *AnalogSensor) Sensitivity() int { return a.sensitivity }

// MinSendInterval is the number of scans that must pass between readings
// triggered by a change.
func (a *AnalogSensor) MinSendInterval() int { return a.minSendInterval }

// Begin resets the filter. Analog inputs need no pin setup.
func (a *AnalogSensor) Begin() {
	a.filtered = 0
	a.lastSent = 0
	a.scansSinceSend = 0
	a.initialized = false
}

func (a *AnalogSensor) Scan() {
	raw := float64(a.p.AnalogRead(a.pin))
	if !a.initialized {
		a.filtered = raw
		a.initialized = true
		return
	}
	a.filtered += SmoothingWeight * (raw - a.filtered)
	a.scansSinceSend++
}

func (a *AnalogSensor) Read() Reading {
	delta := math.Abs(a.filtered - a.lastSent)
	changed := a.scansSinceSend >= a.minSendInterval && delta > DeadZone
	if !changed && a.scansSinceSend < MaxSendInterval {
		return Reading{}
	}
	a.scansSinceSend = 0
	a.lastSent = a.filtered
	return Reading{HasValue: true, Value: int16(math.Round(a.filtered)), Type: Analog, Pin: a.pin}
}

func (a *AnalogSensor) Type() InputType { return Analog }

func (a *AnalogSensor) Pin() int { return a.pin }
