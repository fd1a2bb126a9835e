// Package sensor turns raw pin samples into debounced, rate-limited input
// events. Sensors are driven by a caller-owned tick: Scan advances them one
// step and Read drains at most one pending event per call.
package sensor

// InputType identifies the kind of sensor that produced a Reading.
type InputType uint8

const (
	Button InputType = iota
	Matrix
	Analog
)

func (t InputType) String() string {
	switch t {
	case Button:
		return "button"
	case Matrix:
		return "matrix"
	case Analog:
		return "analog"
	default:
		return "unknown"
	}
}

func (t InputType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Reading is a single input event. The zero value means "nothing to report"
// and its other fields carry no meaning.
type Reading struct {
	HasValue bool      `json:"-"`
	Value    int16     `json:"value"`
	Type     InputType `json:"type"`
	Pin      int       `json:"pin"`
}

// Sensor is implemented by every input variant.
type Sensor interface {
	// Begin configures the pins and resets all state. It may be called
	// again at any time.
	Begin()
	// Scan samples the hardware and advances the state by one tick.
	Scan()
	// Read returns the next pending event, or the zero Reading when there
	// is none. Each event is returned once.
	Read() Reading
	Type() InputType
	Pin() int
}
