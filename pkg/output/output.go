package output

import (
	"time"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/sensor"
)

// Event is a sensor reading stamped with the tick that produced it.
type Event struct {
	sensor.Reading
	Timestamp time.Time `json:"timestamp"`
}

type Output interface {
	Publish([]Event) error
	Close() error
}

// helper constructors are in subpackages
