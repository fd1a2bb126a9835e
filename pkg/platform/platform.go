// Package platform provides the hardware access the sensors are built on:
// digital pin configuration and I/O, analog reads, and short busy waits.
package platform

import "periph.io/x/conn/v3/gpio"

// AnalogMax is the top of the normalized analog range returned by AnalogRead.
const AnalogMax = 1023

// Platform is the pin-level hardware interface. Every operation is
// synchronous and infallible from the caller's point of view; backends deal
// with their own I/O failures.
type Platform interface {
	ConfigureInput(pin int, pull gpio.Pull)
	ConfigureOutput(pin int, level gpio.Level)
	DigitalWrite(pin int, level gpio.Level)
	DigitalRead(pin int) gpio.Level
	// AnalogRead returns a magnitude in 0..AnalogMax.
	AnalogRead(pin int) int
	DelayMicroseconds(us int)
	Close() error
}

func clampAnalog(v int) int {
	if v < 0 {
		return 0
	}
	if v > AnalogMax {
		return AnalogMax
	}
	return v
}
