package platform

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01

	// ads1115Channels is the number of single-ended inputs (A0..A3).
	ads1115Channels = 4

	// fallbackDataRate is the DR code used for rates the chip does not offer.
	fallbackDataRate = 0x4
)

// dataRates lists the conversion rates in SPS, indexed by their DR code.
var dataRates = [...]int{8, 16, 32, 64, 128, 250, 475, 860}

// dataRate returns the DR code programmed for sps and the rate it selects.
func dataRate(sps int) (byte, int) {
	for code, rate := range dataRates {
		if rate == sps {
			return byte(code), rate
		}
	}
	return fallbackDataRate, dataRates[fallbackDataRate]
}

// ads1115 performs single-shot conversions on one ADS1115 over I²C.
type ads1115 struct {
	dev        *i2c.Dev
	sampleRate int
}

// read converts one channel and returns it normalized to 0..AnalogMax.
func (a *ads1115) read(channel int) (int, error) {
	msb, lsb, err := a.configForChannel(channel, a.sampleRate)
	if err != nil {
		return 0, err
	}
	if err := a.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	time.Sleep(a.conversionTime())
	readBuf := make([]byte, 2)
	if err := a.dev.Tx([]byte{pointerConv}, readBuf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(readBuf[0])<<8 | int16(readBuf[1])
	return scaleRaw(raw), nil
}

// conversionTime is one period of the rate actually programmed into the chip
// plus a small margin for the internal oscillator tolerance.
func (a *ads1115) conversionTime() time.Duration {
	_, rate := dataRate(a.sampleRate)
	return time.Second/time.Duration(rate) + 100*time.Microsecond
}

// scaleRaw maps the positive half of the signed 16-bit result onto 10 bits.
// Single-ended inputs cannot go meaningfully negative, so they read as zero.
func scaleRaw(raw int16) int {
	if raw < 0 {
		return 0
	}
	return clampAnalog(int(raw) >> 5)
}

func (a *ads1115) configForChannel(channel, sampleRate int) (byte, byte, error) {
	var mux byte
	switch channel {
	case 0:
		mux = 0x4
	case 1:
		mux = 0x5
	case 2:
		mux = 0x6
	case 3:
		mux = 0x7
	default:
		return 0, 0, fmt.Errorf("invalid channel %d", channel)
	}
	// PGA: use ±4.096V -> bits 001
	pga := byte(0x1)
	dr, _ := dataRate(sampleRate)
	var config uint16 = 0x8000 // OS = 1 (start single conversion)
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot mode
	config |= uint16(dr) << 5
	// comparator disabled (bits 1:0 = 11)
	config |= 0x3
	return byte(config >> 8), byte(config & 0xFF), nil
}
