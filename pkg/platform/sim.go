package platform

import (
	"math/rand"
	"sync"

	"periph.io/x/conn/v3/gpio"
)

// Sim is an in-memory board. Inputs follow their pull resistor unless a
// level is forced with SetLevel; attached matrices pull a column low while a
// row wired to a pressed cell is driven low.
type Sim struct {
	mu       sync.Mutex
	pulls    map[int]gpio.Pull
	outputs  map[int]gpio.Level
	forced   map[int]gpio.Level
	analog   map[int]int
	matrices []*SimMatrix
	noise    int
	rnd      *rand.Rand
	delayed  int
}

type SimOption func(*Sim)

// WithAnalogNoise adds uniform noise in [-amplitude, amplitude] to every
// analog read.
func WithAnalogNoise(amplitude int, seed int64) SimOption {
	return func(s *Sim) {
		s.noise = amplitude
		s.rnd = rand.New(rand.NewSource(seed))
	}
}

func NewSim(opts ...SimOption) *Sim {
	s := &Sim{
		pulls:   make(map[int]gpio.Pull),
		outputs: make(map[int]gpio.Level),
		forced:  make(map[int]gpio.Level),
		analog:  make(map[int]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SimMatrix is a switch grid wired between row and column pins of a Sim.
type SimMatrix struct {
	sim     *Sim
	rows    []int
	cols    []int
	pressed map[[2]int]bool
}

// AttachMatrix wires a switch grid to the given pins.
func (s *Sim) AttachMatrix(rows, cols []int) *SimMatrix {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &SimMatrix{
		sim:     s,
		rows:    append([]int(nil), rows...),
		cols:    append([]int(nil), cols...),
		pressed: make(map[[2]int]bool),
	}
	s.matrices = append(s.matrices, m)
	return m
}

func (m *SimMatrix) Press(row, col int) {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	m.pressed[[2]int{row, col}] = true
}

func (m *SimMatrix) Release(row, col int) {
	m.sim.mu.Lock()
	defer m.sim.mu.Unlock()
	delete(m.pressed, [2]int{row, col})
}

// pullsLow reports whether this grid drags col pin low. Caller holds s.mu.
func (m *SimMatrix) pullsLow(pin int) bool {
	for c, cp := range m.cols {
		if cp != pin {
			continue
		}
		for r, rp := range m.rows {
			lvl, driven := m.sim.outputs[rp]
			if driven && lvl == gpio.Low && m.pressed[[2]int{r, c}] {
				return true
			}
		}
	}
	return false
}

// SetLevel forces the level an input pin reads, as an external switch would.
func (s *Sim) SetLevel(pin int, level gpio.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[pin] = level
}

// Unforce returns pin to its pull resistor level.
func (s *Sim) Unforce(pin int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forced, pin)
}

func (s *Sim) SetAnalog(pin, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analog[pin] = clampAnalog(value)
}

// Pull returns the pull configured for pin and whether it is an input.
func (s *Sim) Pull(pin int) (gpio.Pull, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulls[pin]
	return p, ok
}

// Output returns the level driven on pin and whether it is an output.
func (s *Sim) Output(pin int) (gpio.Level, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.outputs[pin]
	return l, ok
}

// Delayed is the total of all DelayMicroseconds calls.
func (s *Sim) Delayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delayed
}

func (s *Sim) ConfigureInput(pin int, pull gpio.Pull) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.outputs, pin)
	s.pulls[pin] = pull
}

func (s *Sim) ConfigureOutput(pin int, level gpio.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pulls, pin)
	s.outputs[pin] = level
}

func (s *Sim) DigitalWrite(pin int, level gpio.Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[pin] = level
}

func (s *Sim) DigitalRead(pin int) gpio.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.outputs[pin]; ok {
		return l
	}
	for _, m := range s.matrices {
		if m.pullsLow(pin) {
			return gpio.Low
		}
	}
	if l, ok := s.forced[pin]; ok {
		return l
	}
	if s.pulls[pin] == gpio.PullDown {
		return gpio.Low
	}
	return gpio.High
}

func (s *Sim) AnalogRead(pin int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.analog[pin]
	if s.noise > 0 {
		v += s.rnd.Intn(2*s.noise+1) - s.noise
	}
	return clampAnalog(v)
}

func (s *Sim) DelayMicroseconds(us int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delayed += us
}

func (s *Sim) Close() error { return nil }
