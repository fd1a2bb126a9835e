package sensor

import (
	"periph.io/x/conn/v3/gpio"

	"github.com/ericogr/gpio-input-to-mqtt/pkg/platform"
)

const (
	MaxRows    = 8
	MaxCols    = 8
	MaxButtons = MaxRows * MaxCols

	// VirtualPinBase is added to a cell index to give matrix buttons pin
	// numbers that cannot collide with physical pins.
	VirtualPinBase = 128

	DefaultDebounce = 3

	// settleMicros is the wait between driving a row and reading columns.
	settleMicros = 10
)

// MatrixSensor scans a row/column switch matrix. Rows idle High and are
// driven Low one at a time; columns have pull-ups, so a pressed cell reads
// Low on its column while its row is driven. Every cell is debounced on its
// own and every accepted flip is queued, so simultaneous presses and a tap
// completed between two drains are all delivered.
type MatrixSensor struct {
	p         platform.Platform
	rows      [MaxRows]int
	cols      [MaxCols]int
	numRows   int
	numCols   int
	threshold int

	cells [MaxButtons]debouncer
	queue eventQueue
}

type MatrixOption func(*MatrixSensor)

// WithDebounce sets the per-cell debounce threshold in scans.
func WithDebounce(threshold int) MatrixOption {
	return func(m *MatrixSensor) {
		if threshold < 0 {
			threshold = 0
		}
		m.threshold = threshold
	}
}

// NewMatrixSensor builds a scanner over the given pins. Pins beyond MaxRows
// rows or MaxCols columns are ignored.
func NewMatrixSensor(p platform.Platform, rowPins, colPins []int, opts ...MatrixOption) *MatrixSensor {
	m := &MatrixSensor{
		p:         p,
		numRows:   min(len(rowPins), MaxRows),
		numCols:   min(len(colPins), MaxCols),
		threshold: DefaultDebounce,
	}
	copy(m.rows[:], rowPins[:m.numRows])
	copy(m.cols[:], colPins[:m.numCols])
	for _, o := range opts {
		o(m)
	}
	return m
}

// Size returns the number of rows and columns actually scanned.
func (m *MatrixSensor) Size() (rows, cols int) { return m.numRows, m.numCols }

// VirtualPin returns the pin number reported for the cell at row, col.
func (m *MatrixSensor) VirtualPin(row, col int) int {
	return VirtualPinBase + m.cellIndex(row, col)
}

func (m *MatrixSensor) cellIndex(row, col int) int { return row*m.numCols + col }

func (m *MatrixSensor) Begin() {
	for r := 0; r < m.numRows; r++ {
		m.p.ConfigureOutput(m.rows[r], gpio.High)
	}
	for c := 0; c < m.numCols; c++ {
		m.p.ConfigureInput(m.cols[c], gpio.PullUp)
	}
	m.cells = [MaxButtons]debouncer{}
	m.queue.reset()
}

func (m *MatrixSensor) Scan() {
	for r := 0; r < m.numRows; r++ {
		m.p.DigitalWrite(m.rows[r], gpio.Low)
		m.p.DelayMicroseconds(settleMicros)
		for c := 0; c < m.numCols; c++ {
			m.scanCell(m.cellIndex(r, c), m.p.DigitalRead(m.cols[c]) == gpio.Low)
		}
		m.p.DigitalWrite(m.rows[r], gpio.High)
	}
}

func (m *MatrixSensor) scanCell(idx int, pressed bool) {
	cell := &m.cells[idx]
	if cell.step(pressed, m.threshold) {
		m.queue.push(cellEvent{cell: uint8(idx), pressed: cell.debounced})
	}
}

// Pending returns the number of queued events.
func (m *MatrixSensor) Pending() int { return m.queue.len() }

func (m *MatrixSensor) Read() Reading {
	e, ok := m.queue.pop()
	if !ok {
		return Reading{}
	}
	m.cells[e.cell].lastReported = e.pressed
	return Reading{HasValue: true, Value: boolValue(e.pressed), Type: Matrix, Pin: VirtualPinBase + int(e.cell)}
}

func (m *MatrixSensor) Type() InputType { return Matrix }

// Pin returns the virtual pin base shared by all cells.
func (m *MatrixSensor) Pin() int { return VirtualPinBase }
