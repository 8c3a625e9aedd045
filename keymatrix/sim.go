package keymatrix

import "sync"

// SimMatrix is an in-memory switch matrix. Its pins can be handed to a
// Scanner while other goroutines press and release keys.
type SimMatrix struct {
	mu      sync.Mutex
	rows    int
	cols    int
	pressed []bool
	rowHigh []bool
}

func NewSimMatrix(rows, cols int) *SimMatrix {
	m := &SimMatrix{
		rows:    rows,
		cols:    cols,
		pressed: make([]bool, rows*cols),
		rowHigh: make([]bool, rows),
	}
	for i := range m.rowHigh {
		m.rowHigh[i] = true
	}
	return m
}

func (m *SimMatrix) NumKeys() int { return m.rows * m.cols }

// Set presses or releases key. Out-of-range keys are ignored.
func (m *SimMatrix) Set(key int, down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key < 0 || key >= len(m.pressed) {
		return
	}
	m.pressed[key] = down
}

func (m *SimMatrix) Press(key int)   { m.Set(key, true) }
func (m *SimMatrix) Release(key int) { m.Set(key, false) }

// SetBitmap replaces the whole switch state.
func (m *SimMatrix) SetBitmap(b Bitmap) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.pressed {
		m.pressed[k] = b.Pressed(k)
	}
}

func (m *SimMatrix) RowPins() []OutputPin {
	pins := make([]OutputPin, m.rows)
	for r := range pins {
		pins[r] = simRow{m: m, row: r}
	}
	return pins
}

func (m *SimMatrix) ColPins() []InputPin {
	pins := make([]InputPin, m.cols)
	for c := range pins {
		pins[c] = simCol{m: m, col: c}
	}
	return pins
}

type simRow struct {
	m   *SimMatrix
	row int
}

func (p simRow) Set(high bool) {
	p.m.mu.Lock()
	p.m.rowHigh[p.row] = high
	p.m.mu.Unlock()
}

type simCol struct {
	m   *SimMatrix
	col int
}

// Get reads low when a pressed key connects this column to a row driven low.
func (p simCol) Get() bool {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	for r := 0; r < p.m.rows; r++ {
		if !p.m.rowHigh[r] && p.m.pressed[r*p.m.cols+p.col] {
			return false
		}
	}
	return true
}
