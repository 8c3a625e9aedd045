// Package keymatrix scans a row/column switch matrix and debounces it into a
// bitmap with one bit per key.
//
// Rows are driven outputs and columns are pulled-up inputs: a key reads as
// pressed when its column is low while its row is driven low. The pin
// interfaces match the method set of TinyGo's machine.Pin, so board pins can
// be passed in directly.
package keymatrix

import (
	"context"
	"fmt"
	"math/bits"
	"time"
)

const (
	DefaultDebounce = 10 * time.Millisecond
	DefaultSettle   = 10 * time.Microsecond

	// MaxKeys is the width of a Bitmap.
	MaxKeys = 16
)

// Bitmap holds one bit per key, bit row*cols+col.
type Bitmap uint16

func (b Bitmap) Pressed(key int) bool {
	if key < 0 || key >= MaxKeys {
		return false
	}
	return b&(1<<uint(key)) != 0
}

// Keys lists the pressed key indexes in ascending order.
func (b Bitmap) Keys() []int {
	keys := make([]int, 0, bits.OnesCount16(uint16(b)))
	for k := 0; k < MaxKeys; k++ {
		if b.Pressed(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (b Bitmap) String() string {
	return fmt.Sprintf("%016b", uint16(b))
}

// OutputPin is a row line.
type OutputPin interface {
	Set(high bool)
}

// InputPin is a column line with pull-up bias.
type InputPin interface {
	Get() bool
}

// Scanner produces debounced bitmaps. It is not safe for concurrent use; one
// scan loop owns it.
type Scanner struct {
	rows     []OutputPin
	cols     []InputPin
	settle   time.Duration
	debounce time.Duration
	now      func() time.Time
	sleep    func(time.Duration)

	previous   Bitmap
	stable     Bitmap
	lastChange time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithDebounce sets how long a raw reading must hold before it is accepted.
func WithDebounce(d time.Duration) Option {
	return func(s *Scanner) { s.debounce = d }
}

// WithSettle sets the delay between driving a row and sampling the columns.
func WithSettle(d time.Duration) Option {
	return func(s *Scanner) { s.settle = d }
}

// WithClock replaces the wall clock and the settle sleep.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(s *Scanner) {
		s.now = now
		s.sleep = sleep
	}
}

// NewScanner idles every row high and starts the debounce timer.
func NewScanner(rows []OutputPin, cols []InputPin, opts ...Option) (*Scanner, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("keymatrix: need at least one row and one column")
	}
	if len(rows)*len(cols) > MaxKeys {
		return nil, fmt.Errorf("keymatrix: %dx%d matrix exceeds %d keys", len(rows), len(cols), MaxKeys)
	}
	s := &Scanner{
		rows:     rows,
		cols:     cols,
		settle:   DefaultSettle,
		debounce: DefaultDebounce,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range s.rows {
		r.Set(true)
	}
	s.lastChange = s.now()
	return s, nil
}

// NumKeys is rows*cols.
func (s *Scanner) NumKeys() int {
	return len(s.rows) * len(s.cols)
}

// Raw sweeps the matrix once without debouncing.
func (s *Scanner) Raw() Bitmap {
	var raw Bitmap
	ncols := len(s.cols)
	for r, row := range s.rows {
		row.Set(false)
		if s.settle > 0 {
			s.sleep(s.settle)
		}
		for c, col := range s.cols {
			if !col.Get() {
				raw |= 1 << uint(r*ncols+c)
			}
		}
		row.Set(true)
	}
	return raw
}

// Scan sweeps the matrix and returns the debounced bitmap. A raw reading is
// accepted once it has stayed unchanged for longer than the debounce window;
// until then the previous stable bitmap is returned.
func (s *Scanner) Scan() Bitmap {
	raw := s.Raw()
	now := s.now()
	if raw != s.previous {
		s.lastChange = now
	}
	if now.Sub(s.lastChange) > s.debounce {
		s.stable = raw
	}
	s.previous = raw
	return s.stable
}

// Stable returns the last debounced bitmap.
func (s *Scanner) Stable() Bitmap {
	return s.stable
}

// Run scans every interval and hands each debounced bitmap to fn until ctx
// is cancelled. The interval should be well below the debounce window.
func (s *Scanner) Run(ctx context.Context, interval time.Duration, fn func(Bitmap)) error {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(s.Scan())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
