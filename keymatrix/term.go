package keymatrix

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode"

	"github.com/eiannone/keyboard"
)

// DefaultLayout maps a 4x4 block of a QWERTY keyboard onto keys 0..15.
const DefaultLayout = "1234qwerasdfzxcv"

// ErrQuit is returned by TermKeys.Run when the user presses Esc or Ctrl-C.
var ErrQuit = errors.New("keymatrix: quit requested")

// TermKeys drives a SimMatrix from terminal keystrokes. Terminals report no
// key-up events, so each keystroke holds its key for a fixed time; auto-repeat
// keeps a held key down.
type TermKeys struct {
	m      *SimMatrix
	layout map[rune]int
	hold   time.Duration

	mu     sync.Mutex
	timers map[int]*time.Timer
}

// NewTermKeys maps the i-th rune of layout to key i.
func NewTermKeys(m *SimMatrix, layout string, hold time.Duration) *TermKeys {
	if layout == "" {
		layout = DefaultLayout
	}
	if hold <= 0 {
		hold = 300 * time.Millisecond
	}
	t := &TermKeys{
		m:      m,
		layout: make(map[rune]int),
		hold:   hold,
		timers: make(map[int]*time.Timer),
	}
	for i, r := range []rune(layout) {
		if i >= m.NumKeys() {
			break
		}
		t.layout[unicode.ToLower(r)] = i
	}
	return t
}

// Strike presses the key mapped to r and schedules its release. It reports
// whether r is mapped.
func (t *TermKeys) Strike(r rune) bool {
	key, ok := t.layout[unicode.ToLower(r)]
	if !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.timers[key]; ok {
		tm.Stop()
	}
	t.m.Press(key)
	t.timers[key] = time.AfterFunc(t.hold, func() { t.m.Release(key) })
	return true
}

// ReleaseAll cancels pending releases and lifts every key.
func (t *TermKeys) ReleaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, tm := range t.timers {
		tm.Stop()
		t.m.Release(key)
		delete(t.timers, key)
	}
}

// Run reads the terminal until ctx is cancelled or the user quits.
func (t *TermKeys) Run(ctx context.Context) error {
	events, err := keyboard.GetKeys(16)
	if err != nil {
		return fmt.Errorf("open terminal keyboard: %w", err)
	}
	defer func() {
		_ = keyboard.Close()
		t.ReleaseAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Err != nil {
				return fmt.Errorf("read terminal keyboard: %w", ev.Err)
			}
			if ev.Key == keyboard.KeyEsc || ev.Key == keyboard.KeyCtrlC {
				return ErrQuit
			}
			if ev.Rune != 0 {
				t.Strike(ev.Rune)
			}
		}
	}
}
