// Package audio provides sinks for the interleaved 16-bit stereo buffers the
// synth engine produces.
package audio

import (
	"errors"
	"sync"
	"time"
)

// Channels is the interleave width of every buffer passed to a Sink.
const Channels = 2

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("audio: sink closed")

// Sink consumes interleaved stereo buffers. Submit may block to apply
// backpressure and must not keep buf after it returns.
type Sink interface {
	Submit(buf []int16) error
	Close() error
}

// MemorySink keeps every submitted sample.
type MemorySink struct {
	mu      sync.Mutex
	samples []int16
	closed  bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Submit(buf []int16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.samples = append(m.samples, buf...)
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Samples returns a copy of everything submitted so far.
func (m *MemorySink) Samples() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int16, len(m.samples))
	copy(out, m.samples)
	return out
}

// Frames is the number of stereo frames submitted so far.
func (m *MemorySink) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples) / Channels
}

// NullSink discards audio. With a positive sample rate it paces submits to
// real time, standing in for a device clock.
type NullSink struct {
	sampleRate int
	now        func() time.Time
	sleep      func(time.Duration)

	mu     sync.Mutex
	next   time.Time
	frames int64
	closed bool
}

// NewNullSink returns a sink that drops buffers. sampleRate <= 0 disables
// pacing.
func NewNullSink(sampleRate int) *NullSink {
	return &NullSink{sampleRate: sampleRate, now: time.Now, sleep: time.Sleep}
}

func (n *NullSink) Submit(buf []int16) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrClosed
	}
	frames := len(buf) / Channels
	n.frames += int64(frames)
	if n.sampleRate <= 0 {
		n.mu.Unlock()
		return nil
	}
	now := n.now()
	if n.next.IsZero() || n.next.Before(now) {
		n.next = now
	}
	n.next = n.next.Add(time.Duration(frames) * time.Second / time.Duration(n.sampleRate))
	wait := n.next.Sub(now)
	n.mu.Unlock()
	if wait > 0 {
		n.sleep(wait)
	}
	return nil
}

func (n *NullSink) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}

// Frames is the number of stereo frames dropped so far.
func (n *NullSink) Frames() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames
}

type teeSink []Sink

// Tee fans every buffer out to each sink in order. Submit stops at the first
// error; Close closes all of them and returns the first error.
func Tee(sinks ...Sink) Sink {
	return teeSink(sinks)
}

func (t teeSink) Submit(buf []int16) error {
	for _, s := range t {
		if err := s.Submit(buf); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) Close() error {
	var first error
	for _, s := range t {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
