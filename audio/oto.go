package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
)

// DefaultQueueBuffers bounds how many engine buffers may wait for the device.
const DefaultQueueBuffers = 8

// stream is the byte queue between Submit and the device's pull callback.
// Submit blocks while the queue is full; Read never blocks and plays
// silence when nothing is queued.
type stream struct {
	queue     chan []byte
	free      chan []byte
	pending   []byte
	current   []byte
	closed    chan struct{}
	closeOnce sync.Once
	underruns atomic.Uint64
}

func newStream(depth int) *stream {
	if depth < 1 {
		depth = DefaultQueueBuffers
	}
	return &stream{
		queue:  make(chan []byte, depth),
		free:   make(chan []byte, depth+1),
		closed: make(chan struct{}),
	}
}

func (s *stream) submit(buf []int16) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	var b []byte
	select {
	case b = <-s.free:
	default:
	}
	if cap(b) < len(buf)*2 {
		b = make([]byte, len(buf)*2)
	}
	b = b[:len(buf)*2]
	for i, v := range buf {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}

	select {
	case s.queue <- b:
		return nil
	case <-s.closed:
		return ErrClosed
	}
}

// Read implements io.Reader for the device's pull loop.
func (s *stream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) == 0 {
			s.recycle()
			select {
			case b := <-s.queue:
				s.current = b
				s.pending = b
			default:
				clear(p[n:])
				if n == 0 {
					s.underruns.Add(1)
				}
				return len(p), nil
			}
		}
		c := copy(p[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	return n, nil
}

func (s *stream) recycle() {
	if s.current == nil {
		return
	}
	select {
	case s.free <- s.current[:0]:
	default:
	}
	s.current = nil
}

func (s *stream) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// devicePlayer is the part of *oto.Player the sink drives.
type devicePlayer interface {
	Play()
	Close() error
}

// OtoSink plays buffers on the default output device through oto.
type OtoSink struct {
	*stream
	ctx    *oto.Context
	player devicePlayer
}

// NewOtoSink opens the output device as 16-bit stereo at sampleRate. oto
// allows one context per process.
func NewOtoSink(sampleRate, queueBuffers int) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	s := &OtoSink{stream: newStream(queueBuffers), ctx: ctx}
	p := ctx.NewPlayer(s.stream)
	p.Play()
	s.player = p
	return s, nil
}

func (s *OtoSink) Submit(buf []int16) error {
	return s.submit(buf)
}

// Underruns counts device reads that found the queue empty.
func (s *OtoSink) Underruns() uint64 {
	return s.underruns.Load()
}

// Close stops playback and releases blocked submitters.
func (s *OtoSink) Close() error {
	s.close()
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	if err != nil {
		return fmt.Errorf("close audio player: %w", err)
	}
	return nil
}
