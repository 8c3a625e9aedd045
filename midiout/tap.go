// Package midiout mirrors the engine's note events to a MIDI output, so the
// key matrix can also drive an external instrument or a recorder.
package midiout

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cwbudde/keysynth/internal/log"
)

// DefaultVelocity is used for every note; the matrix has no velocity sensing.
const DefaultVelocity = 100

// SendFunc transmits one message.
type SendFunc func(msg midi.Message) error

// Tap queues note events from the audio loop and sends them from Run.
// NoteOn and NoteOff never block; events are dropped when the queue is full.
type Tap struct {
	send     SendFunc
	channel  uint8
	velocity uint8
	queue    chan midi.Message
	dropped  atomic.Uint64
	log      *log.Logger
}

// NewTap sends on channel (0-15).
func NewTap(send SendFunc, channel uint8, logger *log.Logger) *Tap {
	if logger == nil {
		logger = log.Discard()
	}
	return &Tap{
		send:     send,
		channel:  channel & 0x0f,
		velocity: DefaultVelocity,
		queue:    make(chan midi.Message, 64),
		log:      logger.With("midi"),
	}
}

// SetVelocity changes the note-on velocity. Call before Run.
func (t *Tap) SetVelocity(v uint8) {
	if v == 0 || v > 127 {
		return
	}
	t.velocity = v
}

func (t *Tap) NoteOn(key, pitch int) {
	if pitch < 0 || pitch > 127 {
		return
	}
	t.enqueue(midi.NoteOn(t.channel, uint8(pitch), t.velocity))
}

func (t *Tap) NoteOff(key, pitch int) {
	if pitch < 0 || pitch > 127 {
		return
	}
	t.enqueue(midi.NoteOff(t.channel, uint8(pitch)))
}

func (t *Tap) enqueue(msg midi.Message) {
	select {
	case t.queue <- msg:
	default:
		t.dropped.Add(1)
	}
}

// Dropped counts events lost to a full queue.
func (t *Tap) Dropped() uint64 {
	return t.dropped.Load()
}

// Run sends queued events until ctx is cancelled. Send errors are logged
// and do not stop the loop.
func (t *Tap) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-t.queue:
			if err := t.send(msg); err != nil {
				t.log.Warnf("send %s: %v", msg, err)
			}
		}
	}
}

// ListPorts names the available MIDI outputs.
func ListPorts() string {
	return midi.GetOutPorts().String()
}

// OpenPort opens the first output whose name contains nameFragment, case
// insensitive. The returned closer releases the port and the driver.
func OpenPort(nameFragment string) (SendFunc, func(), error) {
	outs := midi.GetOutPorts()
	if len(outs) == 0 {
		return nil, nil, fmt.Errorf("no MIDI outputs available")
	}

	lower := strings.ToLower(nameFragment)
	for _, out := range outs {
		if !strings.Contains(strings.ToLower(out.String()), lower) {
			continue
		}
		send, err := midi.SendTo(out)
		if err != nil {
			return nil, nil, fmt.Errorf("open MIDI output %q: %w", out.String(), err)
		}
		closer := func() {
			_ = out.Close()
			drivers.Close()
		}
		return send, closer, nil
	}
	return nil, nil, fmt.Errorf("no MIDI output contains %q", nameFragment)
}
