package midiout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/keysynth/synth"
)

type recorder struct {
	mu   sync.Mutex
	msgs []midi.Message
	err  error
}

func (r *recorder) send(msg midi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recorder) snapshot() []midi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]midi.Message(nil), r.msgs...)
}

func runTap(t *testing.T, tap *Tap) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tap.Run(ctx) }()
	return func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	}
}

func waitFor(t *testing.T, r *recorder, n int) []midi.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs := r.snapshot()
		if len(msgs) >= n {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d messages, want %d", len(msgs), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTapSendsNoteMessages(t *testing.T) {
	r := &recorder{}
	tap := NewTap(r.send, 2, nil)
	stop := runTap(t, tap)
	defer stop()

	tap.NoteOn(0, 60)
	tap.NoteOff(0, 60)
	tap.NoteOn(1, 200)

	msgs := waitFor(t, r, 2)
	var ch, key, vel uint8
	if !msgs[0].GetNoteStart(&ch, &key, &vel) || ch != 2 || key != 60 || vel != DefaultVelocity {
		t.Fatalf("unexpected note on: %s", msgs[0])
	}
	if !msgs[1].GetNoteEnd(&ch, &key) || ch != 2 || key != 60 {
		t.Fatalf("unexpected note off: %s", msgs[1])
	}
	time.Sleep(10 * time.Millisecond)
	if n := len(r.snapshot()); n != 2 {
		t.Fatalf("out-of-range pitch was sent, got %d messages", n)
	}
}

func TestTapDropsWhenQueueFull(t *testing.T) {
	r := &recorder{}
	tap := NewTap(r.send, 0, nil)
	for i := 0; i < cap(tap.queue)+5; i++ {
		tap.NoteOn(0, 60)
	}
	if tap.Dropped() != 5 {
		t.Fatalf("got=%d dropped want=5", tap.Dropped())
	}
}

func TestTapKeepsRunningAfterSendError(t *testing.T) {
	r := &recorder{err: errors.New("port gone")}
	tap := NewTap(r.send, 0, nil)
	stop := runTap(t, tap)
	defer stop()
	tap.NoteOn(0, 60)
	tap.NoteOn(0, 62)
	waitFor(t, r, 2)
}

func TestTapFollowsEngineKeys(t *testing.T) {
	r := &recorder{}
	tap := NewTap(r.send, 0, nil)
	tap.SetVelocity(90)
	stop := runTap(t, tap)
	defer stop()

	eng := synth.NewEngine(44100, 64, nil)
	eng.SetNoteListener(tap)
	buf := make([]int16, 2*eng.FramesPerBuffer())
	eng.SetKeyBitmap(1<<0 | 1<<4)
	eng.Render(buf)
	eng.SetKeyBitmap(1 << 4)
	eng.Render(buf)

	msgs := waitFor(t, r, 3)
	var ch, key, vel uint8
	started := map[uint8]bool{}
	for _, m := range msgs[:2] {
		if !m.GetNoteStart(&ch, &key, &vel) || vel != 90 {
			t.Fatalf("expected note on, got %s", m)
		}
		started[key] = true
	}
	if !started[60] || !started[67] {
		t.Fatalf("expected C4 and G4, got %v", started)
	}
	if !msgs[2].GetNoteEnd(&ch, &key) || key != 60 {
		t.Fatalf("expected note off for C4, got %s", msgs[2])
	}
}
