package synth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/keysynth/internal/log"
)

// Sink receives interleaved 16-bit stereo buffers. Submit blocks until the
// sink can take the buffer and must not retain buf after returning.
type Sink interface {
	Submit(buf []int16) error
}

// NoteListener observes the note events produced by the key bitmap diff. It
// is called from the audio loop and must not block.
type NoteListener interface {
	NoteOn(key, pitch int)
	NoteOff(key, pitch int)
}

const pendingFlag = 1 << 31

// Engine owns one voice per key and mixes them into stereo buffers.
//
// Control writers publish configuration snapshots through an atomic pointer
// and the scan loop posts bitmaps to an atomic mailbox. Only the goroutine
// calling Render (normally Run) touches the voices.
type Engine struct {
	sampleRate      int
	framesPerBuffer int
	idleYield       time.Duration

	voices     [NumKeys]Voice
	appliedEnv EnvelopeParams

	cfg     atomic.Pointer[Config]
	writeMu sync.Mutex
	pending atomic.Uint32
	lastKey atomic.Int32

	listener NoteListener
	log      *log.Logger
}

// NewEngine creates an engine. A nil cfg selects NewDefaultConfig.
// Non-positive sampleRate or framesPerBuffer select the defaults.
func NewEngine(sampleRate int, framesPerBuffer int, cfg *Config) *Engine {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if framesPerBuffer <= 0 {
		framesPerBuffer = DefaultFramesPerBuffer
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	c := sanitize(*cfg)

	e := &Engine{
		sampleRate:      sampleRate,
		framesPerBuffer: framesPerBuffer,
		idleYield:       time.Millisecond,
		appliedEnv:      c.Envelope,
		log:             log.Discard(),
	}
	for i := range e.voices {
		e.voices[i].init(sampleRate, c.Envelope)
	}
	e.cfg.Store(&c)
	e.lastKey.Store(-1)
	return e
}

func sanitize(c Config) Config {
	c.Envelope = c.Envelope.Clamp()
	c.Osc1.Gain = clampLevel(c.Osc1.Gain)
	c.Osc2.Gain = clampLevel(c.Osc2.Gain)
	if !c.Osc1.Wave.Valid() {
		c.Osc1.Wave = WaveSine
	}
	if !c.Osc2.Wave.Valid() {
		c.Osc2.Wave = WaveSine
	}
	if !c.Scale.Kind.Valid() {
		c.Scale.Kind = ScaleCustom
	}
	c.Scale.Root = clampi(c.Scale.Root, 0, MaxPitch)
	for i, p := range c.Scale.Pitches {
		c.Scale.Pitches[i] = clampi(p, 0, MaxPitch)
	}
	return c
}

func (e *Engine) SampleRate() int      { return e.sampleRate }
func (e *Engine) FramesPerBuffer() int { return e.framesPerBuffer }

// SetLogger sets the logger used for configuration changes. Call before Run.
func (e *Engine) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.Discard()
	}
	e.log = l
}

// SetNoteListener installs l. Call before Run.
func (e *Engine) SetNoteListener(l NoteListener) {
	e.listener = l
}

// SetIdleYield sets how long Run sleeps after a buffer with no active voice.
func (e *Engine) SetIdleYield(d time.Duration) {
	e.idleYield = d
}

// Config returns the current configuration snapshot. It must not be modified.
func (e *Engine) Config() *Config {
	return e.cfg.Load()
}

// update copies the current snapshot, lets fn mutate it and publishes it
// unless fn reports no change.
func (e *Engine) update(fn func(c *Config) bool) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	next := *e.cfg.Load()
	if !fn(&next) {
		return
	}
	e.cfg.Store(&next)
}

// SetWaveform sets the waveform of oscillator 1 or 2. Other ids and invalid
// waveforms are ignored.
func (e *Engine) SetWaveform(osc int, w Waveform) {
	if !w.Valid() {
		return
	}
	e.update(func(c *Config) bool {
		switch osc {
		case 1:
			c.Osc1.Wave = w
		case 2:
			c.Osc2.Wave = w
		default:
			return false
		}
		e.log.Infof("oscillator %d waveform set to %s", osc, w)
		return true
	})
}

// SetGain sets the gain of oscillator 1 or 2, clamped to [0, 1].
func (e *Engine) SetGain(osc int, gain float64) {
	if !isFinite(gain) {
		return
	}
	gain = clampf(gain, 0, 1)
	e.update(func(c *Config) bool {
		switch osc {
		case 1:
			c.Osc1.Gain = gain
		case 2:
			c.Osc2.Gain = gain
		default:
			return false
		}
		e.log.Infof("oscillator %d gain set to %.2f", osc, gain)
		return true
	})
}

// SetOsc2Enabled gates the second oscillator.
func (e *Engine) SetOsc2Enabled(enabled bool) {
	e.update(func(c *Config) bool {
		c.Osc2Enabled = enabled
		e.log.Infof("oscillator 2 enabled=%t", enabled)
		return true
	})
}

// SetADSR replaces the envelope parameters. Sounding voices keep their gain
// and switch to the new rates at the next mixing pass.
func (e *Engine) SetADSR(attack, decay, sustain, release float64) {
	p := EnvelopeParams{Attack: attack, Decay: decay, Sustain: sustain, Release: release}.Clamp()
	e.update(func(c *Config) bool {
		c.Envelope = p
		e.log.Infof("ADSR set to A:%.3fs D:%.3fs S:%.3f R:%.3fs", p.Attack, p.Decay, p.Sustain, p.Release)
		return true
	})
}

// SetScale lays out the keys from root using kind. See ScaleMapper.SetScale.
func (e *Engine) SetScale(root int, kind ScaleKind) {
	if !kind.Valid() {
		return
	}
	e.update(func(c *Config) bool {
		if !c.Scale.SetScale(root, kind) {
			e.log.Debugf("scale %s from pitch %d does not fit the MIDI range, ignored", kind, root)
			return false
		}
		e.log.Infof("scale set to %s (root %s), mapped %d keys", kind, NoteName(root), NumKeys)
		return true
	})
}

// SetCustomNote overrides one key and switches to the Custom scale. An
// out-of-range key or pitch is ignored.
func (e *Engine) SetCustomNote(key, pitch int) {
	if key < 0 || key >= NumKeys || !ValidPitch(pitch) {
		return
	}
	e.SetCustomNotes([]KeyPitch{{Key: key, Pitch: pitch}})
}

// SetCustomNotes applies an ordered batch of overrides as one snapshot.
// Entries with an out-of-range key or pitch are skipped. The scale ends up
// Custom even when every entry was skipped.
func (e *Engine) SetCustomNotes(batch []KeyPitch) {
	e.update(func(c *Config) bool {
		for _, kp := range batch {
			if !c.Scale.SetCustomNote(kp.Key, kp.Pitch) {
				continue
			}
			e.log.Infof("custom key K%d mapped to %s", kp.Key+1, NoteName(kp.Pitch))
		}
		c.Scale.Kind = ScaleCustom
		return true
	})
}

// SetConfig replaces the whole configuration, for example with a loaded
// preset. Sounding voices keep their amplitude; new rates apply on the next
// mixing pass.
func (e *Engine) SetConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	c := sanitize(*cfg)
	e.update(func(next *Config) bool {
		*next = c
		e.log.Infof("configuration replaced: osc1 %s, osc2 %s (enabled %t), scale %s",
			c.Osc1.Wave, c.Osc2.Wave, c.Osc2Enabled, c.Scale.Kind)
		return true
	})
}

// Status identifies the most recently triggered key.
type Status struct {
	Valid bool
	Key   int
	Pitch int
	Name  string
}

func (s Status) String() string {
	if !s.Valid {
		return "None"
	}
	return fmt.Sprintf("K%d (%s)", s.Key+1, s.Name)
}

// Status reports the last triggered key with its current mapped pitch.
func (e *Engine) Status() Status {
	key := int(e.lastKey.Load())
	if key < 0 || key >= NumKeys {
		return Status{Key: -1}
	}
	pitch := e.cfg.Load().Scale.Pitches[key]
	return Status{Valid: true, Key: key, Pitch: pitch, Name: NoteName(pitch)}
}

// SetKeyBitmap posts the latest debounced bitmap. It is applied at the start
// of the next mixing pass; a newer bitmap replaces one not yet applied.
func (e *Engine) SetKeyBitmap(bitmap uint16) {
	e.pending.Store(pendingFlag | uint32(bitmap))
}

func (e *Engine) takeBitmap() (uint16, bool) {
	v := e.pending.Swap(0)
	if v&pendingFlag == 0 {
		return 0, false
	}
	return uint16(v), true
}

// applyKeyBitmap triggers note-on for pressed keys whose voice is idle or
// releasing and note-off for released keys whose voice is still held.
func (e *Engine) applyKeyBitmap(bitmap uint16, cfg *Config) {
	for i := range e.voices {
		v := &e.voices[i]
		stage := v.env.Stage()
		pressed := bitmap&(1<<uint(i)) != 0
		if pressed {
			if stage == StageIdle || stage == StageRelease {
				pitch := cfg.Scale.Pitches[i]
				v.NoteOn(PitchToFrequency(pitch), cfg.Osc1.Wave, cfg.Osc2.Wave)
				v.key = i
				v.pitch = pitch
				e.lastKey.Store(int32(i))
				if e.listener != nil {
					e.listener.NoteOn(i, pitch)
				}
			}
		} else if stage != StageIdle && stage != StageRelease {
			v.NoteOff()
			if e.listener != nil {
				e.listener.NoteOff(i, v.pitch)
			}
		}
		if v.env.Stage() == StageIdle {
			v.key = -1
		}
	}
}

// Render runs one mixing pass over out, which holds interleaved stereo
// frames. It returns the number of voices still sounding at the last frame.
func (e *Engine) Render(out []int16) int {
	cfg := e.cfg.Load()
	if cfg.Envelope != e.appliedEnv {
		for i := range e.voices {
			e.voices[i].env.SetRates(cfg.Envelope, e.sampleRate)
		}
		e.appliedEnv = cfg.Envelope
	}
	if bitmap, ok := e.takeBitmap(); ok {
		e.applyKeyBitmap(bitmap, cfg)
	}

	active := 0
	frames := len(out) / 2
	for f := 0; f < frames; f++ {
		var mixed int32
		active = 0
		for i := range e.voices {
			v := &e.voices[i]
			if v.env.Stage() == StageIdle {
				continue
			}
			mixed += int32(v.Sample(cfg))
			if v.env.Stage() != StageIdle {
				active++
			}
		}
		s := saturate16(mixed / mixHeadroom)
		out[2*f] = s
		out[2*f+1] = s
	}
	return active
}

// ActiveVoices counts voices whose envelope is not idle. It reads voice state
// and is only safe from the goroutine that calls Render.
func (e *Engine) ActiveVoices() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].env.Stage() != StageIdle {
			n++
		}
	}
	return n
}

// Voice returns voice i for inspection from the Render goroutine.
func (e *Engine) Voice(i int) *Voice {
	if i < 0 || i >= NumKeys {
		return nil
	}
	return &e.voices[i]
}

// Run renders and submits buffers until ctx is cancelled or the sink fails.
// The blocking Submit paces the loop; when nothing sounds the loop sleeps for
// the idle yield between buffers.
func (e *Engine) Run(ctx context.Context, sink Sink) error {
	buf := make([]int16, e.framesPerBuffer*2)
	e.log.Infof("audio loop started: %d Hz, %d frames per buffer, %d voices", e.sampleRate, e.framesPerBuffer, NumKeys)
	defer e.log.Infof("audio loop stopped")

	var idle *time.Timer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		active := e.Render(buf)
		if err := sink.Submit(buf); err != nil {
			return fmt.Errorf("submit audio buffer: %w", err)
		}
		if active > 0 || e.idleYield <= 0 {
			continue
		}

		if idle == nil {
			idle = time.NewTimer(e.idleYield)
			defer idle.Stop()
		} else {
			idle.Reset(e.idleYield)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
		}
	}
}
