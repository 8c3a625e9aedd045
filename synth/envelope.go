package synth

import "fmt"

// Stage is the envelope state.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageAttack:
		return "Attack"
	case StageDecay:
		return "Decay"
	case StageSustain:
		return "Sustain"
	case StageRelease:
		return "Release"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Envelope is a linear ADSR generator advanced once per sample.
//
// Release is scaled by the gain captured at note-off, so a release always
// lasts the configured release time whatever level it starts from. A note-on
// during any stage ramps the attack up from the current gain.
type Envelope struct {
	stage Stage
	gain  float64

	attackRate  float64
	decayRate   float64
	releaseRate float64 // 1 / (release * sampleRate), scaled by releaseStart
	sustain     float64

	releaseStart float64
}

// NewEnvelope returns an idle envelope configured with p.
func NewEnvelope(p EnvelopeParams, sampleRate int) *Envelope {
	e := &Envelope{}
	e.Setup(p, sampleRate)
	return e
}

// Setup derives the per-sample rates from p and resets the envelope to idle.
func (e *Envelope) Setup(p EnvelopeParams, sampleRate int) {
	e.SetRates(p, sampleRate)
	e.gain = 0
	e.stage = StageIdle
}

// SetRates derives the per-sample rates from p without touching the stage or
// the current gain.
func (e *Envelope) SetRates(p EnvelopeParams, sampleRate int) {
	p = p.Clamp()
	sr := float64(sampleRate)
	e.attackRate = 1.0 / (p.Attack * sr)
	e.decayRate = (1.0 - p.Sustain) / (p.Decay * sr)
	e.releaseRate = 1.0 / (p.Release * sr)
	e.sustain = p.Sustain
}

// NoteOn (re)starts the attack from any stage.
func (e *Envelope) NoteOn() {
	e.stage = StageAttack
}

// NoteOff enters release from attack, decay or sustain. Idle and release are
// left alone.
func (e *Envelope) NoteOff() {
	switch e.stage {
	case StageAttack, StageDecay, StageSustain:
		e.releaseStart = e.gain
		e.stage = StageRelease
	}
}

// NextGain advances one sample and returns the gain in [0, 1].
func (e *Envelope) NextGain() float64 {
	switch e.stage {
	case StageIdle:
		e.gain = 0
	case StageAttack:
		e.gain += e.attackRate
		if e.gain >= 1.0 {
			e.gain = 1.0
			e.stage = StageDecay
		}
	case StageDecay:
		e.gain -= e.decayRate
		if e.gain <= e.sustain {
			e.gain = e.sustain
			e.stage = StageSustain
		}
	case StageSustain:
		e.gain = e.sustain
	case StageRelease:
		e.gain -= e.releaseStart * e.releaseRate
		if e.gain <= 0 {
			e.gain = 0
			e.stage = StageIdle
		}
	}
	return clampf(e.gain, 0, 1)
}

func (e *Envelope) Stage() Stage { return e.stage }

func (e *Envelope) Gain() float64 { return clampf(e.gain, 0, 1) }
