package synth

import "math"

const (
	// NumKeys is the size of the key matrix and of the voice pool.
	NumKeys = 16
	// TableSize is the number of phase steps per oscillator cycle.
	TableSize = 512
	// MaxAmplitude bounds every sample the engine produces.
	MaxAmplitude = 32767

	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 64
	DefaultRootPitch       = 60 // C4
	// MaxPitch is the highest mappable MIDI pitch; the lowest is 0.
	MaxPitch = 127

	// mixHeadroom divides the sum of all voices.
	mixHeadroom = 4
	// minStageTime keeps envelope rates finite.
	minStageTime = 0.001
	// maxStageTime keeps them non-zero.
	maxStageTime = 60.0
)

// OscConfig is the global timbre of one oscillator slot.
type OscConfig struct {
	Wave Waveform
	Gain float64 // 0..1
}

// EnvelopeParams holds ADSR times in seconds and the sustain level.
type EnvelopeParams struct {
	Attack  float64
	Decay   float64
	Sustain float64 // 0..1
	Release float64
}

// Clamp returns p with times limited to [1ms, 60s] and sustain to [0, 1].
// NaN falls back to the floor (times) or 0 (sustain); +Inf to the ceiling.
func (p EnvelopeParams) Clamp() EnvelopeParams {
	return EnvelopeParams{
		Attack:  clampTime(p.Attack),
		Decay:   clampTime(p.Decay),
		Sustain: clampLevel(p.Sustain),
		Release: clampTime(p.Release),
	}
}

func clampTime(t float64) float64 {
	if math.IsNaN(t) || t < minStageTime {
		return minStageTime
	}
	if t > maxStageTime {
		return maxStageTime
	}
	return t
}

func clampLevel(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clampf(v, 0, 1)
}

// Config is one immutable snapshot of everything the control plane may set.
// The engine publishes a fresh copy on every change and the audio loop reads
// it once per mixing pass.
type Config struct {
	Osc1        OscConfig
	Osc2        OscConfig
	Osc2Enabled bool
	Envelope    EnvelopeParams
	Scale       ScaleMapper
}

// NewDefaultConfig returns the power-on configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Osc1:        OscConfig{Wave: WaveSine, Gain: 1.0},
		Osc2:        OscConfig{Wave: WaveSine, Gain: 0.0},
		Osc2Enabled: false,
		Envelope: EnvelopeParams{
			Attack:  0.05,
			Decay:   0.1,
			Sustain: 0.5,
			Release: 0.5,
		},
		Scale: NewScaleMapper(DefaultRootPitch, ScaleMajor),
	}
}
