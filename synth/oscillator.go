package synth

import (
	"fmt"
	"math"
)

// Waveform is the closed set of oscillator shapes. The numeric values are the
// ids used by the control API.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

func (w Waveform) Valid() bool {
	return w >= WaveSine && w <= WaveTriangle
}

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "Sine"
	case WaveSquare:
		return "Square"
	case WaveSawtooth:
		return "Sawtooth"
	case WaveTriangle:
		return "Triangle"
	default:
		return fmt.Sprintf("Waveform(%d)", int(w))
	}
}

var sineTable [TableSize]int16

func init() {
	for i := range sineTable {
		sineTable[i] = int16(math.Sin(float64(i)*2.0*math.Pi/TableSize) * MaxAmplitude)
	}
}

// Oscillator is a phase accumulator over a TableSize-step cycle.
type Oscillator struct {
	sampleRate float64
	wave       Waveform
	frequency  float64
	increment  float64
	phase      float64
}

// NewOscillator creates a silent sine oscillator.
func NewOscillator(sampleRate int) *Oscillator {
	o := newOscillator(sampleRate)
	return &o
}

func newOscillator(sampleRate int) Oscillator {
	return Oscillator{sampleRate: float64(sampleRate)}
}

// SetWaveform selects the shape. Invalid ids are ignored.
func (o *Oscillator) SetWaveform(w Waveform) {
	if !w.Valid() {
		return
	}
	o.wave = w
}

func (o *Oscillator) Waveform() Waveform { return o.wave }

// SetFrequency sets the pitch in Hz. Zero or less silences the oscillator,
// and so do non-finite values and frequencies at or above the sample rate.
func (o *Oscillator) SetFrequency(freq float64) {
	if math.IsNaN(freq) || freq >= o.sampleRate {
		freq = 0
	}
	o.frequency = freq
	o.increment = freq * TableSize / o.sampleRate
}

func (o *Oscillator) Frequency() float64 { return o.frequency }

// NextSample returns the sample at the current phase and advances it. A
// silent oscillator returns 0 and keeps its phase.
func (o *Oscillator) NextSample() int16 {
	if o.frequency <= 0 {
		return 0
	}
	s := waveAt(o.wave, o.phase)
	o.phase += o.increment
	if o.phase >= TableSize {
		o.phase = math.Mod(o.phase, TableSize)
	}
	return s
}

// waveAt evaluates w at phase, which must lie in [0, TableSize).
func waveAt(w Waveform, phase float64) int16 {
	const half = TableSize / 2
	switch w {
	case WaveSquare:
		if phase < half {
			return MaxAmplitude
		}
		return -MaxAmplitude
	case WaveSawtooth:
		return int16(phase/TableSize*2.0*MaxAmplitude - MaxAmplitude)
	case WaveTriangle:
		if phase < half {
			return int16(phase/half*2.0*MaxAmplitude - MaxAmplitude)
		}
		return int16(MaxAmplitude - (phase-half)/half*2.0*MaxAmplitude)
	default:
		return sineTable[int(phase)]
	}
}
