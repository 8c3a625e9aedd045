package synth

// Voice is bound to one physical key: two oscillators locked to the same
// pitch and one envelope.
type Voice struct {
	osc1  Oscillator
	osc2  Oscillator
	env   Envelope
	key   int // -1 when not sounding
	pitch int // pitch of the last note-on
}

// NewVoice creates an idle voice.
func NewVoice(sampleRate int, p EnvelopeParams) *Voice {
	v := &Voice{}
	v.init(sampleRate, p)
	return v
}

func (v *Voice) init(sampleRate int, p EnvelopeParams) {
	v.osc1 = newOscillator(sampleRate)
	v.osc2 = newOscillator(sampleRate)
	v.env.Setup(p, sampleRate)
	v.key = -1
}

// NoteOn tunes both oscillators to freq and triggers the envelope.
func (v *Voice) NoteOn(freq float64, wave1, wave2 Waveform) {
	v.osc1.SetWaveform(wave1)
	v.osc1.SetFrequency(freq)
	v.osc2.SetWaveform(wave2)
	v.osc2.SetFrequency(freq)
	v.env.NoteOn()
}

// NoteOff releases the envelope.
func (v *Voice) NoteOff() {
	v.env.NoteOff()
}

// Sample renders one tick using the oscillator gains in cfg.
func (v *Voice) Sample(cfg *Config) int16 {
	g := v.env.NextGain()
	if g <= 0 && v.env.Stage() == StageIdle {
		if v.osc1.Frequency() > 0 {
			v.osc1.SetFrequency(0)
			v.osc2.SetFrequency(0)
		}
		return 0
	}

	s1 := int16(float64(v.osc1.NextSample()) * cfg.Osc1.Gain)
	var s2 int16
	if cfg.Osc2Enabled && cfg.Osc2.Gain > 0 {
		s2 = int16(float64(v.osc2.NextSample()) * cfg.Osc2.Gain)
	}
	return int16((float64(s1) + float64(s2)) * g / 2.0)
}

func (v *Voice) Envelope() *Envelope { return &v.env }

// Key returns the key driving the voice, or -1.
func (v *Voice) Key() int { return v.key }

// Pitch returns the MIDI pitch the voice was last triggered with.
func (v *Voice) Pitch() int { return v.pitch }
