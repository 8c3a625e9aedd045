package synth

import (
	"math"
	"testing"
)

var exampleADSR = EnvelopeParams{Attack: 0.05, Decay: 0.1, Sustain: 0.5, Release: 0.5}

func TestEnvelopeExampleTimeline(t *testing.T) {
	const sr = 44100
	e := NewEnvelope(exampleADSR, sr)
	if e.Stage() != StageIdle || e.Gain() != 0 {
		t.Fatalf("expected idle envelope after setup, got stage=%s gain=%f", e.Stage(), e.Gain())
	}

	e.NoteOn()
	attack := samplesUntil(t, e, 10*sr, inStage(StageDecay))
	assertWithin(t, "attack peak sample", attack, 2205, 1)
	assertClose(t, "peak gain", e.Gain(), 1.0, 0)

	decay := samplesUntil(t, e, 10*sr, inStage(StageSustain))
	assertWithin(t, "sustain reached at", attack+decay, 6615, 2)
	assertClose(t, "sustain gain", e.Gain(), 0.5, 0)

	// Hold sustain until sample 10000.
	for n := attack + decay; n < 10000; n++ {
		if g := e.NextGain(); g != 0.5 {
			t.Fatalf("sustain drifted at sample %d: %f", n, g)
		}
	}

	e.NoteOff()
	if e.Stage() != StageRelease {
		t.Fatalf("expected release after note off, got %s", e.Stage())
	}
	release := samplesUntil(t, e, 10*sr, inStage(StageIdle))
	assertWithin(t, "silence reached at", 10000+release, 32050, 1)
	if e.Gain() != 0 {
		t.Fatalf("expected exact zero at end of release, got %f", e.Gain())
	}
}

func TestEnvelopeReleaseDurationIndependentOfStartLevel(t *testing.T) {
	const sr = 44100
	params := EnvelopeParams{Attack: 0.05, Decay: 0.1, Sustain: 1.0, Release: 0.25}
	want := int(params.Release * sr)

	tests := []struct {
		name    string
		prepare func(e *Envelope)
	}{
		{
			name: "from full sustain",
			prepare: func(e *Envelope) {
				for e.Stage() != StageSustain {
					e.NextGain()
				}
			},
		},
		{
			name: "half way through attack",
			prepare: func(e *Envelope) {
				for e.Gain() < 0.5 {
					e.NextGain()
				}
			},
		},
		{
			name: "early in attack",
			prepare: func(e *Envelope) {
				for i := 0; i < 100; i++ {
					e.NextGain()
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnvelope(params, sr)
			e.NoteOn()
			tt.prepare(e)
			start := e.Gain()
			if start <= 0 {
				t.Fatalf("expected a positive gain before release, got %f", start)
			}
			e.NoteOff()
			n := samplesUntil(t, e, 4*want, inStage(StageIdle))
			assertWithin(t, "release samples", n, want, 1)
		})
	}
}

func TestEnvelopeNoteOffIgnoredWhenIdleOrReleasing(t *testing.T) {
	e := NewEnvelope(exampleADSR, 1000)
	e.NoteOff()
	if e.Stage() != StageIdle {
		t.Fatalf("note off on idle envelope must stay idle, got %s", e.Stage())
	}

	e.NoteOn()
	for i := 0; i < 20; i++ {
		e.NextGain()
	}
	e.NoteOff()
	captured := e.releaseStart
	for i := 0; i < 5; i++ {
		e.NextGain()
	}
	e.NoteOff()
	if e.releaseStart != captured {
		t.Fatalf("second note off re-captured release start: got=%f want=%f", e.releaseStart, captured)
	}
}

func TestEnvelopeRetriggerRampsFromCurrentGain(t *testing.T) {
	e := NewEnvelope(exampleADSR, 1000)
	e.NoteOn()
	for e.Stage() != StageSustain {
		e.NextGain()
	}
	e.NoteOff()
	for i := 0; i < 100; i++ {
		e.NextGain()
	}
	before := e.Gain()
	e.NoteOn()
	if e.Stage() != StageAttack {
		t.Fatalf("expected attack after retrigger, got %s", e.Stage())
	}
	after := e.NextGain()
	if after <= before || after > before+e.attackRate+1e-12 {
		t.Fatalf("expected attack to continue from %f, got %f", before, after)
	}
}

func TestEnvelopeSetupClampsParameters(t *testing.T) {
	const sr = 1000
	e := NewEnvelope(EnvelopeParams{Attack: 0, Decay: -1, Sustain: 3, Release: 0}, sr)
	// 1ms floor at 1kHz is one sample per stage.
	assertClose(t, "attack rate", e.attackRate, 1.0, 1e-12)
	assertClose(t, "release rate", e.releaseRate, 1.0, 1e-12)
	assertClose(t, "sustain", e.sustain, 1.0, 0)
	assertClose(t, "decay rate", e.decayRate, 0, 0)

	e.NoteOn()
	if g := e.NextGain(); g != 1.0 {
		t.Fatalf("expected single-sample attack, got %f", g)
	}
}

func TestEnvelopeParamsClampInfiniteTimes(t *testing.T) {
	inf := math.Inf(1)
	p := EnvelopeParams{Attack: inf, Decay: math.NaN(), Sustain: 0.5, Release: inf}.Clamp()
	if p.Attack != maxStageTime || p.Release != maxStageTime || p.Decay != minStageTime {
		t.Fatalf("unexpected clamp %+v", p)
	}

	e := NewEnvelope(EnvelopeParams{Attack: 0.001, Decay: 0.001, Sustain: 1, Release: inf}, 1000)
	if e.releaseRate <= 0 {
		t.Fatalf("infinite release gave rate %g", e.releaseRate)
	}
	e.NoteOn()
	e.NextGain()
	e.NoteOff()
	samplesUntil(t, e, int(maxStageTime*1000)+10, inStage(StageIdle))
}

func TestEnvelopeSetRatesKeepsStateAndGain(t *testing.T) {
	e := NewEnvelope(exampleADSR, 1000)
	e.NoteOn()
	for i := 0; i < 10; i++ {
		e.NextGain()
	}
	stage, gain := e.Stage(), e.Gain()
	e.SetRates(EnvelopeParams{Attack: 1, Decay: 1, Sustain: 0.2, Release: 1}, 1000)
	if e.Stage() != stage || e.Gain() != gain {
		t.Fatalf("SetRates changed state: stage %s->%s gain %f->%f", stage, e.Stage(), gain, e.Gain())
	}
	assertClose(t, "new attack rate", e.attackRate, 0.001, 1e-12)

	e.Setup(exampleADSR, 1000)
	if e.Stage() != StageIdle || e.Gain() != 0 {
		t.Fatalf("Setup must reset, got stage=%s gain=%f", e.Stage(), e.Gain())
	}
}

func TestEnvelopeGainAlwaysInUnitRange(t *testing.T) {
	e := NewEnvelope(EnvelopeParams{Attack: 0.001, Decay: 0.001, Sustain: 0.3, Release: 0.001}, 44100)
	for cycle := 0; cycle < 50; cycle++ {
		e.NoteOn()
		for i := 0; i < 30+cycle; i++ {
			if g := e.NextGain(); g < 0 || g > 1 {
				t.Fatalf("gain out of range: %f", g)
			}
		}
		e.NoteOff()
		for i := 0; i < cycle; i++ {
			if g := e.NextGain(); g < 0 || g > 1 {
				t.Fatalf("gain out of range: %f", g)
			}
		}
	}
}
