package synth

import (
	"math"
	"testing"
)

// measureFundamentalFreq estimates the fundamental from the zero-crossing rate.
func measureFundamentalFreq(samples []int16, sampleRate float64) float64 {
	startIdx := len(samples) / 10
	crossings := 0
	for i := startIdx + 1; i < len(samples); i++ {
		if (samples[i-1] < 0 && samples[i] >= 0) || (samples[i-1] >= 0 && samples[i] < 0) {
			crossings++
		}
	}
	if crossings == 0 {
		return 0
	}
	duration := float64(len(samples)-startIdx) / sampleRate
	return float64(crossings) / (2.0 * duration)
}

// samplesUntil advances e until done reports true and returns the number of
// NextGain calls it took. It fails the test after limit calls.
func samplesUntil(t *testing.T, e *Envelope, limit int, done func(*Envelope) bool) int {
	t.Helper()
	for n := 1; n <= limit; n++ {
		e.NextGain()
		if done(e) {
			return n
		}
	}
	t.Fatalf("condition not reached within %d samples (stage=%s gain=%f)", limit, e.Stage(), e.Gain())
	return 0
}

func inStage(s Stage) func(*Envelope) bool {
	return func(e *Envelope) bool { return e.Stage() == s }
}

func assertWithin(t *testing.T, what string, got, want, tol int) {
	t.Helper()
	if got < want-tol || got > want+tol {
		t.Fatalf("%s: got=%d want=%d±%d", what, got, want, tol)
	}
}

func assertClose(t *testing.T, what string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s: got=%f want=%f (tol %g)", what, got, want, tol)
	}
}

// recordingListener captures note events in order.
type recordingListener struct {
	ons        []int
	offs       []int
	onPitches  []int
	offPitches []int
}

func (r *recordingListener) NoteOn(key, pitch int) {
	r.ons = append(r.ons, key)
	r.onPitches = append(r.onPitches, pitch)
}

func (r *recordingListener) NoteOff(key, pitch int) {
	r.offs = append(r.offs, key)
	r.offPitches = append(r.offPitches, pitch)
}
