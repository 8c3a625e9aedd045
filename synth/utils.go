package synth

import (
	"fmt"
	"math"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchToFrequency converts a MIDI pitch number to Hz (12-TET, A4 = 69 = 440 Hz).
func PitchToFrequency(pitch int) float64 {
	const a4Freq = 440.0
	const a4Note = 69
	return a4Freq * math.Pow(2, float64(pitch-a4Note)/12.0)
}

// NoteName renders a pitch as name plus octave, e.g. 60 -> "C4".
func NoteName(pitch int) string {
	idx := pitch % 12
	if idx < 0 {
		idx += 12
	}
	octave := floorDiv(pitch, 12) - 1
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampi(x, lo, hi int) int {
	return min(max(x, lo), hi)
}

func saturate16(x int32) int16 {
	if x > MaxAmplitude {
		return MaxAmplitude
	}
	if x < -MaxAmplitude {
		return -MaxAmplitude
	}
	return int16(x)
}
