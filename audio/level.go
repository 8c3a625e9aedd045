package audio

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

const fullScale = 32768.0

// DBFSToLinear converts a level in dBFS to a linear amplitude where 1 is full
// scale. The fast exponential is accurate well beyond what a silence
// threshold needs.
func DBFSToLinear(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	const ln10over20 = 0.11512925464970228
	return float64(approx.FastExp(float32(db * ln10over20)))
}

// RMS is the root mean square of buf relative to full scale.
func RMS(buf []int16) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range buf {
		v := float64(s) / fullScale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// DecayGate reports when a stream has stayed below a level for a number of
// consecutive buffers.
type DecayGate struct {
	threshold float64
	hold      int
	below     int
}

// NewDecayGate uses a threshold in dBFS. hold < 1 is treated as 1.
func NewDecayGate(thresholdDBFS float64, hold int) *DecayGate {
	if hold < 1 {
		hold = 1
	}
	return &DecayGate{threshold: DBFSToLinear(thresholdDBFS), hold: hold}
}

// Observe feeds one buffer and reports whether the stream has decayed.
func (g *DecayGate) Observe(buf []int16) bool {
	if RMS(buf) < g.threshold {
		g.below++
	} else {
		g.below = 0
	}
	return g.below >= g.hold
}

// Reset forgets the quiet buffers seen so far.
func (g *DecayGate) Reset() {
	g.below = 0
}
