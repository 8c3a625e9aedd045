// Package analysis measures rendered synth output.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	minFFTSize = 256
	maxFFTSize = 1 << 16
)

// Report summarises a rendered stereo stream.
type Report struct {
	Frames      int
	PeakDBFS    float64
	RMSDBFS     float64
	Clipped     int
	DominantHz  float64
	FFTSize     int
	SampleRate  int
	DurationSec float64
}

func (r Report) String() string {
	return fmt.Sprintf("%d frames (%.3fs), peak %.1f dBFS, rms %.1f dBFS, %d clipped, dominant %.1f Hz",
		r.Frames, r.DurationSec, r.PeakDBFS, r.RMSDBFS, r.Clipped, r.DominantHz)
}

// Analyze measures interleaved stereo int16 samples. The dominant frequency
// is taken from the loudest stretch of the mono downmix.
func Analyze(interleaved []int16, sampleRate int) (Report, error) {
	if sampleRate <= 0 {
		return Report{}, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	frames := len(interleaved) / 2
	rep := Report{
		Frames:      frames,
		SampleRate:  sampleRate,
		DurationSec: float64(frames) / float64(sampleRate),
		PeakDBFS:    math.Inf(-1),
		RMSDBFS:     math.Inf(-1),
	}
	if frames == 0 {
		return rep, nil
	}

	peak := 0.0
	sum := 0.0
	mono := make([]float64, frames)
	for i := 0; i < frames*2; i++ {
		s := interleaved[i]
		if s == math.MaxInt16 || s == math.MinInt16 {
			rep.Clipped++
		}
		v := float64(s) / 32768.0
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sum += v * v
		mono[i/2] += 0.5 * v
	}
	rep.PeakDBFS = linToDB(peak)
	rep.RMSDBFS = linToDB(math.Sqrt(sum / float64(frames*2)))

	n := fftSizeFor(frames)
	if n == 0 {
		return rep, nil
	}
	start := loudestWindow(mono, n)
	hz, err := DominantFrequency(mono[start:start+n], sampleRate)
	if err != nil {
		return rep, err
	}
	rep.DominantHz = hz
	rep.FFTSize = n
	return rep, nil
}

// DominantFrequency returns the frequency of the strongest spectral peak of
// mono samples, refined by Gaussian interpolation over a Hann window. Only
// the first power-of-two stretch of the input is used.
func DominantFrequency(samples []float64, sampleRate int) (float64, error) {
	n := fftSizeFor(len(samples))
	if n == 0 {
		return 0, fmt.Errorf("need at least %d samples, got %d", minFFTSize, len(samples))
	}
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return 0, fmt.Errorf("fft plan: %w", err)
	}

	buf := make([]float64, n)
	for i := range buf {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		buf[i] = samples[i] * w
	}
	spec := make([]complex128, n/2+1)
	plan.Forward(spec, buf)

	best := 0
	bestMag := 0.0
	for k := 1; k < n/2; k++ {
		if m := cmplx.Abs(spec[k]); m > bestMag {
			best, bestMag = k, m
		}
	}
	if best == 0 {
		return 0, nil
	}

	offset := 0.0
	a := math.Log(cmplx.Abs(spec[best-1]) + 1e-300)
	b := math.Log(bestMag)
	c := math.Log(cmplx.Abs(spec[best+1]) + 1e-300)
	if d := a - 2*b + c; d < 0 {
		offset = 0.5 * (a - c) / d
	}
	return (float64(best) + offset) * float64(sampleRate) / float64(n), nil
}

// fftSizeFor is the largest power of two not above n, or zero when n is too short.
func fftSizeFor(n int) int {
	if n < minFFTSize {
		return 0
	}
	size := minFFTSize
	for size*2 <= n && size*2 <= maxFFTSize {
		size *= 2
	}
	return size
}

// loudestWindow returns the start of the n-sample window with the most energy,
// stepping by half a window.
func loudestWindow(x []float64, n int) int {
	hop := n / 2
	best, bestEnergy := 0, -1.0
	for pos := 0; pos+n <= len(x); pos += hop {
		e := 0.0
		for _, v := range x[pos : pos+n] {
			e += v * v
		}
		if e > bestEnergy {
			best, bestEnergy = pos, e
		}
	}
	return best
}

func linToDB(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(x)
}
