package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// WAVSink collects a render in memory and writes it as a 16-bit stereo WAV
// file on Close.
type WAVSink struct {
	path       string
	sampleRate int
	outRate    int

	mu      sync.Mutex
	samples []float32
	closed  bool
}

// WAVOption configures a WAVSink.
type WAVOption func(*WAVSink)

// WithOutputRate resamples the render to rate before writing.
func WithOutputRate(rate int) WAVOption {
	return func(w *WAVSink) {
		if rate > 0 {
			w.outRate = rate
		}
	}
}

func NewWAVSink(path string, sampleRate int, opts ...WAVOption) *WAVSink {
	w := &WAVSink{path: path, sampleRate: sampleRate, outRate: sampleRate}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *WAVSink) Submit(buf []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	for _, s := range buf {
		w.samples = append(w.samples, float32(s)/fullScale)
	}
	return nil
}

// Frames is the number of stereo frames collected at the engine rate.
func (w *WAVSink) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples) / Channels
}

// Close writes the file. Later calls are no-ops.
func (w *WAVSink) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	data := w.samples
	if w.outRate != w.sampleRate {
		var err error
		data, err = resampleInterleaved(data, w.sampleRate, w.outRate)
		if err != nil {
			return fmt.Errorf("resample %d Hz to %d Hz: %w", w.sampleRate, w.outRate, err)
		}
	}
	if err := writeInterleavedWAV(w.path, data, w.outRate); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

func writeInterleavedWAV(path string, samples []float32, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, Channels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: Channels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func resampleInterleaved(in []float32, fromRate, toRate int) ([]float32, error) {
	frames := len(in) / Channels
	channels := make([][]float64, Channels)
	for c := range channels {
		src := make([]float64, frames)
		for i := 0; i < frames; i++ {
			src[i] = float64(in[i*Channels+c])
		}
		r, err := dspresample.NewForRates(
			float64(fromRate),
			float64(toRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, err
		}
		channels[c] = r.Process(src)
	}

	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	out := make([]float32, n*Channels)
	for i := 0; i < n; i++ {
		for c := range channels {
			out[i*Channels+c] = float32(channels[c][i])
		}
	}
	return out, nil
}
