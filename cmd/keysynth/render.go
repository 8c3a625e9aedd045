package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/cwbudde/keysynth/analysis"
	"github.com/cwbudde/keysynth/audio"
	"github.com/cwbudde/keysynth/synth"
)

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	var ef engineFlags
	ef.register(fs)
	script := fs.String("keys", "0 1 2 3 4 5 6 7 0+2+4*4", "Key script: steps of +-joined key indexes, \"-\" rests, \"*n\" repeats")
	stepLen := fs.Duration("step", 250*time.Millisecond, "Length of one script step")
	gate := fs.Float64("gate", 0.8, "Fraction of each step the keys are held (0-1]")
	output := fs.String("output", "output.wav", "Output WAV file path")
	outRate := fs.Int("output-rate", 0, "Resample the WAV to this rate in Hz (0 keeps the engine rate)")
	decayDBFS := fs.Float64("decay-dbfs", -90, "Stop the release tail once block RMS falls below this dBFS")
	decayHoldBlocks := fs.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required to stop the tail")
	maxTail := fs.Duration("max-tail", 10*time.Second, "Upper bound on the release tail")
	analyze := fs.Bool("analyze", false, "Print peak, RMS and dominant frequency of the render")
	_ = fs.Parse(args)

	if *gate <= 0 || *gate > 1 {
		return fmt.Errorf("gate must be in (0,1]")
	}
	steps, err := parseScript(*script)
	if err != nil {
		return err
	}
	eng, logger, err := ef.build()
	if err != nil {
		return err
	}

	wavSink := audio.NewWAVSink(*output, eng.SampleRate(), audio.WithOutputRate(*outRate))
	var sink audio.Sink = wavSink
	var capture *audio.MemorySink
	if *analyze {
		capture = audio.NewMemorySink()
		sink = audio.Tee(wavSink, capture)
	}
	if ef.dac {
		sink = audio.NewBuiltinDAC(sink)
	}

	fmt.Printf("Rendering %d steps of %v at %d Hz (gate %.2f)...\n", len(steps), *stepLen, eng.SampleRate(), *gate)

	r := newScriptRenderer(eng, sink)
	if err := r.play(steps, *stepLen, *gate); err != nil {
		return err
	}
	tailFrames := int(maxTail.Seconds() * float64(eng.SampleRate()))
	if err := r.tail(audio.NewDecayGate(*decayDBFS, *decayHoldBlocks), tailFrames); err != nil {
		return err
	}
	if err := sink.Close(); err != nil {
		return err
	}
	logger.Infof("last key: %s", eng.Status())

	fmt.Printf("Successfully wrote %s (%d frames, %.3fs)\n", *output, r.frames, float64(r.frames)/float64(eng.SampleRate()))
	if capture != nil {
		rep, err := analysis.Analyze(capture.Samples(), eng.SampleRate())
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		fmt.Printf("Analysis: %s\n", rep)
	}
	return nil
}

// scriptRenderer drives the engine offline, posting key bitmaps between
// mixing passes the way the scan loop would.
type scriptRenderer struct {
	eng    *synth.Engine
	sink   audio.Sink
	buf    []int16
	frames int
}

func newScriptRenderer(eng *synth.Engine, sink audio.Sink) *scriptRenderer {
	return &scriptRenderer{
		eng:  eng,
		sink: sink,
		buf:  make([]int16, eng.FramesPerBuffer()*audio.Channels),
	}
}

func (r *scriptRenderer) block() (int, error) {
	active := r.eng.Render(r.buf)
	if err := r.sink.Submit(r.buf); err != nil {
		return 0, fmt.Errorf("submit audio buffer: %w", err)
	}
	r.frames += len(r.buf) / audio.Channels
	return active, nil
}

func (r *scriptRenderer) until(frame int) error {
	for r.frames < frame {
		if _, err := r.block(); err != nil {
			return err
		}
	}
	return nil
}

func (r *scriptRenderer) play(steps []step, stepLen time.Duration, gate float64) error {
	stepFrames := int(stepLen.Seconds() * float64(r.eng.SampleRate()))
	if stepFrames < 1 {
		stepFrames = 1
	}
	start := r.frames
	for _, st := range steps {
		length := stepFrames * st.length
		r.eng.SetKeyBitmap(st.keys)
		if err := r.until(start + int(float64(length)*gate)); err != nil {
			return err
		}
		r.eng.SetKeyBitmap(0)
		start += length
		if err := r.until(start); err != nil {
			return err
		}
	}
	return nil
}

// tail renders the release until every voice is idle, the gate reports
// silence, or maxFrames have passed.
func (r *scriptRenderer) tail(g *audio.DecayGate, maxFrames int) error {
	r.eng.SetKeyBitmap(0)
	end := r.frames + maxFrames
	for r.frames < end {
		active, err := r.block()
		if err != nil {
			return err
		}
		if active == 0 || g.Observe(r.buf) {
			return nil
		}
	}
	return nil
}
