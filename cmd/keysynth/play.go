package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/cwbudde/keysynth/audio"
	"github.com/cwbudde/keysynth/control"
	"github.com/cwbudde/keysynth/keymatrix"
	"github.com/cwbudde/keysynth/midiout"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func runPlay(args []string, withMCP bool) error {
	name := "play"
	if withMCP {
		name = "mcp"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var ef engineFlags
	ef.register(fs)
	queue := fs.Int("queue", audio.DefaultQueueBuffers, "Audio buffers queued ahead of the device")
	scanInterval := fs.Duration("scan-interval", 2*time.Millisecond, "Key matrix scan period")
	debounce := fs.Duration("debounce", keymatrix.DefaultDebounce, "Key debounce window")
	layout := fs.String("layout", keymatrix.DefaultLayout, "Terminal keys mapped to keys 0..15, row by row")
	hold := fs.Duration("hold", 300*time.Millisecond, "How long a terminal keystroke holds its key")
	midiPort := fs.String("midi-out", "", "Mirror notes to the MIDI output whose name contains this text")
	midiChannel := fs.Int("midi-channel", 1, "MIDI channel for -midi-out (1-16)")
	_ = fs.Parse(args)

	if !withMCP && !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("play needs an interactive terminal; use render for offline output")
	}
	if *midiChannel < 1 || *midiChannel > 16 {
		return fmt.Errorf("midi-channel must be in [1,16]")
	}

	eng, logger, err := ef.build()
	if err != nil {
		return err
	}

	matrix := keymatrix.NewSimMatrix(4, 4)
	scanner, err := keymatrix.NewScanner(matrix.RowPins(), matrix.ColPins(), keymatrix.WithDebounce(*debounce))
	if err != nil {
		return err
	}

	otoSink, err := audio.NewOtoSink(eng.SampleRate(), *queue)
	if err != nil {
		return err
	}
	var sink audio.Sink = otoSink
	if ef.dac {
		sink = audio.NewBuiltinDAC(otoSink)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warnf("%v", err)
		}
		if n := otoSink.Underruns(); n > 0 {
			logger.Warnf("%d audio underruns", n)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if *midiPort != "" {
		send, closer, err := midiout.OpenPort(*midiPort)
		if err != nil {
			return fmt.Errorf("%w (available: %s)", err, midiout.ListPorts())
		}
		defer closer()
		tap := midiout.NewTap(send, uint8(*midiChannel-1), logger)
		eng.SetNoteListener(tap)
		g.Go(func() error { return tap.Run(ctx) })
		logger.Infof("mirroring notes to MIDI output %q on channel %d", *midiPort, *midiChannel)
	}

	g.Go(func() error { return eng.Run(ctx, sink) })
	g.Go(func() error {
		return scanner.Run(ctx, *scanInterval, func(b keymatrix.Bitmap) {
			eng.SetKeyBitmap(uint16(b))
		})
	})

	if withMCP {
		c := control.NewController(eng, logger)
		c.SetKeys(matrix)
		s := control.NewMCPServer(c, version)
		logger.Infof("starting MCP server on stdio")
		g.Go(func() error {
			err := control.ServeStdio(ctx, s)
			stop()
			return err
		})
	} else {
		keys := keymatrix.NewTermKeys(matrix, *layout, *hold)
		fmt.Fprintf(os.Stderr, "Playing on %q (4 rows of 4). Esc or Ctrl-C quits.\n", *layout)
		g.Go(func() error {
			err := keys.Run(ctx)
			if errors.Is(err, keymatrix.ErrQuit) {
				stop()
				return nil
			}
			return err
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
