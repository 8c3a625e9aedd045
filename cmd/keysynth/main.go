package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/keysynth/internal/log"
	"github.com/cwbudde/keysynth/preset"
	"github.com/cwbudde/keysynth/synth"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: keysynth <command> [flags]

commands:
  play     play the 4x4 key block of the terminal keyboard through the sound card
  render   render a scripted key sequence to a WAV file
  mcp      play through the sound card, controlled by MCP tools on stdin/stdout

Run "keysynth <command> -h" for the flags of a command.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "play":
		err = runPlay(os.Args[2:], false)
	case "mcp":
		err = runPlay(os.Args[2:], true)
	case "render":
		err = runRender(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// engineFlags are shared by every command.
type engineFlags struct {
	sampleRate int
	frames     int
	presetPath string
	logLevel   string
	dac        bool
}

func (f *engineFlags) register(fs *flag.FlagSet) {
	fs.IntVar(&f.sampleRate, "sample-rate", synth.DefaultSampleRate, "Engine sample rate in Hz")
	fs.IntVar(&f.frames, "frames", synth.DefaultFramesPerBuffer, "Stereo frames per audio buffer")
	fs.StringVar(&f.presetPath, "preset", "", "Preset JSON file path (optional)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error, none")
	fs.BoolVar(&f.dac, "dac", false, "Quantise output like the board's built-in 8-bit DAC")
}

func (f *engineFlags) build() (*synth.Engine, *log.Logger, error) {
	logger := log.New(os.Stderr, log.LevelFromString(f.logLevel))

	var cfg *synth.Config
	if f.presetPath != "" {
		var err error
		cfg, err = preset.LoadJSON(f.presetPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load preset %q: %w", f.presetPath, err)
		}
		logger.Infof("loaded preset %s", f.presetPath)
	}

	eng := synth.NewEngine(f.sampleRate, f.frames, cfg)
	eng.SetLogger(logger.With("engine"))
	return eng, logger, nil
}
