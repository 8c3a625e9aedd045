package control

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cwbudde/keysynth/internal/log"
	"github.com/cwbudde/keysynth/preset"
	"github.com/cwbudde/keysynth/synth"
)

// Controller validates requests before they reach the engine, which itself
// ignores anything out of range.
type Controller struct {
	eng  *synth.Engine
	keys Keys
	log  *log.Logger
}

// Keys is a switch matrix that can be played remotely, such as
// keymatrix.SimMatrix.
type Keys interface {
	Press(key int)
	Release(key int)
}

func NewController(eng *synth.Engine, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Discard()
	}
	return &Controller{eng: eng, log: logger.With("mcp")}
}

// SetKeys enables the play_keys tool.
func (c *Controller) SetKeys(k Keys) {
	c.keys = k
}

// NewMCPServer exposes the controller as MCP tools.
func NewMCPServer(c *Controller, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"keysynth",
		version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("set_waveform",
		mcp.WithDescription("Sets the waveform of oscillator 1 or 2."),
		mcp.WithNumber("osc", mcp.Required(), mcp.Description("Oscillator number (1 or 2).")),
		mcp.WithString("wave", mcp.Required(), mcp.Description("sine, square, saw or triangle (or id 0-3).")),
	), c.setWaveform)

	s.AddTool(mcp.NewTool("set_gain",
		mcp.WithDescription("Sets the gain of oscillator 1 or 2."),
		mcp.WithNumber("osc", mcp.Required(), mcp.Description("Oscillator number (1 or 2).")),
		mcp.WithNumber("gain", mcp.Required(), mcp.Description("Linear gain from 0 to 1.")),
	), c.setGain)

	s.AddTool(mcp.NewTool("set_osc2_enabled",
		mcp.WithDescription("Enables or disables the second oscillator."),
		mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("Whether oscillator 2 is mixed in.")),
	), c.setOsc2Enabled)

	s.AddTool(mcp.NewTool("set_adsr",
		mcp.WithDescription("Sets the envelope shared by all voices. Sounding notes keep their level."),
		mcp.WithNumber("attack", mcp.Required(), mcp.Description("Attack time in seconds.")),
		mcp.WithNumber("decay", mcp.Required(), mcp.Description("Decay time in seconds.")),
		mcp.WithNumber("sustain", mcp.Required(), mcp.Description("Sustain level from 0 to 1.")),
		mcp.WithNumber("release", mcp.Required(), mcp.Description("Release time in seconds.")),
	), c.setADSR)

	s.AddTool(mcp.NewTool("set_scale",
		mcp.WithDescription("Lays a scale across the 16 keys starting at a root MIDI note."),
		mcp.WithNumber("root", mcp.Required(), mcp.Description("Root MIDI note (0-127).")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("major, minor, pentatonic_major, pentatonic_minor or custom (or id 0-4).")),
	), c.setScale)

	s.AddTool(mcp.NewTool("set_custom_notes",
		mcp.WithDescription("Assigns MIDI notes to keys and switches to the custom map."),
		mcp.WithString("key_data", mcp.Required(), mcp.Description("Comma separated key:note pairs, keys 0-15, e.g. \"0:60,1:62\".")),
	), c.setCustomNotes)

	if c.keys != nil {
		s.AddTool(mcp.NewTool("play_keys",
			mcp.WithDescription("Holds keys on the matrix for a while, as if pressed by hand."),
			mcp.WithString("keys", mcp.Required(), mcp.Description("Comma separated key indexes 0-15, e.g. \"0,2,4\".")),
			mcp.WithNumber("duration", mcp.Description("Seconds to hold the keys (default 0.5, max 10).")),
		), c.playKeys)
	}

	s.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Reports the most recently triggered key and its note."),
	), c.status)

	s.AddTool(mcp.NewTool("get_config",
		mcp.WithDescription("Returns the current configuration as preset JSON."),
	), c.getConfig)

	s.AddTool(mcp.NewTool("load_preset",
		mcp.WithDescription("Loads a preset JSON file and applies it."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Preset file path.")),
	), c.loadPreset)

	s.AddTool(mcp.NewTool("save_preset",
		mcp.WithDescription("Writes the current configuration to a preset JSON file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Preset file path.")),
	), c.savePreset)

	return s
}

// ServeStdio serves MCP over stdin and stdout until ctx is cancelled or
// stdin is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer) error {
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}

func requireOsc(request mcp.CallToolRequest) (int, error) {
	osc, err := request.RequireInt("osc")
	if err != nil {
		return 0, err
	}
	if osc != 1 && osc != 2 {
		return 0, fmt.Errorf("osc must be 1 or 2, got %d", osc)
	}
	return osc, nil
}

func (c *Controller) setWaveform(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	osc, err := requireOsc(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	name, err := request.RequireString("wave")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := synth.ParseWaveform(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.eng.SetWaveform(osc, w)
	return mcp.NewToolResultText(fmt.Sprintf("Oscillator %d set to %s.", osc, w)), nil
}

func (c *Controller) setGain(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	osc, err := requireOsc(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gain, err := request.RequireFloat("gain")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if math.IsNaN(gain) || gain < 0 || gain > 1 {
		return mcp.NewToolResultError("gain must be in [0,1]"), nil
	}
	c.eng.SetGain(osc, gain)
	return mcp.NewToolResultText(fmt.Sprintf("Oscillator %d gain set to %.2f.", osc, gain)), nil
}

func (c *Controller) setOsc2Enabled(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, err := request.RequireBool("enabled")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.eng.SetOsc2Enabled(enabled)
	return mcp.NewToolResultText(fmt.Sprintf("Oscillator 2 enabled: %t.", enabled)), nil
}

func (c *Controller) setADSR(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var v [4]float64
	for i, name := range []string{"attack", "decay", "sustain", "release"} {
		f, err := request.RequireFloat(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("%s must be a non-negative number", name)), nil
		}
		v[i] = f
	}
	if v[2] > 1 {
		return mcp.NewToolResultError("sustain must be in [0,1]"), nil
	}
	c.eng.SetADSR(v[0], v[1], v[2], v[3])
	env := c.eng.Config().Envelope
	return mcp.NewToolResultText(fmt.Sprintf("ADSR set to A=%.3fs D=%.3fs S=%.2f R=%.3fs.",
		env.Attack, env.Decay, env.Sustain, env.Release)), nil
}

func (c *Controller) setScale(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := request.RequireInt("root")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !synth.ValidPitch(root) {
		return mcp.NewToolResultError("root must be in [0,127]"), nil
	}
	name, err := request.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := synth.ParseScaleKind(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !synth.ScaleFits(root, kind) {
		return mcp.NewToolResultError(fmt.Sprintf("%s from %s runs past pitch %d", kind, synth.NoteName(root), synth.MaxPitch)), nil
	}
	c.eng.SetScale(root, kind)
	return mcp.NewToolResultText(fmt.Sprintf("Scale set to %s from %s: %s.",
		kind, synth.NoteName(root), FormatCustomNotes(c.eng.Config().Scale.Pitches))), nil
}

func (c *Controller) setCustomNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := request.RequireString("key_data")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	batch := ParseCustomNotes(data)
	for _, kp := range batch {
		if !synth.ValidPitch(kp.Pitch) {
			return mcp.NewToolResultError(fmt.Sprintf("note for key %d must be in [0,127]", kp.Key)), nil
		}
	}
	c.eng.SetCustomNotes(batch)
	c.log.Debugf("applied %d custom notes", len(batch))
	return mcp.NewToolResultText("Custom scale set: " + FormatCustomNotes(c.eng.Config().Scale.Pitches)), nil
}

func (c *Controller) playKeys(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if c.keys == nil {
		return mcp.NewToolResultError("no playable key matrix attached"), nil
	}
	list, err := request.RequireString("keys")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	duration := request.GetFloat("duration", 0.5)
	if math.IsNaN(duration) || duration <= 0 || duration > 10 {
		return mcp.NewToolResultError("duration must be in (0,10] seconds"), nil
	}

	var keys []int
	for _, f := range strings.Split(list, ",") {
		k, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil || k < 0 || k >= synth.NumKeys {
			return mcp.NewToolResultError(fmt.Sprintf("invalid key %q (expected 0..%d)", f, synth.NumKeys-1)), nil
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		c.keys.Press(k)
	}
	time.AfterFunc(time.Duration(duration*float64(time.Second)), func() {
		for _, k := range keys {
			c.keys.Release(k)
		}
	})
	return mcp.NewToolResultText(fmt.Sprintf("Holding keys %v for %.2fs.", keys, duration)), nil
}

func (c *Controller) status(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(StatusJSON(c.eng.Status())), nil
}

func (c *Controller) getConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	asJSON, err := json.MarshalIndent(preset.FromConfig(c.eng.Config()), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to JSON: %w", err)
	}
	return mcp.NewToolResultText(string(asJSON)), nil
}

func (c *Controller) loadPreset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg, err := preset.LoadJSON(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.eng.SetConfig(cfg)
	return mcp.NewToolResultText("Preset loaded from " + path + "."), nil
}

func (c *Controller) savePreset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := preset.SaveJSON(path, c.eng.Config()); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c.log.Infof("preset saved to %s", path)
	return mcp.NewToolResultText("Preset saved to " + path + "."), nil
}
