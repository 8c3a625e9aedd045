package control

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cwbudde/keysynth/synth"
)

func TestParseCustomNotes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []synth.KeyPitch
	}{
		{"empty", "", nil},
		{"single", "0:60", []synth.KeyPitch{{Key: 0, Pitch: 60}}},
		{"list", "0:60,1:62,15:84", []synth.KeyPitch{{Key: 0, Pitch: 60}, {Key: 1, Pitch: 62}, {Key: 15, Pitch: 84}}},
		{"spaces", " 2 : 64 , 3:65", []synth.KeyPitch{{Key: 2, Pitch: 64}, {Key: 3, Pitch: 65}}},
		{"trailing comma", "4:67,", []synth.KeyPitch{{Key: 4, Pitch: 67}}},
		{"malformed skipped", "x:60,5,6:y,7:71", []synth.KeyPitch{{Key: 7, Pitch: 71}}},
		{"out of range kept", "16:60,-1:40", []synth.KeyPitch{{Key: 16, Pitch: 60}, {Key: -1, Pitch: 40}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCustomNotes(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("got=%v want=%v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("got=%v want=%v", got, tt.want)
				}
			}
		})
	}
}

func TestFormatCustomNotesParsesBack(t *testing.T) {
	m := synth.NewScaleMapper(60, synth.ScaleMajor)
	s := FormatCustomNotes(m.Pitches)
	if !strings.HasPrefix(s, "0:60,1:62,2:64,") || !strings.HasSuffix(s, ",15:86") {
		t.Fatalf("unexpected format: %s", s)
	}
	parsed := ParseCustomNotes(s)
	if len(parsed) != synth.NumKeys {
		t.Fatalf("got %d pairs", len(parsed))
	}
	for k, kp := range parsed {
		if kp.Key != k || kp.Pitch != m.Pitches[k] {
			t.Fatalf("pair %d got=%v", k, kp)
		}
	}
}

func TestStatusJSON(t *testing.T) {
	if got := StatusJSON(synth.Status{Key: -1}); got != `{"note": "None"}` {
		t.Fatalf("got=%s", got)
	}
	got := StatusJSON(synth.Status{Valid: true, Key: 2, Pitch: 64, Name: "E4"})
	if got != `{"note": "K3 (E4)"}` {
		t.Fatalf("got=%s", got)
	}
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text, res.IsError
	case *mcp.TextContent:
		return c.Text, res.IsError
	default:
		t.Fatalf("unexpected content %T", c)
	}
	return "", false
}

func newTestController() (*Controller, *synth.Engine) {
	eng := synth.NewEngine(44100, 64, nil)
	return NewController(eng, nil), eng
}

func TestSetWaveformTool(t *testing.T) {
	c, eng := newTestController()
	if _, isErr := call(t, c.setWaveform, map[string]any{"osc": 2.0, "wave": "saw"}); isErr {
		t.Fatalf("unexpected tool error")
	}
	if eng.Config().Osc2.Wave != synth.WaveSawtooth {
		t.Fatalf("osc2 not updated: %s", eng.Config().Osc2.Wave)
	}

	bad := []map[string]any{
		{"osc": 3.0, "wave": "sine"},
		{"osc": 1.0, "wave": "noise"},
		{"wave": "sine"},
	}
	for _, args := range bad {
		if _, isErr := call(t, c.setWaveform, args); !isErr {
			t.Fatalf("expected tool error for %v", args)
		}
	}
	if eng.Config().Osc1.Wave != synth.WaveSine {
		t.Fatalf("rejected request changed osc1")
	}
}

func TestSetGainAndEnableTools(t *testing.T) {
	c, eng := newTestController()
	if _, isErr := call(t, c.setGain, map[string]any{"osc": 2.0, "gain": 0.6}); isErr {
		t.Fatalf("unexpected tool error")
	}
	if _, isErr := call(t, c.setGain, map[string]any{"osc": 1.0, "gain": 1.5}); !isErr {
		t.Fatalf("expected error for gain > 1")
	}
	if _, isErr := call(t, c.setOsc2Enabled, map[string]any{"enabled": true}); isErr {
		t.Fatalf("unexpected tool error")
	}
	cfg := eng.Config()
	if cfg.Osc2.Gain != 0.6 || !cfg.Osc2Enabled || cfg.Osc1.Gain != 1 {
		t.Fatalf("unexpected config: %+v enabled=%t", cfg.Osc2, cfg.Osc2Enabled)
	}
}

func TestSetADSRTool(t *testing.T) {
	c, eng := newTestController()
	text, isErr := call(t, c.setADSR, map[string]any{"attack": 0.0, "decay": 0.2, "sustain": 0.8, "release": 1.0})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	want := synth.EnvelopeParams{Attack: 0.001, Decay: 0.2, Sustain: 0.8, Release: 1}
	if got := eng.Config().Envelope; got != want {
		t.Fatalf("got=%+v want=%+v", got, want)
	}
	if !strings.Contains(text, "A=0.001s") {
		t.Fatalf("reply should show the clamped attack: %s", text)
	}
	if _, isErr := call(t, c.setADSR, map[string]any{"attack": 0.1, "decay": 0.1, "sustain": 2.0, "release": 0.1}); !isErr {
		t.Fatalf("expected error for sustain > 1")
	}
	if _, isErr := call(t, c.setADSR, map[string]any{"attack": 0.1, "decay": 0.1, "sustain": 0.5}); !isErr {
		t.Fatalf("expected error for missing release")
	}
}

func TestScaleAndCustomNoteTools(t *testing.T) {
	c, eng := newTestController()
	if _, isErr := call(t, c.setScale, map[string]any{"root": 57.0, "kind": "minor"}); isErr {
		t.Fatalf("unexpected tool error")
	}
	if cfg := eng.Config(); cfg.Scale.Kind != synth.ScaleMinor || cfg.Scale.Pitches[0] != 57 {
		t.Fatalf("scale not applied: %s %v", cfg.Scale.Kind, cfg.Scale.Pitches)
	}
	if _, isErr := call(t, c.setScale, map[string]any{"root": 200.0, "kind": "major"}); !isErr {
		t.Fatalf("expected error for root > 127")
	}
	if _, isErr := call(t, c.setScale, map[string]any{"root": 110.0, "kind": "pentatonic major"}); !isErr {
		t.Fatalf("expected error for a layout past pitch 127")
	}
	if cfg := eng.Config(); cfg.Scale.Kind != synth.ScaleMinor || cfg.Scale.Pitches[0] != 57 {
		t.Fatalf("rejected scale applied: %s %v", cfg.Scale.Kind, cfg.Scale.Pitches)
	}

	if _, isErr := call(t, c.setCustomNotes, map[string]any{"key_data": "0:48,20:50,1:49"}); isErr {
		t.Fatalf("unexpected tool error")
	}
	cfg := eng.Config()
	if cfg.Scale.Kind != synth.ScaleCustom || cfg.Scale.Pitches[0] != 48 || cfg.Scale.Pitches[1] != 49 {
		t.Fatalf("custom notes not applied: %s %v", cfg.Scale.Kind, cfg.Scale.Pitches)
	}
	if _, isErr := call(t, c.setCustomNotes, map[string]any{"key_data": "2:300"}); !isErr {
		t.Fatalf("expected error for pitch > 127")
	}
	if eng.Config().Scale.Pitches[2] == 300 {
		t.Fatalf("rejected pitch applied")
	}
}

func TestStatusTool(t *testing.T) {
	c, eng := newTestController()
	text, _ := call(t, c.status, nil)
	if text != `{"note": "None"}` {
		t.Fatalf("got=%s", text)
	}
	eng.SetKeyBitmap(1 << 2)
	eng.Render(make([]int16, 2*eng.FramesPerBuffer()))
	text, _ = call(t, c.status, nil)
	if text != `{"note": "K3 (E4)"}` {
		t.Fatalf("got=%s", text)
	}
}

func TestPresetTools(t *testing.T) {
	c, eng := newTestController()
	eng.SetWaveform(1, synth.WaveTriangle)
	eng.SetCustomNote(3, 70)

	text, _ := call(t, c.getConfig, nil)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		t.Fatalf("get_config is not JSON: %v", err)
	}
	if _, ok := decoded["custom_notes"]; !ok {
		t.Fatalf("custom map missing from config: %s", text)
	}

	path := filepath.Join(t.TempDir(), "p.json")
	if _, isErr := call(t, c.savePreset, map[string]any{"path": path}); isErr {
		t.Fatalf("save_preset failed")
	}
	saved := *eng.Config()

	eng.SetScale(48, synth.ScaleMajor)
	eng.SetWaveform(1, synth.WaveSine)
	if _, isErr := call(t, c.loadPreset, map[string]any{"path": path}); isErr {
		t.Fatalf("load_preset failed")
	}
	if *eng.Config() != saved {
		t.Fatalf("loaded config differs:\n got=%+v\nwant=%+v", *eng.Config(), saved)
	}
	if _, isErr := call(t, c.loadPreset, map[string]any{"path": filepath.Join(t.TempDir(), "missing.json")}); !isErr {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewMCPServerRegistersTools(t *testing.T) {
	c, _ := newTestController()
	if s := NewMCPServer(c, "test"); s == nil {
		t.Fatalf("nil server")
	}
}

type fakeKeys struct {
	mu   sync.Mutex
	down map[int]bool
}

func (k *fakeKeys) Press(key int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.down[key] = true
}

func (k *fakeKeys) Release(key int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.down, key)
}

func (k *fakeKeys) held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.down)
}

func TestPlayKeysTool(t *testing.T) {
	c, _ := newTestController()
	if _, isErr := call(t, c.playKeys, map[string]any{"keys": "0"}); !isErr {
		t.Fatalf("expected error without a key matrix")
	}

	keys := &fakeKeys{down: map[int]bool{}}
	c.SetKeys(keys)
	if _, isErr := call(t, c.playKeys, map[string]any{"keys": "0,16"}); !isErr {
		t.Fatalf("expected error for key 16")
	}
	if _, isErr := call(t, c.playKeys, map[string]any{"keys": "1", "duration": 11.0}); !isErr {
		t.Fatalf("expected error for long duration")
	}
	if keys.held() != 0 {
		t.Fatalf("rejected request pressed keys")
	}

	if _, isErr := call(t, c.playKeys, map[string]any{"keys": "0, 4,7", "duration": 0.05}); isErr {
		t.Fatalf("unexpected tool error")
	}
	if keys.held() != 3 {
		t.Fatalf("got %d keys held want 3", keys.held())
	}
	deadline := time.Now().Add(2 * time.Second)
	for keys.held() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("keys never released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
