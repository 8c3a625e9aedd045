package preset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cwbudde/keysynth/synth"
)

// File is the JSON schema for synth patches. Every field is optional and
// overrides only what it names.
type File struct {
	Osc1        *OscSetting    `json:"osc1,omitempty"`
	Osc2        *OscSetting    `json:"osc2,omitempty"`
	ADSR        *ADSRSetting   `json:"adsr,omitempty"`
	Scale       *ScaleSetting  `json:"scale,omitempty"`
	CustomNotes map[string]int `json:"custom_notes,omitempty"`
}

// OscSetting is a partial oscillator override. Enabled applies to osc2 only.
type OscSetting struct {
	Wave    *string  `json:"wave,omitempty"`
	Gain    *float64 `json:"gain,omitempty"`
	Enabled *bool    `json:"enabled,omitempty"`
}

// ADSRSetting holds envelope times in seconds and the sustain level.
type ADSRSetting struct {
	Attack  *float64 `json:"attack,omitempty"`
	Decay   *float64 `json:"decay,omitempty"`
	Sustain *float64 `json:"sustain,omitempty"`
	Release *float64 `json:"release,omitempty"`
}

// ScaleSetting selects a root MIDI note and a scale by name or id.
type ScaleSetting struct {
	Root *int    `json:"root,omitempty"`
	Kind *string `json:"kind,omitempty"`
}

// LoadJSON loads a preset JSON file and applies it on top of the default
// configuration.
func LoadJSON(path string) (*synth.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes preset JSON and applies it on top of the default
// configuration.
func Parse(b []byte) (*synth.Config, error) {
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	cfg := synth.NewDefaultConfig()
	if err := ApplyFile(cfg, &f); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFile validates a parsed preset and applies it onto dst. dst is left
// untouched when validation fails.
func ApplyFile(dst *synth.Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}

	next := *dst
	if f.Osc1 != nil {
		if f.Osc1.Enabled != nil {
			return fmt.Errorf("osc1.enabled is not supported, oscillator 1 is always on")
		}
		if err := applyOsc(&next.Osc1, f.Osc1, "osc1"); err != nil {
			return err
		}
	}
	if f.Osc2 != nil {
		if err := applyOsc(&next.Osc2, f.Osc2, "osc2"); err != nil {
			return err
		}
		if f.Osc2.Enabled != nil {
			next.Osc2Enabled = *f.Osc2.Enabled
		}
	}
	if f.ADSR != nil {
		if err := applyADSR(&next.Envelope, f.ADSR); err != nil {
			return err
		}
	}
	if f.Scale != nil {
		root := next.Scale.Root
		kind := next.Scale.Kind
		if f.Scale.Root != nil {
			if *f.Scale.Root < 0 || *f.Scale.Root > 127 {
				return fmt.Errorf("scale.root must be in [0,127]")
			}
			root = *f.Scale.Root
		}
		if f.Scale.Kind != nil {
			k, err := synth.ParseScaleKind(*f.Scale.Kind)
			if err != nil {
				return fmt.Errorf("scale.kind: %w", err)
			}
			kind = k
		}
		if !next.Scale.SetScale(root, kind) {
			return fmt.Errorf("scale %s from root %d runs past pitch %d", kind, root, synth.MaxPitch)
		}
	}

	if len(f.CustomNotes) > 0 {
		keys := make([]int, 0, len(f.CustomNotes))
		for k, pitch := range f.CustomNotes {
			key, err := strconv.Atoi(k)
			if err != nil || key < 0 || key >= synth.NumKeys {
				return fmt.Errorf("invalid custom_notes key %q (expected 0..%d)", k, synth.NumKeys-1)
			}
			if pitch < 0 || pitch > 127 {
				return fmt.Errorf("custom_notes[%d] must be in [0,127]", key)
			}
			keys = append(keys, key)
		}
		sort.Ints(keys)
		for _, key := range keys {
			next.Scale.SetCustomNote(key, f.CustomNotes[strconv.Itoa(key)])
		}
	}

	*dst = next
	return nil
}

func applyOsc(dst *synth.OscConfig, s *OscSetting, name string) error {
	if s.Wave != nil {
		w, err := synth.ParseWaveform(*s.Wave)
		if err != nil {
			return fmt.Errorf("%s.wave: %w", name, err)
		}
		dst.Wave = w
	}
	if s.Gain != nil {
		if !inUnit(*s.Gain) {
			return fmt.Errorf("%s.gain must be in [0,1]", name)
		}
		dst.Gain = *s.Gain
	}
	return nil
}

func applyADSR(dst *synth.EnvelopeParams, s *ADSRSetting) error {
	times := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"attack", s.Attack, &dst.Attack},
		{"decay", s.Decay, &dst.Decay},
		{"release", s.Release, &dst.Release},
	}
	for _, tt := range times {
		if tt.src == nil {
			continue
		}
		if math.IsNaN(*tt.src) || math.IsInf(*tt.src, 0) || *tt.src <= 0 {
			return fmt.Errorf("adsr.%s must be > 0 seconds", tt.name)
		}
		*tt.dst = *tt.src
	}
	if s.Sustain != nil {
		if !inUnit(*s.Sustain) {
			return fmt.Errorf("adsr.sustain must be in [0,1]")
		}
		dst.Sustain = *s.Sustain
	}
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// FromConfig describes cfg completely. Custom maps are written out key by
// key; generated scales only need their root and kind.
func FromConfig(cfg *synth.Config) *File {
	wave := func(w synth.Waveform) *string {
		s := w.String()
		return &s
	}
	gain := func(g float64) *float64 { return &g }
	enabled := cfg.Osc2Enabled
	root := cfg.Scale.Root
	kind := cfg.Scale.Kind.String()
	env := cfg.Envelope

	f := &File{
		Osc1: &OscSetting{Wave: wave(cfg.Osc1.Wave), Gain: gain(cfg.Osc1.Gain)},
		Osc2: &OscSetting{Wave: wave(cfg.Osc2.Wave), Gain: gain(cfg.Osc2.Gain), Enabled: &enabled},
		ADSR: &ADSRSetting{
			Attack:  &env.Attack,
			Decay:   &env.Decay,
			Sustain: &env.Sustain,
			Release: &env.Release,
		},
		Scale: &ScaleSetting{Root: &root, Kind: &kind},
	}
	if cfg.Scale.Kind == synth.ScaleCustom {
		f.CustomNotes = make(map[string]int, synth.NumKeys)
		for k, p := range cfg.Scale.Pitches {
			f.CustomNotes[strconv.Itoa(k)] = p
		}
	}
	return f
}

// SaveJSON writes cfg as an indented preset file.
func SaveJSON(path string, cfg *synth.Config) error {
	b, err := json.MarshalIndent(FromConfig(cfg), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
