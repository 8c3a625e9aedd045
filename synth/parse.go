package synth

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseWaveform accepts a waveform name in any case ("sine", "square",
// "saw"/"sawtooth", "triangle") or its numeric id.
func ParseWaveform(s string) (Waveform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "sine":
		return WaveSine, nil
	case "square":
		return WaveSquare, nil
	case "saw", "sawtooth":
		return WaveSawtooth, nil
	case "triangle", "tri":
		return WaveTriangle, nil
	}
	if id, err := strconv.Atoi(s); err == nil && Waveform(id).Valid() {
		return Waveform(id), nil
	}
	return 0, fmt.Errorf("unknown waveform %q", s)
}

// ParseScaleKind accepts a scale name in any case, with or without
// separators ("pentatonic_major", "PentatonicMajor"), or its numeric id.
func ParseScaleKind(s string) (ScaleKind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", "-", "", " ", "").Replace(norm)
	switch norm {
	case "major":
		return ScaleMajor, nil
	case "minor":
		return ScaleMinor, nil
	case "pentatonicmajor", "pentmajor":
		return ScalePentatonicMajor, nil
	case "pentatonicminor", "pentminor":
		return ScalePentatonicMinor, nil
	case "custom":
		return ScaleCustom, nil
	}
	if id, err := strconv.Atoi(norm); err == nil && ScaleKind(id).Valid() {
		return ScaleKind(id), nil
	}
	return 0, fmt.Errorf("unknown scale %q", s)
}
