package synth

import "fmt"

// ScaleKind selects the interval pattern used to lay pitches across the keys.
// The numeric values are the ids used by the control API.
type ScaleKind int

const (
	ScaleMajor ScaleKind = iota
	ScaleMinor
	ScalePentatonicMajor
	ScalePentatonicMinor
	ScaleCustom
)

// Step intervals in semitones, repeated cyclically past the last entry.
var scaleIntervals = map[ScaleKind][]int{
	ScaleMajor:           {2, 2, 1, 2, 2, 2, 1},
	ScaleMinor:           {2, 1, 2, 2, 1, 2, 2},
	ScalePentatonicMajor: {2, 2, 3, 2, 3},
	ScalePentatonicMinor: {3, 2, 2, 3, 2},
}

func (k ScaleKind) Valid() bool {
	return k >= ScaleMajor && k <= ScaleCustom
}

func (k ScaleKind) String() string {
	switch k {
	case ScaleMajor:
		return "Major"
	case ScaleMinor:
		return "Minor"
	case ScalePentatonicMajor:
		return "PentatonicMajor"
	case ScalePentatonicMinor:
		return "PentatonicMinor"
	case ScaleCustom:
		return "Custom"
	default:
		return fmt.Sprintf("ScaleKind(%d)", int(k))
	}
}

// KeyPitch is one entry of a custom key map.
type KeyPitch struct {
	Key   int
	Pitch int
}

// ScaleMapper holds the authoritative key to pitch assignment. It is a plain
// value so that a configuration snapshot can carry a private copy of it.
type ScaleMapper struct {
	Root    int
	Kind    ScaleKind
	Pitches [NumKeys]int
}

// NewScaleMapper returns a mapper laid out for root and kind. A Custom kind
// starts from the major layout so every key has a pitch. A root that does not
// fit leaves every key at pitch 0.
func NewScaleMapper(root int, kind ScaleKind) ScaleMapper {
	var m ScaleMapper
	m.SetScale(root, ScaleMajor)
	m.SetScale(root, kind)
	return m
}

// SetScale rebuilds every entry from root when kind is not Custom. For Custom
// the existing map is preserved and only root and kind are recorded. Unknown
// kinds and roots whose layout would leave 0..MaxPitch are ignored; the
// result reports whether the mapper changed.
func (m *ScaleMapper) SetScale(root int, kind ScaleKind) bool {
	if !kind.Valid() || !ValidPitch(root) {
		return false
	}
	steps, ok := scaleIntervals[kind]
	if !ok {
		m.Root = root
		m.Kind = kind
		return true
	}
	var next [NumKeys]int
	pitch := root
	for i := range next {
		if pitch > MaxPitch {
			return false
		}
		next[i] = pitch
		pitch += steps[i%len(steps)]
	}
	m.Root = root
	m.Kind = kind
	m.Pitches = next
	return true
}

// SetCustomNote overrides one key and switches the mapper to Custom.
// Out-of-range keys and pitches are ignored.
func (m *ScaleMapper) SetCustomNote(key, pitch int) bool {
	if key < 0 || key >= NumKeys || !ValidPitch(pitch) {
		return false
	}
	m.Pitches[key] = pitch
	m.Kind = ScaleCustom
	return true
}

// ScaleFits reports whether SetScale would accept root and kind.
func ScaleFits(root int, kind ScaleKind) bool {
	var m ScaleMapper
	return m.SetScale(root, kind)
}

// ValidPitch reports whether p is a MIDI pitch.
func ValidPitch(p int) bool {
	return p >= 0 && p <= MaxPitch
}

// Pitch returns the pitch for key, or -1 for an invalid key.
func (m *ScaleMapper) Pitch(key int) int {
	if key < 0 || key >= NumKeys {
		return -1
	}
	return m.Pitches[key]
}
