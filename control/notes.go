// Package control adapts external requests onto the engine's configuration
// and status surface.
package control

import (
	"strconv"
	"strings"

	"github.com/cwbudde/keysynth/synth"
)

// ParseCustomNotes reads a "key:pitch,key:pitch" list with zero-based key
// indexes. Pairs that are not two integers are skipped; range checks are
// left to the engine.
func ParseCustomNotes(data string) []synth.KeyPitch {
	var out []synth.KeyPitch
	for _, pair := range strings.Split(data, ",") {
		k, p, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		key, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		pitch, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, synth.KeyPitch{Key: key, Pitch: pitch})
	}
	return out
}

// FormatCustomNotes renders a key map in the ParseCustomNotes format.
func FormatCustomNotes(pitches [synth.NumKeys]int) string {
	var b strings.Builder
	for k, p := range pitches {
		if k > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(k))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// StatusJSON renders status the way the board's web UI polls it.
func StatusJSON(s synth.Status) string {
	return `{"note": ` + strconv.Quote(s.String()) + `}`
}
