package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/keysynth/synth"
)

// step holds a key chord for a number of script steps.
type step struct {
	keys   uint16
	length int
}

// parseScript reads a whitespace or comma separated list of steps. A step is
// "-" for a rest or "+"-joined key indexes ("0+4+7"), optionally followed by
// "*n" to last n steps.
func parseScript(s string) ([]step, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty key script")
	}

	steps := make([]step, 0, len(fields))
	for _, f := range fields {
		body, count, hasCount := strings.Cut(f, "*")
		st := step{length: 1}
		if hasCount {
			n, err := strconv.Atoi(count)
			if err != nil || n < 1 {
				return nil, fmt.Errorf("step %q: bad repeat count", f)
			}
			st.length = n
		}
		if body != "-" {
			for _, k := range strings.Split(body, "+") {
				key, err := strconv.Atoi(k)
				if err != nil || key < 0 || key >= synth.NumKeys {
					return nil, fmt.Errorf("step %q: key %q not in 0..%d", f, k, synth.NumKeys-1)
				}
				st.keys |= 1 << uint(key)
			}
		}
		steps = append(steps, st)
	}
	return steps, nil
}
