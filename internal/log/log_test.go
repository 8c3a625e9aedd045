package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"off", LevelNone},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Fatalf("LevelFromString(%q): got=%v want=%v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)
	l.Debugf("hidden %d", 1)
	l.Infof("hidden %d", 2)
	l.Warnf("shown %d", 3)
	l.With("engine").Errorf("shown %d", 4)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug/info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "WARN: shown 3") {
		t.Fatalf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "ERROR: engine: shown 4") {
		t.Fatalf("missing component error line in %q", out)
	}

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debugf("now visible")
	if !strings.Contains(buf.String(), "DEBUG: now visible") {
		t.Fatalf("expected debug line after SetLevel, got %q", buf.String())
	}
}

func TestNilAndDiscardLoggersAreSafe(t *testing.T) {
	var l *Logger
	l.Infof("no panic")
	Discard().Errorf("dropped")
}
