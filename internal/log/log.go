// Package log is the leveled logger shared by the synth, the scanner and the
// command line tools.
package log

import (
	"io"
	"log"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// LevelFromString parses a level name case-insensitively. Unknown names map
// to LevelInfo.
func LevelFromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "NONE", "OFF":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Logger prefixes each line with its level and an optional component name.
// The level may be changed while other goroutines log.
type Logger struct {
	logger    *log.Logger
	level     atomic.Int32
	component string
}

func New(out io.Writer, level Level) *Logger {
	l := &Logger{
		logger: log.New(out, "", log.LstdFlags|log.Lmicroseconds),
	}
	l.level.Store(int32(level))
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelNone)
}

// With returns a logger sharing output and level semantics but tagging lines
// with component.
func (l *Logger) With(component string) *Logger {
	c := &Logger{logger: l.logger, component: component}
	c.level.Store(l.level.Load())
	return c
}

func (l *Logger) printf(level Level, format string, v ...interface{}) {
	if l == nil || Level(l.level.Load()) > level {
		return
	}
	prefix := level.String() + ": "
	if l.component != "" {
		prefix += l.component + ": "
	}
	l.logger.Printf(prefix+format, v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) { l.printf(LevelDebug, format, v...) }
func (l *Logger) Infof(format string, v ...interface{})  { l.printf(LevelInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.printf(LevelWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.printf(LevelError, format, v...) }

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) Level() Level {
	return Level(l.level.Load())
}
