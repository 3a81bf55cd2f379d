// Package logger provides the leveled logger shared by every component.
// Levels are off (no output), normal (info/warn/error) and verbose
// (adds debug). Named sub-loggers prefix each line with their component
// and share level and output with their parent.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// ParseLevel maps a level name ("off", "normal", "verbose") to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "off", "quiet", "none":
		return LevelOff, nil
	case "", "normal", "info":
		return LevelNormal, nil
	case "verbose", "debug":
		return LevelVerbose, nil
	default:
		return LevelNormal, fmt.Errorf("logger: unknown level %q", name)
	}
}

type sink struct {
	mu    sync.RWMutex
	level Level
	out   *log.Logger
}

// Logger is a leveled logger. All methods are safe for concurrent use.
type Logger struct {
	sink   *sink
	prefix string
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		sink: &sink{
			level: level,
			out:   log.New(out, "", log.Ltime),
		},
	}
}

// Named returns a sub-logger whose lines are tagged with the component name.
func (l *Logger) Named(component string) *Logger {
	p := component
	if l.prefix != "" {
		p = strings.TrimSuffix(l.prefix, ": ") + "/" + component
	}
	return &Logger{sink: l.sink, prefix: p + ": "}
}

// SetLevel changes the log level at runtime for this logger and every
// logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	return l.sink.level
}

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	l.output(LevelVerbose, "[DBG] ", format, args)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.output(LevelNormal, "[INF] ", format, args)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.output(LevelNormal, "[WRN] ", format, args)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.output(LevelNormal, "[ERR] ", format, args)
}

func (l *Logger) output(min Level, tag, format string, args []any) {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()
	if l.sink.level < min {
		return
	}
	l.sink.out.Output(3, tag+l.prefix+fmt.Sprintf(format, args...))
}
