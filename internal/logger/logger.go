// Package logger provides levelled logging for memquery.
// Messages go to stderr through a charmbracelet/log logger. Verbose mode
// (the --verbose flag) lowers the level to debug so the query pipeline
// can be followed step by step.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu        sync.RWMutex
	verbose   bool
	jsonOut   bool
	baseLevel           = log.InfoLevel
	output    io.Writer = os.Stderr
	std                 = newLogger(os.Stderr, log.InfoLevel)
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: w == os.Stderr,
	})
	if jsonOut {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}

// SetVerbose enables or disables verbose (debug) logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	std.SetLevel(effectiveLevel())
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetLevel sets the minimum level when verbose mode is off.
// Accepts debug, info, warn, error. Unknown values return an error
// and leave the level unchanged.
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	mu.Lock()
	defer mu.Unlock()
	baseLevel = lvl
	std.SetLevel(effectiveLevel())
	return nil
}

// SetJSON switches between text and JSON output. The choice survives
// SetOutput.
func SetJSON(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOut = enabled
	if enabled {
		std.SetFormatter(log.JSONFormatter)
		return
	}
	std.SetFormatter(log.TextFormatter)
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	std = newLogger(w, effectiveLevel())
}

// effectiveLevel returns the active level (caller must hold lock).
func effectiveLevel() log.Level {
	if verbose {
		return log.DebugLevel
	}
	return baseLevel
}

// Debug logs a debug message. Printed only in verbose mode.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Debugf(format, args...)
}

// Section logs a section header at debug level.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	std.Debug("=== " + name + " ===")
}

// Info logs an informational message.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	std.Errorf(format, args...)
}

// With returns a logger carrying the given key/value pairs on every line.
// The returned logger shares the current output and level.
func With(keyvals ...any) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std.With(keyvals...)
}

// Writer returns the current log output.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}
