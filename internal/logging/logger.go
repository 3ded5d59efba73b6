// Package logging defines the key/value Logger used across oidnpkg and
// builds the hclog-backed implementation used by the command line.
package logging

import (
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Logger provides structured logging with alternating key/value pairs.
// *hclog.Logger values satisfy it directly.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return noopLogger{}
}

// OrNop returns l, or a no-op Logger if l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// Options configures New.
type Options struct {
	Name   string
	Level  string // trace, debug, info, warn, error, off
	JSON   bool
	Output io.Writer
}

// New builds an hclog logger. An unknown or empty level means info.
func New(opts Options) hclog.Logger {
	level := hclog.LevelFromString(strings.TrimSpace(opts.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       opts.Name,
		Level:      level,
		JSONFormat: opts.JSON,
		Output:     opts.Output,
	})
}
