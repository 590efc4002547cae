// Package logging builds the structured logger shared by all driver components.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logger.V().
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// NewLogger returns a zap-backed logr.Logger. Messages logged with V(n) are
// emitted when n <= verbosity.
func NewLogger(development bool, verbosity int) (logr.Logger, error) {
	var cfg uberzap.Config
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	} else {
		cfg = uberzap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(int8(-verbosity)))
	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), fmt.Errorf("build zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger creates a new Zap logger using the dev mode.
func NewTestLogger() logr.Logger {
	logger, err := NewLogger(true, TRACE)
	if err != nil {
		return logr.Discard()
	}
	return logger
}

// Fatal logs err at error level, flushes the underlying sink if possible and
// terminates the process.
func Fatal(logger logr.Logger, err error, msg string, keysAndValues ...any) {
	logger.Error(err, msg, keysAndValues...)
	Sync(logger)
	os.Exit(1)
}

// Sync flushes buffered log entries of a zap-backed logger.
func Sync(logger logr.Logger) {
	if u, ok := logger.GetSink().(zapr.Underlier); ok {
		_ = u.GetUnderlying().Sync()
	}
}
