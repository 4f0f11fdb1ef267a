// Package logging builds the zap logger shared across repovault. The logger
// is constructed once by the CLI and passed explicitly to every component;
// nothing in this codebase uses the zap globals.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a console logger on stderr whose level follows the -v count:
// 0 = warn, 1 = info, 2 and above = debug.
func New(verbosity int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(Level(verbosity))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// Level maps a -v count to a zap level.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// HTTPTrace reports whether per-request API logging should be enabled.
// It is the fourth verbosity tier: -vvv and beyond.
func HTTPTrace(verbosity int) bool {
	return verbosity >= 3
}
