// Package log holds the process-wide zap logger used by every hook.
//
// Hooks run inside the game process, so the default logger discards
// everything until the registry installs a real one.
package log

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var l atomic.Pointer[zap.Logger]

func init() {
	l.Store(zap.NewNop())
}

// L returns the current logger.
func L() *zap.Logger {
	return l.Load()
}

// Set replaces the current logger. A nil logger restores the no-op logger.
func Set(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l.Store(logger)
}

// New builds a console logger writing to the given paths at the given level.
func New(level string, paths ...string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	if len(paths) > 0 {
		cfg.OutputPaths = paths
		cfg.ErrorOutputPaths = paths
	}
	return cfg.Build()
}
