// Package logging configures the process-wide structured logger: a leveled,
// structured replacement for printing straight to stdout behind a verbose
// flag, built on go.uber.org/zap.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu sync.Mutex
	logger *zap.SugaredLogger
)

// Init builds the global logger at the given level name ("debug", "info",
// "warn", "error"). Called once during startup by the root command's
// PersistentPreRunE (internal/cli/root.go); safe to call again in tests to
// reconfigure.
func Init(levelName string, development bool) error {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	cfg.DisableStacktrace = true

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	logger = built.Sugar()
	mu.Unlock()
	return nil
}

// L returns the global logger, lazily initialized at info level if Init was
// never called (e.g. in tests that never touch logging config).
func L() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		built, err := zap.NewProduction()
		if err != nil {
			built = zap.NewNop()
		}
		logger = built.Sugar()
	}
	return logger
}

// Sync flushes any buffered log entries; call before process exit.
func Sync() {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}
