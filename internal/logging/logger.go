// Package logging provides the shared zap logger for quorum.
// Components obtain named loggers via Named; before Init is called every
// logger is a no-op so library code never has to nil-check.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init builds the process-wide logger. Verbose enables debug level.
// Returns the root logger so main can defer Sync.
func Init(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	mu.Lock()
	root = logger
	mu.Unlock()
	return logger, nil
}

// InitFile routes logs to a file instead of stderr so the terminal UI
// stays clean. Path may be empty, in which case logging stays disabled.
func InitFile(path string, verbose bool) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	mu.Lock()
	root = logger
	mu.Unlock()
	return logger, nil
}

// Named returns a component logger (e.g. "council", "model").
func Named(component string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(component)
}

// SetLogger replaces the root logger. Tests use this to capture output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		root = zap.NewNop()
		return
	}
	root = l
}
