// Package logger provides the shared structured logger used by the store
// and cache to report degraded conditions.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.Logger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	log = l
}

// Set replaces the global logger, e.g. with a development logger in tests.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Info(msg string, fields ...zap.Field)  { get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { get().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { get().Debug(msg, fields...) }

// Sync flushes any buffered log entries. Safe to call at shutdown.
func Sync() error {
	return get().Sync()
}
