// Package logger holds the process-wide structured logger.
//
// zap with an AtomicLevel so the level can change after start-up; console
// encoding for terminals, JSON for machines. Logs go to stderr so stdout
// stays free for reports and diffs.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu          sync.RWMutex
	global      = zap.NewNop()
	atomicLevel = zap.NewAtomicLevelAt(zapcore.WarnLevel)
)

// Init replaces the global logger.
// level: debug, info, warn, error
// format: console or json
func Init(level, format string) error {
	return InitWriter(level, format, os.Stderr)
}

// InitWriter is Init with an explicit destination.
func InitWriter(level, format string, w io.Writer) error {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	var enc zapcore.Encoder
	switch format {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.TimeKey = ""
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json":
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return fmt.Errorf("unknown log format %q (expected console or json)", format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)
	mu.Lock()
	global = zap.New(core)
	atomicLevel = lvl
	mu.Unlock()
	return nil
}

// SetLevel dynamically changes the log level.
func SetLevel(level string) error {
	mu.RLock()
	defer mu.RUnlock()
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel returns the current log level.
func GetLevel() zapcore.Level {
	mu.RLock()
	defer mu.RUnlock()
	return atomicLevel.Level()
}

// L returns the global logger. Before Init it is a no-op logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// With creates a child logger with additional fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return L().Sync()
}
