// Package logger provides the structured key/value logger used across the
// repository. It is a thin layer over zap's SugaredLogger so packages can log
// with alternating key/value pairs without importing zap directly:
//
//	log := logger.Default().With("component", "db")
//	log.Info("database opened", "path", path)
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging contract injected into components.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a child logger that always emits the given pairs.
	With(keysAndValues ...any) Logger

	// Sync flushes buffered entries.
	Sync() error
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l *zapLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{s: l.s.With(kv...)}
}

func (l *zapLogger) Sync() error { return l.s.Sync() }

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) Logger {
	return &zapLogger{s: z.Sugar()}
}

// New builds a logger at the given level ("debug", "info", "warn", "error").
// development switches to the human-readable console encoder.
func New(level string, development bool) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: invalid level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logger: build failed: %w", err)
	}
	return FromZap(z), nil
}

// MustProduction returns a JSON production logger at info level and panics
// if zap cannot be initialised.
func MustProduction() Logger {
	z, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("logger: %v", err))
	}
	return FromZap(z)
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return FromZap(zap.NewNop())
}

var (
	defaultMu sync.RWMutex
	defLogger = NewNop()
)

// Default returns the process-wide logger. It discards output until
// SetDefault is called.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defLogger
}

// SetDefault replaces the process-wide logger. A nil logger is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defLogger = l
	defaultMu.Unlock()
}

// SyncDefault flushes the process-wide logger.
func SyncDefault() {
	_ = Default().Sync()
}

// Fatal logs at error level on the default logger, flushes it and exits.
func Fatal(msg string, keysAndValues ...any) {
	l := Default()
	l.Error(msg, keysAndValues...)
	_ = l.Sync()
	os.Exit(1)
}
