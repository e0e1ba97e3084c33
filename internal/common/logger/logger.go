// Package logger exposes the structured logging interface the workers
// share. Handlers log through Logger with loosely typed field maps; the
// worker manager owns the underlying zap core and hands adapters out.
package logger

import (
	"sort"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging surface available to job handlers.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

// New builds the root *zap.Logger from the logging config values.
// Unknown levels fall back to info, unknown formats to console.
func New(levelStr, format string) *zap.Logger {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(levelStr))

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewStructured builds a Logger directly from level and format strings.
func NewStructured(levelStr, format string) Logger {
	return &zapLogger{base: New(levelStr, format)}
}

// NewZapAdapter wraps an existing *zap.Logger as a Logger.
func NewZapAdapter(l *zap.Logger) Logger {
	return &zapLogger{base: l}
}

// NewTestLogger returns a Logger that writes through t.Log.
func NewTestLogger(t testing.TB) Logger {
	return &zapLogger{base: zaptest.NewLogger(t)}
}

// NewNoOpLogger returns a Logger that discards everything.
func NewNoOpLogger() Logger {
	return &zapLogger{base: zap.NewNop()}
}

type zapLogger struct {
	base *zap.Logger
}

func (z *zapLogger) Debug(msg string, fields map[string]interface{}) {
	z.base.Debug(msg, toZapFields(fields)...)
}

func (z *zapLogger) Info(msg string, fields map[string]interface{}) {
	z.base.Info(msg, toZapFields(fields)...)
}

func (z *zapLogger) Warn(msg string, fields map[string]interface{}) {
	z.base.Warn(msg, toZapFields(fields)...)
}

func (z *zapLogger) Error(msg string, fields map[string]interface{}) {
	z.base.Error(msg, toZapFields(fields)...)
}

func (z *zapLogger) WithFields(fields map[string]interface{}) Logger {
	return &zapLogger{base: z.base.With(toZapFields(fields)...)}
}

func (z *zapLogger) WithError(err error) Logger {
	return &zapLogger{base: z.base.With(zap.Error(err))}
}

// toZapFields converts a field map to zap fields in sorted key order, so
// log lines are stable for a given call site.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
