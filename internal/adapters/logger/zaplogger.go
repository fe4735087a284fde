package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cryptoJournal/internal/ports"
)

// ZapLogger implements ports.Logger on top of a zap JSON logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production (JSON) zap logger at the given level.
func NewZapLogger(level LogLevel) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return &ZapLogger{sugar: z.Sugar()}, nil
}

// NewZapLoggerFrom wraps an existing zap logger.
func NewZapLoggerFrom(z *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: z.Sugar()}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func keysAndValues(fields []ports.Fields) []interface{} {
	if len(fields) == 0 || len(fields[0]) == 0 {
		return nil
	}
	kv := make([]interface{}, 0, len(fields[0])*2)
	for k, v := range fields[0] {
		kv = append(kv, k, v)
	}
	return kv
}

func (l *ZapLogger) Debug(_ context.Context, msg string, fields ...ports.Fields) {
	l.sugar.Debugw(msg, keysAndValues(fields)...)
}

func (l *ZapLogger) Info(_ context.Context, msg string, fields ...ports.Fields) {
	l.sugar.Infow(msg, keysAndValues(fields)...)
}

func (l *ZapLogger) Warn(_ context.Context, msg string, fields ...ports.Fields) {
	l.sugar.Warnw(msg, keysAndValues(fields)...)
}

func (l *ZapLogger) Error(_ context.Context, err error, msg string, fields ...ports.Fields) {
	kv := append(keysAndValues(fields), zap.Error(err))
	l.sugar.Errorw(msg, kv...)
}
