package logs

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/fsandov/ingestion-sdk/pkg/env"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *Logger
	initOnce     sync.Once
)

type Logger struct {
	zap     *zap.Logger
	appName string
}

// NewLogger builds the process-wide logger once. JSON output in remote
// environments, console output everywhere else.
func NewLogger(opts ...zap.Option) *Logger {
	initOnce.Do(func() {
		opts = append(opts, zap.AddCallerSkip(2))

		var zapLogger *zap.Logger
		if env.IsRemote() {
			cfg := zap.NewProductionConfig()
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
			zapLogger, _ = cfg.Build(append(opts, zap.AddCaller())...)
		} else {
			cfg := zap.NewDevelopmentConfig()
			zapLogger, _ = cfg.Build(append(opts, zap.AddCaller())...)
		}
		if zapLogger == nil {
			zapLogger = zap.NewNop()
		}

		globalLogger = &Logger{
			zap:     zapLogger,
			appName: os.Getenv("APP_NAME"),
		}
		zap.ReplaceGlobals(zapLogger)
	})
	return globalLogger
}

// New wraps an existing zap logger. The package-level logger is left untouched.
func New(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &Logger{zap: z}
}

func GetLogger() *Logger {
	if globalLogger == nil {
		return NewLogger()
	}
	return globalLogger
}

func Info(ctx context.Context, msg string, fields ...any) {
	GetLogger().Info(ctx, msg, fields...)
}
func Warn(ctx context.Context, msg string, fields ...any) {
	GetLogger().Warn(ctx, msg, fields...)
}
func Error(ctx context.Context, msg string, fields ...any) {
	GetLogger().Error(ctx, msg, fields...)
}
func Debug(ctx context.Context, msg string, fields ...any) {
	GetLogger().Debug(ctx, msg, fields...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}
func (l *Logger) Warn(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}
func (l *Logger) Error(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}
func (l *Logger) Debug(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

// Zap exposes the underlying logger for libraries that want a *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...any) {
	if ce := l.zap.Check(level, l.prefix(msg)); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func (l *Logger) prefix(msg string) string {
	if l.appName != "" {
		return "[" + l.appName + "] " + msg
	}
	return msg
}

// toZapFields accepts zap.Field, []zap.Field and alternating key/value pairs.
// A trailing key without a value is logged as orphanKey.
func toZapFields(items []any) []zap.Field {
	var out []zap.Field
	for i := 0; i < len(items); i++ {
		switch v := items[i].(type) {
		case zap.Field:
			out = append(out, v)
		case []zap.Field:
			out = append(out, v...)
		case string:
			if i+1 >= len(items) {
				out = append(out, zap.String("orphanKey", v))
				continue
			}
			out = append(out, zap.Any(v, items[i+1]))
			i++
		case error:
			out = append(out, zap.Error(v))
		default:
			out = append(out, zap.Any(fmt.Sprintf("arg%d", i), v))
		}
	}
	return out
}

func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
