// Package logx provides structured logging functionality
package logx

import (
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger to provide a consistent interface.
// Scoped loggers resolve the global logger lazily so that a later Init
// (for example after a config reload) is picked up by every scope.
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
	scope string
}

var (
	mu           sync.RWMutex
	globalLogger *Logger
	atomicLevel  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() {
	lvl := zapcore.InfoLevel
	if IsLocalDev(os.Getenv("APP_ENV")) {
		lvl = zapcore.DebugLevel
	}
	atomicLevel.SetLevel(lvl)
	zl, err := build("console")
	if err != nil {
		panic(err)
	}
	globalLogger = &Logger{zap: zl, sugar: zl.Sugar()}
}

// IsLocalDev checks if the environment is local development
func IsLocalDev(appEnv string) bool {
	return appEnv == "local" || appEnv == "dev" || appEnv == "development"
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

func getLoggerConfig() zap.Config {
	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	config.Development = false
	config.DisableCaller = false
	config.DisableStacktrace = false
	config.Sampling = nil

	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	config.Encoding = "console"
	return config
}

func build(format string) (*zap.Logger, error) {
	config := getLoggerConfig()
	switch strings.ToLower(format) {
	case "json":
		config.Encoding = "json"
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	default:
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return config.Build(zap.AddCallerSkip(1))
}

// Init configures the global logger. Scopes created before Init follow the new configuration.
func Init(level, format string) {
	atomicLevel.SetLevel(parseLevel(level))
	zl, err := build(format)
	if err != nil {
		panic(err)
	}
	mu.Lock()
	old := globalLogger
	globalLogger = &Logger{zap: zl, sugar: zl.Sugar()}
	mu.Unlock()
	if old != nil && old.zap != nil {
		_ = old.zap.Sync()
	}
}

// GetScope returns a logger named after the given scope, e.g. logx.GetScope("auth").
func GetScope(scope string) *Logger {
	return &Logger{scope: scope}
}

// L returns the global sugar logger instance that supports slog-style key-value logging
func L() *zap.SugaredLogger {
	return Global().Sugar()
}

// GetLogger returns the underlying zap logger for advanced usage
func GetLogger() *zap.Logger {
	return Global().Zap()
}

// Global returns the global logger instance
func Global() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Sync flushes the global logger.
func Sync() error {
	return Global().Close()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) resolve() *zap.Logger {
	if l.scope == "" {
		return l.zap
	}
	g := Global()
	if g == nil || g.zap == nil {
		return nil
	}
	return g.zap.Named(l.scope)
}

// Close flushes any buffered log entries
func (l *Logger) Close() error {
	if z := l.resolve(); z != nil {
		return z.Sync()
	}
	return nil
}

// Sugar returns the sugar logger for key-value style logging
func (l *Logger) Sugar() *zap.SugaredLogger {
	if l.scope == "" {
		return l.sugar
	}
	if z := l.resolve(); z != nil {
		return z.Sugar()
	}
	return zap.NewNop().Sugar()
}

// Zap returns the underlying zap logger for structured logging
func (l *Logger) Zap() *zap.Logger {
	if z := l.resolve(); z != nil {
		return z
	}
	return zap.NewNop()
}

// With returns a scoped child carrying the given fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.Zap().With(fields...)
	return &Logger{zap: z, sugar: z.Sugar()}
}

// Debug logs a debug message with structured fields
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if z := l.resolve(); z != nil {
		z.Debug(msg, fields...)
	}
}

// Info logs an info message with structured fields
func (l *Logger) Info(msg string, fields ...zap.Field) {
	if z := l.resolve(); z != nil {
		z.Info(msg, fields...)
	}
}

// Warn logs a warning message with structured fields
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	if z := l.resolve(); z != nil {
		z.Warn(msg, fields...)
	}
}

// Error logs an error message with structured fields
func (l *Logger) Error(msg string, fields ...zap.Field) {
	if z := l.resolve(); z != nil {
		z.Error(msg, fields...)
	}
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	z := l.resolve()
	if z == nil {
		os.Exit(1)
	}
	z.Fatal(msg, fields...)
}
