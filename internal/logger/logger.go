package logger

import (
	"os"

	"github.com/Adda-Baaj/griha/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level logger to be used across packages after Init.
var S *zap.SugaredLogger

// Logger is the structured logging surface shared by the app, the pipeline and the sinks.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// ZapLogger routes Logger calls to the package-level zap logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// Sugar exposes the underlying sugared logger (resty accepts it as its logger).
func (z *ZapLogger) Sugar() *zap.SugaredLogger { return z.sugar }

func (z *ZapLogger) InfoObj(msg, key string, obj interface{}) {
	z.sugar.Desugar().Info(msg, zap.Any(key, obj))
}

func (z *ZapLogger) DebugObj(msg, key string, obj interface{}) {
	z.sugar.Desugar().Debug(msg, zap.Any(key, obj))
}

func (z *ZapLogger) WarnObj(msg, key string, obj interface{}) {
	z.sugar.Desugar().Warn(msg, zap.Any(key, obj))
}

func (z *ZapLogger) ErrorObj(msg, key string, obj interface{}) {
	z.sugar.Desugar().Error(msg, zap.Any(key, obj))
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}

// Init initializes a zap SugaredLogger using settings from config.
func Init(cfg *config.Config) (*ZapLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(zapcore.Lock(os.Stderr)),
		parseLevel(cfg.LogLevel),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar := logger.Sugar()
	S = sugar
	return &ZapLogger{sugar: sugar}, nil
}

func parseLevel(raw string) zapcore.Level {
	switch raw {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close flushes any buffered loggers.
func Close() error {
	if S == nil {
		return nil
	}
	return S.Sync()
}

// Minimal object logging helpers -------------------------------------------------
// These are tiny wrappers that log the given object as a structured field named
// `key` and do not attempt to parse arbitrary kv arrays.
func InfoObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Info(msg, zap.Any(key, obj))
}

func DebugObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Debug(msg, zap.Any(key, obj))
}

func WarnObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Warn(msg, zap.Any(key, obj))
}

func ErrorObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Error(msg, zap.Any(key, obj))
}
