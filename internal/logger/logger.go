// Package logger builds the zap logger shared by all components.
package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger writing to stderr at the given level.
func New(level string) *zap.SugaredLogger {
	return build(level, zapcore.Lock(os.Stderr))
}

// NewWithWriter returns a sugared logger writing to w. Dashboard mode uses
// this to redirect logs to a file so they do not interfere with the TUI.
func NewWithWriter(level string, w io.Writer) *zap.SugaredLogger {
	return build(level, zapcore.AddSync(w))
}

// NewNop returns a logger that drops all entries (useful in tests).
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func build(level string, sink zapcore.WriteSyncer) *zap.SugaredLogger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, lvl)
	return zap.New(core).Sugar()
}
