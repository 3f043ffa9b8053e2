// Package logging provides the leveled logger used throughout the bridge.
//
// The interface mirrors the shape of a typical leveled logger used by
// long-running AV pipelines: a SetLevel to adjust verbosity at runtime,
// a generic Log entry point, and convenience methods per level that take
// a message followed by alternating key/value pairs. Output is handled
// by zap, with lumberjack providing on-disk rotation for the file sink.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, with the same values as zapcore's (Fatal is
// zapcore.FatalLevel).
const (
	Debug int8 = iota - 1
	Info
	Warning
	Error
	Fatal int8 = 5
)

// Logger is the leveled logging interface used by every package in this
// module. Callers pass a message followed by alternating key/value pairs,
// e.g. l.Error("encode failed", "buffer", idx, "error", err).
type Logger interface {
	SetLevel(level int8)
	Log(level int8, message string, params ...interface{})
	Debug(message string, params ...interface{})
	Info(message string, params ...interface{})
	Warning(message string, params ...interface{})
	Error(message string, params ...interface{})
	Fatal(message string, params ...interface{})
}

// zapLogger adapts zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	level *zap.AtomicLevel
}

// Config controls where log output goes and how it is rotated.
type Config struct {
	// FilePath is the destination for rotated file output. If empty, only
	// stderr is used.
	FilePath string

	// MaxSizeMB, MaxBackups and MaxAgeDays configure lumberjack rotation.
	// Zero values fall back to lumberjack's own defaults.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Level is the initial log level.
	Level int8
}

// New returns a Logger that writes to stderr and, if c.FilePath is set,
// to a rotated log file via lumberjack.
func New(c Config) Logger {
	level := zap.NewAtomicLevelAt(zapcore.Level(c.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}
	if c.FilePath != "" {
		rotate := &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotate), level))
	}

	base := zap.New(zapcore.NewTee(cores...))
	return &zapLogger{base: base, sugar: base.Sugar(), level: &level}
}

func (l *zapLogger) SetLevel(level int8) { l.level.SetLevel(zapcore.Level(level)) }

func (l *zapLogger) Log(level int8, message string, params ...interface{}) {
	switch {
	case level <= Debug:
		l.sugar.Debugw(message, params...)
	case level == Info:
		l.sugar.Infow(message, params...)
	case level == Warning:
		l.sugar.Warnw(message, params...)
	case level == Error:
		l.sugar.Errorw(message, params...)
	default:
		l.sugar.Fatalw(message, params...)
	}
}

func (l *zapLogger) Debug(message string, params ...interface{})   { l.Log(Debug, message, params...) }
func (l *zapLogger) Info(message string, params ...interface{})    { l.Log(Info, message, params...) }
func (l *zapLogger) Warning(message string, params ...interface{}) { l.Log(Warning, message, params...) }
func (l *zapLogger) Error(message string, params ...interface{})   { l.Log(Error, message, params...) }
func (l *zapLogger) Fatal(message string, params ...interface{})   { l.Log(Fatal, message, params...) }
