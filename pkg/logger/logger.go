
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	s *zap.SugaredLogger
}

// New builds a console logger. Debug output is only enabled when verbose is set.
func New(verbose bool) *Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return &Logger{s: z.Sugar()}
}

func Nop() *Logger { return &Logger{s: zap.NewNop().Sugar()} }

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Debugf(format string, args ...any) {
	l.s.Debugf(format, args...)
}
func (l *Logger) Infof(format string, args ...any) {
	l.s.Infof(format, args...)
}
func (l *Logger) Warnf(format string, args ...any) {
	l.s.Warnf(format, args...)
}
func (l *Logger) Errorf(format string, args ...any) {
	l.s.Errorf(format, args...)
}

func (l *Logger) Sync() error { return l.s.Sync() }
