package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sugaredLogger adapts zap to the key/value Logger interface shared by the
// market, tracker and arbitrage packages.
type sugaredLogger struct {
	s *zap.SugaredLogger
}

func (l sugaredLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l sugaredLogger) Info(msg string, args ...any) { l.s.Infow(msg, args...) }
func (l sugaredLogger) Warn(msg string, args ...any) { l.s.Warnw(msg, args...) }
func (l sugaredLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }

// newLogger logs JSON to stderr so stdout only carries the report.
func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
