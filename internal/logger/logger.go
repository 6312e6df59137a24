package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger at the given level. Development mode uses the
// console encoder, production the JSON one.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	loggerConfig := zap.NewProductionConfig()
	if development {
		loggerConfig = zap.NewDevelopmentConfig()
	}
	loggerConfig.Level = zap.NewAtomicLevelAt(lvl)
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return loggerConfig.Build()
}

// NewLogger returns a development logger at debug level and panics if it
// cannot be built
func NewLogger() *zap.Logger {
	logger, err := New("debug", true)
	if nil != err {
		panic(err)
	}
	return logger
}
