package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry.
const ServiceName = "carrier-engine"

var globalLogger *zap.Logger

// Init initializes the global logger.
// "production" and "staging" emit JSON; anything else gets colored console output.
// An unknown level keeps the environment's default.
func Init(environment string, level string) error {
	var config zap.Config

	switch environment {
	case "production", "staging":
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if l, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(l)
	}

	config.InitialFields = map[string]interface{}{
		"service": ServiceName,
		"env":     environment,
	}

	built, err := config.Build()
	if err != nil {
		return err
	}

	globalLogger = built
	return nil
}

// Get returns the global logger, or a no-op logger before Init.
func Get() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) *zap.Logger {
	return Get().With(zap.String("component", name))
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
