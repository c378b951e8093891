package util

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger

	fallback     *zap.Logger
	fallbackOnce sync.Once

	// serviceName labels log entries and names the tracer
	serviceName = "vendor-service"
)

// InitLogger builds the process logger. Production uses JSON with ISO8601
// timestamps, anything else a colored console encoder.
func InitLogger(env, service string) error {
	if service != "" {
		serviceName = service
	}

	l, err := loggerConfig(env).Build(zap.Fields(
		zap.String("service", serviceName),
		zap.String("environment", env),
	))
	if err != nil {
		return err
	}

	logger = l
	zap.ReplaceGlobals(l)
	return nil
}

func loggerConfig(env string) zap.Config {
	if env != "production" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
	return cfg
}

// GetLogger returns the process logger, or a development logger when
// InitLogger has not run (tests, tools).
func GetLogger() *zap.Logger {
	if logger != nil {
		return logger
	}
	fallbackOnce.Do(func() {
		l, err := zap.NewDevelopment(zap.Fields(zap.String("service", serviceName)))
		if err != nil {
			l = zap.NewNop()
		}
		fallback = l
	})
	return fallback
}

// ServiceName is the name given to InitLogger or InitTracer
func ServiceName() string {
	return serviceName
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
