package utils

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	loggerMu     sync.Mutex
)

// NewLogger builds a zap logger from cfg and installs it as the process-wide logger.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:       cfg.Development,
		Encoding:          encodingOf(cfg),
		EncoderConfig:     encoderConfig(encodingOf(cfg)),
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.Development,
	}

	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		zapCfg.InitialFields = map[string]interface{}{"service": name}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	setGlobal(logger)

	return logger, nil
}

func MustNewLogger(cfg LoggingConfig) *zap.Logger {
	logger, err := NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	return logger
}

// Logger returns the process-wide logger. Before NewLogger runs it is a no-op logger,
// so library packages can log unconditionally.
func Logger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if globalLogger == nil {
		globalLogger = zap.NewNop()
	}
	return globalLogger
}

// Component returns a named child of the process-wide logger.
func Component(name string) *zap.Logger {
	return Logger().Named(name)
}

func parseLevel(raw string) zapcore.Level {
	level := zapcore.InfoLevel
	if err := level.Set(strings.ToLower(strings.TrimSpace(raw))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func encodingOf(cfg LoggingConfig) string {
	switch strings.ToLower(cfg.Encoding) {
	case "json":
		return "json"
	default:
		return "console"
	}
}

func encoderConfig(encoding string) zapcore.EncoderConfig {
	if encoding == "console" {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return encoderCfg
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "msg"
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderCfg
}

func setGlobal(logger *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	zap.ReplaceGlobals(logger)
	globalLogger = logger
}
