package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the zap logger
type Config struct {
	// Level is one of debug, info, warn, error
	Level string
	// Development switches to a colored console encoder with caller info
	Development bool
}

// NewZapLogger builds a logger writing to stdout
func NewZapLogger(config Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(config.Level)); err != nil || config.Level == "" {
		level.SetLevel(zapcore.InfoLevel)
	}

	var encoder zapcore.Encoder
	if config.Development {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "@timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.LevelKey = "log.level"
		encoderConfig.MessageKey = "message"
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	logger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	if config.Development {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
