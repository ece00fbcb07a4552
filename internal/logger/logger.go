package logger

import (
	"pdf-chat-service/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger = zap.NewNop()

// New builds a zap logger for the given gin mode. Debug mode gets a
// human-readable console encoder, everything else gets JSON.
func New(mode string) (*zap.Logger, error) {
	var zc zap.Config
	if mode == "debug" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return zc.Build()
}

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) error {
	l, err := New(cfg.GinMode)
	if err != nil {
		return err
	}
	Logger = l.With(zap.String("service", cfg.ServiceName))
	Logger.Debug("Structured logging initialized", zap.String("mode", cfg.GinMode))
	return nil
}

// Sync flushes buffered entries. Errors from syncing stdout are ignored.
func Sync() {
	_ = Logger.Sync()
}
