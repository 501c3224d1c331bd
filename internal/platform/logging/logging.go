// Package logging builds the structured zap loggers used by service processes.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode names a logger preset.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// New builds a logger for mode. Unknown modes fall back to development.
func New(mode string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", ModeProduction:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// Redacted returns a field that hides value when key names a credential.
func Redacted(key string, value string) zap.Field {
	if isRedactKey(key) && value != "" {
		return zap.String(key, "[REDACTED]")
	}
	return zap.String(key, value)
}

func isRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.Contains(key, "token"),
		strings.Contains(key, "authorization"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "password"),
		strings.Contains(key, "cookie"),
		strings.Contains(key, "dsn"):
		return true
	default:
		return false
	}
}
