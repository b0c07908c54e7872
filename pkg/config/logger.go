package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (l LoggingConfig) level() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(l.Level)
}

// Build creates the zap logger described by l.
// "console" selects zap's development encoder config, "json" the production one.
func (l LoggingConfig) Build() (*zap.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if l.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build()
}
