package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a configured Zap logger from Viper settings.
// Reads "logging.level" (debug, info, warn, error; default "info")
// and "logging.format" (json, console; default "json").
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	logger, _, err := NewLoggerWithLevel(v)
	return logger, err
}

// NewLoggerWithLevel is NewLogger that also returns the atomic level so the
// caller can change verbosity at runtime (see WatchLogLevel).
func NewLoggerWithLevel(v *viper.Viper) (*zap.Logger, zap.AtomicLevel, error) {
	format := v.GetString("logging.format")

	zapLevel, err := parseLevel(v.GetString("logging.level"))
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, cfg.Level, nil
}

// WatchLogLevel re-reads "logging.level" whenever the config file changes
// and applies it to level. Other settings need a restart. It does nothing
// when no config file is in use.
func WatchLogLevel(v *viper.Viper, level zap.AtomicLevel, logger *zap.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		changed, err := applyLogLevel(v, level)
		if err != nil {
			logger.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if changed {
			logger.Info("log level changed",
				zap.String("component", "config"),
				zap.Stringer("level", level.Level()),
			)
		}
	})
	v.WatchConfig()
}

func applyLogLevel(v *viper.Viper, level zap.AtomicLevel) (bool, error) {
	next, err := parseLevel(v.GetString("logging.level"))
	if err != nil {
		return false, err
	}
	if next == level.Level() {
		return false, nil
	}
	level.SetLevel(next)
	return true, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}
