package vfs

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration, usually read from a yaml file:
//
//	events:
//	  buffer: 128
//	log:
//	  level: debug
//	  development: true
type Config struct {
	Events EventsConfig `yaml:"events"`
	Log    LogConfig    `yaml:"log"`
}

type EventsConfig struct {
	// Buffer is the per subscriber event capacity.
	Buffer int `yaml:"buffer"`
}

type LogConfig struct {
	// Level is a zap level name, e.g. "info". Empty means info.
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the configuration used if nothing is configured.
func DefaultConfig() Config {
	return Config{
		Events: EventsConfig{Buffer: DefaultEventBuffer},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig reads a yaml file. Missing keys keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	buf, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// NewLogger builds a zap logger from the log section.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, errors.Wrapf(err, "log level %q", c.Level)
		}
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}

// Options turns the configuration into engine options.
func (c Config) Options() ([]Option, error) {
	logger, err := c.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	return []Option{WithLogger(logger), WithEventBuffer(c.Events.Buffer)}, nil
}
