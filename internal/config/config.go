// Package config loads the alsaplay tool configuration from YAML with
// defaults applied for anything left unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmgraves/go-alsapcm/audio"
	"github.com/dmgraves/go-alsapcm/internal/constants"
)

// Config is the tool configuration.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Log    LogConfig    `yaml:"log"`
}

// DeviceConfig selects the playback endpoint and stream parameters.
type DeviceConfig struct {
	Card       int    `yaml:"card"`
	Device     int    `yaml:"device"`
	Path       string `yaml:"path"`
	Format     string `yaml:"format"`
	Channels   int    `yaml:"channels"`
	SampleRate int    `yaml:"sample_rate"`
	BufferSize int    `yaml:"buffer_size"`
	Periods    int    `yaml:"periods"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Format:     audio.Float32LE.String(),
			Channels:   constants.DefaultChannels,
			SampleRate: constants.DefaultSampleRate,
			BufferSize: constants.DefaultBufferSize,
			Periods:    constants.DefaultPeriods,
			TimeoutMS:  constants.DefaultTimeoutMS,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParseFormat resolves a format name from the configuration.
func ParseFormat(name string) (audio.Format, error) {
	for _, f := range []audio.Format{audio.S16LE, audio.S32LE, audio.Float32LE, audio.Float64LE} {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("config: unknown sample format %q", name)
}

// Validate checks every field that has a bounded domain.
func (c *Config) Validate() error {
	if _, err := ParseFormat(c.Device.Format); err != nil {
		return err
	}
	if c.Device.Channels < 1 {
		return fmt.Errorf("config: channels %d out of range", c.Device.Channels)
	}
	if c.Device.SampleRate < 1 {
		return fmt.Errorf("config: sample_rate %d out of range", c.Device.SampleRate)
	}
	if c.Device.BufferSize < 1 {
		return fmt.Errorf("config: buffer_size %d out of range", c.Device.BufferSize)
	}
	if c.Device.Periods < 1 {
		return fmt.Errorf("config: periods %d out of range", c.Device.Periods)
	}
	if c.Device.TimeoutMS < 1 {
		return fmt.Errorf("config: timeout_ms %d out of range", c.Device.TimeoutMS)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}
