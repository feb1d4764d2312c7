package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"audiomix/mixer"
	"audiomix/settings"
	"audiomix/sink"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Mixing engine configuration
	Mixer MixerConfig `mapstructure:"mixer"`

	// Output device configuration
	Sink SinkConfig `mapstructure:"sink"`

	// Persisted master settings
	Settings SettingsConfig `mapstructure:"settings"`

	// Built-in producers
	Playback PlaybackConfig `mapstructure:"playback"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

type MixerConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	SampleRate     int `mapstructure:"sample_rate"`
	StreamCapacity int `mapstructure:"stream_capacity"`
	FadeSteps      int `mapstructure:"fade_steps"`
}

// SinkConfig selects where the mix goes
type SinkConfig struct {
	Driver string        `mapstructure:"driver"` // device, oto, miniaudio, wav, ffmpeg or null
	Path   string        `mapstructure:"path"`
	Buffer time.Duration `mapstructure:"buffer"`
	Format string        `mapstructure:"format"` // ffmpeg output format
	FFmpeg string        `mapstructure:"ffmpeg"`
}

type SettingsConfig struct {
	File         string        `mapstructure:"file"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

type PlaybackConfig struct {
	Loop   bool   `mapstructure:"loop"`
	FFmpeg string `mapstructure:"ffmpeg"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mixer.buffer_size", mixer.DefaultBufferSize)
	v.SetDefault("mixer.sample_rate", mixer.DefaultSampleRate)
	v.SetDefault("mixer.stream_capacity", mixer.DefaultStreamCapacity)
	v.SetDefault("mixer.fade_steps", mixer.DefaultFadeSteps)
	v.SetDefault("sink.driver", sink.DriverDevice)
	v.SetDefault("sink.path", sink.DefaultDevicePath)
	v.SetDefault("sink.buffer", sink.DefaultLatency)
	v.SetDefault("sink.format", sink.DefaultFFmpegFormat)
	v.SetDefault("sink.ffmpeg", "ffmpeg")
	v.SetDefault("settings.file", "settings.yaml")
	v.SetDefault("settings.sync_interval", settings.DefaultSyncInterval)
	v.SetDefault("playback.loop", false)
	v.SetDefault("playback.ffmpeg", "ffmpeg")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads the configuration through v. The config file is optional.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.audiomix")
	v.AddConfigPath("/etc/audiomix")

	// AUDIOMIX_MIXER_SAMPLE_RATE and friends
	v.SetEnvPrefix("AUDIOMIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", v.ConfigFileUsed()))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Mixer.BufferSize <= 0 {
		return &ConfigError{Field: "mixer.buffer_size", Message: "must be positive"}
	}
	if c.Mixer.SampleRate <= 0 {
		return &ConfigError{Field: "mixer.sample_rate", Message: "must be positive"}
	}
	if c.Mixer.StreamCapacity < c.Mixer.BufferSize {
		return &ConfigError{
			Field:   "mixer.stream_capacity",
			Message: fmt.Sprintf("must hold at least one buffer (%d frames)", c.Mixer.BufferSize),
		}
	}
	if c.Mixer.FadeSteps <= 0 {
		return &ConfigError{Field: "mixer.fade_steps", Message: "must be positive"}
	}

	switch c.Sink.Driver {
	case sink.DriverDevice, sink.DriverWAV:
		if c.Sink.Path == "" {
			return &ConfigError{Field: "sink.path", Message: "a path is required for the " + c.Sink.Driver + " driver"}
		}
	case sink.DriverOto, sink.DriverMiniaudio, sink.DriverNull, sink.DriverFFmpeg:
	default:
		return &ConfigError{Field: "sink.driver", Message: fmt.Sprintf("unknown driver %q", c.Sink.Driver)}
	}

	if c.Settings.File == "" {
		return &ConfigError{Field: "settings.file", Message: "settings file is required"}
	}
	if c.Settings.SyncInterval <= 0 {
		return &ConfigError{Field: "settings.sync_interval", Message: "must be positive"}
	}
	return nil
}

// SinkOptions translates the sink section for sink.Open.
func (c *Config) SinkOptions() sink.Config {
	path := c.Sink.Path
	if c.Sink.Driver == sink.DriverFFmpeg && path == sink.DefaultDevicePath {
		// the device default means nothing to ffmpeg
		path = sink.DefaultFFmpegTarget
	}
	return sink.Config{
		Driver:     c.Sink.Driver,
		Path:       path,
		SampleRate: c.Mixer.SampleRate,
		Latency:    c.Sink.Buffer,
		Format:     c.Sink.Format,
		Exec:       c.Sink.FFmpeg,
	}
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
