// Package config defines engrepeat's settings, their defaults, and how they
// are read from viper and rendered as YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppName names the config, data and cache directories.
const AppName = "engrepeat"

// Config is the complete application configuration.
type Config struct {
	Gemini   GeminiConfig   `yaml:"gemini" mapstructure:"gemini"`
	Practice PracticeConfig `yaml:"practice" mapstructure:"practice"`
	Audio    AudioConfig    `yaml:"audio" mapstructure:"audio"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// GeminiConfig holds the remote service settings.
type GeminiConfig struct {
	// API key; usually supplied through GEMINI_API_KEY
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Model used for splitting and word lookup
	TextModel string `yaml:"text_model" mapstructure:"text_model"`

	// Model used for speech synthesis
	SpeechModel string `yaml:"speech_model" mapstructure:"speech_model"`

	// Prebuilt voice name
	Voice string `yaml:"voice" mapstructure:"voice"`

	// Client-side request rate limit
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`

	// Override of the API endpoint (empty = default)
	BaseURL string `yaml:"base_url,omitempty" mapstructure:"base_url"`
}

// PracticeConfig holds the repeat-playback settings.
type PracticeConfig struct {
	RepeatLimit    int           `yaml:"repeat_limit" mapstructure:"repeat_limit"`
	RepeatDelay    time.Duration `yaml:"repeat_delay" mapstructure:"repeat_delay"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout" mapstructure:"acquire_timeout"`
}

// MarshalYAML writes durations in their human form.
func (p PracticeConfig) MarshalYAML() (any, error) {
	return struct {
		RepeatLimit    int    `yaml:"repeat_limit"`
		RepeatDelay    string `yaml:"repeat_delay"`
		AcquireTimeout string `yaml:"acquire_timeout"`
	}{
		RepeatLimit:    p.RepeatLimit,
		RepeatDelay:    p.RepeatDelay.String(),
		AcquireTimeout: p.AcquireTimeout.String(),
	}, nil
}

// AudioConfig holds the output device settings.
type AudioConfig struct {
	SampleRate int     `yaml:"sample_rate" mapstructure:"sample_rate"`
	Channels   int     `yaml:"channels" mapstructure:"channels"`
	Volume     float64 `yaml:"volume" mapstructure:"volume"`
	// Play into a simulated device
	Mock bool `yaml:"mock" mapstructure:"mock"`
}

// HistoryConfig holds the lesson history settings.
type HistoryConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir        string `yaml:"dir,omitempty" mapstructure:"dir"`
	MaxLessons int    `yaml:"max_lessons" mapstructure:"max_lessons"`
	// zstd level, 0 disables compression
	Compression int `yaml:"compression" mapstructure:"compression"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// host:port to serve /metrics on, empty disables
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			TextModel:         "gemini-3-flash-preview",
			SpeechModel:       "gemini-2.5-flash-preview-tts",
			Voice:             "Kore",
			RequestsPerMinute: 30,
		},
		Practice: PracticeConfig{
			RepeatLimit:    10,
			RepeatDelay:    800 * time.Millisecond,
			AcquireTimeout: 30 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 24000,
			Channels:   1,
			Volume:     1.0,
		},
		History: HistoryConfig{
			Enabled:     true,
			MaxLessons:  50,
			Compression: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers every default with v so flags, env and file can
// override them key by key.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("gemini.text_model", d.Gemini.TextModel)
	v.SetDefault("gemini.speech_model", d.Gemini.SpeechModel)
	v.SetDefault("gemini.voice", d.Gemini.Voice)
	v.SetDefault("gemini.requests_per_minute", d.Gemini.RequestsPerMinute)
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("practice.repeat_limit", d.Practice.RepeatLimit)
	v.SetDefault("practice.repeat_delay", d.Practice.RepeatDelay)
	v.SetDefault("practice.acquire_timeout", d.Practice.AcquireTimeout)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.volume", d.Audio.Volume)
	v.SetDefault("audio.mock", d.Audio.Mock)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.dir", "")
	v.SetDefault("history.max_lessons", d.History.MaxLessons)
	v.SetDefault("history.compression", d.History.Compression)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("log.level", d.Log.Level)
}

// BindEnv maps the conventional API key variables onto gemini.api_key.
func BindEnv(v *viper.Viper) error {
	if err := v.BindEnv("gemini.api_key", "ENGREPEAT_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY"); err != nil {
		return fmt.Errorf("bind api key env: %w", err)
	}
	return nil
}

// Load decodes v into a Config, fills derived paths, and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug("Configuration loaded",
		"repeat_limit", cfg.Practice.RepeatLimit,
		"repeat_delay", cfg.Practice.RepeatDelay,
		"history", cfg.History.Dir)
	return cfg, nil
}

// Validate checks every setting for a usable value.
func (c *Config) Validate() error {
	var errs []error
	if c.Practice.RepeatLimit < 1 {
		errs = append(errs, fmt.Errorf("practice.repeat_limit must be at least 1, got %d", c.Practice.RepeatLimit))
	}
	if c.Practice.RepeatDelay < 0 {
		errs = append(errs, fmt.Errorf("practice.repeat_delay must not be negative, got %v", c.Practice.RepeatDelay))
	}
	if c.Practice.AcquireTimeout < 0 {
		errs = append(errs, fmt.Errorf("practice.acquire_timeout must not be negative, got %v", c.Practice.AcquireTimeout))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume must be between 0.0 and 1.0, got %v", c.Audio.Volume))
	}
	if c.Gemini.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("gemini.requests_per_minute must be at least 1, got %d", c.Gemini.RequestsPerMinute))
	}
	if c.History.MaxLessons < 1 {
		errs = append(errs, fmt.Errorf("history.max_lessons must be at least 1, got %d", c.History.MaxLessons))
	}
	if c.History.Compression < 0 || c.History.Compression > 22 {
		errs = append(errs, fmt.Errorf("history.compression must be a zstd level 0-22, got %d", c.History.Compression))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// resolvePaths expands ~ and picks the default history directory.
func (c *Config) resolvePaths() error {
	if c.History.Dir == "" {
		dir, err := gap.NewScope(gap.User, AppName).DataPath("history")
		if err != nil {
			return fmt.Errorf("could not find data directory: %w", err)
		}
		c.History.Dir = dir
		return nil
	}
	dir, err := homedir.Expand(c.History.Dir)
	if err != nil {
		return fmt.Errorf("could not expand history.dir: %w", err)
	}
	c.History.Dir = dir
	return nil
}

const header = `# engrepeat configuration
#
# The Gemini API key is best supplied through the GEMINI_API_KEY
# environment variable or a .env file next to where you run engrepeat.

`

// DefaultYAML renders the default configuration as a commented YAML file.
func DefaultYAML() string {
	data, err := yaml.Marshal(Default())
	if err != nil {
		// static data, cannot fail
		panic(err)
	}
	return header + string(data)
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	log.Info("Saved configuration", "path", path)
	return nil
}
