// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppName is used for the XDG config and data directories.
const AppName = "classbell"

// Default configuration values.
const (
	DefaultPollInterval  = time.Second
	DefaultVolume        = 80
	DefaultToneFrequency = 880
	DefaultToneDuration  = 800 * time.Millisecond
	DefaultScheduleFile  = "class_table.json"
	DefaultHistoryFile   = "history.jsonl"
)

// ArbiterMode selects how watchers share the audio device.
type ArbiterMode string

const (
	// ArbiterExclusive holds a playback token for the whole play call.
	ArbiterExclusive ArbiterMode = "exclusive"
	// ArbiterAdvisory only gates on the shared busy flag; overlapping playback is possible.
	ArbiterAdvisory ArbiterMode = "advisory"
)

// InputMode selects the interactive schedule entry front end.
type InputMode string

const (
	InputForm   InputMode = "form"
	InputPrompt InputMode = "prompt"
)

// Config represents the classbell configuration.
type Config struct {
	Schedule ScheduleConfig `toml:"schedule"`
	Sound    SoundConfig    `toml:"sound"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Arbiter  ArbiterConfig  `toml:"arbiter"`
	Input    InputConfig    `toml:"input"`
	Notify   NotifyConfig   `toml:"notify"`
	History  HistoryConfig  `toml:"history"`
}

// ScheduleConfig holds the timetable location.
type ScheduleConfig struct {
	Path  string `toml:"path"`  // Empty = DataPath()/class_table.json
	Watch bool   `toml:"watch"` // Relaunch watchers when the file changes
}

// SoundConfig holds notification sound settings.
type SoundConfig struct {
	Path          string   `toml:"path"`           // Empty = generated tone
	Volume        int      `toml:"volume"`         // 0-100
	ToneFrequency float64  `toml:"tone_frequency"` // Hz
	ToneDuration  Duration `toml:"tone_duration"`
}

// WatcherConfig holds polling settings.
type WatcherConfig struct {
	PollInterval Duration `toml:"poll_interval"`
}

// ArbiterConfig holds playback arbitration settings.
type ArbiterConfig struct {
	Mode string `toml:"mode"` // exclusive, advisory
}

// InputConfig holds interactive entry settings.
type InputConfig struct {
	Mode string `toml:"mode"` // form, prompt
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	Desktop bool `toml:"desktop"` // Notify when a watcher fails
	OnFire  bool `toml:"on_fire"` // Also notify when a bell rings
}

// HistoryConfig holds outcome history settings.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Empty = DataPath()/history.jsonl
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Schedule: ScheduleConfig{
			Path:  "",
			Watch: false,
		},
		Sound: SoundConfig{
			Path:          "",
			Volume:        DefaultVolume,
			ToneFrequency: DefaultToneFrequency,
			ToneDuration:  Duration(DefaultToneDuration),
		},
		Watcher: WatcherConfig{
			PollInterval: Duration(DefaultPollInterval),
		},
		Arbiter: ArbiterConfig{
			Mode: string(ArbiterExclusive),
		},
		Input: InputConfig{
			Mode: string(InputForm),
		},
		Notify: NotifyConfig{
			Desktop: true,
			OnFire:  false,
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName, "config.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppName)
}

// SchedulePath returns the configured schedule path, or the default one.
func (c *Config) SchedulePath() string {
	if c.Schedule.Path != "" {
		return expandPath(c.Schedule.Path)
	}
	return filepath.Join(DataPath(), DefaultScheduleFile)
}

// HistoryPath returns the configured outcome history path, or the default one.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return expandPath(c.History.Path)
	}
	return filepath.Join(DataPath(), DefaultHistoryFile)
}

// SoundPath returns the sound file path with ~ expanded.
func (c *Config) SoundPath() string {
	return expandPath(c.Sound.Path)
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Start with defaults
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Sound.Volume < 0 || c.Sound.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Sound.Volume)
	}
	if c.Sound.ToneFrequency <= 0 {
		return fmt.Errorf("tone_frequency must be positive, got %v", c.Sound.ToneFrequency)
	}
	if c.Watcher.PollInterval.Duration() <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.Watcher.PollInterval.Duration())
	}
	if c.Watcher.PollInterval.Duration() > time.Minute {
		return fmt.Errorf("poll_interval must be at most 1m so no class minute is skipped, got %s",
			c.Watcher.PollInterval.Duration())
	}

	switch ArbiterMode(c.Arbiter.Mode) {
	case ArbiterExclusive, ArbiterAdvisory:
	default:
		return fmt.Errorf("invalid arbiter mode %q, must be %q or %q",
			c.Arbiter.Mode, ArbiterExclusive, ArbiterAdvisory)
	}

	switch InputMode(c.Input.Mode) {
	case InputForm, InputPrompt:
	default:
		return fmt.Errorf("invalid input mode %q, must be %q or %q",
			c.Input.Mode, InputForm, InputPrompt)
	}

	return nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
