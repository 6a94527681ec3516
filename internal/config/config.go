// Package config handles configuration file loading and parsing.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultTimeout     = 2750 * time.Millisecond
	DefaultGracePeriod = 250 * time.Millisecond
	DefaultActionSlots = 1
	DefaultListen      = "127.0.0.1:7787"
	DefaultAppName     = "bigsnackbar"
	DefaultVolume      = 80
)

// Duration is a time.Duration that can be unmarshaled from human-readable strings.
// Supports formats like "250ms", "5s", "1m", or integer milliseconds.
// A value of "0" or 0 disables the timeout it configures.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '250ms', '5s', '1m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return d.UnmarshalText([]byte(s))
	}
	return d.UnmarshalText(data)
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the bigsnackbar configuration.
// Loaded from ~/.config/bigsnackbar/config.toml
type Config struct {
	Snackbar SnackbarConfig `toml:"snackbar"`
	Renderer RendererConfig `toml:"renderer"`
	Desktop  DesktopConfig  `toml:"desktop"`
	Audio    AudioConfig    `toml:"audio"`
	HTTP     HTTPConfig     `toml:"http"`
	History  HistoryConfig  `toml:"history"`
}

// SnackbarConfig contains queue timing and shape.
type SnackbarConfig struct {
	DefaultTimeout Duration `toml:"default_timeout"` // "0" keeps notifications until closed
	GracePeriod    Duration `toml:"grace_period"`    // Hide animation length
	ActionSlots    int      `toml:"action_slots"`    // Fixed number of action buttons
}

// RendererConfig selects the presentation backend.
type RendererConfig struct {
	Kind string `toml:"kind"` // "tui", "term" or "desktop"
}

// RendererKind names a renderer backend.
type RendererKind string

const (
	RendererTUI     RendererKind = "tui"
	RendererTerm    RendererKind = "term"
	RendererDesktop RendererKind = "desktop"
)

// ValidRendererKinds returns all valid renderer kinds.
func ValidRendererKinds() []RendererKind {
	return []RendererKind{RendererTUI, RendererTerm, RendererDesktop}
}

// DesktopConfig contains settings for the freedesktop notification renderer.
type DesktopConfig struct {
	AppName string `toml:"app_name"`
	AppIcon string `toml:"app_icon"`
	Urgency int    `toml:"urgency"` // 0 low, 1 normal, 2 critical
}

// AudioConfig contains the sound cue settings.
type AudioConfig struct {
	Enabled bool   `toml:"enabled"`
	Volume  int    `toml:"volume"` // 0-100
	Sound   string `toml:"sound"`  // wav, ogg or mp3
}

// HTTPConfig contains the ingestion API settings.
type HTTPConfig struct {
	Listen    string `toml:"listen"`
	JWTSecret string `toml:"jwt_secret"` // Empty disables authentication
}

// HistoryConfig contains the display history settings.
type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Defaults to DataPath()/history.db
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Snackbar: SnackbarConfig{
			DefaultTimeout: Duration(DefaultTimeout),
			GracePeriod:    Duration(DefaultGracePeriod),
			ActionSlots:    DefaultActionSlots,
		},
		Renderer: RendererConfig{
			Kind: string(RendererTUI),
		},
		Desktop: DesktopConfig{
			AppName: DefaultAppName,
			Urgency: 1,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  DefaultVolume,
		},
		HTTP: HTTPConfig{
			Listen: DefaultListen,
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
	return filepath.Join(configHome, "bigsnackbar", "config.toml")
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
	return filepath.Join(dataHome, "bigsnackbar")
}

// HistoryPath returns the history database path, honouring the config override.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return expandPath(c.History.Path)
	}
	return filepath.Join(DataPath(), "history.db")
}

// SoundPath returns the configured sound file with ~ expanded.
func (c *Config) SoundPath() string {
	return expandPath(c.Audio.Sound)
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

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
// Creates parent directories if needed and writes atomically via a temp file.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Snackbar.DefaultTimeout < 0 {
		return fmt.Errorf("default_timeout must not be negative, got %s", c.Snackbar.DefaultTimeout.Duration())
	}
	if c.Snackbar.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative, got %s", c.Snackbar.GracePeriod.Duration())
	}
	if c.Snackbar.ActionSlots < 0 || c.Snackbar.ActionSlots > 9 {
		return fmt.Errorf("action_slots must be between 0 and 9, got %d", c.Snackbar.ActionSlots)
	}

	validKind := false
	for _, k := range ValidRendererKinds() {
		if c.Renderer.Kind == string(k) {
			validKind = true
			break
		}
	}
	if !validKind {
		return fmt.Errorf("invalid renderer kind %q, must be one of: %v", c.Renderer.Kind, ValidRendererKinds())
	}

	if c.Desktop.Urgency < 0 || c.Desktop.Urgency > 2 {
		return fmt.Errorf("urgency must be 0, 1, or 2, got %d", c.Desktop.Urgency)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}

	if c.HTTP.Listen == "" {
		return errors.New("http listen address cannot be empty")
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
	if len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
