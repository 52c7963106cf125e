// Package config loads the dashboard's TOML configuration and watches
// it for live edits. Every field has a working default; a missing
// config file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/CursedScorpio/fleetdeck/internal/fleet"
)

// FileName is the TOML config file under the fleetdeck directory.
const FileName = "config.toml"

// Config is the user-facing configuration.
type Config struct {
	// Server defines the backend connection.
	Server ServerSettings `toml:"server"`

	// Poll overrides the poll cadences. Zero values keep the fixed
	// product defaults.
	Poll PollSettings `toml:"poll"`

	// Severity overrides the resource severity thresholds.
	Severity SeveritySettings `toml:"severity"`

	// Theme sets the color scheme: "dark" (default), "light", or "system"
	Theme string `toml:"theme"`

	// Logs defines debug log management settings
	Logs LogSettings `toml:"logs"`
}

// ServerSettings defines the backend connection.
type ServerSettings struct {
	// URL is the backend API root (default: http://127.0.0.1:3001/api)
	URL string `toml:"url"`

	// TimeoutSecs bounds one request end to end (default: 30)
	TimeoutSecs int `toml:"timeout_secs"`

	// RequestsPerSecond caps the request rate across all poll loops
	// (default: 20)
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// PollSettings overrides poll cadences, in seconds. Zero keeps the
// default for that loop.
type PollSettings struct {
	// StatusSecs is the box/viewer status cadence (default: 15)
	StatusSecs int `toml:"status_secs"`

	// SystemSecs is the system metrics cadence (default: 10)
	SystemSecs int `toml:"system_secs"`

	// ResourcesSecs is the per-entity resource snapshot cadence (default: 5)
	ResourcesSecs int `toml:"resources_secs"`

	// ChatSecs is the chat message cadence (default: 30)
	ChatSecs int `toml:"chat_secs"`

	// LogsSecs is the viewer log tail cadence (default: 30)
	LogsSecs int `toml:"logs_secs"`
}

// SeveritySettings overrides the usage/limit ratios at which resource
// severity escalates.
type SeveritySettings struct {
	// Warn is the ratio above which severity is at least warn (default: 0.6)
	Warn float64 `toml:"warn"`

	// Critical is the ratio above which severity is critical (default: 0.8)
	Critical float64 `toml:"critical"`
}

// LogSettings defines debug log management configuration.
type LogSettings struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `toml:"level"`

	// Format sets the log format: "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB is the max size in MB for debug.log before rotation
	// Default: 10
	MaxSizeMB int `toml:"max_size_mb"`

	// Backups is the number of rotated debug.log files to keep
	// Default: 5
	Backups int `toml:"backups"`

	// RingLines is the in-memory recent-line buffer size for crash dumps
	// Default: 2000
	RingLines int `toml:"ring_lines"`

	// SummaryIntervalSecs is the poll tick summary flush interval
	// Default: 30
	SummaryIntervalSecs int `toml:"summary_interval_secs"`
}

// Dir returns the fleetdeck config/state directory, creating nothing.
func Dir() (string, error) {
	if dir := os.Getenv("FLEETDECK_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".fleetdeck"), nil
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Default returns the zero-file configuration.
func Default() *Config {
	return (&Config{}).withDefaults()
}

// Load reads the config file at path. A missing file yields the
// defaults; a malformed file yields the defaults plus the parse error
// so the caller can surface it without losing a working dashboard.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg.withDefaults(), nil
}

func (c *Config) withDefaults() *Config {
	if c.Server.URL == "" {
		c.Server.URL = "http://127.0.0.1:3001/api"
	}
	if c.Server.TimeoutSecs <= 0 {
		c.Server.TimeoutSecs = 30
	}
	if c.Server.RequestsPerSecond <= 0 {
		c.Server.RequestsPerSecond = 20
	}
	if c.Severity.Warn <= 0 {
		c.Severity.Warn = fleet.DefaultThresholds().Warn
	}
	if c.Severity.Critical <= 0 {
		c.Severity.Critical = fleet.DefaultThresholds().Critical
	}
	switch c.Theme {
	case "dark", "light", "system":
	default:
		c.Theme = "dark"
	}
	if c.Logs.Level == "" {
		c.Logs.Level = "info"
	}
	if c.Logs.Format == "" {
		c.Logs.Format = "json"
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 10
	}
	if c.Logs.Backups <= 0 {
		c.Logs.Backups = 5
	}
	if c.Logs.RingLines <= 0 {
		c.Logs.RingLines = 2000
	}
	if c.Logs.SummaryIntervalSecs <= 0 {
		c.Logs.SummaryIntervalSecs = 30
	}
	return c
}

// Timeout returns the request timeout as a duration.
func (s ServerSettings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// Intervals converts the poll settings to durations; zeros pass through
// and land on the fixed defaults downstream.
func (c *Config) Intervals() fleet.Intervals {
	return fleet.Intervals{
		Status:    time.Duration(c.Poll.StatusSecs) * time.Second,
		System:    time.Duration(c.Poll.SystemSecs) * time.Second,
		Resources: time.Duration(c.Poll.ResourcesSecs) * time.Second,
		Chat:      time.Duration(c.Poll.ChatSecs) * time.Second,
		Logs:      time.Duration(c.Poll.LogsSecs) * time.Second,
	}
}

// Thresholds converts the severity settings.
func (c *Config) Thresholds() fleet.Thresholds {
	return fleet.Thresholds{Warn: c.Severity.Warn, Critical: c.Severity.Critical}
}

// ResolveTheme resolves the configured theme to "dark" or "light".
// "system" detects the OS setting and falls back to dark on failure.
func (c *Config) ResolveTheme() string {
	if c.Theme != "system" {
		return c.Theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// CreateExample writes a commented example config if none exists.
func CreateExample() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	example := `# Fleetdeck Configuration
# Edit this file and the running dashboard picks the changes up live.

[server]
# Backend API root
url = "http://127.0.0.1:3001/api"
# Request timeout in seconds (default: 30)
timeout_secs = 30
# Request rate cap across all poll loops (default: 20)
requests_per_second = 20

# Poll cadences in seconds. Omit or set 0 to keep the defaults.
# [poll]
# status_secs = 15
# system_secs = 10
# resources_secs = 5
# chat_secs = 30
# logs_secs = 30

# Resource severity thresholds as usage/limit ratios
# [severity]
# warn = 0.6
# critical = 0.8

# Color scheme: "dark" (default), "light", or "system"
# theme = "dark"

# Debug log management
# [logs]
# level = "info"
# format = "json"
# max_size_mb = 10
# backups = 5
`

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(example), 0o600)
}
