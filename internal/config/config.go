package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	appLog "statusboard/internal/log"
)

// EnvPrefix is the prefix of environment variables that override file
// values. Nested keys are separated by a double underscore, e.g.
// STATUSBOARD_SNAPSHOT__ENABLED=true.
const EnvPrefix = "STATUSBOARD_"

const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultTimezone = "UTC"
	DefaultRefresh  = "*/5 * * * *"
	DefaultLogLevel = "info"
	DefaultCacheDir = "./var/ics-cache"
	DefaultColor    = "#1976d2"

	DefaultSnapshotOutput = "./var/preview.png"
	DefaultSnapshotWidth  = 800
	DefaultSnapshotHeight = 480
)

// CalendarConfig describes a single ICS subscription shown on the board.
type CalendarConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" koanf:"url" json:"url"`
	// Color is the CSS colour used for the calendar's events.
	Color string `yaml:"color" koanf:"color" json:"color"`
	// Name is a human-friendly label used in logs.
	Name string `yaml:"name,omitempty" koanf:"name" json:"name,omitempty"`
}

// ProxyConfig routes calendar requests through a CORS/HTTP proxy. The
// calendar URL is appended to URL as-is.
type ProxyConfig struct {
	URL     string            `yaml:"url,omitempty" koanf:"url" json:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty" koanf:"headers" json:"headers,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the board and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" koanf:"username" json:"username"`
	Password string `yaml:"password" koanf:"password" json:"password"`
}

// Enabled reports whether both credentials are set.
func (b BasicAuthConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// SnapshotConfig controls the headless-browser PNG snapshot of the board
// taken after every refresh.
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled" koanf:"enabled" json:"enabled"`
	// URL of the board page. Empty means the board served on Listen.
	URL    string `yaml:"url,omitempty" koanf:"url" json:"url,omitempty"`
	Output string `yaml:"output" koanf:"output" json:"output"`
	Width  int    `yaml:"width" koanf:"width" json:"width"`
	Height int    `yaml:"height" koanf:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the board and API.
	Listen string `yaml:"listen" koanf:"listen" json:"listen"`

	// Timezone is the IANA timezone the board's days are counted in.
	Timezone string `yaml:"timezone" koanf:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule (e.g. "*/5 * * * *") for
	// periodic refresh.
	RefreshCron string `yaml:"refresh" koanf:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" koanf:"log_level" json:"log_level"`

	// CacheDir holds the last good body of each calendar.
	CacheDir string `yaml:"cache_dir" koanf:"cache_dir" json:"cache_dir"`

	CORSProxy ProxyConfig `yaml:"cors_proxy,omitempty" koanf:"cors_proxy" json:"cors_proxy"`

	Calendars []CalendarConfig `yaml:"calendars" koanf:"calendars" json:"calendars"`

	// BasicAuth, when both fields are set, protects every endpoint except
	// /health.
	BasicAuth BasicAuthConfig `yaml:"basic_auth,omitempty" koanf:"basic_auth" json:"basic_auth"`

	Snapshot SnapshotConfig `yaml:"snapshot" koanf:"snapshot" json:"snapshot"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      DefaultListen,
		Timezone:    DefaultTimezone,
		RefreshCron: DefaultRefresh,
		LogLevel:    DefaultLogLevel,
		CacheDir:    DefaultCacheDir,
		Calendars:   []CalendarConfig{},
		Snapshot: SnapshotConfig{
			Output: DefaultSnapshotOutput,
			Width:  DefaultSnapshotWidth,
			Height: DefaultSnapshotHeight,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly. Calendars without a URL
// are dropped.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}

	calendars := make([]CalendarConfig, 0, len(c.Calendars))
	for _, cal := range c.Calendars {
		cal.URL = strings.TrimSpace(cal.URL)
		if cal.URL == "" {
			continue
		}
		if strings.TrimSpace(cal.Color) == "" {
			cal.Color = DefaultColor
		}
		calendars = append(calendars, cal)
	}
	c.Calendars = calendars

	if c.Snapshot.Output == "" {
		c.Snapshot.Output = DefaultSnapshotOutput
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = DefaultSnapshotWidth
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = DefaultSnapshotHeight
	}
}

// SnapshotURL is the page captured for the PNG snapshot.
func (c *Config) SnapshotURL() string {
	if c.Snapshot.URL != "" {
		return c.Snapshot.URL
	}
	host := c.Listen
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/"
}

// Load builds the configuration from, in increasing priority, the built-in
// defaults, the YAML file at path and STATUSBOARD_* environment variables.
//
// If the file does not exist it is created with the defaults (0600) first.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		appLog.Info("config file not found, writing defaults", "path", path)
		if err := Save(path, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
			return strings.ReplaceAll(k, "__", "."), v
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Normalize()

	appLog.Debug("config loaded", "path", path, "calendars", len(cfg.Calendars))
	return &cfg, nil
}

// Save writes cfg as YAML to path atomically (temp file + rename) with
// 0600 permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".statusboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience wrapper around the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
