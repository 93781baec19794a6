// ABOUTME: Configuration for mdtview: defaults, then YAML file, then environment, then CLI flags.
// ABOUTME: Durations are written in YAML as Go duration strings ("1s", "30s").
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output formats for reports.
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatBoth     = "both"
)

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL        = "MDTVIEW_BASE_URL"
	EnvLogFile        = "MDTVIEW_LOG_FILE"
	EnvRequestTimeout = "MDTVIEW_REQUEST_TIMEOUT"
	EnvDiagramFormat  = "MDTVIEW_DIAGRAM_FORMAT"
	EnvStyle          = "MDTVIEW_STYLE"
)

// MaxReconnectAttempts bounds reconnect.max_attempts.
const MaxReconnectAttempts = 20

// Reconnect is the stream reconnect schedule.
type Reconnect struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Fetch is the direct report fetch schedule.
type Fetch struct {
	Attempts      int           `yaml:"attempts"`
	Step          time.Duration `yaml:"step"`
	AutoAttempts  int           `yaml:"auto_attempts"`
	AutoStep      time.Duration `yaml:"auto_step"`
	FallbackDelay time.Duration `yaml:"fallback_delay"`
}

// Config is the resolved configuration.
type Config struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Reconnect      Reconnect     `yaml:"reconnect"`
	Fetch          Fetch         `yaml:"fetch"`
	Format         string        `yaml:"format"`
	DiagramFormat  string        `yaml:"diagram_format"`
	Style          string        `yaml:"style"`
	LogFile        string        `yaml:"log_file"`
	Verbose        bool          `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		RequestTimeout: 30 * time.Second,
		Reconnect: Reconnect{
			BaseDelay:   time.Second,
			MaxAttempts: 5,
		},
		Fetch: Fetch{
			Attempts:      3,
			Step:          time.Second,
			AutoAttempts:  3,
			AutoStep:      2 * time.Second,
			FallbackDelay: time.Second,
		},
		Format:        FormatMarkdown,
		DiagramFormat: "dot",
		Style:         "dark",
	}
}

// Load returns Default overlaid with the YAML file at path. A missing file is
// not an error unless required is true.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.LogFile = v
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv(EnvDiagramFormat); v != "" {
		c.DiagramFormat = v
	}
	if v := os.Getenv(EnvStyle); v != "" {
		c.Style = v
	}
	return nil
}

// parseDuration accepts Go durations and bare integers (seconds).
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url must not be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url %q must start with http:// or https://", c.BaseURL)
	}
	switch c.Format {
	case FormatJSON, FormatMarkdown, FormatBoth:
	default:
		return fmt.Errorf("format %q must be json, markdown or both", c.Format)
	}
	switch c.DiagramFormat {
	case "dot", "svg", "png":
	default:
		return fmt.Errorf("diagram_format %q must be dot, svg or png", c.DiagramFormat)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.Reconnect.MaxAttempts < 1 || c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect needs max_attempts >= 1 and a positive base_delay")
	}
	if c.Reconnect.MaxAttempts > MaxReconnectAttempts {
		return fmt.Errorf("reconnect max_attempts %d exceeds %d", c.Reconnect.MaxAttempts, MaxReconnectAttempts)
	}
	if c.Fetch.Attempts < 1 || c.Fetch.AutoAttempts < 1 {
		return errors.New("fetch attempts must be >= 1")
	}
	return nil
}
