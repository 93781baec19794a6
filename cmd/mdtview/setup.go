// ABOUTME: Resolves mdtview configuration from defaults, YAML, .env/environment and flags, and sets up logging.
// ABOUTME: Also maps the resolved config onto the client and session controller settings.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/2389-research/mdtview/client"
	"github.com/2389-research/mdtview/config"
	"github.com/2389-research/mdtview/session"
)

// loadConfig applies defaults, the config file, the environment and then any
// flag the user set explicitly.
func loadConfig(o *options, flags *pflag.FlagSet) (config.Config, error) {
	config.LoadDotEnvAuto()

	path, required := o.configPath, o.configPath != ""
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("base-url") {
		cfg.BaseURL = o.baseURL
	}
	if changed("format") {
		cfg.Format = o.format
	}
	if changed("diagram-format") {
		cfg.DiagramFormat = o.diagramFormat
	}
	if changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if changed("style") {
		cfg.Style = o.style
	}
	if changed("verbose") {
		cfg.Verbose = o.verbose
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newClient builds the backend client for cfg.
func newClient(cfg config.Config) *client.Client {
	return client.New(cfg.BaseURL, client.WithRequestTimeout(cfg.RequestTimeout))
}

// sessionConfig maps cfg onto controller settings.
func sessionConfig(cfg config.Config, metrics *session.Metrics) session.Config {
	return session.Config{
		Backoff: session.Backoff{
			BaseDelay:   cfg.Reconnect.BaseDelay,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		AutoFetch: session.AutoFetch{
			Attempts: cfg.Fetch.AutoAttempts,
			Step:     cfg.Fetch.AutoStep,
		},
		FallbackDelay: cfg.Fetch.FallbackDelay,
		FetchPolicy:   fetchPolicy(cfg),
		Metrics:       metrics,
	}
}

func fetchPolicy(cfg config.Config) client.FetchPolicy {
	return client.FetchPolicy{Attempts: cfg.Fetch.Attempts, Step: cfg.Fetch.Step}
}

// setupLogging routes the standard logger. A full-screen UI owns the terminal,
// so it always logs to a file; line modes log to stderr only when verbose.
func setupLogging(cfg config.Config, fullScreen bool) (io.Closer, error) {
	path := cfg.LogFile
	if fullScreen && path == "" {
		dir, err := config.DefaultStateDir()
		if err != nil {
			log.SetOutput(io.Discard)
			return nil, nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		path = filepath.Join(dir, "mdtview.log")
	}

	if path == "" {
		if !cfg.Verbose {
			log.SetOutput(io.Discard)
		}
		return nil, nil
	}

	f, err := tea.LogToFile(path, "mdtview")
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
