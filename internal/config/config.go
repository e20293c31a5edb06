// Package config holds schedsim's settings and loads them from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for every schedsim command.
type Config struct {
	Workers   int    `yaml:"workers"`    // Pool size (default 2)
	Prompt    string `yaml:"prompt"`     // Written before each interactive read
	Sentinel  string `yaml:"sentinel"`   // Input that ends an interactive session
	LogLevel  string `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string `yaml:"log_format"` // Log format: text, json
	DBPath    string `yaml:"db"`         // SQLite history path (default ~/.schedsim/history.db, ":memory:" for testing)
	NoHistory bool   `yaml:"no_history"` // Skip history persistence
	Addr      string `yaml:"addr"`       // Listen address for serve (default ":8090")
	Server    string `yaml:"server"`     // Server URL used by client commands
	TraceFile string `yaml:"trace_file"` // OpenTelemetry span output; "-" for stdout, empty disables

	// RunTimeout bounds one worker run; runs past it become failure results. Zero disables.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// WorkloadRoots limits which workloads serve accepts: directories or afs
	// URL prefixes. Empty means the working directory.
	WorkloadRoots []string `yaml:"workload_roots"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   2,
		Prompt:    "Simulation: ",
		Sentinel:  "QUIT",
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":8090",
		Server:    "http://localhost:8090",

		RunTimeout: 30 * time.Second,
	}
}

// Load overlays the YAML file at path onto DefaultConfig. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if strings.TrimSpace(c.Sentinel) == "" {
		errs = append(errs, errors.New("sentinel must not be empty"))
	}
	if c.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("run_timeout must not be negative, got %s", c.RunTimeout))
	}
	for _, root := range c.WorkloadRoots {
		if strings.TrimSpace(root) == "" {
			errs = append(errs, errors.New("workload_roots must not contain empty entries"))
			break
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ResolveDBPath returns DBPath, defaulting to ~/.schedsim/history.db and
// creating its directory.
func (c Config) ResolveDBPath() (string, error) {
	if c.DBPath == ":memory:" {
		return c.DBPath, nil
	}
	path := c.DBPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".schedsim", "history.db")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return path, nil
}
