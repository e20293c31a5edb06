package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.Prompt != "Simulation: " || cfg.Sentinel != "QUIT" {
		t.Errorf("Prompt/Sentinel = %q/%q", cfg.Prompt, cfg.Sentinel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedsim.yaml")
	content := "workers: 4\nlog_level: debug\nprompt: \"> \"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 4 || cfg.LogLevel != "debug" || cfg.Prompt != "> " {
		t.Errorf("overlay not applied: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.Sentinel != "QUIT" || cfg.Addr != ":8090" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_RunTimeoutAndRoots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedsim.yaml")
	content := "run_timeout: 1500ms\nworkload_roots:\n  - /srv/workloads\n  - mem://localhost/w\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RunTimeout != 1500*time.Millisecond {
		t.Errorf("RunTimeout = %v, want 1.5s", cfg.RunTimeout)
	}
	want := []string{"/srv/workloads", "mem://localhost/w"}
	if !reflect.DeepEqual(cfg.WorkloadRoots, want) {
		t.Errorf("WorkloadRoots = %v, want %v", cfg.WorkloadRoots, want)
	}
	if DefaultConfig().RunTimeout != 30*time.Second {
		t.Errorf("default RunTimeout = %v, want 30s", DefaultConfig().RunTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("workers: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}

	cfg, err := Load("")
	if err != nil || !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("Load(\"\") = %+v, %v", cfg, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"blank sentinel", func(c *Config) { c.Sentinel = "  " }, "sentinel"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"negative run timeout", func(c *Config) { c.RunTimeout = -time.Second }, "run_timeout"},
		{"empty workload root", func(c *Config) { c.WorkloadRoots = []string{"/data", " "} }, "workload_roots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveDBPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = ":memory:"
	if got, err := cfg.ResolveDBPath(); err != nil || got != ":memory:" {
		t.Errorf("ResolveDBPath(:memory:) = %q, %v", got, err)
	}

	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "history.db")
	got, err := cfg.ResolveDBPath()
	if err != nil {
		t.Fatalf("ResolveDBPath: %v", err)
	}
	if got != cfg.DBPath {
		t.Errorf("path = %q, want %q", got, cfg.DBPath)
	}
	if _, err := os.Stat(filepath.Dir(got)); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}
