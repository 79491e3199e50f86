// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validBase returns a default config with the fields the defaults
// leave empty filled in, so Validate passes.
func validBase() *Config {
	cfg := Default()
	cfg.Shore.BaseURL = "https://shore.example.com"
	cfg.Shore.Collector = "mv-eidsvaag-orion"
	return cfg
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pelorus.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestDefaultsValidateWithBaseURL(t *testing.T) {
	cfg := validBase()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate on defaults: %v", err)
	}
	if cfg.Sync.Interval.Std() != 5*time.Minute {
		t.Errorf("default sync interval = %v, want 5m", cfg.Sync.Interval.Std())
	}
	if cfg.Triggers.MaxInterval.Std() != 30*time.Minute {
		t.Errorf("default max interval = %v, want 30m", cfg.Triggers.MaxInterval.Std())
	}
	if cfg.Feed.Addr != "127.0.0.1:10110" {
		t.Errorf("default feed addr = %q", cfg.Feed.Addr)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfigFile(t, `
vessel:
  name: Nordkapp
  mmsi: "257123456"
shore:
  base_url: https://shore.example.com
  collector: mv-nordkapp
sync:
  interval: 90s
triggers:
  speed_threshold_kn: 1.2
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Vessel.Name != "Nordkapp" {
		t.Errorf("Vessel.Name = %q, want Nordkapp", cfg.Vessel.Name)
	}
	if cfg.Vessel.MMSI != "257123456" {
		t.Errorf("Vessel.MMSI = %q, want 257123456", cfg.Vessel.MMSI)
	}
	if cfg.Sync.Interval.Std() != 90*time.Second {
		t.Errorf("Sync.Interval = %v, want 90s", cfg.Sync.Interval.Std())
	}
	if cfg.Triggers.SpeedThresholdKn != 1.2 {
		t.Errorf("SpeedThresholdKn = %v, want 1.2", cfg.Triggers.SpeedThresholdKn)
	}
	// Untouched fields keep their defaults.
	if cfg.Sync.BatchLimit != 60 {
		t.Errorf("BatchLimit = %d, want the default 60", cfg.Sync.BatchLimit)
	}
	if cfg.Storage.Path != "/var/lib/pelorus/tracklog.db" {
		t.Errorf("Storage.Path = %q, want the default", cfg.Storage.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile on a missing file should fail")
	}

	path := writeConfigFile(t, "shore: [this is not a mapping")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile on broken YAML should fail")
	}

	path = writeConfigFile(t, "sync:\n  interval: fast\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile with an unparseable duration should fail")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PELORUS_SHORE_API_KEY", "pk_live_from_env")
	t.Setenv("PELORUS_SYNC_INTERVAL", "2m30s")
	t.Setenv("PELORUS_TRIGGERS_SPEED_THRESHOLD_KN", "1.5")
	t.Setenv("PELORUS_SYNC_SKIP_STARTUP_METADATA", "true")

	cfg := validBase()
	cfg.Shore.APIKey = "pk_live_from_file"
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.Shore.APIKey != "pk_live_from_env" {
		t.Errorf("APIKey = %q, environment should beat the file", cfg.Shore.APIKey)
	}
	if cfg.Sync.Interval.Std() != 2*time.Minute+30*time.Second {
		t.Errorf("Sync.Interval = %v, want 2m30s", cfg.Sync.Interval.Std())
	}
	if cfg.Triggers.SpeedThresholdKn != 1.5 {
		t.Errorf("SpeedThresholdKn = %v, want 1.5", cfg.Triggers.SpeedThresholdKn)
	}
	if !cfg.Sync.SkipStartupMetadata {
		t.Error("SkipStartupMetadata should be set from the environment")
	}
	// Untouched fields survive.
	if cfg.Shore.BaseURL != "https://shore.example.com" {
		t.Errorf("BaseURL = %q, should be untouched", cfg.Shore.BaseURL)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("PELORUS_SYNC_INTERVAL", "soon")
	cfg := validBase()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("ApplyEnv with an unparseable duration should fail")
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validBase()
	cfg.Vessel.MMSI = "12345"
	cfg.Storage.Path = ""
	cfg.Sync.BatchLimit = 0
	cfg.Triggers.MovingInterval = Duration(time.Hour)

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	for _, want := range []string{
		"vessel.mmsi",
		"storage.path",
		"sync.batch_limit",
		"triggers.moving_interval",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		ok      bool
	}{
		{"https", "https://shore.example.com", true},
		{"http", "http://10.0.0.4:8080", true},
		{"empty", "", false},
		{"no_scheme", "shore.example.com", false},
		{"wrong_scheme", "ftp://shore.example.com", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Shore.BaseURL = test.baseURL
			cfg.Shore.Collector = "mv-eidsvaag-orion"
			err := cfg.Validate()
			if test.ok && err != nil {
				t.Errorf("Validate(%q) = %v, want nil", test.baseURL, err)
			}
			if !test.ok && err == nil {
				t.Errorf("Validate(%q) = nil, want error", test.baseURL)
			}
		})
	}
}
