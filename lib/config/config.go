// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the collector's configuration: defaults, then
// an optional YAML file, then PELORUS_* environment overrides. The
// file is operator-facing; environment variables exist for container
// deployments and for keeping the API key out of the file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that reads "30s" style strings from
// both the YAML file and environment variables.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("config: parsing duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the collector's full configuration.
type Config struct {
	// Vessel is the static own-ship identity for the metadata
	// document.
	Vessel VesselConfig `yaml:"vessel"`

	// Feed configures the instrument bridge intake.
	Feed FeedConfig `yaml:"feed"`

	// Storage configures the durable buffer.
	Storage StorageConfig `yaml:"storage"`

	// Shore configures the upstream API.
	Shore ShoreConfig `yaml:"shore"`

	// Sync configures the drain engine.
	Sync SyncConfig `yaml:"sync"`

	// Triggers tunes the persistence rules. The shore can retune the
	// live values; these are the local starting point.
	Triggers TriggersConfig `yaml:"triggers"`

	// Targets configures the proximity pass cadence.
	Targets TargetsConfig `yaml:"targets"`

	// HTTP configures the local status and metrics listener.
	HTTP HTTPConfig `yaml:"http"`

	// Pairing configures the first-start claim listener.
	Pairing PairingConfig `yaml:"pairing"`
}

// VesselConfig is the static vessel identity.
type VesselConfig struct {
	Name     string  `yaml:"name"`
	MMSI     string  `yaml:"mmsi"`
	Callsign string  `yaml:"callsign"`
	LengthM  float64 `yaml:"length_m" envconfig:"LENGTH_M"`
	BeamM    float64 `yaml:"beam_m" envconfig:"BEAM_M"`
	DraughtM float64 `yaml:"draught_m" envconfig:"DRAUGHT_M"`
}

// FeedConfig configures the UDP feed listener.
type FeedConfig struct {
	// Addr is the UDP listen address for the instrument bridge.
	Addr string `yaml:"addr"`

	// StaleAfter evicts AIS targets not sighted within this window.
	StaleAfter Duration `yaml:"stale_after" envconfig:"STALE_AFTER"`
}

// StorageConfig configures the durable buffer.
type StorageConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// ShoreConfig configures the shore API client.
type ShoreConfig struct {
	// BaseURL is the shore service root, https in production.
	BaseURL string `yaml:"base_url" envconfig:"BASE_URL"`

	// Collector is the identifier assigned at provisioning, used as
	// the path segment in every shore request.
	Collector string `yaml:"collector"`

	// APIKey authenticates the collector. Empty on first start; the
	// pairing flow supplies it. Prefer PELORUS_SHORE_API_KEY over
	// putting it in the file.
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`

	// Timeout bounds each shore request.
	Timeout Duration `yaml:"timeout"`
}

// SyncConfig configures the drain engine.
type SyncConfig struct {
	// Interval is the fallback sync cadence.
	Interval Duration `yaml:"interval"`

	// BatchLimit caps the points per push.
	BatchLimit int `yaml:"batch_limit" envconfig:"BATCH_LIMIT"`

	// SkipStartupMetadata suppresses the metadata publish on start.
	// The shore can still request one at any time.
	SkipStartupMetadata bool `yaml:"skip_startup_metadata" envconfig:"SKIP_STARTUP_METADATA"`
}

// TriggersConfig tunes the persistence rules.
type TriggersConfig struct {
	MaxInterval       Duration `yaml:"max_interval" envconfig:"MAX_INTERVAL"`
	MovingInterval    Duration `yaml:"moving_interval" envconfig:"MOVING_INTERVAL"`
	MinDistanceNM     float64  `yaml:"min_distance_nm" envconfig:"MIN_DISTANCE_NM"`
	SpeedThresholdKn  float64  `yaml:"speed_threshold_kn" envconfig:"SPEED_THRESHOLD_KN"`
	TurnThresholdDeg  float64  `yaml:"turn_threshold_deg" envconfig:"TURN_THRESHOLD_DEG"`
	PersistLimit      Duration `yaml:"persist_limit" envconfig:"PERSIST_LIMIT"`
	AnomalyDistanceNM float64  `yaml:"anomaly_distance_nm" envconfig:"ANOMALY_DISTANCE_NM"`
	AnomalyWindow     Duration `yaml:"anomaly_window" envconfig:"ANOMALY_WINDOW"`
}

// TargetsConfig configures the proximity publisher.
type TargetsConfig struct {
	// PassInterval is the refresh pass cadence.
	PassInterval Duration `yaml:"pass_interval" envconfig:"PASS_INTERVAL"`

	// DetailInterval is the number of passes between static detail
	// resends.
	DetailInterval int `yaml:"detail_interval" envconfig:"DETAIL_INTERVAL"`
}

// HTTPConfig configures the local status listener.
type HTTPConfig struct {
	// Addr serves /status, /metrics, and /healthz. Local interface
	// only in the default.
	Addr string `yaml:"addr"`
}

// PairingConfig configures the first-start claim listener.
type PairingConfig struct {
	// Addr is the LAN address the claim endpoint binds when the
	// collector starts without an API key.
	Addr string `yaml:"addr"`
}

// Default returns the configuration the collector runs with when the
// file and environment set nothing.
func Default() *Config {
	return &Config{
		Feed: FeedConfig{
			Addr:       "127.0.0.1:10110",
			StaleAfter: Duration(3 * time.Minute),
		},
		Storage: StorageConfig{
			Path: "/var/lib/pelorus/tracklog.db",
		},
		Shore: ShoreConfig{
			Timeout: Duration(30 * time.Second),
		},
		Sync: SyncConfig{
			Interval:   Duration(5 * time.Minute),
			BatchLimit: 60,
		},
		Triggers: TriggersConfig{
			MaxInterval:       Duration(30 * time.Minute),
			MovingInterval:    Duration(10 * time.Minute),
			MinDistanceNM:     0.1,
			SpeedThresholdKn:  0.5,
			TurnThresholdDeg:  30,
			PersistLimit:      Duration(60 * time.Second),
			AnomalyDistanceNM: 5,
			AnomalyWindow:     Duration(2 * time.Minute),
		},
		Targets: TargetsConfig{
			PassInterval:   Duration(time.Minute),
			DetailInterval: 30,
		},
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:9188",
		},
		Pairing: PairingConfig{
			Addr: ":9189",
		},
	}
}

// LoadFile reads a YAML config file over the defaults. The file may
// set any subset of fields; everything else keeps its default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays PELORUS_* environment variables. Names follow the
// struct layout: PELORUS_SHORE_API_KEY, PELORUS_SYNC_INTERVAL,
// PELORUS_TRIGGERS_SPEED_THRESHOLD_KN, and so on.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process("pelorus", c); err != nil {
		return fmt.Errorf("config: applying environment: %w", err)
	}
	return nil
}

var mmsiPattern = regexp.MustCompile(`^[0-9]{9}$`)

// Validate checks ranges and required fields, collecting every
// problem rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Vessel.MMSI != "" && !mmsiPattern.MatchString(c.Vessel.MMSI) {
		errs = append(errs, fmt.Errorf("vessel.mmsi must be nine digits, got %q", c.Vessel.MMSI))
	}

	if c.Feed.Addr == "" {
		errs = append(errs, fmt.Errorf("feed.addr is required"))
	}
	if c.Feed.StaleAfter.Std() <= 0 {
		errs = append(errs, fmt.Errorf("feed.stale_after must be positive"))
	}

	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}

	if c.Shore.BaseURL == "" {
		errs = append(errs, fmt.Errorf("shore.base_url is required"))
	} else if parsed, err := url.Parse(c.Shore.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("shore.base_url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("shore.base_url must be http or https, got %q", c.Shore.BaseURL))
	}
	if c.Shore.Collector == "" {
		errs = append(errs, fmt.Errorf("shore.collector is required"))
	}
	if c.Shore.Timeout.Std() <= 0 {
		errs = append(errs, fmt.Errorf("shore.timeout must be positive"))
	}

	if c.Sync.Interval.Std() <= 0 {
		errs = append(errs, fmt.Errorf("sync.interval must be positive"))
	}
	if c.Sync.BatchLimit <= 0 {
		errs = append(errs, fmt.Errorf("sync.batch_limit must be positive"))
	}

	if c.Triggers.MaxInterval.Std() <= 0 {
		errs = append(errs, fmt.Errorf("triggers.max_interval must be positive"))
	}
	if c.Triggers.MovingInterval.Std() <= 0 {
		errs = append(errs, fmt.Errorf("triggers.moving_interval must be positive"))
	}
	if c.Triggers.MovingInterval.Std() > c.Triggers.MaxInterval.Std() {
		errs = append(errs, fmt.Errorf("triggers.moving_interval must not exceed triggers.max_interval"))
	}
	if c.Triggers.MinDistanceNM <= 0 {
		errs = append(errs, fmt.Errorf("triggers.min_distance_nm must be positive"))
	}
	if c.Triggers.SpeedThresholdKn <= 0 {
		errs = append(errs, fmt.Errorf("triggers.speed_threshold_kn must be positive"))
	}
	if c.Triggers.TurnThresholdDeg <= 0 || c.Triggers.TurnThresholdDeg > 180 {
		errs = append(errs, fmt.Errorf("triggers.turn_threshold_deg must be in (0, 180]"))
	}
	if c.Triggers.PersistLimit.Std() <= 0 {
		errs = append(errs, fmt.Errorf("triggers.persist_limit must be positive"))
	}
	if c.Triggers.AnomalyDistanceNM <= 0 {
		errs = append(errs, fmt.Errorf("triggers.anomaly_distance_nm must be positive"))
	}
	if c.Triggers.AnomalyWindow.Std() <= 0 {
		errs = append(errs, fmt.Errorf("triggers.anomaly_window must be positive"))
	}

	if c.Targets.PassInterval.Std() <= 0 {
		errs = append(errs, fmt.Errorf("targets.pass_interval must be positive"))
	}
	if c.Targets.DetailInterval <= 0 {
		errs = append(errs, fmt.Errorf("targets.detail_interval must be positive"))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr is required"))
	}
	if c.Pairing.Addr == "" {
		errs = append(errs, fmt.Errorf("pairing.addr is required"))
	}

	return errors.Join(errs...)
}
