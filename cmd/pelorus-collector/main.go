// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// pelorus-collector is the onboard telemetry daemon. It listens for
// instrument readings from the bridge feed on UDP, decides which
// position samples become track points, buffers them in a local
// SQLite tracklog, and drains the buffer to the shore service
// whenever the vessel's link allows. AIS targets observed nearby ride
// along on a separate cadence.
//
// Configuration layers, lowest to highest precedence: built-in
// defaults, the YAML config file, PELORUS_* environment variables.
// An optional .env file is folded into the environment first. On
// first start, without an API key, the collector opens the LAN
// pairing endpoint and waits for the provisioning tool to claim it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/pelorus-marine/pelorus/lib/clock"
	"github.com/pelorus-marine/pelorus/lib/collector"
	"github.com/pelorus-marine/pelorus/lib/config"
	"github.com/pelorus-marine/pelorus/lib/feed"
	"github.com/pelorus-marine/pelorus/lib/pairing"
	"github.com/pelorus-marine/pelorus/lib/platform"
	"github.com/pelorus-marine/pelorus/lib/schema"
	"github.com/pelorus-marine/pelorus/lib/shore"
	"github.com/pelorus-marine/pelorus/lib/significance"
	"github.com/pelorus-marine/pelorus/lib/tracklog"
	"github.com/pelorus-marine/pelorus/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		envFile     string
		logLevel    string
		logJSON     bool
		showVersion bool
	)
	flags := pflag.NewFlagSet("pelorus-collector", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to the YAML config file")
	flags.StringVar(&envFile, "env-file", "", "path to a .env file folded into the environment")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.BoolVar(&logJSON, "log-json", false, "force JSON log output even on a terminal")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("pelorus-collector %s\n", version.Info())
		return nil
	}

	// .env goes into the process environment before the PELORUS_*
	// overlay reads it. The default .env is optional; a named one
	// must exist.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger, err := newLogger(logLevel, logJSON)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// First start: no API key yet, so wait for the provisioning tool
	// to claim this collector over the LAN.
	key := cfg.Shore.APIKey
	if key == "" {
		key, err = runPairing(ctx, cfg.Pairing.Addr, logger)
		if err != nil {
			return err
		}
		if key == "" {
			// Interrupted while waiting; nothing to clean up.
			return nil
		}
	}

	store, err := tracklog.Open(tracklog.Config{
		Path:   cfg.Storage.Path,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	uplink, err := shore.NewClient(shore.Config{
		BaseURL:    cfg.Shore.BaseURL,
		Collector:  cfg.Shore.Collector,
		Key:        key,
		HTTPClient: &http.Client{Timeout: cfg.Shore.Timeout.Std()},
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return err
	}

	intake, err := feed.Listen(feed.Config{
		Addr:       cfg.Feed.Addr,
		StaleAfter: cfg.Feed.StaleAfter.Std(),
		Clock:      clock.Real(),
		Logger:     logger,
	})
	if err != nil {
		store.Close()
		return err
	}

	eng, err := collector.New(collector.Config{
		Intake: intake,
		Store:  store,
		Uplink: uplink,
		Clock:  clock.Real(),
		Logger: logger,
		Triggers: significance.Config{
			MaxInterval:       cfg.Triggers.MaxInterval.Std(),
			MovingInterval:    cfg.Triggers.MovingInterval.Std(),
			MinDistanceNM:     cfg.Triggers.MinDistanceNM,
			SpeedThresholdKn:  cfg.Triggers.SpeedThresholdKn,
			TurnThresholdDeg:  cfg.Triggers.TurnThresholdDeg,
			PersistLimit:      cfg.Triggers.PersistLimit.Std(),
			AnomalyDistanceNM: cfg.Triggers.AnomalyDistanceNM,
			AnomalyWindow:     cfg.Triggers.AnomalyWindow.Std(),
		},
		SyncInterval:         cfg.Sync.Interval.Std(),
		BatchLimit:           cfg.Sync.BatchLimit,
		VesselInfo:           vesselInfo(cfg),
		SkipStartupMetadata:  cfg.Sync.SkipStartupMetadata,
		TargetPassInterval:   cfg.Targets.PassInterval.Std(),
		TargetDetailInterval: cfg.Targets.DetailInterval,
		StatusAddr:           cfg.HTTP.Addr,
	})
	if err != nil {
		store.Close()
		return err
	}

	if err := eng.Start(ctx); err != nil {
		store.Close()
		return err
	}
	logger.Info("collector running",
		"version", version.Info(),
		"feed", cfg.Feed.Addr,
		"shore", cfg.Shore.BaseURL,
		"collector", cfg.Shore.Collector,
		"status", cfg.HTTP.Addr,
		"tracklog", cfg.Storage.Path,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return eng.Stop()
}

// runPairing serves the LAN claim endpoint until the provisioning
// tool hands over the API key. Returns "" without error when
// interrupted. The claim token is printed for the operator to type
// into the provisioning tool.
func runPairing(ctx context.Context, addr string, logger *slog.Logger) (string, error) {
	srv, err := pairing.New(pairing.Config{
		Address: addr,
		Logger:  logger,
	})
	if err != nil {
		return "", err
	}
	logger.Info("no API key configured, waiting to be paired",
		"addr", addr, "token", srv.Token())

	key, err := srv.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil
		}
		return "", err
	}
	logger.Info("paired; set PELORUS_SHORE_API_KEY to keep the key across restarts")
	return key, nil
}

// vesselInfo builds the metadata document from the static config and
// a best-effort host probe.
func vesselInfo(cfg *config.Config) schema.VesselInfo {
	return schema.VesselInfo{
		Name:             cfg.Vessel.Name,
		MMSI:             cfg.Vessel.MMSI,
		Callsign:         cfg.Vessel.Callsign,
		LengthM:          cfg.Vessel.LengthM,
		BeamM:            cfg.Vessel.BeamM,
		DraughtM:         cfg.Vessel.DraughtM,
		CollectorVersion: version.Version,
		Platform:         platform.Probe(),
	}
}

func newLogger(level string, forceJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	options := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if !forceJSON && term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler), nil
}
