// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package collector assembles the pipeline: bridge readings from the
// feed listener drive the motion tracker and the significance
// evaluator, persisted points land in the tracklog, the syncer drains
// the tracklog to the shore, and the proximity publisher uploads the
// observed target table. The Engine owns every goroutine. Start
// brings the pipeline up; Stop tears it down intake-first so the last
// samples are folded in and drained before the store closes.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pelorus-marine/pelorus/lib/clock"
	"github.com/pelorus-marine/pelorus/lib/feed"
	"github.com/pelorus-marine/pelorus/lib/metrics"
	"github.com/pelorus-marine/pelorus/lib/motion"
	"github.com/pelorus-marine/pelorus/lib/proximity"
	"github.com/pelorus-marine/pelorus/lib/schema"
	"github.com/pelorus-marine/pelorus/lib/service"
	"github.com/pelorus-marine/pelorus/lib/significance"
	"github.com/pelorus-marine/pelorus/lib/status"
	"github.com/pelorus-marine/pelorus/lib/syncer"
	"github.com/pelorus-marine/pelorus/lib/tracklog"
)

// liveUpdateTimeout bounds the fire-and-forget single-point upload.
const liveUpdateTimeout = 10 * time.Second

// Intake is the feed surface the engine consumes. *feed.Listener
// implements it.
type Intake interface {
	Run(ctx context.Context) error
	Readings() <-chan feed.Reading
	CurrentTargets(now time.Time) []schema.Target
}

// Uplink is the slice of the shore client the engine and its
// components talk through. *shore.Client implements it.
type Uplink interface {
	syncer.Uplink
	UpdatePoint(ctx context.Context, point schema.TrackPoint) error
	PushTargets(ctx context.Context, push schema.TargetPush) error
}

// Config holds the settings for creating an Engine.
type Config struct {
	// Intake delivers bridge readings and the current target table.
	// Required.
	Intake Intake

	// Store is the durable point buffer. The engine owns its
	// lifecycle once started: Stop closes it. Required.
	Store *tracklog.Store

	// Uplink talks to the shore service. Required.
	Uplink Uplink

	// Clock drives decisions and the component timers. Defaults to
	// the real clock.
	Clock clock.Clock

	// Logger receives diagnostic output. Defaults to discarding.
	Logger *slog.Logger

	// Triggers is the local persistence tuning. Non-zero fields of
	// the shore configuration overlay it.
	Triggers significance.Config

	// SyncInterval, BatchLimit, VesselInfo and SkipStartupMetadata
	// pass through to the syncer.
	SyncInterval        time.Duration
	BatchLimit          int
	VesselInfo          schema.VesselInfo
	SkipStartupMetadata bool

	// TargetPassInterval is the proximity survey cadence and
	// TargetDetailInterval the pass count between full-detail
	// uploads of a target.
	TargetPassInterval   time.Duration
	TargetDetailInterval int

	// StatusAddr, when set, serves /status, /healthz and /metrics on
	// the boat network for the engine's lifetime.
	StatusAddr string
}

// Engine runs the collector pipeline. An Engine is single-use: Start
// it once, Stop it once. Further Start calls fail and further Stop
// calls return the first outcome.
type Engine struct {
	intake Intake
	store  *tracklog.Store
	uplink Uplink
	clk    clock.Clock
	logger *slog.Logger

	tracker   *motion.Tracker
	evaluator *significance.Evaluator
	syncer    *syncer.Engine
	publisher *proximity.Publisher
	web       *service.HTTPServer // nil without StatusAddr

	baseTriggers significance.Config

	// configUpdates hands shore configs from the syncer's follow-up
	// goroutine to the loop goroutine, which owns the evaluator.
	// Capacity 1, newest wins.
	configUpdates chan schema.ShoreConfig

	cancelIntake context.CancelFunc
	cancelLoop   context.CancelFunc
	cancelRest   context.CancelFunc
	intakeDone   chan struct{}
	loopDone     chan struct{}
	restDone     sync.WaitGroup
	liveUpdates  sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once
	stopErr  error

	failOnce sync.Once
	failErr  error
}

// New creates an Engine and its internal components. Intake, Store
// and Uplink are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Intake == nil {
		return nil, fmt.Errorf("collector: Intake is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("collector: Store is required")
	}
	if cfg.Uplink == nil {
		return nil, fmt.Errorf("collector: Uplink is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	triggers := cfg.Triggers
	triggers.Logger = cfg.Logger

	e := &Engine{
		intake:        cfg.Intake,
		store:         cfg.Store,
		uplink:        cfg.Uplink,
		clk:           cfg.Clock,
		logger:        cfg.Logger,
		tracker:       motion.NewTracker(motion.Config{}),
		evaluator:     significance.NewEvaluator(triggers),
		baseTriggers:  triggers,
		configUpdates: make(chan schema.ShoreConfig, 1),
		intakeDone:    make(chan struct{}),
		loopDone:      make(chan struct{}),
	}

	sy, err := syncer.New(syncer.Config{
		Store:               cfg.Store,
		Uplink:              cfg.Uplink,
		Clock:               cfg.Clock,
		Logger:              cfg.Logger,
		Interval:            cfg.SyncInterval,
		BatchLimit:          cfg.BatchLimit,
		VesselInfo:          cfg.VesselInfo,
		SkipStartupMetadata: cfg.SkipStartupMetadata,
		OnConfig:            e.queueShoreConfig,
	})
	if err != nil {
		return nil, err
	}
	e.syncer = sy

	pub, err := proximity.New(proximity.Config{
		Source:   cfg.Intake,
		Pusher:   cfg.Uplink,
		Cache:    proximity.NewCache(cfg.TargetDetailInterval),
		Clock:    cfg.Clock,
		Logger:   cfg.Logger,
		Interval: cfg.TargetPassInterval,
	})
	if err != nil {
		return nil, err
	}
	e.publisher = pub

	if cfg.StatusAddr != "" {
		web, err := service.New(service.Config{
			Address: cfg.StatusAddr,
			Handler: e.statusHandler(),
			Logger:  cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		e.web = web
	}

	return e, nil
}

// Start seeds the evaluator from the store, applies any cached shore
// configuration, and spawns the pipeline goroutines. The context
// bounds the startup reads only; the running pipeline is owned by the
// engine and shut down through Stop.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return fmt.Errorf("collector: already started")
	}

	// Seed the persist history so a restart does not fire an
	// immediate heartbeat seconds after the previous point.
	last, err := e.store.LastPersisted(ctx)
	if err != nil {
		e.started.Store(false)
		return fmt.Errorf("collector: reading last persist: %w", err)
	}
	if last > 0 {
		e.evaluator.SeedLastPersist(time.Unix(last, 0).UTC())
	}

	// The cached shore configuration governs from the first sample,
	// not from the first successful fetch.
	cached, ok, err := e.store.CachedConfig(ctx)
	if err != nil {
		e.started.Store(false)
		return fmt.Errorf("collector: reading cached configuration: %w", err)
	}
	if ok {
		e.applyShoreConfig(cached)
	}

	intakeCtx, cancelIntake := context.WithCancel(context.Background())
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	restCtx, cancelRest := context.WithCancel(context.Background())
	e.cancelIntake = cancelIntake
	e.cancelLoop = cancelLoop
	e.cancelRest = cancelRest

	go func() {
		defer close(e.intakeDone)
		e.fail("feed", e.intake.Run(intakeCtx))
	}()
	go e.loop(loopCtx)
	e.spawn("syncer", restCtx, e.syncer.Run)
	e.spawn("proximity", restCtx, e.publisher.Run)
	if e.web != nil {
		e.spawn("status server", restCtx, e.web.Serve)
	}

	e.logger.Info("collector started")
	return nil
}

// Stop tears the pipeline down: intake first so no new samples
// arrive, then the loop folds in whatever the intake already queued,
// then the syncer runs its final drain, and last the store closes.
// Safe to call more than once.
func (e *Engine) Stop() error {
	if !e.started.Load() {
		return fmt.Errorf("collector: not started")
	}
	e.stopOnce.Do(func() {
		e.cancelIntake()
		<-e.intakeDone
		e.cancelLoop()
		<-e.loopDone
		e.cancelRest()
		e.restDone.Wait()
		e.liveUpdates.Wait()
		e.uplink.CloseIdleConnections()
		err := e.store.Close()
		e.stopErr = errors.Join(e.failErr, err)
		e.logger.Info("collector stopped")
	})
	return e.stopErr
}

// Web returns the status server, or nil when StatusAddr was not set.
func (e *Engine) Web() *service.HTTPServer {
	return e.web
}

func (e *Engine) spawn(name string, ctx context.Context, run func(context.Context) error) {
	e.restDone.Add(1)
	go func() {
		defer e.restDone.Done()
		e.fail(name, run(ctx))
	}()
}

// fail records the first component failure for Stop to report.
func (e *Engine) fail(name string, err error) {
	if err == nil {
		return
	}
	e.logger.Error("component failed", "component", name, "error", err)
	e.failOnce.Do(func() {
		e.failErr = fmt.Errorf("%s: %w", name, err)
	})
}

// loop is the single owner of the tracker and the evaluator.
func (e *Engine) loop(ctx context.Context) {
	defer close(e.loopDone)
	for {
		select {
		case <-ctx.Done():
			// The intake has already stopped. Fold in whatever it
			// queued before the socket closed so the final drain
			// ships it.
			for {
				select {
				case r := <-e.intake.Readings():
					e.handleReading(context.Background(), r)
				default:
					return
				}
			}
		case r := <-e.intake.Readings():
			e.handleReading(ctx, r)
		case cfg := <-e.configUpdates:
			e.applyShoreConfig(cfg)
		}
	}
}

func (e *Engine) handleReading(ctx context.Context, r feed.Reading) {
	switch r.Kind {
	case feed.KindPosition:
		e.handlePosition(ctx, r.Position)
	case feed.KindWind:
		e.tracker.ObserveWind(r.Wind)
	case feed.KindEnvironment:
		e.tracker.ObserveEnvironment(r.Environment)
	}
}

func (e *Engine) handlePosition(ctx context.Context, fix schema.Position) {
	decision := e.evaluator.Evaluate(e.clk.Now(), fix, e.tracker)
	if decision.Anomalous {
		metrics.SampleRejected()
		return
	}
	e.publisher.ObserveOwnFix(fix.Lat, fix.Lon)
	if !decision.Persist {
		return
	}

	// Buffer depth before the append decides the live fast path: an
	// empty buffer means the shore is caught up and the fresh point
	// is worth showing immediately.
	backlog, err := e.store.Count(ctx)
	if err != nil {
		e.logger.Error("reading buffer depth", "error", err)
		backlog = -1
	}

	point := e.tracker.Snapshot(fix.Timestamp, decision.Trigger)
	if err := e.store.Append(ctx, point); err != nil {
		e.logger.Error("appending track point", "trigger", decision.Trigger, "error", err)
		return
	}
	metrics.PointPersisted(decision.Trigger)
	e.logger.Debug("track point persisted",
		"trigger", decision.Trigger, "lat", point.Lat, "lon", point.Lon, "sog", point.SOG)

	e.syncer.Kick()
	if backlog == 0 {
		e.liveUpdate(point)
	}
}

// liveUpdate pushes the fresh point on the single-point endpoint,
// best effort. The durable path still owns delivery; a duplicate on
// the shore is keyed by timestamp and harmless.
func (e *Engine) liveUpdate(point schema.TrackPoint) {
	e.liveUpdates.Add(1)
	go func() {
		defer e.liveUpdates.Done()
		ctx, cancel := context.WithTimeout(context.Background(), liveUpdateTimeout)
		defer cancel()
		if err := e.uplink.UpdatePoint(ctx, point); err != nil {
			e.logger.Debug("live update failed", "error", err)
		}
	}()
}

// queueShoreConfig is the syncer's OnConfig callback. It runs on a
// follow-up goroutine, so the config is handed to the loop goroutine
// instead of touching the evaluator here.
func (e *Engine) queueShoreConfig(cfg schema.ShoreConfig) {
	for {
		select {
		case e.configUpdates <- cfg:
			return
		default:
		}
		select {
		case <-e.configUpdates:
		default:
		}
	}
}

// applyShoreConfig overlays the shore tuning onto the local trigger
// config and adopts the target publication policy. Called from the
// loop goroutine, or before it starts.
func (e *Engine) applyShoreConfig(remote schema.ShoreConfig) {
	e.evaluator.Retune(e.overlayTriggers(remote))
	e.publisher.ApplyConfig(remote)
	e.logger.Info("shore configuration applied",
		"version", remote.Version, "sendTargets", remote.SendTargets)
}

// overlayTriggers merges the shore tuning over the local defaults.
// Zero-valued remote fields leave the local setting alone.
func (e *Engine) overlayTriggers(remote schema.ShoreConfig) significance.Config {
	cfg := e.baseTriggers
	if remote.MaxIntervalSec > 0 {
		cfg.MaxInterval = time.Duration(remote.MaxIntervalSec) * time.Second
	}
	if remote.MovingIntervalSec > 0 {
		cfg.MovingInterval = time.Duration(remote.MovingIntervalSec) * time.Second
	}
	if remote.MinDistanceNM > 0 {
		cfg.MinDistanceNM = remote.MinDistanceNM
	}
	if remote.SpeedThresholdKn > 0 {
		cfg.SpeedThresholdKn = remote.SpeedThresholdKn
	}
	if remote.TurnThresholdDeg > 0 {
		cfg.TurnThresholdDeg = remote.TurnThresholdDeg
	}
	return cfg
}

func (e *Engine) statusHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		backlog, err := e.store.Count(r.Context())
		if err != nil {
			http.Error(w, "tracklog unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, status.Summary(e.clk.Now(), backlog, e.syncer.LastContact()))
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})
	return mux
}
