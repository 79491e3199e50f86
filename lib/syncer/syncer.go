// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncer drains the durable track buffer to the shore
// service. The engine runs as a single goroutine: it wakes on an
// append notification or a fallback timer, peeks a batch, pushes it,
// and prunes exactly what the shore acknowledged. The buffer is never
// mutated on a failed push, so a crash or a dead link costs nothing
// but latency. An empty buffer still pushes an empty batch as a
// liveness heartbeat.
//
// Push responses double as a side channel: the shore can request a
// metadata re-publish or advertise a newer configuration version.
// Both follow-ups run as fire-and-forget goroutines with their own
// deadlines so they never stall the drain loop.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pelorus-marine/pelorus/lib/clock"
	"github.com/pelorus-marine/pelorus/lib/codec"
	"github.com/pelorus-marine/pelorus/lib/metrics"
	"github.com/pelorus-marine/pelorus/lib/schema"
	"github.com/pelorus-marine/pelorus/lib/tracklog"
)

const (
	// defaultInterval is the normal sync interval. The fallback
	// timer fires at twice this when no shore contact succeeded,
	// and failed attempts retry at this cadence.
	defaultInterval = 5 * time.Minute

	// defaultBatchLimit caps points per push. The shore enforces a
	// request-size ceiling, and 60 full points stay comfortably
	// under it.
	defaultBatchLimit = 60

	// finalDrainTimeout bounds the best-effort drain at shutdown.
	finalDrainTimeout = 5 * time.Second

	// sideChannelTimeout bounds each fire-and-forget follow-up
	// (metadata publish, configuration refetch).
	sideChannelTimeout = 30 * time.Second
)

// Uplink is the slice of the shore client the engine needs. Tests
// substitute a fake; production passes *shore.Client.
type Uplink interface {
	PushPoints(ctx context.Context, points []schema.TrackPoint) (schema.PushResponse, error)
	PublishMetadata(ctx context.Context, info schema.VesselInfo) error
	FetchConfiguration(ctx context.Context) (schema.ShoreConfig, error)
	CloseIdleConnections()
}

// Config holds the settings for creating an Engine.
type Config struct {
	// Store is the durable buffer to drain.
	Store *tracklog.Store

	// Uplink talks to the shore service.
	Uplink Uplink

	// Clock drives the fallback timer. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives diagnostic output. Defaults to discarding.
	Logger *slog.Logger

	// Interval is the normal sync interval. Defaults to 5 minutes.
	Interval time.Duration

	// BatchLimit caps points per push. Defaults to 60.
	BatchLimit int

	// VesselInfo is the metadata document published to the shore.
	VesselInfo schema.VesselInfo

	// SkipStartupMetadata suppresses the metadata publish normally
	// attempted when the engine starts. The shore can still request
	// one through the side channel.
	SkipStartupMetadata bool

	// OnConfig, if set, is called with each freshly fetched remote
	// configuration after it has been cached. Called from a
	// follow-up goroutine; implementations must be safe for that.
	OnConfig func(schema.ShoreConfig)
}

// Engine owns the drain loop. Create with New, then call Run in a
// goroutine; Kick wakes it after an append.
type Engine struct {
	store      *tracklog.Store
	uplink     Uplink
	clk        clock.Clock
	logger     *slog.Logger
	interval   time.Duration
	batchLimit int
	vesselInfo schema.VesselInfo
	skipMeta   bool
	onConfig   func(schema.ShoreConfig)

	// notify has capacity 1: any burst of appends between drains
	// collapses into a single pending wakeup.
	notify chan struct{}

	lastContact   atomic.Int64 // Unix seconds of last successful exchange
	configVersion atomic.Int64 // newest remote config version seen

	// lastAttempt is touched only by the Run goroutine.
	lastAttempt time.Time

	metaInFlight   atomic.Bool
	configInFlight atomic.Bool
	followups      sync.WaitGroup

	// sideCtx parents the follow-up contexts so shutdown can cut
	// them short instead of waiting out their timeouts.
	sideCtx    context.Context
	sideCancel context.CancelFunc
}

// New creates an Engine. Store and Uplink are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("syncer: Store is required")
	}
	if cfg.Uplink == nil {
		return nil, fmt.Errorf("syncer: Uplink is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	sideCtx, sideCancel := context.WithCancel(context.Background())
	return &Engine{
		store:      cfg.Store,
		uplink:     cfg.Uplink,
		clk:        cfg.Clock,
		logger:     cfg.Logger,
		interval:   cfg.Interval,
		batchLimit: cfg.BatchLimit,
		vesselInfo: cfg.VesselInfo,
		skipMeta:   cfg.SkipStartupMetadata,
		onConfig:   cfg.OnConfig,
		notify:     make(chan struct{}, 1),
		sideCtx:    sideCtx,
		sideCancel: sideCancel,
	}, nil
}

// Kick wakes the drain loop. Non-blocking; safe from any goroutine.
// Call after every successful Append.
func (e *Engine) Kick() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// LastContact returns the time of the last successful shore exchange,
// or the zero time if none has happened (including previous runs,
// once Run has seeded from the store).
func (e *Engine) LastContact() time.Time {
	unix := e.lastContact.Load()
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

// Run executes the drain loop until ctx is cancelled, then makes one
// final best-effort drain and waits for any follow-ups to finish.
func (e *Engine) Run(ctx context.Context) error {
	if last, err := e.store.LastSync(ctx); err != nil {
		e.logger.Warn("reading last sync time", "error", err)
	} else if last > 0 {
		e.lastContact.Store(last)
	}
	if cached, ok, err := e.store.CachedConfig(ctx); err != nil {
		e.logger.Warn("reading cached configuration", "error", err)
	} else if ok {
		e.configVersion.Store(cached.Version)
	}

	if !e.skipMeta {
		e.spawnMetadataPublish(false)
	}

	// Initial drain pushes any backlog left over from the previous
	// run without waiting for a trigger.
	e.drainLoop(ctx)

	for {
		select {
		case <-e.notify:
		case <-e.clk.After(e.fallbackWait()):
		case <-ctx.Done():
			return e.shutdown()
		}
		if ctx.Err() != nil {
			return e.shutdown()
		}
		e.drainLoop(ctx)
	}
}

// shutdown runs the final drain, cuts any in-flight follow-ups
// short, and joins them.
func (e *Engine) shutdown() error {
	e.finalDrain()
	e.sideCancel()
	e.followups.Wait()
	return nil
}

// fallbackWait returns how long to sleep before the next unprompted
// drain: twice the interval after the last successful contact, but
// never sooner than one interval after the last attempt, so a dead
// link retries at the normal cadence instead of spinning.
func (e *Engine) fallbackWait() time.Duration {
	now := e.clk.Now()
	due := time.Unix(e.lastContact.Load(), 0).Add(2 * e.interval)
	if floor := e.lastAttempt.Add(e.interval); due.Before(floor) {
		due = floor
	}
	wait := due.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// drainLoop runs drain cycles until one makes no progress or empties
// the buffer. Progress means the shore's cursor actually removed
// rows; a cursor that moves nothing stops the loop so we wait for
// the next trigger instead of hammering a shore that is behind.
func (e *Engine) drainLoop(ctx context.Context) {
	for {
		progressed, remaining := e.drainOnce(ctx)
		if !progressed || remaining == 0 {
			return
		}
	}
}

// drainOnce performs a single peek-push-prune cycle.
func (e *Engine) drainOnce(ctx context.Context) (progressed bool, remaining int) {
	e.lastAttempt = e.clk.Now()

	batch, err := e.store.PeekBatch(ctx, e.batchLimit)
	if err != nil {
		e.logger.Error("reading batch from buffer", "error", err)
		return false, 0
	}

	response, err := e.uplink.PushPoints(ctx, batch)
	metrics.PushBatch(err)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("batch push failed, waiting for next trigger",
				"error", err,
				"batch", len(batch))
		}
		// Drop pooled connections: after a link outage a reused
		// connection often dies with the link.
		e.uplink.CloseIdleConnections()
		return false, 0
	}
	e.markContact(ctx)

	if len(batch) > 0 && response.ProcessedUntil > 0 {
		removed, err := e.store.PruneUpTo(ctx, response.ProcessedUntil)
		if err != nil {
			e.logger.Error("pruning acknowledged points", "error", err)
		} else {
			metrics.PointsPruned(removed)
			progressed = removed > 0
			e.logger.Debug("drained batch",
				"pushed", len(batch),
				"pruned", removed,
				"cursor", response.ProcessedUntil)
		}
	}

	if response.RefreshMetadata {
		e.spawnMetadataPublish(true)
	}
	if v := response.ConfigurationVersion; v > 0 && v != e.configVersion.Load() {
		e.spawnConfigRefetch(v)
	}

	count, err := e.store.Count(ctx)
	if err != nil {
		e.logger.Error("counting buffer backlog", "error", err)
		return progressed, 0
	}
	metrics.SetBacklog(count)
	return progressed, count
}

// markContact records a successful shore exchange, in memory for the
// fallback timer and in the store so the status survives a restart.
func (e *Engine) markContact(ctx context.Context) {
	now := e.clk.Now()
	e.lastContact.Store(now.Unix())
	metrics.ContactAt(now)
	if err := e.store.SetLastSync(ctx, now.Unix()); err != nil {
		e.logger.Warn("recording last sync time", "error", err)
	}
}

// finalDrain gives buffered points one last chance to reach the
// shore during shutdown. An empty buffer skips the network entirely;
// shutdown is not a liveness signal.
func (e *Engine) finalDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), finalDrainTimeout)
	defer cancel()
	count, err := e.store.Count(ctx)
	if err != nil || count == 0 {
		return
	}
	e.drainLoop(ctx)
}

// spawnMetadataPublish starts an asynchronous vessel metadata
// publish. force skips the fingerprint comparison (shore explicitly
// asked). At most one publish runs at a time; extra requests while
// one is in flight are dropped.
func (e *Engine) spawnMetadataPublish(force bool) {
	if !e.metaInFlight.CompareAndSwap(false, true) {
		return
	}
	e.followups.Add(1)
	go func() {
		defer e.followups.Done()
		defer e.metaInFlight.Store(false)
		ctx, cancel := context.WithTimeout(e.sideCtx, sideChannelTimeout)
		defer cancel()
		e.publishMetadata(ctx, force)
	}()
}

func (e *Engine) publishMetadata(ctx context.Context, force bool) {
	encoded, err := codec.Marshal(e.vesselInfo)
	if err != nil {
		e.logger.Error("encoding vessel metadata", "error", err)
		return
	}
	fp := codec.MetadataFingerprint(encoded)
	if !force {
		if stored, err := e.store.MetadataFingerprint(ctx); err == nil && stored == fp {
			e.logger.Debug("vessel metadata unchanged, skipping publish")
			return
		}
	}
	err = e.uplink.PublishMetadata(ctx, e.vesselInfo)
	metrics.MetadataPublish(err)
	if err != nil {
		e.logger.Warn("vessel metadata publish failed", "error", err)
		return
	}
	if err := e.store.SetMetadataFingerprint(ctx, fp); err != nil {
		e.logger.Warn("recording metadata fingerprint", "error", err)
	}
	e.logger.Info("published vessel metadata", "vessel", e.vesselInfo.Name)
}

// spawnConfigRefetch starts an asynchronous configuration fetch for
// the advertised version. At most one fetch runs at a time.
func (e *Engine) spawnConfigRefetch(advertised int64) {
	if !e.configInFlight.CompareAndSwap(false, true) {
		return
	}
	e.followups.Add(1)
	go func() {
		defer e.followups.Done()
		defer e.configInFlight.Store(false)
		ctx, cancel := context.WithTimeout(e.sideCtx, sideChannelTimeout)
		defer cancel()

		cfg, err := e.uplink.FetchConfiguration(ctx)
		metrics.ConfigFetch(err)
		if err != nil {
			e.logger.Warn("configuration fetch failed",
				"error", err,
				"advertised", advertised)
			return
		}
		if err := e.store.StoreConfig(ctx, cfg); err != nil {
			e.logger.Warn("caching configuration", "error", err)
		}
		e.configVersion.Store(cfg.Version)
		if e.onConfig != nil {
			e.onConfig(cfg)
		}
		e.logger.Info("applied remote configuration", "version", cfg.Version)
	}()
}
