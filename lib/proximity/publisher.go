// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package proximity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pelorus-marine/pelorus/lib/clock"
	"github.com/pelorus-marine/pelorus/lib/metrics"
	"github.com/pelorus-marine/pelorus/lib/schema"
)

// defaultPassInterval is the cadence of refresh-and-push passes.
const defaultPassInterval = time.Minute

// Source supplies the currently observed target table, already
// filtered for staleness.
type Source interface {
	CurrentTargets(now time.Time) []schema.Target
}

// Pusher is the slice of the shore client the publisher needs.
type Pusher interface {
	PushTargets(ctx context.Context, push schema.TargetPush) error
}

// Config holds the settings for creating a Publisher.
type Config struct {
	// Source supplies sightings each pass.
	Source Source

	// Pusher uploads the target table.
	Pusher Pusher

	// Cache to publish from. Defaults to a fresh cache with the
	// default detail cadence.
	Cache *Cache

	// Clock drives the pass ticker. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives diagnostic output. Defaults to discarding.
	Logger *slog.Logger

	// Interval between passes. Defaults to one minute.
	Interval time.Duration
}

// Publisher runs the proximity loop: every interval it refreshes the
// cache from the source and, when the shore has target publication
// switched on, uploads the snapshot. Refresh passes run even while
// publication is off so eviction and the detail cadence stay honest.
type Publisher struct {
	cache    *Cache
	source   Source
	pusher   Pusher
	clk      clock.Clock
	logger   *slog.Logger
	interval time.Duration

	mu          sync.Mutex
	sendTargets bool
	rangeNM     float64
	ownLat      float64
	ownLon      float64
	haveOwn     bool
	lastPushed  int
}

// New creates a Publisher. Source and Pusher are required.
func New(cfg Config) (*Publisher, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("proximity: Source is required")
	}
	if cfg.Pusher == nil {
		return nil, fmt.Errorf("proximity: Pusher is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = NewCache(0)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPassInterval
	}
	return &Publisher{
		cache:    cfg.Cache,
		source:   cfg.Source,
		pusher:   cfg.Pusher,
		clk:      cfg.Clock,
		logger:   cfg.Logger,
		interval: cfg.Interval,
	}, nil
}

// ApplyConfig adopts the shore-owned publication policy. Safe from
// any goroutine; takes effect on the next pass.
func (p *Publisher) ApplyConfig(cfg schema.ShoreConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendTargets = cfg.SendTargets
	p.rangeNM = cfg.TargetRangeNM
}

// ObserveOwnFix records own ship's position for the range filter.
// Safe from any goroutine.
func (p *Publisher) ObserveOwnFix(lat, lon float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ownLat = lat
	p.ownLon = lon
	p.haveOwn = true
}

// Run executes passes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := p.clk.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		p.pass(ctx)
	}
}

func (p *Publisher) pass(ctx context.Context) {
	now := p.clk.Now()
	p.cache.RefreshPass(p.source.CurrentTargets(now))
	metrics.SetTargetsTracked(p.cache.Size())

	p.mu.Lock()
	send := p.sendTargets
	filter := Filter{
		OwnLat:  p.ownLat,
		OwnLon:  p.ownLon,
		HaveOwn: p.haveOwn,
		RangeNM: p.rangeNM,
	}
	p.mu.Unlock()
	if !send {
		return
	}

	push := p.cache.SnapshotPush(filter)
	p.mu.Lock()
	previous := p.lastPushed
	p.mu.Unlock()
	// An empty table is pushed once so the shore clears its mirror,
	// then the quiet sea stays off the network.
	if len(push.Targets) == 0 && previous == 0 {
		return
	}

	err := p.pusher.PushTargets(ctx, push)
	metrics.TargetPush(err)
	if err != nil {
		p.logger.Warn("target push failed",
			"error", err,
			"targets", len(push.Targets))
		return
	}
	// Recorded only on success: a clearing push that never reached the
	// shore is due again next pass.
	p.mu.Lock()
	p.lastPushed = len(push.Targets)
	p.mu.Unlock()
	p.logger.Debug("pushed proximity targets", "targets", len(push.Targets))
}
