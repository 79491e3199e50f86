// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package feed receives the instrument bridge's UDP stream. Each
// datagram carries one or more newline-separated JSON documents, each
// tagged with a type: position, wind, and environment readings flow
// to the engine loop over the Readings channel, while AIS target
// sightings accumulate in an internal table the proximity publisher
// snapshots once per pass. Malformed lines are counted and dropped;
// a broken sensor must never take the collector down.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pelorus-marine/pelorus/lib/clock"
	"github.com/pelorus-marine/pelorus/lib/metrics"
	"github.com/pelorus-marine/pelorus/lib/schema"
)

const (
	// defaultAddr is the conventional NMEA-over-UDP port on the
	// local interface.
	defaultAddr = "127.0.0.1:10110"

	// defaultStaleAfter is how long a target sighting stays in the
	// table without a refresh.
	defaultStaleAfter = 3 * time.Minute

	// readingQueueSize buffers readings between the socket loop and
	// the engine. The engine drains far faster than instruments
	// send, so the queue only matters across scheduling hiccups.
	readingQueueSize = 256

	// maxDatagramSize bounds a single read. The bridge sends small
	// documents; 64 KiB is the UDP ceiling anyway.
	maxDatagramSize = 64 * 1024
)

// Reading kinds delivered on the Readings channel.
const (
	KindPosition    = "position"
	KindWind        = "wind"
	KindEnvironment = "environment"

	// kindTarget is routed to the target table, never the channel.
	kindTarget = "target"
)

// Reading is one decoded instrument document. Kind selects which
// field is populated.
type Reading struct {
	Kind        string
	Position    schema.Position
	Wind        schema.Wind
	Environment schema.Environment
}

// Config holds the settings for creating a Listener.
type Config struct {
	// Addr is the UDP address to bind. Defaults to 127.0.0.1:10110.
	Addr string

	// Clock stamps readings that arrive without a timestamp.
	// Defaults to the real clock.
	Clock clock.Clock

	// Logger receives diagnostic output. Defaults to discarding.
	Logger *slog.Logger

	// StaleAfter drops target sightings not refreshed within this
	// window. Defaults to 3 minutes.
	StaleAfter time.Duration
}

// Listener owns the feed socket and the target table. Create with
// Listen, then call Run in a goroutine and consume Readings.
type Listener struct {
	conn       *net.UDPConn
	clk        clock.Clock
	logger     *slog.Logger
	staleAfter time.Duration
	readings   chan Reading

	mu      sync.Mutex
	targets map[string]schema.Target
}

// Listen binds the feed socket. The listener does not read until Run
// is called.
func Listen(cfg Config) (*Listener, error) {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("feed: resolving %s: %w", cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("feed: listening on %s: %w", cfg.Addr, err)
	}
	return &Listener{
		conn:       conn,
		clk:        cfg.Clock,
		logger:     cfg.Logger,
		staleAfter: cfg.StaleAfter,
		readings:   make(chan Reading, readingQueueSize),
		targets:    make(map[string]schema.Target),
	}, nil
}

// Addr returns the bound socket address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Readings is the channel of decoded position, wind, and environment
// documents. The channel is never closed; consumers select against
// their own context.
func (l *Listener) Readings() <-chan Reading {
	return l.readings
}

// Run reads datagrams until ctx is cancelled, then closes the socket.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	l.logger.Info("feed listening", "addr", l.conn.LocalAddr())
	buf := make([]byte, maxDatagramSize)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed: reading datagram: %w", err)
		}
		l.ingest(buf[:n])
	}
}

// CurrentTargets returns the sightings refreshed within the stale
// window, pruning the rest. Implements the proximity source.
func (l *Listener) CurrentTargets(now time.Time) []schema.Target {
	cutoff := now.Add(-l.staleAfter).Unix()
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]schema.Target, 0, len(l.targets))
	for mmsi, target := range l.targets {
		if target.Timestamp < cutoff {
			delete(l.targets, mmsi)
			continue
		}
		out = append(out, target)
	}
	return out
}

func (l *Listener) ingest(datagram []byte) {
	for _, line := range bytes.Split(datagram, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		l.ingestLine(line)
	}
}

func (l *Listener) ingestLine(line []byte) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		l.malformed("undecodable line", err)
		return
	}

	switch head.Type {
	case KindPosition:
		var p schema.Position
		if err := json.Unmarshal(line, &p); err != nil {
			l.malformed("bad position document", err)
			return
		}
		if !p.Valid() {
			l.malformed("implausible coordinates", nil)
			return
		}
		if p.Timestamp == 0 {
			p.Timestamp = l.clk.Now().Unix()
		}
		l.deliver(Reading{Kind: KindPosition, Position: p})

	case KindWind:
		var w schema.Wind
		if err := json.Unmarshal(line, &w); err != nil {
			l.malformed("bad wind document", err)
			return
		}
		l.deliver(Reading{Kind: KindWind, Wind: w})

	case KindEnvironment:
		var e schema.Environment
		if err := json.Unmarshal(line, &e); err != nil {
			l.malformed("bad environment document", err)
			return
		}
		l.deliver(Reading{Kind: KindEnvironment, Environment: e})

	case kindTarget:
		var t schema.Target
		if err := json.Unmarshal(line, &t); err != nil {
			l.malformed("bad target document", err)
			return
		}
		if t.MMSI == "" {
			l.malformed("target without MMSI", nil)
			return
		}
		if t.Timestamp == 0 {
			t.Timestamp = l.clk.Now().Unix()
		}
		l.upsertTarget(t)
		metrics.FeedReading(kindTarget)

	default:
		l.malformed("unknown document type "+head.Type, nil)
	}
}

// upsertTarget merges a sighting into the table. Light fields always
// win; a sighting without static detail keeps the detail an earlier
// one carried, so the table always holds the best-known document.
func (l *Listener) upsertTarget(t schema.Target) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.targets[t.MMSI]; ok && t.Detail == nil {
		t.Detail = existing.Detail
	}
	l.targets[t.MMSI] = t
}

func (l *Listener) deliver(r Reading) {
	metrics.FeedReading(r.Kind)
	select {
	case l.readings <- r:
	default:
		metrics.FeedDropped()
		l.logger.Debug("reading dropped, engine queue full", "kind", r.Kind)
	}
}

func (l *Listener) malformed(reason string, err error) {
	metrics.FeedMalformed()
	l.logger.Debug("dropping feed line", "reason", reason, "error", err)
}
