// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Pelorus-shore-mock is an in-memory stand-in for the shore service,
// for demos and manual collector testing. It speaks the same wire
// format as the real service on all five collector endpoints, stores
// everything it receives in memory, and logs each upload so an
// operator can watch a collector work against it.
//
// Endpoints:
//   - POST /{collector}/update: single-point live upload
//   - POST /{collector}/push: batch upload; the ack cursor is the
//     newest track point timestamp received so far
//   - GET /monitoring/{collector}/configuration: remote config document
//   - POST /monitoring/{collector}/push: vessel metadata
//   - POST /ais/{collector}/push: proximity target table
//   - GET /state: stored counts, for manual inspection
//
// The served configuration document and the push-response side channel
// are set with flags: --config-version is advertised in every batch
// ack (so a fresh collector fetches the document once and then goes
// quiet), and --request-metadata arms a one-shot refreshMetadata in
// the first ack.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/pelorus-marine/pelorus/lib/geo"
	"github.com/pelorus-marine/pelorus/lib/schema"
	"github.com/pelorus-marine/pelorus/lib/service"
	"github.com/pelorus-marine/pelorus/lib/shore"
	"github.com/pelorus-marine/pelorus/lib/version"
)

// maxRequestSize bounds request body reads. The largest legitimate
// body is a full batch push, well under a megabyte.
const maxRequestSize int64 = 8 << 20

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pelorus-shore-mock:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addr            string
		key             string
		configVersion   int64
		sendTargets     bool
		targetRangeNM   float64
		requestMetadata bool
		logLevel        string
		logJSON         bool
		showVersion     bool
	)
	flags := pflag.NewFlagSet("pelorus-shore-mock", pflag.ContinueOnError)
	flags.StringVar(&addr, "addr", "127.0.0.1:9190", "TCP listen address")
	flags.StringVar(&key, "key", "", "collector key to require; empty accepts any key")
	flags.Int64Var(&configVersion, "config-version", 1, "version of the served configuration document")
	flags.BoolVar(&sendTargets, "send-targets", true, "served configuration enables target uploads")
	flags.Float64Var(&targetRangeNM, "target-range", 0, "served configuration target range in nautical miles; 0 keeps every target")
	flags.BoolVar(&requestMetadata, "request-metadata", false, "ask the collector for a metadata push in the first batch ack")
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
		fmt.Printf("pelorus-shore-mock %s\n", version.Info())
		return nil
	}

	logger, err := newLogger(logLevel, logJSON)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mock := &shoreMock{
		logger: logger,
		key:    key,
		config: schema.ShoreConfig{
			Version:       configVersion,
			SendTargets:   sendTargets,
			TargetRangeNM: targetRangeNM,
		},
		targets: make(map[string]schema.Target),
	}
	mock.requestMetadata.Store(requestMetadata)

	srv, err := service.New(service.Config{
		Address: addr,
		Handler: mock.routes(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("shore mock running",
		"version", version.Info(),
		"configVersion", configVersion,
		"keyRequired", key != "",
	)
	return srv.Serve(ctx)
}

// shoreMock holds everything a collector uploads. The answer shapes
// match the real service; the storage is a process lifetime's worth of
// memory, which is all a demo needs.
type shoreMock struct {
	logger *slog.Logger
	key    string
	config schema.ShoreConfig

	// requestMetadata arms the refreshMetadata flag in the next batch
	// ack, once. Models the shore asking a collector it holds no
	// metadata document for.
	requestMetadata atomic.Bool

	updates atomic.Uint64
	pushes  atomic.Uint64

	mu      sync.Mutex
	points  []schema.TrackPoint
	cursor  int64
	ownFix  *schema.TrackPoint
	targets map[string]schema.Target
	vessel  *schema.VesselInfo
}

func (m *shoreMock) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /{collector}/update", m.authorized(m.handleUpdate))
	mux.HandleFunc("POST /{collector}/push", m.authorized(m.handlePush))
	mux.HandleFunc("GET /monitoring/{collector}/configuration", m.authorized(m.handleConfiguration))
	mux.HandleFunc("POST /monitoring/{collector}/push", m.authorized(m.handleMetadata))
	mux.HandleFunc("POST /ais/{collector}/push", m.authorized(m.handleTargets))
	mux.HandleFunc("GET /state", m.handleState)
	return mux
}

// authorized rejects requests whose collector key does not match the
// configured one. With no configured key everything passes, which
// keeps quick demos free of key plumbing.
func (m *shoreMock) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.key != "" && r.Header.Get(shore.KeyHeader) != m.key {
			http.Error(w, "invalid collector key", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (m *shoreMock) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var point schema.TrackPoint
	if !decodeBody(w, r, &point) {
		return
	}

	m.mu.Lock()
	m.storePoint(point)
	m.mu.Unlock()
	m.updates.Add(1)

	m.logger.Info("live update",
		"collector", r.PathValue("collector"),
		"ts", point.Timestamp,
		"lat", point.Lat,
		"lon", point.Lon,
		"sog", point.SOG,
		"trigger", point.Trigger,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (m *shoreMock) handlePush(w http.ResponseWriter, r *http.Request) {
	var request schema.PushRequest
	if !decodeBody(w, r, &request) {
		return
	}

	stored := 0
	m.mu.Lock()
	for _, point := range request.Points {
		if m.storePoint(point) {
			stored++
		}
	}
	cursor := m.cursor
	m.mu.Unlock()
	m.pushes.Add(1)

	response := schema.PushResponse{
		ProcessedUntil:       cursor,
		ConfigurationVersion: m.config.Version,
	}
	if m.requestMetadata.CompareAndSwap(true, false) {
		response.RefreshMetadata = true
	}

	if len(request.Points) == 0 {
		m.logger.Info("heartbeat",
			"collector", r.PathValue("collector"),
			"cursor", cursor,
		)
	} else {
		m.logger.Info("batch received",
			"collector", r.PathValue("collector"),
			"points", len(request.Points),
			"stored", stored,
			"cursor", cursor,
		)
	}
	writeJSON(w, response)
}

func (m *shoreMock) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	m.logger.Info("configuration served",
		"collector", r.PathValue("collector"),
		"version", m.config.Version,
	)
	writeJSON(w, m.config)
}

func (m *shoreMock) handleMetadata(w http.ResponseWriter, r *http.Request) {
	var info schema.VesselInfo
	if !decodeBody(w, r, &info) {
		return
	}

	m.mu.Lock()
	m.vessel = &info
	m.mu.Unlock()

	m.logger.Info("vessel metadata",
		"collector", r.PathValue("collector"),
		"name", info.Name,
		"mmsi", info.MMSI,
		"collectorVersion", info.CollectorVersion,
		"os", info.Platform.OS,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (m *shoreMock) handleTargets(w http.ResponseWriter, r *http.Request) {
	var push schema.TargetPush
	if !decodeBody(w, r, &push) {
		return
	}
	if push.Targets == nil {
		push.Targets = make(map[string]schema.Target)
	}

	m.mu.Lock()
	// The shore mirrors the table rather than merging: absent keys
	// mean the target went out of range or stale.
	m.targets = push.Targets
	own := m.ownFix
	m.mu.Unlock()

	attrs := []any{
		"collector", r.PathValue("collector"),
		"targets", len(push.Targets),
	}
	if nearest, rangeNM, bearing, ok := nearestTarget(own, push.Targets); ok {
		attrs = append(attrs,
			"nearest", nearest.MMSI,
			"rangeNm", fmt.Sprintf("%.1f", rangeNM),
			"bearing", fmt.Sprintf("%03.0f", bearing),
		)
	}
	m.logger.Info("target table", attrs...)
	w.WriteHeader(http.StatusNoContent)
}

// stateResponse is the inspection document served at /state.
type stateResponse struct {
	Points        int                `json:"points"`
	Cursor        int64              `json:"cursor"`
	Updates       uint64             `json:"updates"`
	Pushes        uint64             `json:"pushes"`
	Targets       int                `json:"targets"`
	ConfigVersion int64              `json:"configVersion"`
	Vessel        *schema.VesselInfo `json:"vessel,omitempty"`
}

func (m *shoreMock) handleState(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	response := stateResponse{
		Points:        len(m.points),
		Cursor:        m.cursor,
		Updates:       m.updates.Load(),
		Pushes:        m.pushes.Load(),
		Targets:       len(m.targets),
		ConfigVersion: m.config.Version,
		Vessel:        m.vessel,
	}
	m.mu.Unlock()
	writeJSON(w, response)
}

// storePoint appends a point and advances the cursor. Called under
// mu. Collector timestamps are strictly monotonic, so the cursor
// doubles as a complete duplicate filter for the overlap between the
// live update path and the batch push that follows it.
func (m *shoreMock) storePoint(point schema.TrackPoint) bool {
	if point.Timestamp <= m.cursor {
		return false
	}
	m.points = append(m.points, point)
	m.cursor = point.Timestamp
	fix := point
	m.ownFix = &fix
	return true
}

// nearestTarget picks the closest target to the latest own-ship fix,
// for display. Returns ok=false with no fix yet or an empty table.
func nearestTarget(own *schema.TrackPoint, targets map[string]schema.Target) (schema.Target, float64, float64, bool) {
	if own == nil || len(targets) == 0 {
		return schema.Target{}, 0, 0, false
	}
	var nearest schema.Target
	rangeNM := math.MaxFloat64
	for _, target := range targets {
		d := geo.DistanceNM(own.Lat, own.Lon, target.Lat, target.Lon)
		if d < rangeNM {
			rangeNM = d
			nearest = target
		}
	}
	bearing := geo.Bearing(own.Lat, own.Lon, nearest.Lat, nearest.Lon)
	return nearest, rangeNM, bearing, true
}

// decodeBody decodes a JSON request body into v, answering 400 on
// malformed input. Returns false when the handler should stop.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
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
