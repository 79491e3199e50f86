// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the collector's Prometheus instrumentation.
// Collectors register on the default registry at init; Handler serves
// them for the local /metrics endpoint. Callers go through the typed
// helpers so label values stay consistent.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pointsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelorus_points_persisted_total",
			Help: "Track points written to the local buffer, by trigger.",
		},
		[]string{"trigger"},
	)

	samplesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelorus_samples_rejected_total",
			Help: "Position samples rejected by the anomaly guard.",
		},
	)

	pushBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelorus_push_batches_total",
			Help: "Batch push attempts to the shore service, by outcome.",
		},
		[]string{"status"},
	)

	pointsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelorus_points_pruned_total",
			Help: "Track points removed from the buffer after shore acknowledgment.",
		},
	)

	backlogPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelorus_backlog_points",
			Help: "Track points currently waiting in the local buffer.",
		},
	)

	lastContact = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelorus_last_contact_timestamp_seconds",
			Help: "Unix time of the last successful shore exchange.",
		},
	)

	feedReadings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelorus_feed_readings_total",
			Help: "Instrument readings accepted from the feed, by kind.",
		},
		[]string{"kind"},
	)

	feedMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelorus_feed_malformed_total",
			Help: "Feed datagrams dropped because they failed to parse.",
		},
	)

	feedDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pelorus_feed_dropped_total",
			Help: "Well-formed readings dropped because the engine fell behind.",
		},
	)

	targetsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pelorus_targets_tracked",
			Help: "Proximity targets currently in the cache.",
		},
	)

	targetPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelorus_target_pushes_total",
			Help: "Target table pushes to the shore service, by outcome.",
		},
		[]string{"status"},
	)

	metadataPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelorus_metadata_publishes_total",
			Help: "Vessel metadata publishes, by outcome.",
		},
		[]string{"status"},
	)

	configFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pelorus_config_fetches_total",
			Help: "Remote configuration fetches, by outcome.",
		},
		[]string{"status"},
	)
)

const (
	statusOK    = "ok"
	statusError = "error"
)

func statusOf(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// PointPersisted records a track point written to the buffer.
func PointPersisted(trigger string) {
	pointsPersisted.WithLabelValues(trigger).Inc()
}

// SampleRejected records an anomaly-guard rejection.
func SampleRejected() {
	samplesRejected.Inc()
}

// PushBatch records a batch push attempt and its outcome.
func PushBatch(err error) {
	pushBatches.WithLabelValues(statusOf(err)).Inc()
}

// PointsPruned records points removed after acknowledgment.
func PointsPruned(n int) {
	pointsPruned.Add(float64(n))
}

// SetBacklog publishes the current buffer depth.
func SetBacklog(n int) {
	backlogPoints.Set(float64(n))
}

// ContactAt publishes the time of a successful shore exchange.
func ContactAt(t time.Time) {
	lastContact.Set(float64(t.Unix()))
}

// FeedReading records an accepted feed reading of the given kind.
func FeedReading(kind string) {
	feedReadings.WithLabelValues(kind).Inc()
}

// FeedMalformed records a dropped feed datagram.
func FeedMalformed() {
	feedMalformed.Inc()
}

// FeedDropped records a reading lost to a full engine queue.
func FeedDropped() {
	feedDropped.Inc()
}

// SetTargetsTracked publishes the proximity cache size.
func SetTargetsTracked(n int) {
	targetsTracked.Set(float64(n))
}

// TargetPush records a target table push and its outcome.
func TargetPush(err error) {
	targetPushes.WithLabelValues(statusOf(err)).Inc()
}

// MetadataPublish records a vessel metadata publish and its outcome.
func MetadataPublish(err error) {
	metadataPublishes.WithLabelValues(statusOf(err)).Inc()
}

// ConfigFetch records a remote configuration fetch and its outcome.
func ConfigFetch(err error) {
	configFetches.WithLabelValues(statusOf(err)).Inc()
}
