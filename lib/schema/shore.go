// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// PushRequest is the body of a batch upload to the shore. An empty
// Points slice is a valid heartbeat: it refreshes the collector's
// last-contact state and still returns a cursor.
type PushRequest struct {
	Points []TrackPoint `json:"points"`
}

// PushResponse is the shore's answer to an update or push. Beyond the
// ack cursor it doubles as a side channel for shore-initiated
// requests, which keeps the collector free of any inbound listener.
type PushResponse struct {
	// ProcessedUntil is the ack cursor in Unix seconds UTC: every
	// buffered point with Timestamp <= ProcessedUntil is durably
	// stored on the shore and safe to prune.
	ProcessedUntil int64 `json:"processedUntil"`

	// RefreshMetadata asks the collector to re-push its vessel
	// metadata document.
	RefreshMetadata bool `json:"refreshMetadata,omitempty"`

	// ConfigurationVersion is the shore's current remote config
	// version. When it differs from the collector's cached version
	// the collector refetches asynchronously.
	ConfigurationVersion int64 `json:"configurationVersion,omitempty"`
}

// ShoreConfig is the remote configuration document owned by the shore
// and cached locally so a restart works offline. Zero-valued tuning
// fields mean "use the built-in default".
type ShoreConfig struct {
	// Version identifies this document; push responses advertise the
	// current version so the collector knows when to refetch.
	Version int64 `json:"version"`

	// SendTargets gates proximity target uploads entirely.
	SendTargets bool `json:"sendTargets"`

	// TargetRangeNM limits published targets to those within range of
	// own ship. Zero publishes everything the feed sees.
	TargetRangeNM float64 `json:"targetRange,omitempty"`

	// Trigger tuning. Durations are seconds.
	MaxIntervalSec    int64   `json:"maxInterval,omitempty"`
	MovingIntervalSec int64   `json:"movingInterval,omitempty"`
	MinDistanceNM     float64 `json:"minDistance,omitempty"`
	SpeedThresholdKn  float64 `json:"speedThreshold,omitempty"`
	TurnThresholdDeg  float64 `json:"turnThreshold,omitempty"`
}
