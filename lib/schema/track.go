// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Persistence trigger labels stamped on every track point. The shore
// uses them to distinguish heartbeat points from genuine course
// changes when rendering tracks.
const (
	// TriggerHeartbeat fires when the maximum reporting interval
	// elapses regardless of motion.
	TriggerHeartbeat = "heartbeat"

	// TriggerMoving fires on the shorter underway interval while the
	// vessel is moving.
	TriggerMoving = "moving"

	// TriggerDistance fires when the vessel has traveled the minimum
	// track distance since the last persisted point.
	TriggerDistance = "distance"

	// TriggerTurn fires on a sustained heading change across the
	// course window.
	TriggerTurn = "turn"

	// TriggerBand fires when smoothed speed crosses a speed band
	// boundary and the whole speed window confirms it.
	TriggerBand = "band"
)

// TrackPoint is one persisted telemetry record: the position fix plus
// the environmental readings current at persist time. It is the unit
// of the durable buffer and of shore uploads.
type TrackPoint struct {
	// Timestamp is the persist time in Unix seconds UTC. It is the
	// value the shore's processedUntil cursor is compared against, so
	// it must be unique per point; the buffer enforces monotonicity.
	Timestamp int64 `json:"ts"`

	// Lat and Lon are the fix in decimal degrees, WGS84.
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// SOG is speed over ground in knots, smoothed over the speed
	// window at persist time.
	SOG float64 `json:"sog"`

	// COG is course over ground in degrees true.
	COG float64 `json:"cog"`

	// Heading is the vessel heading in degrees true, when a compass
	// feed is present.
	Heading float64 `json:"heading,omitempty"`

	// BarometerHPa is station pressure in hectopascals.
	BarometerHPa float64 `json:"baro,omitempty"`

	// AirTempC and WaterTempC are in degrees Celsius.
	AirTempC   float64 `json:"airTemp,omitempty"`
	WaterTempC float64 `json:"waterTemp,omitempty"`

	// WindPeakKn is the peak apparent wind speed in knots observed
	// since the previous persisted point. Reset on persist.
	WindPeakKn float64 `json:"windPeak,omitempty"`

	// WindAngleDeg is the most recent apparent wind angle in degrees
	// relative to the bow, -180..180, negative to port.
	WindAngleDeg float64 `json:"windAngle,omitempty"`

	// DepthM is depth below transducer in meters.
	DepthM float64 `json:"depth,omitempty"`

	// Trigger is the persistence rule that produced this point, one
	// of the Trigger constants.
	Trigger string `json:"trigger"`
}
