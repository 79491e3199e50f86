// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Position is one GNSS fix from the instrument feed.
type Position struct {
	// Timestamp is the fix time in Unix seconds UTC. Zero means the
	// feed did not carry a time and the collector stamps receipt.
	Timestamp int64 `json:"ts,omitempty"`

	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// SOG is speed over ground in knots.
	SOG float64 `json:"sog"`

	// COG is course over ground in degrees true.
	COG float64 `json:"cog"`

	// Heading is true heading in degrees, when present.
	Heading float64 `json:"heading,omitempty"`
}

// Valid reports whether the fix carries plausible coordinates. The
// feed drops invalid fixes before they reach the motion tracker.
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180 &&
		(p.Lat != 0 || p.Lon != 0)
}

// Wind is one anemometer reading.
type Wind struct {
	// ApparentSpeedKn and ApparentAngleDeg are relative to the
	// vessel; angle is -180..180, negative to port.
	ApparentSpeedKn  float64 `json:"aws"`
	ApparentAngleDeg float64 `json:"awa"`

	// TrueSpeedKn and TrueAngleDeg are present when the feed computes
	// true wind.
	TrueSpeedKn  float64 `json:"tws,omitempty"`
	TrueAngleDeg float64 `json:"twa,omitempty"`
}

// Environment is a slow-changing sensor reading. Zero-valued fields
// mean the sensor is absent, so readings merge instead of replacing.
type Environment struct {
	BarometerHPa float64 `json:"baro,omitempty"`
	AirTempC     float64 `json:"airTemp,omitempty"`
	WaterTempC   float64 `json:"waterTemp,omitempty"`
	DepthM       float64 `json:"depth,omitempty"`
}
