// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Target is one vessel in the proximity table, keyed by MMSI. The
// light fields refresh on every feed pass; Detail rides along only
// when the cache decides the shore needs it again (first sighting and
// every detail interval thereafter).
type Target struct {
	// MMSI is the nine-digit Maritime Mobile Service Identity as a
	// string, preserving leading zeros.
	MMSI string `json:"mmsi"`

	// Timestamp is the last sighting in Unix seconds UTC.
	Timestamp int64 `json:"ts"`

	// Lat and Lon are the target's reported position in decimal
	// degrees.
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`

	// SOG is speed over ground in knots; COG is course over ground in
	// degrees true.
	SOG float64 `json:"sog"`
	COG float64 `json:"cog"`

	// Heading is true heading in degrees when the target transmits
	// one.
	Heading float64 `json:"heading,omitempty"`

	// Detail is the static vessel data. Nil in light refreshes.
	Detail *TargetDetail `json:"detail,omitempty"`
}

// TargetDetail is the static (voyage and identity) portion of an AIS
// target. It changes rarely, so the proximity cache resends it only
// on a fixed pass cadence rather than with every position refresh.
type TargetDetail struct {
	Name        string  `json:"name,omitempty"`
	Callsign    string  `json:"callsign,omitempty"`
	IMO         string  `json:"imo,omitempty"`
	ShipType    int     `json:"shipType,omitempty"`
	NavStatus   int     `json:"navStatus"`
	Destination string  `json:"destination,omitempty"`
	DraughtM    float64 `json:"draught,omitempty"`
	LengthM     float64 `json:"length,omitempty"`
	BeamM       float64 `json:"beam,omitempty"`
}

// TargetPush is the body of a proximity upload: the current target
// table keyed by MMSI. Absent keys mean the target is out of range or
// stale; the shore mirrors the table rather than merging it.
type TargetPush struct {
	Targets map[string]Target `json:"targets"`
}
