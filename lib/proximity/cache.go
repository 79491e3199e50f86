// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package proximity tracks nearby AIS targets and publishes them to
// the shore on a fixed cadence. The cache holds one entry per MMSI:
// light fields (position, speed, course) refresh on every pass, while
// the static detail document rides along only on first sighting and
// every detailInterval passes thereafter, keeping the steady-state
// payload small. A target absent from a refresh pass is evicted
// immediately; one missed pass means gone, and a reappearing target
// is new and resends its detail.
package proximity

import (
	"github.com/pelorus-marine/pelorus/lib/geo"
	"github.com/pelorus-marine/pelorus/lib/schema"
)

// defaultDetailInterval is the number of refresh passes between
// repeat transmissions of a target's static detail.
const defaultDetailInterval = 30

type entry struct {
	// light carries the per-pass fields. Detail is always nil here;
	// the snapshot attaches it from detail when dirty.
	light  schema.Target
	detail *schema.TargetDetail

	// passes counts refresh passes since detail was last marked for
	// sending.
	passes int
	dirty  bool
}

// Cache is the proximity target table. It is not safe for concurrent
// use; the publisher goroutine owns it and serializes refresh passes
// with snapshots.
type Cache struct {
	detailInterval int
	entries        map[string]*entry
}

// NewCache creates an empty cache. A non-positive detailInterval uses
// the default of 30 passes.
func NewCache(detailInterval int) *Cache {
	if detailInterval <= 0 {
		detailInterval = defaultDetailInterval
	}
	return &Cache{
		detailInterval: detailInterval,
		entries:        make(map[string]*entry),
	}
}

// Size returns the number of targets currently cached.
func (c *Cache) Size() int {
	return len(c.entries)
}

// RefreshPass ingests the feed's current sighting table. Sightings
// without an MMSI or with an out-of-range position are skipped. Every
// cached target not present in this pass is evicted.
func (c *Cache) RefreshPass(sightings []schema.Target) {
	seen := make(map[string]bool, len(sightings))
	for _, s := range sightings {
		if s.MMSI == "" || !validPosition(s.Lat, s.Lon) {
			continue
		}
		seen[s.MMSI] = true
		c.upsert(s)
	}
	for mmsi := range c.entries {
		if !seen[mmsi] {
			delete(c.entries, mmsi)
		}
	}
}

func (c *Cache) upsert(s schema.Target) {
	sightingDetail := s.Detail
	s.Detail = nil

	e, ok := c.entries[s.MMSI]
	if !ok {
		e = &entry{light: s, dirty: true}
		if sightingDetail != nil {
			d := *sightingDetail
			e.detail = &d
		}
		c.entries[s.MMSI] = e
		return
	}

	e.light = s
	if sightingDetail != nil {
		hadDetail := e.detail != nil
		d := *sightingDetail
		e.detail = &d
		// The first static report after sightings without one goes
		// out promptly rather than waiting for the pass cadence.
		if !hadDetail {
			e.dirty = true
		}
	}
	e.passes++
	if e.passes >= c.detailInterval {
		e.dirty = true
		e.passes = 0
	}
}

// Filter limits a snapshot to targets near own ship. A zero RangeNM
// publishes everything; HaveOwn false disables the range check even
// when RangeNM is set.
type Filter struct {
	OwnLat  float64
	OwnLon  float64
	HaveOwn bool
	RangeNM float64
}

// SnapshotPush builds the upload payload from the current table and
// clears the detail-dirty mark on every included target. Targets
// excluded by the filter keep their mark so the detail still goes out
// once they come back in range.
func (c *Cache) SnapshotPush(filter Filter) schema.TargetPush {
	push := schema.TargetPush{Targets: make(map[string]schema.Target, len(c.entries))}
	for mmsi, e := range c.entries {
		if filter.RangeNM > 0 && filter.HaveOwn {
			if geo.DistanceNM(filter.OwnLat, filter.OwnLon, e.light.Lat, e.light.Lon) > filter.RangeNM {
				continue
			}
		}
		t := e.light
		if e.dirty {
			if e.detail != nil {
				d := *e.detail
				t.Detail = &d
			}
			e.dirty = false
		}
		push.Targets[mmsi] = t
	}
	return push
}

func validPosition(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
