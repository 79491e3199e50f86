// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package proximity

import (
	"testing"

	"github.com/pelorus-marine/pelorus/lib/schema"
)

func sighting(mmsi string, lat, lon float64) schema.Target {
	return schema.Target{
		MMSI:      mmsi,
		Timestamp: 1764600000,
		Lat:       lat,
		Lon:       lon,
		SOG:       8.5,
		COG:       210,
	}
}

func withDetail(t schema.Target, name string) schema.Target {
	t.Detail = &schema.TargetDetail{
		Name:        name,
		Callsign:    "LK3825",
		ShipType:    70,
		Destination: "BERGEN",
	}
	return t
}

func TestNewTargetPublishesDetailOnce(t *testing.T) {
	cache := NewCache(0)
	s := withDetail(sighting("257000001", 60.1, 5.2), "HAVGULEN")

	cache.RefreshPass([]schema.Target{s})
	push := cache.SnapshotPush(Filter{})
	got, ok := push.Targets["257000001"]
	if !ok {
		t.Fatal("new target missing from snapshot")
	}
	if got.Detail == nil || got.Detail.Name != "HAVGULEN" {
		t.Fatalf("first snapshot detail = %+v, want full detail", got.Detail)
	}

	// The very next pass is a light refresh.
	cache.RefreshPass([]schema.Target{s})
	push = cache.SnapshotPush(Filter{})
	if d := push.Targets["257000001"].Detail; d != nil {
		t.Fatalf("second snapshot carried detail %+v, want none", d)
	}
}

func TestDetailCadenceEveryThirtyPasses(t *testing.T) {
	cache := NewCache(0)
	s := withDetail(sighting("257000001", 60.1, 5.2), "HAVGULEN")

	// Pass 0 is the first sighting; detail must reappear on passes 30
	// and 60 and on no pass in between.
	cache.RefreshPass([]schema.Target{s})
	if d := cache.SnapshotPush(Filter{}).Targets["257000001"].Detail; d == nil {
		t.Fatal("pass 0 snapshot missing detail")
	}
	for pass := 1; pass <= 60; pass++ {
		cache.RefreshPass([]schema.Target{s})
		d := cache.SnapshotPush(Filter{}).Targets["257000001"].Detail
		want := pass == 30 || pass == 60
		if got := d != nil; got != want {
			t.Fatalf("pass %d: detail attached = %v, want %v", pass, got, want)
		}
	}
}

func TestEvictionAfterOneMissedPass(t *testing.T) {
	cache := NewCache(0)
	a := withDetail(sighting("257000001", 60.1, 5.2), "HAVGULEN")
	b := sighting("257000002", 60.2, 5.3)

	for i := 0; i < 3; i++ {
		cache.RefreshPass([]schema.Target{a, b})
		cache.SnapshotPush(Filter{})
	}
	if got := cache.Size(); got != 2 {
		t.Fatalf("cache size = %d, want 2", got)
	}

	// A drops out for a single pass: evicted immediately.
	cache.RefreshPass([]schema.Target{b})
	if got := cache.Size(); got != 1 {
		t.Fatalf("cache size after missed pass = %d, want 1", got)
	}
	if _, ok := cache.SnapshotPush(Filter{}).Targets["257000001"]; ok {
		t.Fatal("evicted target still in snapshot")
	}

	// Reappearing makes it a new target, detail and all.
	cache.RefreshPass([]schema.Target{a, b})
	got, ok := cache.SnapshotPush(Filter{}).Targets["257000001"]
	if !ok {
		t.Fatal("reappeared target missing from snapshot")
	}
	if got.Detail == nil {
		t.Fatal("reappeared target snapshot missing detail")
	}
}

func TestLightFieldsRefreshEveryPass(t *testing.T) {
	cache := NewCache(0)
	s := withDetail(sighting("257000001", 60.1, 5.2), "HAVGULEN")
	cache.RefreshPass([]schema.Target{s})
	cache.SnapshotPush(Filter{})

	s.Lat = 60.15
	s.SOG = 9.1
	s.Timestamp = 1764600060
	cache.RefreshPass([]schema.Target{s})
	got := cache.SnapshotPush(Filter{}).Targets["257000001"]
	if got.Lat != 60.15 || got.SOG != 9.1 || got.Timestamp != 1764600060 {
		t.Fatalf("light refresh = %+v, want updated position and speed", got)
	}
	if got.Detail != nil {
		t.Fatal("light refresh carried detail")
	}
}

func TestLateStaticReportPublishesPromptly(t *testing.T) {
	cache := NewCache(0)
	bare := sighting("257000001", 60.1, 5.2)

	cache.RefreshPass([]schema.Target{bare})
	if d := cache.SnapshotPush(Filter{}).Targets["257000001"].Detail; d != nil {
		t.Fatalf("target without static data snapshotted detail %+v", d)
	}

	cache.RefreshPass([]schema.Target{bare})
	cache.SnapshotPush(Filter{})

	// The first static report arrives on pass 3, well before the
	// cadence would resend.
	cache.RefreshPass([]schema.Target{withDetail(bare, "HAVGULEN")})
	d := cache.SnapshotPush(Filter{}).Targets["257000001"].Detail
	if d == nil || d.Name != "HAVGULEN" {
		t.Fatalf("late static report not published, detail = %+v", d)
	}
}

func TestRangeFilterKeepsExcludedDirtyMark(t *testing.T) {
	cache := NewCache(0)
	near := withDetail(sighting("257000001", 60.0, 5.01), "NEAR")
	far := withDetail(sighting("257000002", 61.0, 5.0), "FAR")
	cache.RefreshPass([]schema.Target{near, far})

	inRange := Filter{OwnLat: 60.0, OwnLon: 5.0, HaveOwn: true, RangeNM: 10}
	push := cache.SnapshotPush(inRange)
	if _, ok := push.Targets["257000002"]; ok {
		t.Fatal("target 60 nm out included by a 10 nm filter")
	}
	if got, ok := push.Targets["257000001"]; !ok || got.Detail == nil {
		t.Fatalf("near target = %+v, want included with detail", got)
	}

	// Widening the range later must still deliver the far target's
	// detail: exclusion does not consume the dirty mark.
	cache.RefreshPass([]schema.Target{near, far})
	push = cache.SnapshotPush(Filter{OwnLat: 60.0, OwnLon: 5.0, HaveOwn: true, RangeNM: 100})
	got, ok := push.Targets["257000002"]
	if !ok {
		t.Fatal("far target missing after range widened")
	}
	if got.Detail == nil || got.Detail.Name != "FAR" {
		t.Fatalf("far target detail = %+v, want retained detail", got.Detail)
	}
}

func TestInvalidSightingsSkipped(t *testing.T) {
	cache := NewCache(0)
	noID := sighting("", 60.1, 5.2)
	badPos := sighting("257000009", 91.0, 181.0)
	cache.RefreshPass([]schema.Target{noID, badPos})
	if got := cache.Size(); got != 0 {
		t.Fatalf("cache size = %d after invalid sightings, want 0", got)
	}
}
