// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/pelorus-marine/pelorus/lib/clock"
	"github.com/pelorus-marine/pelorus/lib/testutil"
)

func startListener(t *testing.T, fake clock.Clock) (*Listener, *net.UDPConn, func()) {
	t.Helper()
	lis, err := Listen(Config{
		Addr:   "127.0.0.1:0",
		Clock:  fake,
		Logger: slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := lis.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	raddr, err := net.ResolveUDPAddr("udp", lis.Addr().String())
	if err != nil {
		t.Fatalf("resolving listener addr: %v", err)
	}
	sender, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		t.Fatalf("dialing listener: %v", err)
	}
	t.Cleanup(func() { sender.Close() })

	stop := func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "waiting for Run to exit")
	}
	return lis, sender, stop
}

func send(t *testing.T, sender *net.UDPConn, datagram string) {
	t.Helper()
	if _, err := sender.Write([]byte(datagram)); err != nil {
		t.Fatalf("sending datagram: %v", err)
	}
}

func TestPositionReadingDelivered(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	send(t, sender, `{"type":"position","ts":1764600123,"lat":54.32,"lon":10.14,"sog":6.1,"cog":184.0,"heading":186.0}`)

	r := testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for position")
	if r.Kind != KindPosition {
		t.Fatalf("Kind = %q, want %q", r.Kind, KindPosition)
	}
	if r.Position.Timestamp != 1764600123 {
		t.Errorf("Timestamp = %d, want 1764600123", r.Position.Timestamp)
	}
	if r.Position.Lat != 54.32 || r.Position.Lon != 10.14 {
		t.Errorf("position = (%v, %v), want (54.32, 10.14)", r.Position.Lat, r.Position.Lon)
	}
	if r.Position.SOG != 6.1 {
		t.Errorf("SOG = %v, want 6.1", r.Position.SOG)
	}
}

func TestMultipleLinesPerDatagram(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	// Blank lines and a trailing newline must not trip the decoder.
	send(t, sender, `{"type":"position","ts":1764600001,"lat":54.0,"lon":10.0}`+"\n\n"+
		`{"type":"wind","ts":1764600001,"aws":14.2,"awa":41.0}`+"\n"+
		`{"type":"environment","ts":1764600001,"baro":1013.2,"waterTemp":9.4}`+"\n")

	r := testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for position")
	if r.Kind != KindPosition {
		t.Fatalf("first Kind = %q, want %q", r.Kind, KindPosition)
	}
	r = testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for wind")
	if r.Kind != KindWind {
		t.Fatalf("second Kind = %q, want %q", r.Kind, KindWind)
	}
	if r.Wind.ApparentSpeedKn != 14.2 || r.Wind.ApparentAngleDeg != 41.0 {
		t.Errorf("wind = (%v, %v), want (14.2, 41)", r.Wind.ApparentSpeedKn, r.Wind.ApparentAngleDeg)
	}
	r = testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for environment")
	if r.Kind != KindEnvironment {
		t.Fatalf("third Kind = %q, want %q", r.Kind, KindEnvironment)
	}
	if r.Environment.BarometerHPa != 1013.2 {
		t.Errorf("BarometerHPa = %v, want 1013.2", r.Environment.BarometerHPa)
	}
}

func TestMalformedLinesDropped(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	// Broken JSON, an unknown type, and out-of-range coordinates all
	// precede a good line in one datagram. Lines are processed in
	// order, so receiving only the good reading proves the rest were
	// dropped.
	send(t, sender, `{"type":"position","lat":`+"\n"+
		`{"type":"engine","rpm":1800}`+"\n"+
		`{"type":"position","ts":1764600002,"lat":95.0,"lon":10.0}`+"\n"+
		`{"type":"position","ts":1764600003,"lat":54.5,"lon":10.5}`)

	r := testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for the good position")
	if r.Position.Timestamp != 1764600003 {
		t.Fatalf("Timestamp = %d, want 1764600003", r.Position.Timestamp)
	}
	select {
	case extra := <-lis.Readings():
		t.Fatalf("unexpected extra reading: %+v", extra)
	default:
	}
}

func TestTimestampStampedWhenMissing(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	send(t, sender, `{"type":"position","lat":54.32,"lon":10.14}`)

	r := testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for position")
	if r.Position.Timestamp != 1764600000 {
		t.Errorf("Timestamp = %d, want the clock's 1764600000", r.Position.Timestamp)
	}
}

func TestTargetTableMergesDetail(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	// Each target line is followed by a position marker; receiving the
	// marker proves the target line landed in the table.
	send(t, sender, `{"type":"target","mmsi":"257123456","ts":1764600010,"lat":54.4,"lon":10.2,"sog":11.0,"detail":{"name":"EIDSVAAG","shipType":70}}`+"\n"+
		`{"type":"position","ts":1764600010,"lat":54.0,"lon":10.0}`)
	testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for first marker")

	send(t, sender, `{"type":"target","mmsi":"257123456","ts":1764600020,"lat":54.5,"lon":10.3,"sog":11.4}`+"\n"+
		`{"type":"position","ts":1764600020,"lat":54.0,"lon":10.0}`)
	testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for second marker")

	targets := lis.CurrentTargets(time.Unix(1764600030, 0))
	if len(targets) != 1 {
		t.Fatalf("got %d targets, want 1", len(targets))
	}
	got := targets[0]
	if got.Timestamp != 1764600020 || got.SOG != 11.4 {
		t.Errorf("light fields not updated: ts=%d sog=%v", got.Timestamp, got.SOG)
	}
	if got.Detail == nil || got.Detail.Name != "EIDSVAAG" {
		t.Errorf("detail from the earlier sighting was lost: %+v", got.Detail)
	}
}

func TestTargetStaleEviction(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	send(t, sender, `{"type":"target","mmsi":"257123456","ts":1764600000,"lat":54.4,"lon":10.2}`+"\n"+
		`{"type":"target","mmsi":"258999000","ts":1764600100,"lat":54.6,"lon":10.4}`+"\n"+
		`{"type":"position","ts":1764600000,"lat":54.0,"lon":10.0}`)
	testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for marker")

	targets := lis.CurrentTargets(time.Unix(1764600100, 0))
	if len(targets) != 2 {
		t.Fatalf("got %d targets before staleness, want 2", len(targets))
	}

	// Three minutes past the first sighting only the fresher one
	// survives, and the stale entry is gone from the table for good.
	targets = lis.CurrentTargets(time.Unix(1764600181, 0))
	if len(targets) != 1 || targets[0].MMSI != "258999000" {
		t.Fatalf("after staleness got %+v, want only 258999000", targets)
	}
	targets = lis.CurrentTargets(time.Unix(1764600100, 0))
	if len(targets) != 1 {
		t.Fatalf("pruned entry came back: %+v", targets)
	}
}

func TestTargetWithoutMMSIDropped(t *testing.T) {
	lis, sender, stop := startListener(t, clock.Fake(time.Unix(1764600000, 0)))
	defer stop()

	send(t, sender, `{"type":"target","ts":1764600010,"lat":54.4,"lon":10.2}`+"\n"+
		`{"type":"target","mmsi":"257123456","ts":1764600010,"lat":54.4,"lon":10.2}`+"\n"+
		`{"type":"position","ts":1764600010,"lat":54.0,"lon":10.0}`)
	testutil.RequireReceive(t, lis.Readings(), 5*time.Second, "waiting for marker")

	targets := lis.CurrentTargets(time.Unix(1764600020, 0))
	if len(targets) != 1 || targets[0].MMSI != "257123456" {
		t.Fatalf("got %+v, want only the identified target", targets)
	}
}

func TestRunExitsCleanOnCancel(t *testing.T) {
	lis, err := Listen(Config{Addr: "127.0.0.1:0", Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- lis.Run(ctx) }()

	cancel()
	if err := testutil.RequireReceive(t, runErr, 5*time.Second, "waiting for Run"); err != nil {
		t.Fatalf("Run returned %v, want nil on cancel", err)
	}
}
