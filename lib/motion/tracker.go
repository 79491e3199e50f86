// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package motion accumulates instrument readings between persisted
// track points. A Tracker smooths speed over a short rolling window,
// tracks course change across a longer one, carries the latest
// environment readings forward, and records the peak wind gust since
// the last persisted point. The significance evaluator reads this
// state to decide when a point is worth writing; Snapshot turns the
// state into a schema.TrackPoint.
//
// A Tracker is not safe for concurrent use. The collector engine owns
// it and calls it from a single goroutine.
package motion

import (
	"time"

	"github.com/pelorus-marine/pelorus/lib/geo"
	"github.com/pelorus-marine/pelorus/lib/schema"
)

const (
	// defaultSpeedWindow is how many recent speed-over-ground
	// readings feed the smoothed speed. Three readings at a typical
	// 1 Hz GPS rate absorbs single-sample jitter without hiding a
	// real acceleration.
	defaultSpeedWindow = 3

	// defaultCourseWindow is how many recent course readings span
	// the turn comparison. The turn trigger compares the newest
	// entry against the oldest, so six readings give the vessel a
	// few seconds to commit to a turn before it counts.
	defaultCourseWindow = 6
)

// Config sizes the rolling windows. The zero value selects the
// defaults.
type Config struct {
	// SpeedWindow is the number of speed readings in the smoothing
	// window. Defaults to 3.
	SpeedWindow int

	// CourseWindow is the number of course readings spanned by the
	// turn comparison. Defaults to 6.
	CourseWindow int
}

// Tracker holds the rolling motion state between persisted points.
type Tracker struct {
	speeds  *window
	courses *window

	lastFix schema.Position
	lastAt  time.Time
	haveFix bool

	windPeakKn   float64
	windAngleDeg float64
	haveWind     bool

	env     schema.Environment
	haveEnv bool
}

// NewTracker returns a Tracker with empty windows.
func NewTracker(cfg Config) *Tracker {
	if cfg.SpeedWindow <= 0 {
		cfg.SpeedWindow = defaultSpeedWindow
	}
	if cfg.CourseWindow <= 0 {
		cfg.CourseWindow = defaultCourseWindow
	}
	return &Tracker{
		speeds:  newWindow(cfg.SpeedWindow),
		courses: newWindow(cfg.CourseWindow),
	}
}

// AcceptPosition feeds an accepted position fix into the rolling
// windows and records it as the latest fix. The caller runs the
// anomaly guard first; a rejected fix must never reach this method.
func (t *Tracker) AcceptPosition(now time.Time, fix schema.Position) {
	t.speeds.push(fix.SOG)
	t.courses.push(fix.COG)
	t.lastFix = fix
	t.lastAt = now
	t.haveFix = true
}

// ObserveWind records a wind reading. The apparent speed feeds the
// running peak; the angle is carried forward as the latest reading.
func (t *Tracker) ObserveWind(w schema.Wind) {
	if !t.haveWind || w.ApparentSpeedKn > t.windPeakKn {
		t.windPeakKn = w.ApparentSpeedKn
	}
	t.windAngleDeg = w.ApparentAngleDeg
	t.haveWind = true
}

// ObserveEnvironment merges an environment reading. Zero fields in
// the reading leave the previously observed value in place, so
// instruments that report on different schedules each contribute
// their latest value.
func (t *Tracker) ObserveEnvironment(e schema.Environment) {
	if e.BarometerHPa != 0 {
		t.env.BarometerHPa = e.BarometerHPa
	}
	if e.AirTempC != 0 {
		t.env.AirTempC = e.AirTempC
	}
	if e.WaterTempC != 0 {
		t.env.WaterTempC = e.WaterTempC
	}
	if e.DepthM != 0 {
		t.env.DepthM = e.DepthM
	}
	t.haveEnv = true
}

// LastAccepted returns the most recent accepted fix and when it
// arrived. ok is false before the first fix.
func (t *Tracker) LastAccepted() (fix schema.Position, at time.Time, ok bool) {
	return t.lastFix, t.lastAt, t.haveFix
}

// SmoothedSpeed returns the mean of the speed window. With fewer
// readings than the window holds, the mean is over what has arrived.
func (t *Tracker) SmoothedSpeed() float64 {
	return t.speeds.mean()
}

// SpeedWindow returns the speed window contents oldest first.
func (t *Tracker) SpeedWindow() []float64 {
	return t.speeds.slice()
}

// SpeedWindowFull reports whether the speed window has filled.
func (t *Tracker) SpeedWindowFull() bool {
	return t.speeds.full()
}

// CourseSpan returns the signed course change from the oldest to the
// newest entry of the course window, and whether the window has
// filled. The change is only meaningful once the window is full;
// callers must not act on a partial window.
func (t *Tracker) CourseSpan() (deltaDeg float64, full bool) {
	if !t.courses.full() {
		return 0, false
	}
	return geo.HeadingDelta(t.courses.oldest(), t.courses.newest()), true
}

// Snapshot assembles a track point from the current state, stamped
// with the given timestamp and trigger. Wind fields describe the
// interval since the previous point, so the peak resets here and the
// next point only carries wind again once a fresh reading arrives.
// The smoothing windows keep their contents so speed and course stay
// continuous across persists.
func (t *Tracker) Snapshot(ts int64, trigger string) schema.TrackPoint {
	p := schema.TrackPoint{
		Timestamp: ts,
		Lat:       t.lastFix.Lat,
		Lon:       t.lastFix.Lon,
		SOG:       t.speeds.mean(),
		COG:       t.lastFix.COG,
		Heading:   t.lastFix.Heading,
		Trigger:   trigger,
	}
	if t.haveEnv {
		p.BarometerHPa = t.env.BarometerHPa
		p.AirTempC = t.env.AirTempC
		p.WaterTempC = t.env.WaterTempC
		p.DepthM = t.env.DepthM
	}
	if t.haveWind {
		p.WindPeakKn = t.windPeakKn
		p.WindAngleDeg = t.windAngleDeg
		t.windPeakKn = 0
		t.haveWind = false
	}
	return p
}
