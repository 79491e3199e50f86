// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package significance decides which position samples become track
// points. The evaluator runs a fixed set of prioritized triggers over
// the rolling motion state: a worst-case heartbeat, a shorter cadence
// while underway, a minimum-distance rule, a turn rule, and a
// speed-band rule. An anomaly guard ahead of all triggers rejects
// physically implausible jumps, and a global rate limit bounds write
// amplification from high-frequency sources.
package significance

import (
	"log/slog"
	"math"
	"time"

	"github.com/pelorus-marine/pelorus/lib/geo"
	"github.com/pelorus-marine/pelorus/lib/motion"
	"github.com/pelorus-marine/pelorus/lib/schema"
)

// Config carries the evaluator tuning. The zero value of any field
// selects the default noted on it.
type Config struct {
	// MaxInterval is the worst-case heartbeat: a point persists once
	// this much time passes since the last one, moving or not.
	// Defaults to 30 minutes.
	MaxInterval time.Duration

	// MovingInterval is the persist cadence while the vessel is
	// underway. Defaults to 10 minutes.
	MovingInterval time.Duration

	// MinDistanceNM persists a point once the vessel is this many
	// nautical miles from the last persisted position. Defaults to
	// 0.1.
	MinDistanceNM float64

	// SpeedThresholdKn is the smoothed speed at or above which the
	// vessel counts as moving. It also anchors the speed bands at
	// 1x, 2x, and 3x. Defaults to 0.5.
	SpeedThresholdKn float64

	// TurnThresholdDeg fires the turn trigger when the course change
	// across the full course window exceeds it. Defaults to 30.
	TurnThresholdDeg float64

	// PersistLimit is the minimum spacing between persists
	// regardless of trigger. Defaults to 60 seconds.
	PersistLimit time.Duration

	// AnomalyDistanceNM and AnomalyWindow define the guard: a fix
	// at least this far from the last accepted position, arriving
	// within the window, is rejected as a sensor glitch. Defaults
	// to 5 nm within 2 minutes.
	AnomalyDistanceNM float64
	AnomalyWindow     time.Duration

	// Logger receives diagnostic output. Defaults to discarding.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Minute
	}
	if c.MovingInterval <= 0 {
		c.MovingInterval = 10 * time.Minute
	}
	if c.MinDistanceNM <= 0 {
		c.MinDistanceNM = 0.1
	}
	if c.SpeedThresholdKn <= 0 {
		c.SpeedThresholdKn = 0.5
	}
	if c.TurnThresholdDeg <= 0 {
		c.TurnThresholdDeg = 30
	}
	if c.PersistLimit <= 0 {
		c.PersistLimit = 60 * time.Second
	}
	if c.AnomalyDistanceNM <= 0 {
		c.AnomalyDistanceNM = 5
	}
	if c.AnomalyWindow <= 0 {
		c.AnomalyWindow = 2 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Decision is the outcome of evaluating one position sample.
type Decision struct {
	// Persist is true when the sample should become a track point.
	Persist bool

	// Trigger names the rule that fired when Persist is true. The
	// values are the schema.Trigger constants.
	Trigger string

	// Anomalous is true when the guard rejected the sample. The
	// motion state was left untouched.
	Anomalous bool
}

// Evaluator applies the trigger rules. It owns the last-persist
// bookkeeping; the motion tracker owns the rolling windows. Not safe
// for concurrent use.
type Evaluator struct {
	cfg    Config
	logger *slog.Logger

	lastPersistAt  time.Time
	lastPersistFix schema.Position
	havePersistFix bool
	lastBand       int
}

// NewEvaluator returns an Evaluator with no persist history: the
// first evaluated sample fires the heartbeat rule.
func NewEvaluator(cfg Config) *Evaluator {
	cfg.applyDefaults()
	return &Evaluator{cfg: cfg, logger: cfg.Logger}
}

// SeedLastPersist primes the elapsed-time rules after a restart, from
// the newest timestamp found in the durable buffer. The last
// persisted position is not recoverable this way, so the distance
// rule stays inert until the first post-restart persist.
func (e *Evaluator) SeedLastPersist(at time.Time) {
	e.lastPersistAt = at
}

// Retune replaces the tuning thresholds while keeping the persist
// history. The engine calls this when a fresh remote configuration
// arrives. The logger is unaffected.
func (e *Evaluator) Retune(cfg Config) {
	cfg.Logger = e.logger
	cfg.applyDefaults()
	e.cfg = cfg
}

// Evaluate runs the anomaly guard, feeds the accepted fix into the
// tracker, and decides whether this sample persists. On a persist
// decision the evaluator updates its own bookkeeping immediately;
// callers that fail to store the point afterwards drop it rather
// than retry, so the cadence stays honest.
func (e *Evaluator) Evaluate(now time.Time, fix schema.Position, trk *motion.Tracker) Decision {
	if prev, at, ok := trk.LastAccepted(); ok {
		jump := geo.DistanceNM(prev.Lat, prev.Lon, fix.Lat, fix.Lon)
		if jump >= e.cfg.AnomalyDistanceNM && now.Sub(at) <= e.cfg.AnomalyWindow {
			e.logger.Warn("rejecting implausible position jump",
				"distanceNM", jump,
				"elapsed", now.Sub(at),
				"lat", fix.Lat,
				"lon", fix.Lon)
			return Decision{Anomalous: true}
		}
	}
	trk.AcceptPosition(now, fix)

	if !e.lastPersistAt.IsZero() && now.Sub(e.lastPersistAt) < e.cfg.PersistLimit {
		return Decision{}
	}

	trigger := e.trigger(now, fix, trk)
	if trigger == "" {
		return Decision{}
	}
	e.lastPersistAt = now
	e.lastPersistFix = fix
	e.havePersistFix = true
	e.lastBand = e.band(trk.SmoothedSpeed())
	return Decision{Persist: true, Trigger: trigger}
}

// trigger returns the name of the highest-priority rule that fires,
// or "" when none do. Priority order matters only for the label; any
// single match persists the point.
func (e *Evaluator) trigger(now time.Time, fix schema.Position, trk *motion.Tracker) string {
	if e.lastPersistAt.IsZero() {
		return schema.TriggerHeartbeat
	}
	elapsed := now.Sub(e.lastPersistAt)
	if elapsed >= e.cfg.MaxInterval {
		return schema.TriggerHeartbeat
	}
	moving := trk.SmoothedSpeed() >= e.cfg.SpeedThresholdKn
	if moving && elapsed >= e.cfg.MovingInterval {
		return schema.TriggerMoving
	}
	if e.havePersistFix {
		d := geo.DistanceNM(e.lastPersistFix.Lat, e.lastPersistFix.Lon, fix.Lat, fix.Lon)
		if d >= e.cfg.MinDistanceNM {
			return schema.TriggerDistance
		}
	}
	if moving {
		if delta, full := trk.CourseSpan(); full && math.Abs(delta) > e.cfg.TurnThresholdDeg {
			return schema.TriggerTurn
		}
	}
	if moving && e.bandCrossed(trk) {
		return schema.TriggerBand
	}
	return ""
}

// band maps a smoothed speed to its band index: 0 below the moving
// threshold, then 1, 2, 3 at each multiple of it.
func (e *Evaluator) band(speed float64) int {
	t := e.cfg.SpeedThresholdKn
	switch {
	case speed >= 3*t:
		return 3
	case speed >= 2*t:
		return 2
	case speed >= t:
		return 1
	default:
		return 0
	}
}

// bandCrossed reports a confirmed speed-band transition since the
// last persist: the smoothed speed sits in a different band, and
// every entry of the speed window is strictly past the boundary the
// vessel left through. A window straddling the boundary is noise,
// not a crossing. Jumping two bands at once still counts as a single
// crossing.
func (e *Evaluator) bandCrossed(trk *motion.Tracker) bool {
	cur := e.band(trk.SmoothedSpeed())
	if cur == e.lastBand {
		return false
	}
	t := e.cfg.SpeedThresholdKn
	entries := trk.SpeedWindow()
	if len(entries) == 0 {
		return false
	}
	if cur > e.lastBand {
		boundary := float64(e.lastBand+1) * t
		for _, v := range entries {
			if v <= boundary {
				return false
			}
		}
		return true
	}
	boundary := float64(e.lastBand) * t
	for _, v := range entries {
		if v >= boundary {
			return false
		}
	}
	return true
}
