// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time source injected into every component that waits,
// ticks, or timestamps. Production wiring passes Real(); tests pass
// Fake() and drive it explicitly.
//
// Code under lib/ must not call time.Now, time.After, time.AfterFunc,
// time.NewTicker, or time.Sleep directly; accept a Clock instead so the
// trigger cadences (heartbeat intervals, sync fallback, proximity push)
// are deterministic under test.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. A non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f after d and returns a Timer whose Stop
	// cancels the pending call. The Timer's C is nil, matching
	// time.AfterFunc.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering on C every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Ticker delivers periodic ticks on C. C has capacity 1: a consumer
// that falls behind loses ticks instead of queueing them.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop ends tick delivery. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Reset restarts the tick cycle with a new interval. The next tick
// arrives one full interval from now.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// Timer is a single scheduled event. Timers returned by AfterFunc have
// a nil C.
type Timer struct {
	C <-chan time.Time

	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the timer. It reports whether the call prevented the
// timer from firing.
func (t *Timer) Stop() bool { return t.stop() }

// Reset re-arms the timer to fire after d. It reports whether the
// timer was still active.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }
