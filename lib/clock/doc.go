// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used throughout
// the collector.
//
// Every cadence in the pipeline is time-driven: the heartbeat and
// moving-interval persistence triggers, the sync fallback timer, the
// proximity push ticker, the persist rate limit. Testing those
// deterministically requires that no component read the wall clock
// directly. Components accept a Clock; production wiring passes
// Real(), tests pass Fake() and step time by hand.
//
// # Test choreography
//
//	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
//	go eng.Run(ctx)                // eng was built with Clock: clk
//	clk.WaitForTimers(1)           // fallback timer armed
//	clk.Advance(10 * time.Minute)  // fires it
//
// WaitForTimers closes the race between a goroutine arming its timer
// and the test advancing past the deadline; without it the Advance can
// land before the timer exists and the test hangs.
package clock
