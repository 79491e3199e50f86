// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package status renders the collector's health as human-readable
// strings: backlog depth plus how long ago the shore last answered.
// Pure functions of their inputs, recomputed on demand.
package status

import (
	"fmt"
	"time"
)

// Ago formats the gap between now and then as a graduated English
// duration: "n seconds ago" through "n years ago", with singular
// forms at one. A zero then returns "never"; a then in the future
// clamps to "0 seconds ago".
func Ago(now, then time.Time) string {
	if then.IsZero() {
		return "never"
	}
	seconds := int64(now.Sub(then) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	switch {
	case seconds < 60:
		return plural(seconds, "second")
	case seconds < 60*60:
		return plural(seconds/60, "minute")
	case seconds < 60*60*24:
		return plural(seconds/(60*60), "hour")
	case seconds < 60*60*24*30:
		return plural(seconds/(60*60*24), "day")
	case seconds < 60*60*24*30*12:
		return plural(seconds/(60*60*24*30), "month")
	default:
		return plural(seconds/(60*60*24*30*12), "year")
	}
}

// Summary is the one-line collector status used by the status
// endpoint and periodic info logs.
func Summary(now time.Time, backlog int, lastSync time.Time) string {
	noun := "points"
	if backlog == 1 {
		noun = "point"
	}
	return fmt.Sprintf("%d %s buffered, last shore contact %s", backlog, noun, Ago(now, lastSync))
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
