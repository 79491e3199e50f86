// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"math"
	"testing"
)

func TestDistanceNMIdenticalFixesIsExactlyZero(t *testing.T) {
	cases := [][2]float64{
		{0, 0},
		{59.9139, 10.7522},
		{-33.8688, 151.2093},
		{90, 0},
	}
	for _, c := range cases {
		if got := DistanceNM(c[0], c[1], c[0], c[1]); got != 0 {
			t.Fatalf("DistanceNM at (%v, %v) with itself = %v, want exactly 0", c[0], c[1], got)
		}
	}
}

func TestDistanceNMKnownArcs(t *testing.T) {
	// One arc degree is 60*1.1515*0.8684 = 59.9989 nautical miles
	// under this formula.
	oneDegree := 60 * 1.1515 * 0.8684

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"one degree of latitude", 0, 0, 1, 0, oneDegree},
		{"one degree of longitude on the equator", 0, 0, 0, 1, oneDegree},
		{"one degree of longitude at 60N", 60, 0, 60, 1, oneDegree / 2},
		{"tenth of a mile east", 0, 0, 0, 0.1 / oneDegree, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceNM(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.want*0.001+0.0001 {
				t.Fatalf("DistanceNM = %v, want %v within 0.1%%", got, tt.want)
			}
		})
	}
}

func TestDistanceNMSymmetric(t *testing.T) {
	a := [2]float64{59.9139, 10.7522} // Oslo
	b := [2]float64{57.7089, 11.9746} // Gothenburg
	forward := DistanceNM(a[0], a[1], b[0], b[1])
	backward := DistanceNM(b[0], b[1], a[0], a[1])
	if forward != backward {
		t.Fatalf("distance not symmetric: %v vs %v", forward, backward)
	}
	if forward < 100 || forward > 200 {
		t.Fatalf("Oslo-Gothenburg = %v nm, expected between 100 and 200", forward)
	}
}

func TestBearingCardinals(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
	}{
		{"due north", 0, 0, 1, 0, 0},
		{"due east", 0, 0, 0, 1, 90},
		{"due south", 1, 0, 0, 0, 180},
		{"due west", 0, 1, 0, 0, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > 0.0001 {
				t.Fatalf("Bearing = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeadingDelta(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"no change", 45, 45, 0},
		{"clockwise", 0, 90, 90},
		{"counterclockwise", 90, 0, -90},
		{"across north clockwise", 350, 10, 20},
		{"across north counterclockwise", 10, 350, -20},
		{"opposite headings pick +180", 180, 0, 180},
		{"opposite headings from zero", 0, 180, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeadingDelta(tt.a, tt.b); math.Abs(got-tt.want) > 0.0001 {
				t.Fatalf("HeadingDelta(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
