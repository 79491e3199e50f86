// Copyright 2026 The Pelorus Authors
// SPDX-License-Identifier: Apache-2.0

// Package geo provides the small amount of spherical geometry the
// collector needs: great-circle distance between fixes, initial
// bearing, and heading arithmetic on the 0-360 compass circle.
//
// Distances are in nautical miles, angles in degrees. Positions are
// WGS84 latitude/longitude; the sphere approximation is fine at the
// sub-degree scales the significance triggers care about.
package geo

import "math"

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// DistanceNM returns the great-circle distance between two fixes in
// nautical miles, by the spherical law of cosines. Identical
// coordinates return exactly 0 without touching acos, whose argument
// would otherwise sit on the edge of its domain.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	cosine := math.Sin(lat1*degToRad)*math.Sin(lat2*degToRad) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*math.Cos((lon1-lon2)*degToRad)
	// Floating-point noise can push the cosine a hair outside [-1, 1].
	cosine = math.Min(1, math.Max(-1, cosine))
	degrees := math.Acos(cosine) * radToDeg
	// Arc degrees to statute miles (60 * 1.1515), then to nautical.
	return degrees * 60 * 1.1515 * 0.8684
}

// Bearing returns the initial great-circle bearing from the first fix
// toward the second, in compass degrees [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	deltaLambda := (lon2 - lon1) * degToRad

	y := math.Sin(deltaLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)
	return math.Mod(math.Atan2(y, x)*radToDeg+360, 360)
}

// HeadingDelta returns the signed smallest rotation from heading a to
// heading b, in (-180, 180]. Positive is clockwise.
func HeadingDelta(a, b float64) float64 {
	d := math.Mod(b-a, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}
