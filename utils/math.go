// Package utils contains small numeric helpers shared by the flight packages.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Clamp returns value limited to [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// WrapDeg180 wraps an angle in degrees into (-180, 180].
func WrapDeg180(deg float64) float64 {
	wrapped := math.Mod(deg, 360)
	if wrapped <= -180 {
		wrapped += 360
	} else if wrapped > 180 {
		wrapped -= 360
	}
	return wrapped
}

// IsFinite reports whether every value is neither NaN nor infinite.
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
