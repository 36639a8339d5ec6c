// Package util holds the counter arithmetic shared by accounting passes.
package util

import "math"

// DeltaU64 returns now-prev, or 0 when the counter went backwards.
func DeltaU64(now, prev uint64) uint64 {
	if now < prev {
		// counter wrapped or pid reused
		return 0
	}
	return now - prev
}

// Ratio returns part/whole, 0 when whole is 0.
func Ratio(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// Clamp01 bounds x to [0,1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
