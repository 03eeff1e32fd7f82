package utils

import (
	"math"
)

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// WrapAngle maps an angle in radians onto (-pi, pi].
func WrapAngle(rad float64) float64 {
	wrapped := math.Mod(rad, 2*math.Pi)
	if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	} else if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	}
	return wrapped
}

// AngleDiffRad returns the signed shortest rotation taking a2 to a1, in (-pi, pi].
func AngleDiffRad(a1, a2 float64) float64 {
	return WrapAngle(a1 - a2)
}

// Float64AlmostEqual compares two float64s and returns if the difference between them is less than epsilon.
func Float64AlmostEqual(a, b, epsilon float64) bool {
	return a == b || math.Abs(a-b) <= epsilon
}

// Clamp restricts n to [lo, hi].
func Clamp(n, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, n))
}
