// Package referenceframe defines the joint inputs and joint limits shared by the kinematics packages.
package referenceframe

import (
	"math"

	"go.uber.org/multierr"

	"go.viam.com/screwik/utils"
)

// Limit represents the limits of motion for a joint.
type Limit struct {
	Min float64
	Max float64
}

// UnboundedLimit is a limit that every value satisfies.
var UnboundedLimit = Limit{Min: math.Inf(-1), Max: math.Inf(1)}

// Contains reports whether value lies in [Min, Max].
func (l Limit) Contains(value float64) bool {
	return value >= l.Min && value <= l.Max
}

// Degenerate reports whether the limit allows a single value only.
func (l Limit) Degenerate() bool {
	return l.Min == l.Max
}

// ValidateLimits checks that every limit has min <= max and returns every violation at once.
func ValidateLimits(limits []Limit) error {
	var err error
	for i, limit := range limits {
		if limit.Min > limit.Max {
			err = multierr.Append(err, NewInvertedLimitError(i, limit))
		}
	}
	return err
}

// CheckInputs verifies that the inputs have the right length and are all within their limits.
func CheckInputs(limits []Limit, inputs []Input) error {
	if len(limits) != len(inputs) {
		return NewIncorrectDoFError(len(inputs), len(limits))
	}
	var err error
	for i, in := range inputs {
		if !limits[i].Contains(in.Value) {
			err = multierr.Append(err, NewOutOfBoundsError(i, in.Value, limits[i]))
		}
	}
	return err
}

// LimitsAlmostEqual compares two limit sets elementwise.
func LimitsAlmostEqual(a, b []Limit) bool {
	if len(a) != len(b) {
		return false
	}

	const epsilon = 1e-5
	for idx, x := range a {
		if !utils.Float64AlmostEqual(x.Min, b[idx].Min, epsilon) ||
			!utils.Float64AlmostEqual(x.Max, b[idx].Max, epsilon) {
			return false
		}
	}

	return true
}
