package referenceframe

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Input wraps the input to a joint of a kinematic chain.
//   - revolute inputs should be in radians.
//   - prismatic inputs should be in meters.
type Input struct {
	Value float64
}

// FloatsToInputs wraps a slice of floats in Inputs.
func FloatsToInputs(floats []float64) []Input {
	inputs := make([]Input, len(floats))
	for i, f := range floats {
		inputs[i] = Input{f}
	}
	return inputs
}

// InputsToFloats unwraps Inputs to raw floats.
func InputsToFloats(inputs []Input) []float64 {
	floats := make([]float64, len(inputs))
	for i, f := range inputs {
		floats[i] = f.Value
	}
	return floats
}

// InputsL2Distance returns the two-norm (the sqrt of the sum of the squares) between two Input sets.
func InputsL2Distance(from, to []Input) float64 {
	if len(from) != len(to) {
		return math.Inf(1)
	}
	diff := make([]float64, 0, len(from))
	for i, f := range from {
		diff = append(diff, f.Value-to[i].Value)
	}
	// 2 is the L value returning a standard L2 Normalization
	return floats.Norm(diff, 2)
}

// InputsLinfDistance returns the largest absolute difference between two Input sets.
func InputsLinfDistance(from, to []Input) float64 {
	if len(from) != len(to) {
		return math.Inf(1)
	}
	diff := make([]float64, 0, len(from))
	for i, f := range from {
		diff = append(diff, f.Value-to[i].Value)
	}
	return floats.Norm(diff, math.Inf(1))
}

// RestrictedRandomInputs will produce a list of valid, in-bounds inputs for the given limits, restricting the range to
// `lim` fraction of each limit around its midpoint.
func RestrictedRandomInputs(limits []Limit, rSeed *rand.Rand, lim float64) []Input {
	if rSeed == nil {
		//nolint:gosec
		rSeed = rand.New(rand.NewSource(1))
	}
	pos := make([]Input, 0, len(limits))
	for _, limit := range limits {
		l, u := limit.Min, limit.Max

		// Default to [-999,999] as range if limits are infinite
		if l == math.Inf(-1) {
			l = -999
		}
		if u == math.Inf(1) {
			u = 999
		}

		jRange := math.Abs(u-l) * lim
		mid := (u + l) / 2
		pos = append(pos, Input{mid + jRange*(rSeed.Float64()-0.5)})
	}
	return pos
}

// RandomInputs will produce a list of valid, in-bounds inputs for the given limits.
func RandomInputs(limits []Limit, rSeed *rand.Rand) []Input {
	return RestrictedRandomInputs(limits, rSeed, 1)
}
