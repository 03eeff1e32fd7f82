package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Orientation is an interface used to express the different parameterizations of the orientation
// of a rigid object or a frame of reference in 3D Euclidean space.
type Orientation interface {
	AxisAngles() *R4AA
	Quaternion() quat.Number
	RotationMatrix() *RotationMatrix
}

// NewZeroOrientation returns an orientatation which signifies no rotation.
func NewZeroOrientation() Orientation {
	return &quaternion{1, 0, 0, 0}
}

// OrientationAlmostEqual will return a bool describing whether 2 poses have approximately the same orientation.
func OrientationAlmostEqual(o1, o2 Orientation) bool {
	return OrientationAlmostEqualEps(o1, o2, defaultAngleEpsilon)
}

// OrientationAlmostEqualEps will return a bool describing whether 2 poses have approximately the same orientation,
// where "approximately" means the rotation taking one onto the other is at most epsilon radians.
func OrientationAlmostEqualEps(o1, o2 Orientation, epsilon float64) bool {
	return OrientationDistance(o1, o2) <= epsilon
}

// OrientationDistance returns the angle in radians, in [0, pi], of the rotation between the two orientations.
func OrientationDistance(o1, o2 Orientation) float64 {
	between := quat.Mul(quat.Conj(o1.Quaternion()), o2.Quaternion())
	return 2 * math.Atan2(Norm(between), math.Abs(between.Real))
}

// OrientationBetween returns the orientation representing the difference between the two given Orientations.
func OrientationBetween(o1, o2 Orientation) Orientation {
	q := quaternion(quat.Mul(o2.Quaternion(), quat.Conj(o1.Quaternion())))
	return &q
}

// OrientationInverse returns the orientation representing the opposite rotation.
func OrientationInverse(o Orientation) Orientation {
	q := quaternion(quat.Conj(o.Quaternion()))
	return &q
}
