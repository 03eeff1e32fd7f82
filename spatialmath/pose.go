// Package spatialmath defines the rigid transforms and orientation parameterizations used by the kinematics code.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const (
	defaultLinearEpsilon = 1e-8
	defaultAngleEpsilon  = 1e-5
)

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
// The Point() method returns the position in (x,y,z) meters and the Orientation() method
// returns an Orientation object.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

// NewZeroPose returns a pose at (0,0,0) with same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}

	q := newDualQuaternion()
	q.Real = Normalize(o.Quaternion())
	q.SetTranslation(p)
	return q
}

// NewPoseFromOrientation takes in an orientation and returns a Pose with no translation.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

// NewPoseFromPoint takes in a cartesian (x,y,z) and stores it as a vector.
// It will have the same orientation as the frame it is in.
func NewPoseFromPoint(point r3.Vector) Pose {
	q := newDualQuaternion()
	q.SetTranslation(point)
	return q
}

// Compose treats Poses as functions A(x) and B(x), and produces a new function C(x) = A(B(x)).
// It converts the poses to dual quaternions and multiplies them together, normalizes the transform and returns it.
// Note that this is NOT commutative. Be sure that the elements are entered in the correct order.
// The first element is the parent frame and the second one is the pose expressed in it.
func Compose(a, b Pose) Pose {
	aq := newDualQuaternionFromPose(a)
	bq := newDualQuaternionFromPose(b)
	result := &dualQuaternion{aq.Transformation(bq.Number)}

	// Normalization
	if vecLen := quat.Abs(result.Real); vecLen-1 > 1e-10 || vecLen-1 < -1e-10 {
		result.Real = quat.Scale(1/vecLen, result.Real)
		result.Dual = quat.Scale(1/vecLen, result.Dual)
	}
	return result
}

// PoseInverse will return the inverse of a pose. So if a given pose p is the pose of A relative to B, PoseInverse(p) will give
// the pose of B relative to A.
func PoseInverse(p Pose) Pose {
	return newDualQuaternionFromPose(p).Invert()
}

// PoseBetween returns the difference between two dualQuaternions, that is, the dq which if multiplied by one will give the other.
// Example: if PoseBetween(a, b) = c, then Compose(a, c) = b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// TransformPoint applies the pose to a point: rotation first, then translation.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return RotateVector(p.Orientation().Quaternion(), pt).Add(p.Point())
}

// RotatePoint applies only the rotational part of the pose to a vector.
func RotatePoint(p Pose, v r3.Vector) r3.Vector {
	return RotateVector(p.Orientation().Quaternion(), v)
}

// PoseDelta returns the difference between two poses as a 6-vector: translation difference followed by the
// scaled axis-angle of the rotation taking a's orientation onto b's, expressed in the base frame.
func PoseDelta(a, b Pose) []float64 {
	dp := b.Point().Sub(a.Point())
	rot := QuatToR3AA(quat.Mul(b.Orientation().Quaternion(), quat.Conj(a.Orientation().Quaternion())))
	return []float64{dp.X, dp.Y, dp.Z, rot.X, rot.Y, rot.Z}
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, defaultLinearEpsilon, defaultAngleEpsilon)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same, within the given
// linear (meters) and angular (radians) tolerances.
func PoseAlmostEqualEps(a, b Pose, linearEpsilon, angleEpsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), linearEpsilon) &&
		OrientationAlmostEqualEps(a.Orientation(), b.Orientation(), angleEpsilon)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}
