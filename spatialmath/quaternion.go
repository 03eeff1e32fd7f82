package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

type quaternion quat.Number

// Quaternion returns orientation in quaternion representation.
func (q *quaternion) Quaternion() quat.Number {
	return quat.Number(*q)
}

// AxisAngles returns the orientation in axis angle representation.
func (q *quaternion) AxisAngles() *R4AA {
	aa := QuatToR4AA(q.Quaternion())
	return &aa
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (q *quaternion) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(q.Quaternion())
}

// NewQuaternionOrientation wraps a quaternion as an Orientation. The quaternion is normalized.
func NewQuaternionOrientation(q quat.Number) Orientation {
	n := Normalize(q)
	return (*quaternion)(&n)
}

// Normalize returns the unit quaternion pointing the same way as q. The zero quaternion maps to the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/norm, q)
}

// QuaternionAlmostEqual is an equality test for all the float components of a quaternion. Quaternions have double coverage, q == -q, and
// this function will *not* account for this. Use OrientationAlmostEqual unless you're certain this is what you want.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	return math.Abs(a.Real-b.Real) < tol &&
		math.Abs(a.Imag-b.Imag) < tol &&
		math.Abs(a.Jmag-b.Jmag) < tol &&
		math.Abs(a.Kmag-b.Kmag) < tol
}

// RotateVector applies the rotation of the unit quaternion q to v.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	u := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	t := u.Cross(v).Mul(2)
	return v.Add(t.Mul(q.Real)).Add(u.Cross(t))
}

// QuatToRotationMatrix converts a quat to a Rotation Matrix
// reference: https://www.euclideanspace.com/maths/geometry/rotations/conversions/quaternionToMatrix/index.htm
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	unit := Normalize(q)
	m := mgl64.Quat{W: unit.Real, V: mgl64.Vec3{unit.Imag, unit.Jmag, unit.Kmag}}.Mat4()
	var mat [9]float64
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			mat[3*row+col] = m.At(row, col)
		}
	}
	return &RotationMatrix{mat}
}
