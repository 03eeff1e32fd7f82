package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// PoseVectorLength is the length of the flat pose representation: x, y, z, then scaled axis-angle rx, ry, rz.
const PoseVectorLength = 6

// NewPoseFromVector builds a pose from a 6-vector. The first three elements are a translation in meters, the last
// three an axis-angle rotation scaled by its angle in radians.
func NewPoseFromVector(x []float64) (Pose, error) {
	if len(x) != PoseVectorLength {
		return nil, errors.Errorf("pose vector has length %d, expected %d", len(x), PoseVectorLength)
	}
	return NewPose(r3.Vector{X: x[0], Y: x[1], Z: x[2]}, R3ToR4(r3.Vector{X: x[3], Y: x[4], Z: x[5]})), nil
}

// PoseToVector flattens a pose into the 6-vector form accepted by NewPoseFromVector.
func PoseToVector(p Pose) []float64 {
	pt := p.Point()
	rot := QuatToR3AA(p.Orientation().Quaternion())
	return []float64{pt.X, pt.Y, pt.Z, rot.X, rot.Y, rot.Z}
}

// NewPoseFromMatrix builds a pose from a 4x4 homogeneous transform given as 16 row-major values.
func NewPoseFromMatrix(m []float64) (Pose, error) {
	if len(m) != 16 {
		return nil, errors.Errorf("homogeneous matrix has %d elements, expected 16", len(m))
	}
	if math.Abs(m[12]) > orthonormalTolerance || math.Abs(m[13]) > orthonormalTolerance ||
		math.Abs(m[14]) > orthonormalTolerance || math.Abs(m[15]-1) > orthonormalTolerance {
		return nil, errors.New("last row of a homogeneous matrix must be [0 0 0 1]")
	}
	rm, err := NewRotationMatrix([]float64{m[0], m[1], m[2], m[4], m[5], m[6], m[8], m[9], m[10]})
	if err != nil {
		return nil, err
	}
	return NewPose(r3.Vector{X: m[3], Y: m[7], Z: m[11]}, rm), nil
}

// NewPoseFromMat4 converts an mgl64 homogeneous matrix into a pose.
func NewPoseFromMat4(m mgl64.Mat4) (Pose, error) {
	flat := make([]float64, 0, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			flat = append(flat, m.At(row, col))
		}
	}
	return NewPoseFromMatrix(flat)
}

// PoseToMat4 converts a pose to an mgl64 homogeneous matrix.
func PoseToMat4(p Pose) mgl64.Mat4 {
	rm := p.Orientation().RotationMatrix()
	pt := p.Point()
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, rm.At(row, col))
		}
	}
	m.Set(0, 3, pt.X)
	m.Set(1, 3, pt.Y)
	m.Set(2, 3, pt.Z)
	return m
}

// PoseToMatrix flattens a pose into 16 row-major values of its homogeneous transform.
func PoseToMatrix(p Pose) []float64 {
	m := PoseToMat4(p)
	flat := make([]float64, 0, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			flat = append(flat, m.At(row, col))
		}
	}
	return flat
}
