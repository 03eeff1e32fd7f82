package spatialmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// orthonormalTolerance bounds how far RᵀR may stray from the identity for a matrix to count as a rotation.
const orthonormalTolerance = 1e-4

// NewRotationMatrix creates the rotation matrix from a slice of 9 row-major values.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	var mat [9]float64
	copy(mat[:], m)
	rm := &RotationMatrix{mat}
	if !rm.isOrthonormal() {
		return nil, errors.New("matrix is not a proper rotation (orthonormal with determinant 1)")
	}
	return rm, nil
}

func (rm *RotationMatrix) isOrthonormal() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dot := rm.Row(i).Dot(rm.Row(j))
			want := 0.
			if i == j {
				want = 1.
			}
			if math.Abs(dot-want) > orthonormalTolerance {
				return false
			}
		}
	}
	return math.Abs(rm.Row(0).Cross(rm.Row(1)).Dot(rm.Row(2))-1) < orthonormalTolerance
}

// AxisAngles returns the orientation in axis angle representation.
func (rm *RotationMatrix) AxisAngles() *R4AA {
	aa := QuatToR4AA(rm.Quaternion())
	return &aa
}

// Quaternion returns orientation in quaternion representation.
func (rm *RotationMatrix) Quaternion() quat.Number {
	m := mgl64.Ident4()
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m.Set(row, col, rm.At(row, col))
		}
	}
	q := mgl64.Mat4ToQuat(m)
	return Normalize(quat.Number{Real: q.W, Imag: q.X(), Jmag: q.Y(), Kmag: q.Z()})
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (rm *RotationMatrix) RotationMatrix() *RotationMatrix {
	return rm
}

// At returns the float corresponding to the element at the specified location.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[row*3+col]
}

// Row returns the a 3 element vector corresponding to the specified row.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[row*3], Y: rm.mat[row*3+1], Z: rm.mat[row*3+2]}
}

// Col returns the a 3 element vector corresponding to the specified col.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.At(0, col), Y: rm.At(1, col), Z: rm.At(2, col)}
}

// Mul returns the product of the rotation matrix and the vector.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}
