package ik

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/screwtheory"
	"go.viam.com/screwik/spatialmath"
	"go.viam.com/screwik/utils"
)

// singularValueRatio is the smallest singular value, relative to the largest, that the pseudo-inverse keeps.
const singularValueRatio = 1e-9

// Jacobian returns the 6xN matrix mapping joint velocities at q to the linear velocity of the tool point (rows 0-2)
// and the angular velocity (rows 3-5). Velocities are in the base frame, or in the tool frame for TCPFrame.
func Jacobian(chain *screwtheory.PoeExpression, q []float64, frame screwtheory.ReferenceFrame) (*mat.Dense, error) {
	tool, err := chain.Evaluate(q)
	if err != nil {
		return nil, err
	}
	toBase := func(v r3.Vector) r3.Vector { return v }
	switch frame {
	case screwtheory.BaseFrame:
	case screwtheory.TCPFrame:
		inv := spatialmath.PoseInverse(tool)
		toBase = func(v r3.Vector) r3.Vector { return spatialmath.RotatePoint(inv, v) }
	default:
		return nil, errors.Errorf("unknown reference frame %d", int(frame))
	}

	n := chain.Size()
	jac := mat.NewDense(6, n, nil)
	g := spatialmath.NewZeroPose()
	for i := 0; i < n; i++ {
		exp := chain.Exponential(i)
		var linear, angular r3.Vector
		switch exp.Motion() {
		case screwtheory.Rotation:
			angular = spatialmath.RotatePoint(g, exp.Axis())
			onAxis := spatialmath.TransformPoint(g, exp.Origin())
			linear = angular.Cross(tool.Point().Sub(onAxis))
		case screwtheory.Translation:
			linear = spatialmath.RotatePoint(g, exp.Axis())
		}
		linear, angular = toBase(linear), toBase(angular)
		jac.SetCol(i, []float64{linear.X, linear.Y, linear.Z, angular.X, angular.Y, angular.Z})
		g = spatialmath.Compose(g, exp.AsPose(q[i]))
	}
	return jac, nil
}

// solvePseudoInverse returns the least-norm, least-squares solution of jac * qdot = xdot.
func solvePseudoInverse(jac *mat.Dense, xdot []float64) ([]float64, error) {
	rows, cols := jac.Dims()
	if len(xdot) != rows {
		return nil, utils.NewIncorrectVectorLengthError(len(xdot), rows)
	}
	var svd mat.SVD
	if ok := svd.Factorize(jac, mat.SVDThin); !ok {
		return nil, errors.New("jacobian singular value decomposition failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	values := svd.Values(nil)

	b := mat.NewVecDense(rows, append([]float64(nil), xdot...))
	qdot := make([]float64, cols)
	for k, sigma := range values {
		if sigma <= singularValueRatio*values[0] {
			continue
		}
		coef := mat.Dot(u.ColView(k), b) / sigma
		floats.AddScaled(qdot, coef, mat.Col(nil, k, &v))
	}
	return qdot, nil
}

// DiffInvKin is the free-function form of ScrewTheorySolver.DiffInvKin for callers holding a bare chain.
func DiffInvKin(
	chain *screwtheory.PoeExpression,
	q, xdot []float64,
	frame screwtheory.ReferenceFrame,
) ([]float64, error) {
	if len(q) != chain.Size() {
		return nil, referenceframe.NewIncorrectDoFError(len(q), chain.Size())
	}
	jac, err := Jacobian(chain, q, frame)
	if err != nil {
		return nil, err
	}
	return solvePseudoInverse(jac, xdot)
}
