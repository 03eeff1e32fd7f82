package screwtheory

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/screwik/utils"
)

// The functions in this file are closed-form solutions to small screw equations. Each one returns every solution
// it finds, in a fixed order. An empty result means the target is out of reach or the geometry is degenerate;
// none of them fail in any other way. Two-joint solutions are ordered as the screws appear in the product.

// perpendicularTolerance is how close to zero the cosine between a rotation axis and a translation axis must be
// for the translation to be treated as lying in the rotation plane.
const perpendicularTolerance = 1e-6

// SingleRotation finds theta such that exp(theta) maps p onto k (Paden-Kahan subproblem 1).
// If both points lie on the axis every angle works and 0 is returned.
func SingleRotation(exp MatrixExponential, p, k r3.Vector) []float64 {
	w := exp.axis
	u := p.Sub(exp.origin)
	v := k.Sub(exp.origin)
	if math.Abs(w.Dot(u)-w.Dot(v)) > distanceTolerance {
		return nil
	}

	up := projectOnPlane(u, w)
	vp := projectOnPlane(v, w)
	nu, nv := up.Norm(), vp.Norm()
	if math.Abs(nu-nv) > distanceTolerance {
		return nil
	}
	if nu < distanceTolerance {
		return []float64{0}
	}
	return []float64{signedAngle(w, up, vp)}
}

// IntersectingRotations finds (theta1, theta2) such that first(theta1) * second(theta2) maps p onto k, where the two
// rotation axes intersect (Paden-Kahan subproblem 2).
func IntersectingRotations(first, second MatrixExponential, p, k r3.Vector) [][2]float64 {
	r, ok := lineIntersection(first.origin, first.axis, second.origin, second.axis)
	if !ok {
		return nil
	}
	w1, w2 := first.axis, second.axis
	u := p.Sub(r)
	v := k.Sub(r)
	if math.Abs(u.Norm()-v.Norm()) > distanceTolerance {
		return nil
	}

	c12 := w1.Dot(w2)
	den := c12*c12 - 1
	alpha := (c12*w2.Dot(u) - w1.Dot(v)) / den
	beta := (c12*w1.Dot(v) - w2.Dot(u)) / den
	cross := w1.Cross(w2)
	gamma2 := (u.Norm2() - alpha*alpha - beta*beta - 2*alpha*beta*c12) / cross.Norm2()

	var gammas []float64
	switch {
	case gamma2 < -discriminantTolerance:
		return nil
	case gamma2 <= 0:
		gammas = []float64{0}
	default:
		g := math.Sqrt(gamma2)
		gammas = []float64{g, -g}
	}

	solutions := make([][2]float64, 0, len(gammas))
	for _, gamma := range gammas {
		c := r.Add(w1.Mul(alpha)).Add(w2.Mul(beta)).Add(cross.Mul(gamma))
		theta2 := SingleRotation(second, p, c)
		theta1 := SingleRotation(first, c, k)
		if len(theta1) == 0 || len(theta2) == 0 {
			continue
		}
		solutions = append(solutions, [2]float64{theta1[0], theta2[0]})
	}
	return solutions
}

// RotationToDistance finds theta such that exp(theta) moves p to a distance delta from k (Paden-Kahan subproblem 3).
func RotationToDistance(exp MatrixExponential, p, k r3.Vector, delta float64) []float64 {
	w := exp.axis
	u := p.Sub(exp.origin)
	v := k.Sub(exp.origin)
	dh := w.Dot(u.Sub(v))
	planar2 := delta*delta - dh*dh

	up := projectOnPlane(u, w)
	vp := projectOnPlane(v, w)
	nu, nv := up.Norm(), vp.Norm()
	if nu < distanceTolerance || nv < distanceTolerance {
		// the distance does not depend on theta
		if math.Abs(math.Sqrt(math.Max(planar2, 0))-math.Sqrt(nu*nu+nv*nv)) > distanceTolerance {
			return nil
		}
		return []float64{0}
	}

	theta0 := signedAngle(w, up, vp)
	cosArg := (nu*nu + nv*nv - planar2) / (2 * nu * nv)
	if math.Abs(cosArg) > 1+distanceTolerance {
		return nil
	}
	if math.Abs(cosArg) >= 1 {
		if cosArg > 0 {
			return []float64{utils.WrapAngle(theta0)}
		}
		return []float64{utils.WrapAngle(theta0 + math.Pi)}
	}
	phi := math.Acos(utils.Clamp(cosArg, -1, 1))
	return []float64{utils.WrapAngle(theta0 - phi), utils.WrapAngle(theta0 + phi)}
}

// ParallelRotations finds (theta1, theta2) such that first(theta1) * second(theta2) maps p onto k, where the two
// rotation axes are parallel and distinct.
func ParallelRotations(first, second MatrixExponential, p, k r3.Vector) [][2]float64 {
	w := first.axis
	if math.Abs(w.Dot(k.Sub(p))) > distanceTolerance {
		return nil
	}

	// centres of both circles in the plane through p perpendicular to the axes
	c1 := first.origin.Add(w.Mul(w.Dot(p.Sub(first.origin))))
	c2 := second.origin.Add(w.Mul(w.Dot(p.Sub(second.origin))))
	rho1 := projectOnPlane(k.Sub(c1), w).Norm()
	rho2 := p.Sub(c2).Norm()

	d := c2.Sub(c1)
	dist := d.Norm()
	if dist < distanceTolerance {
		return nil
	}
	e := d.Mul(1 / dist)
	n := w.Cross(e)
	a := (rho1*rho1 - rho2*rho2 + dist*dist) / (2 * dist)
	h2 := rho1*rho1 - a*a

	var hs []float64
	switch {
	case h2 < -discriminantTolerance:
		return nil
	case h2 <= 0:
		hs = []float64{0}
	default:
		h := math.Sqrt(h2)
		hs = []float64{h, -h}
	}

	solutions := make([][2]float64, 0, len(hs))
	for _, h := range hs {
		c := c1.Add(e.Mul(a)).Add(n.Mul(h))
		theta2 := SingleRotation(second, p, c)
		theta1 := SingleRotation(first, c, k)
		if len(theta1) == 0 || len(theta2) == 0 {
			continue
		}
		solutions = append(solutions, [2]float64{theta1[0], theta2[0]})
	}
	return solutions
}

// SingleTranslation finds theta such that exp(theta) maps p onto k.
func SingleTranslation(exp MatrixExponential, p, k r3.Vector) []float64 {
	d := k.Sub(p)
	theta := exp.axis.Dot(d)
	if d.Sub(exp.axis.Mul(theta)).Norm() > distanceTolerance {
		return nil
	}
	return []float64{theta}
}

// TranslationToPlane finds theta such that exp(theta) moves p into the plane through k normal to the translation
// axis. There is always exactly one solution.
func TranslationToPlane(exp MatrixExponential, p, k r3.Vector) []float64 {
	return []float64{exp.axis.Dot(k.Sub(p))}
}

// DoubleTranslation finds (theta1, theta2) such that first(theta1) * second(theta2) maps p onto k, where the two
// translation axes are not parallel.
func DoubleTranslation(first, second MatrixExponential, p, k r3.Vector) [][2]float64 {
	v1, v2 := first.axis, second.axis
	d := k.Sub(p)
	c := v1.Dot(v2)
	det := 1 - c*c
	if det < geometryTolerance {
		return nil
	}
	b1, b2 := v1.Dot(d), v2.Dot(d)
	t1 := (b1 - c*b2) / det
	t2 := (b2 - c*b1) / det
	if d.Sub(v1.Mul(t1)).Sub(v2.Mul(t2)).Norm() > distanceTolerance {
		return nil
	}
	return [][2]float64{{t1, t2}}
}

// TripleTranslation finds (theta1, theta2, theta3) such that three consecutive translations map p onto k.
// The axes must span space.
func TripleTranslation(first, second, third MatrixExponential, p, k r3.Vector) [][3]float64 {
	v1, v2, v3 := first.axis, second.axis, third.axis
	if math.Abs(v1.Dot(v2.Cross(v3))) < geometryTolerance {
		return nil
	}
	a := mat.NewDense(3, 3, []float64{
		v1.X, v2.X, v3.X,
		v1.Y, v2.Y, v3.Y,
		v1.Z, v2.Z, v3.Z,
	})
	d := k.Sub(p)
	var x mat.VecDense
	if err := x.SolveVec(a, mat.NewVecDense(3, []float64{d.X, d.Y, d.Z})); err != nil {
		return nil
	}
	return [][3]float64{{x.AtVec(0), x.AtVec(1), x.AtVec(2)}}
}

// TranslationToDistance finds theta such that exp(theta) moves p to a distance delta from k.
func TranslationToDistance(exp MatrixExponential, p, k r3.Vector, delta float64) []float64 {
	w := p.Sub(k)
	return quadraticRoots(exp.axis.Dot(w), w.Norm2()-delta*delta)
}

// RotationTranslation finds (theta1, theta2) such that rot(theta1) * trans(theta2) maps p onto k.
func RotationTranslation(rot, trans MatrixExponential, p, k r3.Vector) [][2]float64 {
	w, v := rot.axis, trans.axis
	var offsets []float64
	if wv := w.Dot(v); math.Abs(wv) > perpendicularTolerance {
		// rotation preserves the height along its axis, which fixes the translation
		offsets = []float64{w.Dot(k.Sub(p)) / wv}
	} else {
		if math.Abs(w.Dot(k.Sub(p))) > distanceTolerance {
			return nil
		}
		// rotation preserves the distance to its axis
		up := projectOnPlane(p.Sub(rot.origin), w)
		rho := projectOnPlane(k.Sub(rot.origin), w).Norm()
		offsets = quadraticRoots(up.Dot(v), up.Norm2()-rho*rho)
	}

	solutions := make([][2]float64, 0, len(offsets))
	for _, t := range offsets {
		theta := SingleRotation(rot, p.Add(v.Mul(t)), k)
		if len(theta) == 0 {
			continue
		}
		solutions = append(solutions, [2]float64{theta[0], t})
	}
	return solutions
}

// TranslationRotation finds (theta1, theta2) such that trans(theta1) * rot(theta2) maps p onto k.
func TranslationRotation(trans, rot MatrixExponential, p, k r3.Vector) [][2]float64 {
	w, v := rot.axis, trans.axis
	var offsets []float64
	if wv := w.Dot(v); math.Abs(wv) > perpendicularTolerance {
		offsets = []float64{w.Dot(k.Sub(p)) / wv}
	} else {
		if math.Abs(w.Dot(k.Sub(p))) > distanceTolerance {
			return nil
		}
		wk := projectOnPlane(k.Sub(rot.origin), w)
		rho := projectOnPlane(p.Sub(rot.origin), w).Norm()
		offsets = quadraticRoots(-wk.Dot(v), wk.Norm2()-rho*rho)
	}

	solutions := make([][2]float64, 0, len(offsets))
	for _, t := range offsets {
		theta := SingleRotation(rot, p, k.Sub(v.Mul(t)))
		if len(theta) == 0 {
			continue
		}
		solutions = append(solutions, [2]float64{t, theta[0]})
	}
	return solutions
}
