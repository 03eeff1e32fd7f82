package screwtheory

import (
	"math"

	"github.com/golang/geo/r3"
)

const (
	// geometryTolerance decides static geometric relations between axes and test points at build time.
	geometryTolerance = 1e-9
	// distanceTolerance is the band within which two distances (meters) are treated as equal.
	distanceTolerance = 1e-6
	// discriminantTolerance is how far below zero a squared quantity may fall and still count as zero.
	discriminantTolerance = 1e-10
)

// projectOnPlane removes the component of v along the unit vector n.
func projectOnPlane(v, n r3.Vector) r3.Vector {
	return v.Sub(n.Mul(n.Dot(v)))
}

// distanceToLine returns the distance from p to the line through origin with unit direction axis.
func distanceToLine(p, origin, axis r3.Vector) float64 {
	return projectOnPlane(p.Sub(origin), axis).Norm()
}

func parallel(a, b r3.Vector) bool {
	return a.Cross(b).Norm() < geometryTolerance
}

// lineIntersection returns the intersection point of two lines, if they are not parallel and meet.
func lineIntersection(o1, d1, o2, d2 r3.Vector) (r3.Vector, bool) {
	n := d1.Cross(d2)
	n2 := n.Norm2()
	if n2 < geometryTolerance*geometryTolerance {
		return r3.Vector{}, false
	}
	w := o2.Sub(o1)
	// skew lines have a non-zero common perpendicular
	if math.Abs(w.Dot(n))/math.Sqrt(n2) > geometryTolerance {
		return r3.Vector{}, false
	}
	t := w.Cross(d2).Dot(n) / n2
	return o1.Add(d1.Mul(t)), true
}

func samePoint(a, b r3.Vector) bool {
	return a.Sub(b).Norm() < geometryTolerance
}

// signedAngle returns the angle rotating u onto v about the unit axis w, assuming both are perpendicular to w.
func signedAngle(w, u, v r3.Vector) float64 {
	return math.Atan2(w.Dot(u.Cross(v)), u.Dot(v))
}

// quadraticRoots returns the real roots of x^2 + 2*b*x + c = 0. A slightly negative discriminant gives the double
// root.
func quadraticRoots(b, c float64) []float64 {
	disc := b*b - c
	switch {
	case disc < -discriminantTolerance:
		return nil
	case disc <= 0:
		return []float64{-b}
	default:
		sq := math.Sqrt(disc)
		return []float64{-b + sq, -b - sq}
	}
}
