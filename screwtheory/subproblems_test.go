package screwtheory

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func mustExp(t *testing.T, motion MotionType, axis, origin r3.Vector) MatrixExponential {
	t.Helper()
	exp, err := NewMatrixExponential(motion, axis, origin)
	test.That(t, err, test.ShouldBeNil)
	return exp
}

func TestSingleRotation(t *testing.T) {
	exp := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 1, Y: 0, Z: 0})
	p := r3.Vector{X: 2, Y: 0, Z: 0.5}

	for _, theta := range []float64{0, 0.3, -2.1, math.Pi / 2, 3} {
		k := exp.Apply(theta, p)
		sols := SingleRotation(exp, p, k)
		test.That(t, sols, test.ShouldHaveLength, 1)
		test.That(t, sols[0], test.ShouldAlmostEqual, theta, 1e-9)
	}

	t.Run("unreachable height", func(t *testing.T) {
		test.That(t, SingleRotation(exp, p, r3.Vector{X: 2, Y: 0, Z: 0.6}), test.ShouldBeEmpty)
	})
	t.Run("unreachable radius", func(t *testing.T) {
		test.That(t, SingleRotation(exp, p, r3.Vector{X: 3, Y: 0, Z: 0.5}), test.ShouldBeEmpty)
	})
	t.Run("point on axis", func(t *testing.T) {
		sols := SingleRotation(exp, r3.Vector{X: 1, Y: 0, Z: 2}, r3.Vector{X: 1, Y: 0, Z: 2})
		test.That(t, sols, test.ShouldResemble, []float64{0})
	})
}

func TestIntersectingRotations(t *testing.T) {
	first := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0, Z: 1})
	second := mustExp(t, Rotation, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{X: 0, Y: 0, Z: 1})
	p := r3.Vector{X: 0.5, Y: 0.2, Z: 1.3}

	for _, pair := range [][2]float64{{0.4, -0.7}, {-2.5, 1.1}, {0, 0.2}} {
		k := first.Apply(pair[0], second.Apply(pair[1], p))
		sols := IntersectingRotations(first, second, p, k)
		test.That(t, len(sols), test.ShouldBeGreaterThanOrEqualTo, 1)
		found := false
		for _, sol := range sols {
			got := first.Apply(sol[0], second.Apply(sol[1], p))
			test.That(t, got.Sub(k).Norm(), test.ShouldBeLessThan, 1e-9)
			if math.Abs(sol[0]-pair[0]) < 1e-9 && math.Abs(sol[1]-pair[1]) < 1e-9 {
				found = true
			}
		}
		test.That(t, found, test.ShouldBeTrue)
	}

	t.Run("radius mismatch", func(t *testing.T) {
		test.That(t, IntersectingRotations(first, second, p, r3.Vector{X: 3, Y: 0, Z: 0}), test.ShouldBeEmpty)
	})
	t.Run("parallel axes", func(t *testing.T) {
		other := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 1, Y: 0, Z: 0})
		test.That(t, IntersectingRotations(first, other, p, p), test.ShouldBeEmpty)
	})
}

func TestRotationToDistance(t *testing.T) {
	exp := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{})
	p := r3.Vector{X: 1, Y: 0, Z: 0}
	k := r3.Vector{X: 0, Y: 2, Z: 0.5}

	for _, theta := range []float64{0.2, 1.2, -2} {
		delta := exp.Apply(theta, p).Sub(k).Norm()
		sols := RotationToDistance(exp, p, k, delta)
		test.That(t, sols, test.ShouldHaveLength, 2)
		found := false
		for _, sol := range sols {
			test.That(t, exp.Apply(sol, p).Sub(k).Norm(), test.ShouldAlmostEqual, delta, 1e-9)
			if math.Abs(sol-theta) < 1e-9 {
				found = true
			}
		}
		test.That(t, found, test.ShouldBeTrue)
	}

	t.Run("tangent", func(t *testing.T) {
		sols := RotationToDistance(exp, p, k, math.Hypot(1, 0.5))
		test.That(t, sols, test.ShouldNotBeEmpty)
		for _, sol := range sols {
			test.That(t, sol, test.ShouldAlmostEqual, math.Pi/2, 1e-6)
		}
	})
	t.Run("too far", func(t *testing.T) {
		test.That(t, RotationToDistance(exp, p, k, 10), test.ShouldBeEmpty)
	})
	t.Run("too close", func(t *testing.T) {
		test.That(t, RotationToDistance(exp, p, k, 0.1), test.ShouldBeEmpty)
	})
	t.Run("point on axis", func(t *testing.T) {
		onAxis := r3.Vector{X: 0, Y: 0, Z: 0.5}
		test.That(t, RotationToDistance(exp, onAxis, k, 2), test.ShouldResemble, []float64{0})
		test.That(t, RotationToDistance(exp, onAxis, k, 1), test.ShouldBeEmpty)
	})
}

func TestParallelRotations(t *testing.T) {
	first := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{})
	second := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 1, Y: 0, Z: 0})
	p := r3.Vector{X: 1.7, Y: 0.1, Z: 0.3}

	for _, pair := range [][2]float64{{0.4, -0.7}, {2.5, 1.1}} {
		k := first.Apply(pair[0], second.Apply(pair[1], p))
		sols := ParallelRotations(first, second, p, k)
		test.That(t, sols, test.ShouldHaveLength, 2)
		found := false
		for _, sol := range sols {
			got := first.Apply(sol[0], second.Apply(sol[1], p))
			test.That(t, got.Sub(k).Norm(), test.ShouldBeLessThan, 1e-9)
			if math.Abs(sol[0]-pair[0]) < 1e-9 && math.Abs(sol[1]-pair[1]) < 1e-9 {
				found = true
			}
		}
		test.That(t, found, test.ShouldBeTrue)
	}

	t.Run("height mismatch", func(t *testing.T) {
		test.That(t, ParallelRotations(first, second, p, r3.Vector{X: 1, Y: 0, Z: 0}), test.ShouldBeEmpty)
	})
	t.Run("out of reach", func(t *testing.T) {
		test.That(t, ParallelRotations(first, second, p, r3.Vector{X: 5, Y: 0, Z: 0.3}), test.ShouldBeEmpty)
	})
}

func TestTranslations(t *testing.T) {
	x := mustExp(t, Translation, r3.Vector{X: 2, Y: 0, Z: 0}, r3.Vector{})
	y := mustExp(t, Translation, r3.Vector{X: 1, Y: 1, Z: 0}, r3.Vector{})
	p := r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}

	sols := SingleTranslation(x, p, r3.Vector{X: -0.4, Y: 0.2, Z: 0.3})
	test.That(t, sols, test.ShouldHaveLength, 1)
	test.That(t, sols[0], test.ShouldAlmostEqual, -0.5, 1e-12)
	test.That(t, SingleTranslation(x, p, r3.Vector{X: 0, Y: 1, Z: 0}), test.ShouldBeEmpty)

	k := x.Apply(0.3, y.Apply(-0.8, p))
	pairs := DoubleTranslation(x, y, p, k)
	test.That(t, pairs, test.ShouldHaveLength, 1)
	test.That(t, pairs[0][0], test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, pairs[0][1], test.ShouldAlmostEqual, -0.8, 1e-9)
	test.That(t, DoubleTranslation(x, y, p, r3.Vector{X: 0, Y: 0, Z: 5}), test.ShouldBeEmpty)
	test.That(t, DoubleTranslation(x, x, p, k), test.ShouldBeEmpty)

	z := mustExp(t, Translation, r3.Vector{X: 0, Y: 1, Z: 1}, r3.Vector{})
	k3 := x.Apply(0.5, y.Apply(0.2, z.Apply(-1.1, p)))
	triples := TripleTranslation(x, y, z, p, k3)
	test.That(t, triples, test.ShouldHaveLength, 1)
	test.That(t, triples[0][0], test.ShouldAlmostEqual, 0.5, 1e-9)
	test.That(t, triples[0][1], test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, triples[0][2], test.ShouldAlmostEqual, -1.1, 1e-9)
	test.That(t, TripleTranslation(x, y, x, p, k3), test.ShouldBeEmpty)

	target := r3.Vector{X: 1, Y: 0.2, Z: 0.3}
	dists := TranslationToDistance(x, p, target, 0.5)
	test.That(t, dists, test.ShouldHaveLength, 2)
	for _, d := range dists {
		test.That(t, x.Apply(d, p).Sub(target).Norm(), test.ShouldAlmostEqual, 0.5, 1e-9)
	}
	test.That(t, TranslationToDistance(x, p, r3.Vector{X: 1, Y: 3, Z: 0.3}, 0.5), test.ShouldBeEmpty)

	// only the height along the axis matters
	heights := TranslationToPlane(x, p, r3.Vector{X: 0.9, Y: -4, Z: 7})
	test.That(t, heights, test.ShouldHaveLength, 1)
	test.That(t, heights[0], test.ShouldAlmostEqual, 0.8, 1e-12)
}

func TestMixedPairs(t *testing.T) {
	rot := mustExp(t, Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0.2, Y: 0, Z: 0})
	vertical := mustExp(t, Translation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{})
	radial := mustExp(t, Translation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{})
	p := r3.Vector{X: 0.7, Y: 0.1, Z: 0.4}

	check := func(t *testing.T, sols [][2]float64, eval func(sol [2]float64) r3.Vector, k r3.Vector) {
		t.Helper()
		test.That(t, sols, test.ShouldNotBeEmpty)
		for _, sol := range sols {
			test.That(t, eval(sol).Sub(k).Norm(), test.ShouldBeLessThan, 1e-9)
		}
	}

	t.Run("rotation then translation along axis", func(t *testing.T) {
		k := rot.Apply(0.9, vertical.Apply(0.25, p))
		sols := RotationTranslation(rot, vertical, p, k)
		test.That(t, sols, test.ShouldHaveLength, 1)
		check(t, sols, func(s [2]float64) r3.Vector { return rot.Apply(s[0], vertical.Apply(s[1], p)) }, k)
	})
	t.Run("rotation then translation in plane", func(t *testing.T) {
		k := rot.Apply(-1.3, radial.Apply(0.35, p))
		sols := RotationTranslation(rot, radial, p, k)
		test.That(t, sols, test.ShouldHaveLength, 2)
		check(t, sols, func(s [2]float64) r3.Vector { return rot.Apply(s[0], radial.Apply(s[1], p)) }, k)
	})
	t.Run("translation then rotation along axis", func(t *testing.T) {
		k := vertical.Apply(-0.15, rot.Apply(2.2, p))
		sols := TranslationRotation(vertical, rot, p, k)
		test.That(t, sols, test.ShouldHaveLength, 1)
		check(t, sols, func(s [2]float64) r3.Vector { return vertical.Apply(s[0], rot.Apply(s[1], p)) }, k)
	})
	t.Run("translation then rotation in plane", func(t *testing.T) {
		k := radial.Apply(0.6, rot.Apply(0.4, p))
		sols := TranslationRotation(radial, rot, p, k)
		test.That(t, sols, test.ShouldHaveLength, 2)
		check(t, sols, func(s [2]float64) r3.Vector { return radial.Apply(s[0], rot.Apply(s[1], p)) }, k)
	})
	t.Run("in plane height mismatch", func(t *testing.T) {
		test.That(t, RotationTranslation(rot, radial, p, r3.Vector{X: 0, Y: 0, Z: 3}), test.ShouldBeEmpty)
		test.That(t, TranslationRotation(radial, rot, p, r3.Vector{X: 0, Y: 0, Z: 3}), test.ShouldBeEmpty)
	})
}
