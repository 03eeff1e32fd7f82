package screwtheory

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/screwik/spatialmath"
	"go.viam.com/screwik/utils"
)

type testJoint struct {
	motion MotionType
	axis   r3.Vector
	origin r3.Vector
}

func newTestChain(t *testing.T, tool r3.Vector, joints ...testJoint) *PoeExpression {
	t.Helper()
	chain := NewPoeExpression(spatialmath.NewPoseFromPoint(tool))
	for _, j := range joints {
		chain.Append(mustExp(t, j.motion, j.axis, j.origin))
	}
	return chain
}

// newPumaChain is an elbow manipulator with a spherical wrist. At zero the first and last wrist axes line up.
func newPumaChain(t *testing.T) *PoeExpression {
	wrist := r3.Vector{X: 0.4, Y: 0, Z: 0.9}
	return newTestChain(t, r3.Vector{X: 0.5, Y: 0, Z: 0.9},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{X: 0, Y: 0, Z: 0.5}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{X: 0, Y: 0, Z: 0.9}},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, wrist},
		testJoint{Rotation, r3.Vector{X: 0, Y: 1, Z: 0}, wrist},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, wrist},
	)
}

func newGantryChain(t *testing.T) *PoeExpression {
	wrist := r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}
	return newTestChain(t, r3.Vector{X: 0.1, Y: 0.2, Z: 0.2},
		testJoint{Translation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{}},
		testJoint{Translation, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{}},
		testJoint{Translation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, wrist},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, wrist},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, wrist},
	)
}

func newCylindricalChain(t *testing.T) *PoeExpression {
	return newTestChain(t, r3.Vector{X: 0.3, Y: 0, Z: 0.2},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Translation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Translation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{}},
	)
}

func newPlanarChain(t *testing.T) *PoeExpression {
	return newTestChain(t, r3.Vector{X: 1.1, Y: 0, Z: 0},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0.5, Y: 0, Z: 0}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0.9, Y: 0, Z: 0}},
	)
}

func newPolarChain(t *testing.T) *PoeExpression {
	return newTestChain(t, r3.Vector{X: 0.4, Y: 0, Z: 0.1},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Translation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{}},
	)
}

func newLiftChain(t *testing.T) *PoeExpression {
	return newTestChain(t, r3.Vector{X: 0.6, Y: 0, Z: 0},
		testJoint{Translation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0.3, Y: 0, Z: 0}},
	)
}

// newToolFirstChain only has a plan when solved from the tool end.
func newToolFirstChain(t *testing.T) *PoeExpression {
	return newTestChain(t, r3.Vector{X: 0.2, Y: 0.1, Z: 0.7},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0, Z: 0.5}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0.3, Z: 0}},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0.3, Y: 0.3, Z: 0}},
	)
}

// newSkewChain is redundant and has no intersecting or parallel axes.
func newSkewChain(t *testing.T) *PoeExpression {
	return newTestChain(t, r3.Vector{X: 0, Y: 0, Z: 1.6},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{X: 0, Y: 0.1, Z: 0.3}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{X: 0.2, Y: 0, Z: 0.5}},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0.25, Z: 0.8}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 1, Z: 1}, r3.Vector{X: 0.15, Y: 0, Z: 1.0}},
		testJoint{Rotation, r3.Vector{X: 1, Y: 1, Z: 1}, r3.Vector{X: 0.1, Y: -0.2, Z: 1.2}},
		testJoint{Rotation, r3.Vector{X: 1, Y: -1, Z: 0}, r3.Vector{X: 0.05, Y: 0.3, Z: 1.4}},
	)
}

// newTeoChain is the right arm of a humanoid, mounted sideways on the torso. Its first three and its fourth and
// fifth axes meet in a point, and the third and fifth axes lie on the same line.
func newTeoChain(t *testing.T) *PoeExpression {
	elbow := r3.Vector{X: -0.32901, Y: 0, Z: 0}
	chain := newTestChain(t, r3.Vector{X: -0.63401, Y: 0, Z: 0},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 1, Z: 0}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{}},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, elbow},
		testJoint{Rotation, r3.Vector{X: 1, Y: 0, Z: 0}, elbow},
		testJoint{Rotation, r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: -0.54401, Y: 0, Z: 0}},
	)
	shoulder := spatialmath.Compose(
		spatialmath.NewPoseFromPoint(r3.Vector{X: 0, Y: 0.34692, Z: 0.1932 + 0.305}),
		spatialmath.Compose(
			spatialmath.NewPoseFromOrientation(&spatialmath.R4AA{Theta: -math.Pi / 2, RY: 1}),
			spatialmath.NewPoseFromOrientation(&spatialmath.R4AA{Theta: -math.Pi / 2, RX: 1}),
		),
	)
	chain.ChangeBaseFrame(shoulder)
	return chain
}

// newScaraChain builds a SCARA arm with vertical axes. The letters of layout name the joints from the base, R for
// revolute and P for the prismatic lift.
func newScaraChain(layout string) func(t *testing.T) *PoeExpression {
	return func(t *testing.T) *PoeExpression {
		up := r3.Vector{X: 0, Y: 0, Z: 1}
		links := []float64{0, 0.4, 0.7}
		var joints []testJoint
		for _, c := range layout {
			if c == 'P' {
				joints = append(joints, testJoint{Translation, up, r3.Vector{}})
				continue
			}
			joints = append(joints, testJoint{Rotation, up, r3.Vector{X: links[0], Y: 0, Z: 0}})
			links = links[1:]
		}
		return newTestChain(t, r3.Vector{X: 0.9, Y: 0, Z: 0.2}, joints...)
	}
}

func randomJoints(rnd *rand.Rand, chain *PoeExpression) []float64 {
	q := make([]float64, chain.Size())
	for i, m := range chain.Motions() {
		if m == Rotation {
			q[i] = (rnd.Float64()*2 - 1) * math.Pi
		} else {
			q[i] = rnd.Float64()*2 - 1
		}
	}
	return q
}

func containsJoints(candidates []Candidate, q []float64, motions []MotionType) bool {
	for _, c := range candidates {
		match := true
		for i := range q {
			diff := c.Joints[i] - q[i]
			if motions[i] == Rotation {
				diff = utils.AngleDiffRad(c.Joints[i], q[i])
			}
			if math.Abs(diff) > 1e-5 {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestBuildPlans(t *testing.T) {
	for _, tc := range []struct {
		name     string
		chain    func(*testing.T) *PoeExpression
		reversed bool
		plan     []string
	}{
		{"puma", newPumaChain, false, []string{
			"RotationToDistance(q3) distance form",
			"IntersectingRotations(q1, q2) point form",
			"IntersectingRotations(q4, q5) point form",
			"SingleRotation(q6) point form",
		}},
		{"gantry", newGantryChain, false, []string{
			"TripleTranslation(q1, q2, q3) point form",
			"IntersectingRotations(q4, q5) point form",
			"SingleRotation(q6) point form",
		}},
		{"cylindrical", newCylindricalChain, false, []string{
			"SingleRotation(q1) direction form",
			"DoubleTranslation(q2, q3) point form",
		}},
		{"planar", newPlanarChain, false, []string{
			"ParallelRotations(q1, q2) point form",
			"SingleRotation(q3) point form",
		}},
		{"polar", newPolarChain, false, []string{"RotationTranslation(q1, q2) point form"}},
		{"lift", newLiftChain, false, []string{"TranslationRotation(q1, q2) point form"}},
		{"teo", newTeoChain, true, []string{
			"RotationToDistance(q4) distance form",
			"IntersectingRotations(q6, q5) point form",
			"IntersectingRotations(q3, q2) point form",
			"SingleRotation(q1) point form",
		}},
		{"scara", newScaraChain("RRPR"), false, []string{
			"TranslationToPlane(q3) height form",
			"ParallelRotations(q1, q2) point form",
			"SingleRotation(q4) point form",
		}},
		{"scara lift first", newScaraChain("PRRR"), false, []string{
			"TranslationToPlane(q1) height form",
			"ParallelRotations(q2, q3) point form",
			"SingleRotation(q4) point form",
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			problem, err := Build(tc.chain(t))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, problem.Reversed(), test.ShouldEqual, tc.reversed)
			var plan []string
			for _, step := range problem.Plan() {
				plan = append(plan, step.String())
			}
			test.That(t, plan, test.ShouldResemble, tc.plan)
		})
	}
}

func TestBuildUnsupported(t *testing.T) {
	problem, err := Build(newSkewChain(t))
	test.That(t, problem, test.ShouldBeNil)
	test.That(t, errors.Is(err, ErrUnsupportedTopology), test.ShouldBeTrue)

	_, err = Build(NewPoeExpression(nil))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBuildReversed(t *testing.T) {
	chain := newToolFirstChain(t)
	problem, err := Build(chain)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, problem.Reversed(), test.ShouldBeTrue)
	test.That(t, problem.Size(), test.ShouldEqual, 4)
	for _, step := range problem.Plan() {
		for _, j := range step.Joints {
			test.That(t, j, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, j, test.ShouldBeLessThan, 4)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name  string
		chain func(*testing.T) *PoeExpression
	}{
		{"puma", newPumaChain},
		{"gantry", newGantryChain},
		{"cylindrical", newCylindricalChain},
		{"planar", newPlanarChain},
		{"polar", newPolarChain},
		{"lift", newLiftChain},
		{"tool first", newToolFirstChain},
		{"reversed puma", func(t *testing.T) *PoeExpression { return newPumaChain(t).MakeReverse() }},
		{"teo", newTeoChain},
		{"scara", newScaraChain("RRPR")},
		{"scara lift last", newScaraChain("RRRP")},
		{"scara lift first", newScaraChain("PRRR")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chain := tc.chain(t)
			problem, err := Build(chain)
			test.That(t, err, test.ShouldBeNil)
			motions := chain.Motions()

			rnd := rand.New(rand.NewSource(1))
			for i := 0; i < 50; i++ {
				q := randomJoints(rnd, chain)
				goal, err := chain.Evaluate(q)
				test.That(t, err, test.ShouldBeNil)

				candidates, err := problem.Solve(goal, BaseFrame, nil)
				test.That(t, err, test.ShouldBeNil)
				test.That(t, containsJoints(candidates, q, motions), test.ShouldBeTrue)
				for _, c := range candidates {
					test.That(t, c.Valid, test.ShouldBeTrue)
					actual, err := chain.Evaluate(c.Joints)
					test.That(t, err, test.ShouldBeNil)
					test.That(t, spatialmath.PoseAlmostEqualEps(actual, goal, LinearTolerance, AngularTolerance), test.ShouldBeTrue)
				}
			}
		})
	}
}

func TestSolveElbowManipulator(t *testing.T) {
	chain := newPumaChain(t)
	problem, err := Build(chain)
	test.That(t, err, test.ShouldBeNil)

	q := []float64{0.5, -0.3, 1.1, 0.4, -0.9, 2.2}
	goal, err := chain.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)

	candidates, err := problem.Solve(goal, BaseFrame, nil)
	test.That(t, err, test.ShouldBeNil)
	// shoulder, elbow and wrist flips
	test.That(t, candidates, test.ShouldHaveLength, 8)

	t.Run("deterministic", func(t *testing.T) {
		again, err := problem.Solve(goal, BaseFrame, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, again, test.ShouldResemble, candidates)
	})

	t.Run("zero configuration", func(t *testing.T) {
		zero := make([]float64, 6)
		home, err := chain.Evaluate(zero)
		test.That(t, err, test.ShouldBeNil)
		found, err := problem.Solve(home, BaseFrame, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, containsJoints(found, zero, chain.Motions()), test.ShouldBeTrue)
	})

	t.Run("unreachable", func(t *testing.T) {
		far := spatialmath.NewPose(goal.Point().Mul(20), goal.Orientation())
		found, err := problem.Solve(far, BaseFrame, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, found, test.ShouldBeEmpty)

		_, nodes, err := problem.Trace(far, BaseFrame, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, nodes, test.ShouldHaveLength, 1)
		test.That(t, nodes[0].Dead, test.ShouldBeTrue)
	})

	t.Run("tcp frame", func(t *testing.T) {
		reference := []float64{0.4, -0.2, 1.0, 0.3, -0.8, 2.0}
		current, err := chain.Evaluate(reference)
		test.That(t, err, test.ShouldBeNil)
		relative := spatialmath.PoseBetween(current, goal)

		found, err := problem.Solve(relative, TCPFrame, reference)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, containsJoints(found, q, chain.Motions()), test.ShouldBeTrue)

		_, err = problem.Solve(relative, TCPFrame, reference[:3])
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestTrace(t *testing.T) {
	chain := newPumaChain(t)
	problem, err := Build(chain)
	test.That(t, err, test.ShouldBeNil)
	goal, err := chain.Evaluate([]float64{-0.7, 0.2, 0.6, -1.0, 0.7, 0.1})
	test.That(t, err, test.ShouldBeNil)

	all, nodes, err := problem.Trace(goal, BaseFrame, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, nodes[0].Parent, test.ShouldEqual, -1)

	leaves := 0
	for _, node := range nodes[1:] {
		test.That(t, nodes[node.Parent].Depth, test.ShouldEqual, node.Depth-1)
		if node.Depth == len(problem.Plan()) {
			leaves++
		}
	}
	test.That(t, leaves, test.ShouldBeGreaterThanOrEqualTo, len(all))

	valid, err := problem.Solve(goal, BaseFrame, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(valid), test.ShouldBeLessThanOrEqualTo, len(all))
}

func TestDedupe(t *testing.T) {
	motions := []MotionType{Rotation, Translation}
	candidates := []Candidate{
		{Joints: []float64{math.Pi, 0.2}, Valid: false},
		{Joints: []float64{0.5, 0.1}, Valid: true},
		{Joints: []float64{-math.Pi + 1e-8, 0.2}, Valid: true},
		{Joints: []float64{math.Pi, 0.2}, Valid: false},
		{Joints: []float64{0.5, 0.1 + 1e-8}, Valid: true},
	}
	out := dedupe(candidates, motions)
	test.That(t, out, test.ShouldHaveLength, 2)
	test.That(t, out[0].Valid, test.ShouldBeTrue)
	test.That(t, out[0].Joints[0], test.ShouldAlmostEqual, -math.Pi+1e-8)
	test.That(t, out[1].Joints, test.ShouldResemble, []float64{0.5, 0.1})

	// prismatic joints are not compared on the circle
	out = dedupe([]Candidate{{Joints: []float64{0, -math.Pi}}, {Joints: []float64{0, math.Pi}}}, motions)
	test.That(t, out, test.ShouldHaveLength, 2)
}

func TestParseReferenceFrame(t *testing.T) {
	frame, err := ParseReferenceFrame("TCP")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldEqual, TCPFrame)
	frame, err = ParseReferenceFrame(BaseFrame.String())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frame, test.ShouldEqual, BaseFrame)
	_, err = ParseReferenceFrame("world")
	test.That(t, err, test.ShouldNotBeNil)
}
