package screwtheory

import (
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/spatialmath"
)

func TestEvaluate(t *testing.T) {
	chain := newPlanarChain(t)
	pose, err := chain.Evaluate([]float64{0, 0, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, chain.Transform()), test.ShouldBeTrue)

	// folding the second link back on the first
	pose, err = chain.Evaluate([]float64{0, 3.141592653589793, 0})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(pose.Point(), r3.Vector{X: -0.1, Y: 0, Z: 0}, 1e-9), test.ShouldBeTrue)

	_, err = chain.Evaluate([]float64{0, 0})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, referenceframe.NewIncorrectDoFError(2, 3).Error())
}

func TestToolChange(t *testing.T) {
	chain := newPumaChain(t)
	q := []float64{0.1, -0.4, 0.8, 1.2, -0.5, 2.0}
	before, err := chain.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)

	chain.PushTool(spatialmath.NewPoseFromPoint(r3.Vector{X: 0, Y: 0, Z: 0.15}))
	test.That(t, chain.ToolDepth(), test.ShouldEqual, 1)
	pushed, err := chain.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(before, pushed), test.ShouldBeFalse)
	test.That(t, before.Point().Sub(pushed.Point()).Norm(), test.ShouldAlmostEqual, 0.15, 1e-9)

	chain.PushTool(spatialmath.NewPoseFromPoint(r3.Vector{X: 0.1, Y: 0, Z: 0}))
	test.That(t, chain.PopTool(), test.ShouldBeNil)
	popped, err := chain.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(popped, pushed), test.ShouldBeTrue)

	chain.RestoreTool()
	test.That(t, chain.ToolDepth(), test.ShouldEqual, 0)
	restored, err := chain.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(restored, before), test.ShouldBeTrue)
	test.That(t, chain.PopTool(), test.ShouldNotBeNil)
}

func TestMakeReverse(t *testing.T) {
	chain := newPumaChain(t)
	reverse := chain.MakeReverse()
	test.That(t, reverse.Size(), test.ShouldEqual, chain.Size())

	rnd := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		q := randomJoints(rnd, chain)
		rq := make([]float64, len(q))
		for j := range q {
			rq[len(q)-1-j] = q[j]
		}
		forward, err := chain.Evaluate(q)
		test.That(t, err, test.ShouldBeNil)
		backward, err := reverse.Evaluate(rq)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, spatialmath.PoseAlmostEqualEps(spatialmath.PoseInverse(forward), backward, 1e-9, 1e-9), test.ShouldBeTrue)
	}
}

func TestChangeBaseFrame(t *testing.T) {
	chain := newPumaChain(t)
	moved := chain.Clone()
	base := spatialmath.NewPose(r3.Vector{X: 0.3, Y: -1, Z: 0.2}, &spatialmath.R4AA{Theta: 1.2, RX: 0, RY: 0, RZ: 1})
	moved.ChangeBaseFrame(base)

	q := []float64{0.3, 0.2, -0.1, 0.4, 0.5, -0.6}
	original, err := chain.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)
	shifted, err := moved.Evaluate(q)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqualEps(spatialmath.Compose(base, original), shifted, 1e-9, 1e-9), test.ShouldBeTrue)

	// the clone is independent of the chain it was made from
	test.That(t, chain.Exponential(0).Origin(), test.ShouldResemble, r3.Vector{})
}
