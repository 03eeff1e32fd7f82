package screwtheory

import (
	"github.com/pkg/errors"

	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/spatialmath"
)

// PoeExpression is a product of exponentials: H(q) = e1(q1) * ... * eN(qN) * H_ST, where H_ST is the pose of the
// tool frame relative to the base at the zero configuration.
// A PoeExpression is not safe for concurrent mutation; Evaluate may be called concurrently once it is fully built.
type PoeExpression struct {
	exps []MatrixExponential
	tool spatialmath.Pose

	// offsets pushed by PushTool, in order, so that they can be popped.
	toolStack []spatialmath.Pose
}

// NewPoeExpression creates an empty chain with the given zero-configuration tool pose. A nil tool means identity.
func NewPoeExpression(tool spatialmath.Pose) *PoeExpression {
	if tool == nil {
		tool = spatialmath.NewZeroPose()
	}
	return &PoeExpression{tool: tool}
}

// Append adds a joint at the end of the chain.
func (poe *PoeExpression) Append(exp MatrixExponential) {
	poe.exps = append(poe.exps, exp)
}

// Size returns the number of joints.
func (poe *PoeExpression) Size() int {
	return len(poe.exps)
}

// Exponential returns the i'th joint screw.
func (poe *PoeExpression) Exponential(i int) MatrixExponential {
	return poe.exps[i]
}

// Motions returns the motion type of every joint, in order.
func (poe *PoeExpression) Motions() []MotionType {
	motions := make([]MotionType, 0, len(poe.exps))
	for _, exp := range poe.exps {
		motions = append(motions, exp.motion)
	}
	return motions
}

// Transform returns the tool pose at the zero configuration, including any pushed tool offsets.
func (poe *PoeExpression) Transform() spatialmath.Pose {
	return poe.tool
}

// Evaluate computes the forward kinematics for the given joint values.
func (poe *PoeExpression) Evaluate(q []float64) (spatialmath.Pose, error) {
	if len(q) != len(poe.exps) {
		return nil, referenceframe.NewIncorrectDoFError(len(q), len(poe.exps))
	}
	return poe.evaluate(q), nil
}

func (poe *PoeExpression) evaluate(q []float64) spatialmath.Pose {
	return spatialmath.Compose(poe.product(0, len(poe.exps), q), poe.tool)
}

// product composes exps [from, to) at the given joint values.
func (poe *PoeExpression) product(from, to int, q []float64) spatialmath.Pose {
	pose := spatialmath.NewZeroPose()
	for i := from; i < to; i++ {
		pose = spatialmath.Compose(pose, poe.exps[i].AsPose(q[i]))
	}
	return pose
}

// ChangeBaseFrame re-expresses the whole chain in a new base frame, given the pose of the old base in the new one.
func (poe *PoeExpression) ChangeBaseFrame(newOld spatialmath.Pose) {
	for i, exp := range poe.exps {
		poe.exps[i] = exp.ChangeBase(newOld)
	}
	poe.tool = spatialmath.Compose(newOld, poe.tool)
}

// ChangeToolFrame permanently moves the tool frame by the given offset, expressed in the current tool frame.
func (poe *PoeExpression) ChangeToolFrame(offset spatialmath.Pose) {
	poe.tool = spatialmath.Compose(poe.tool, offset)
}

// PushTool appends a fixed offset after the current tool frame. It can be undone with PopTool.
func (poe *PoeExpression) PushTool(offset spatialmath.Pose) {
	poe.toolStack = append(poe.toolStack, poe.tool)
	poe.tool = spatialmath.Compose(poe.tool, offset)
}

// PopTool removes the last offset added with PushTool.
func (poe *PoeExpression) PopTool() error {
	if len(poe.toolStack) == 0 {
		return errors.New("no tool offset to remove")
	}
	last := len(poe.toolStack) - 1
	poe.tool = poe.toolStack[last]
	poe.toolStack = poe.toolStack[:last]
	return nil
}

// RestoreTool removes every offset added with PushTool, returning the chain to its original tool frame.
func (poe *PoeExpression) RestoreTool() {
	if len(poe.toolStack) == 0 {
		return
	}
	poe.tool = poe.toolStack[0]
	poe.toolStack = nil
}

// ToolDepth returns how many tool offsets are currently pushed.
func (poe *PoeExpression) ToolDepth() int {
	return len(poe.toolStack)
}

// Clone returns a deep copy of the chain.
func (poe *PoeExpression) Clone() *PoeExpression {
	exps := make([]MatrixExponential, len(poe.exps))
	copy(exps, poe.exps)
	var stack []spatialmath.Pose
	if len(poe.toolStack) > 0 {
		stack = make([]spatialmath.Pose, len(poe.toolStack))
		copy(stack, poe.toolStack)
	}
	return &PoeExpression{exps: exps, tool: poe.tool, toolStack: stack}
}

// MakeReverse returns the chain describing the inverse motion, from the tool back to the base:
// H'(q') = H(q)^-1 where q'[i] = q[N-1-i].
func (poe *PoeExpression) MakeReverse() *PoeExpression {
	toolInv := spatialmath.PoseInverse(poe.tool)
	reversed := NewPoeExpression(toolInv)
	for i := len(poe.exps) - 1; i >= 0; i-- {
		reversed.Append(poe.exps[i].ChangeBase(toolInv).Reversed())
	}
	return reversed
}
