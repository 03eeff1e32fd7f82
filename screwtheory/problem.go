package screwtheory

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/spatialmath"
	"go.viam.com/screwik/utils"
)

const (
	// LinearTolerance is the largest position error, in meters, of a valid candidate.
	LinearTolerance = 1e-5
	// AngularTolerance is the largest orientation error, in radians, of a valid candidate.
	AngularTolerance = 1e-5

	// duplicateTolerance is the per-joint distance below which two candidates are the same solution.
	duplicateTolerance = 1e-6
)

// ReferenceFrame is the frame a goal pose is expressed in.
type ReferenceFrame int

const (
	// BaseFrame goals are expressed in the chain's base frame.
	BaseFrame ReferenceFrame = iota
	// TCPFrame goals are relative to the tool pose at a reference configuration.
	TCPFrame
)

func (f ReferenceFrame) String() string {
	switch f {
	case BaseFrame:
		return "base"
	case TCPFrame:
		return "tcp"
	default:
		return fmt.Sprintf("ReferenceFrame(%d)", int(f))
	}
}

// ParseReferenceFrame parses the names produced by ReferenceFrame.String.
func ParseReferenceFrame(s string) (ReferenceFrame, error) {
	switch strings.ToLower(s) {
	case "base", "":
		return BaseFrame, nil
	case "tcp":
		return TCPFrame, nil
	}
	return 0, errors.Errorf("unknown reference frame %q", s)
}

// Candidate is one complete joint assignment produced by the solver.
type Candidate struct {
	Joints []float64
	// Valid is set when the forward kinematics of Joints reproduce the goal within tolerance.
	Valid bool
}

// TraceNode is one partial assignment in the solver's branch tree.
type TraceNode struct {
	ID     int
	Parent int
	// Depth is the number of plan steps applied; a node at full depth is a leaf.
	Depth  int
	Joints []float64
	// Dead is set when the next step had no solutions.
	Dead bool
}

// StepInfo describes one step of a plan, with joint indices of the chain given to Build.
type StepInfo struct {
	Form       string
	Subproblem string
	Joints     []int
	Point      r3.Vector
	Target     r3.Vector
}

func (s StepInfo) String() string {
	joints := make([]string, 0, len(s.Joints))
	for _, j := range s.Joints {
		joints = append(joints, fmt.Sprintf("q%d", j+1))
	}
	return fmt.Sprintf("%s(%s) %s form", s.Subproblem, strings.Join(joints, ", "), s.Form)
}

// Problem is a solution plan for one chain. It is read-only once built and safe for concurrent use.
type Problem struct {
	chain *PoeExpression
	// solveChain is the chain the steps refer to: chain itself, or its reverse.
	solveChain *PoeExpression
	steps      []planStep
	reversed   bool
}

// Size returns the number of joints.
func (p *Problem) Size() int {
	return p.chain.Size()
}

// Reversed reports whether the plan was built on the reversed chain.
func (p *Problem) Reversed() bool {
	return p.reversed
}

// Chain returns a copy of the chain the problem solves.
func (p *Problem) Chain() *PoeExpression {
	return p.chain.Clone()
}

// Plan describes the steps in the order they run.
func (p *Problem) Plan() []StepInfo {
	n := p.Size()
	info := make([]StepInfo, 0, len(p.steps))
	for _, step := range p.steps {
		joints := make([]int, 0, len(step.joints))
		for _, j := range step.joints {
			if p.reversed {
				j = n - 1 - j
			}
			joints = append(joints, j)
		}
		info = append(info, StepInfo{
			Form:       step.form.String(),
			Subproblem: step.kind.String(),
			Joints:     joints,
			Point:      step.point,
			Target:     step.target,
		})
	}
	return info
}

// Solve returns every distinct valid candidate for the goal, in discovery order. An empty result means the goal is
// unreachable. The reference configuration is only read for TCPFrame goals.
func (p *Problem) Solve(goal spatialmath.Pose, frame ReferenceFrame, reference []float64) ([]Candidate, error) {
	all, err := p.SolveAll(goal, frame, reference)
	if err != nil {
		return nil, err
	}
	valid := make([]Candidate, 0, len(all))
	for _, c := range all {
		if c.Valid {
			valid = append(valid, c)
		}
	}
	return valid, nil
}

// SolveAll is Solve without discarding the candidates that fail validation.
func (p *Problem) SolveAll(goal spatialmath.Pose, frame ReferenceFrame, reference []float64) ([]Candidate, error) {
	candidates, _, err := p.Trace(goal, frame, reference)
	return candidates, err
}

// Trace is SolveAll that also returns the branch tree, indexed by node ID.
func (p *Problem) Trace(goal spatialmath.Pose, frame ReferenceFrame, reference []float64) ([]Candidate, []TraceNode, error) {
	goal, err := p.resolveGoal(goal, frame, reference)
	if err != nil {
		return nil, nil, err
	}
	leaves, nodes := p.explore(goal)
	return dedupe(leaves, p.chain.Motions()), nodes, nil
}

func (p *Problem) resolveGoal(goal spatialmath.Pose, frame ReferenceFrame, reference []float64) (spatialmath.Pose, error) {
	switch frame {
	case BaseFrame:
		return goal, nil
	case TCPFrame:
		current, err := p.chain.Evaluate(reference)
		if err != nil {
			return nil, errors.Wrap(err, "cannot resolve tcp frame goal")
		}
		return spatialmath.Compose(current, goal), nil
	default:
		return nil, errors.Errorf("unknown reference frame %d", int(frame))
	}
}

// explore walks the branch tree depth first. Children are pushed in reverse so that the first solution of each
// step is explored first.
func (p *Problem) explore(goal spatialmath.Pose) ([]Candidate, []TraceNode) {
	n := p.solveChain.Size()
	target := goal
	if p.reversed {
		target = spatialmath.PoseInverse(goal)
	}
	// the tool transform is fixed, so the exps alone must produce target
	target = spatialmath.Compose(target, spatialmath.PoseInverse(p.solveChain.Transform()))

	nodes := []TraceNode{{ID: 0, Parent: -1, Joints: make([]float64, n)}}
	stack := []int{0}
	var leaves []Candidate
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := nodes[id]
		if node.Depth == len(p.steps) {
			leaves = append(leaves, p.finish(node.Joints, goal))
			continue
		}

		step := p.steps[node.Depth]
		solutions := p.applyStep(step, node.Joints, target)
		if len(solutions) == 0 {
			nodes[id].Dead = true
			continue
		}
		first := len(nodes)
		for _, sol := range solutions {
			joints := make([]float64, n)
			copy(joints, node.Joints)
			for k, j := range step.joints {
				joints[j] = sol[k]
			}
			nodes = append(nodes, TraceNode{ID: len(nodes), Parent: id, Depth: node.Depth + 1, Joints: joints})
		}
		for i := len(nodes) - 1; i >= first; i-- {
			stack = append(stack, i)
		}
	}
	return leaves, nodes
}

// finish maps a leaf back onto the original chain, wraps its angles and validates it.
func (p *Problem) finish(solved []float64, goal spatialmath.Pose) Candidate {
	n := len(solved)
	joints := make([]float64, n)
	for i, v := range solved {
		if p.reversed {
			joints[n-1-i] = v
		} else {
			joints[i] = v
		}
	}
	for i := range joints {
		if p.chain.exps[i].motion == Rotation {
			joints[i] = utils.WrapAngle(joints[i])
		}
	}
	actual := p.chain.evaluate(joints)
	return Candidate{
		Joints: joints,
		Valid:  spatialmath.PoseAlmostEqualEps(actual, goal, LinearTolerance, AngularTolerance),
	}
}

// applyStep reduces the pose equation to the step's subproblem at the current partial assignment and solves it.
// Each solution holds one value per step joint.
func (p *Problem) applyStep(step planStep, q []float64, target spatialmath.Pose) [][]float64 {
	chain := p.solveChain
	k := spatialmath.Compose(target, spatialmath.PoseInverse(chain.product(step.suffixStart, chain.Size(), q)))
	if step.prefixEnd > 0 {
		k = spatialmath.Compose(spatialmath.PoseInverse(chain.product(0, step.prefixEnd, q)), k)
	}

	point := step.point
	for _, i := range step.trailApply {
		if step.form == directionForm {
			point = chain.exps[i].Rotate(q[i], point)
		} else {
			point = chain.exps[i].Apply(q[i], point)
		}
	}

	switch step.form {
	case pointForm:
		return p.solvePoint(step, point, spatialmath.TransformPoint(k, step.point))
	case directionForm:
		return p.solveDirection(step, point, spatialmath.RotatePoint(k, step.point))
	case heightForm:
		exp := chain.exps[step.joints[0]]
		return singles(TranslationToPlane(exp, point, spatialmath.TransformPoint(k, step.point)))
	case distanceForm:
		delta := spatialmath.TransformPoint(k, step.point).Sub(step.target).Norm()
		other := step.target
		for _, i := range step.leadApply {
			other = chain.exps[i].Apply(-q[i], other)
		}
		exp := chain.exps[step.joints[0]]
		if step.kind == rotationToDistance {
			return singles(RotationToDistance(exp, point, other, delta))
		}
		return singles(TranslationToDistance(exp, point, other, delta))
	default:
		return nil
	}
}

func (p *Problem) solvePoint(step planStep, from, to r3.Vector) [][]float64 {
	exps := p.solveChain.exps
	first := exps[step.joints[0]]
	switch step.kind {
	case singleRotation:
		return singles(SingleRotation(first, from, to))
	case singleTranslation:
		return singles(SingleTranslation(first, from, to))
	case intersectingRotations:
		return pairs(IntersectingRotations(first, exps[step.joints[1]], from, to))
	case parallelRotations:
		return pairs(ParallelRotations(first, exps[step.joints[1]], from, to))
	case doubleTranslation:
		return pairs(DoubleTranslation(first, exps[step.joints[1]], from, to))
	case rotationTranslation:
		return pairs(RotationTranslation(first, exps[step.joints[1]], from, to))
	case translationRotation:
		return pairs(TranslationRotation(first, exps[step.joints[1]], from, to))
	case tripleTranslation:
		var out [][]float64
		for _, sol := range TripleTranslation(first, exps[step.joints[1]], exps[step.joints[2]], from, to) {
			out = append(out, []float64{sol[0], sol[1], sol[2]})
		}
		return out
	default:
		return nil
	}
}

// solveDirection solves with the rotation axes moved through the origin, where directions live.
func (p *Problem) solveDirection(step planStep, from, to r3.Vector) [][]float64 {
	exps := p.solveChain.exps
	first := exps[step.joints[0]].throughOrigin()
	if step.kind == singleRotation {
		return singles(SingleRotation(first, from, to))
	}
	return pairs(IntersectingRotations(first, exps[step.joints[1]].throughOrigin(), from, to))
}

func singles(sols []float64) [][]float64 {
	out := make([][]float64, 0, len(sols))
	for _, s := range sols {
		out = append(out, []float64{s})
	}
	return out
}

func pairs(sols [][2]float64) [][]float64 {
	out := make([][]float64, 0, len(sols))
	for _, s := range sols {
		out = append(out, []float64{s[0], s[1]})
	}
	return out
}

// dedupe keeps one candidate of every group that match joint by joint, the first valid one if any, at the
// position of the group's first member. Revolute joints are compared on the circle.
func dedupe(candidates []Candidate, motions []MotionType) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		dup := false
		for i, kept := range out {
			if sameJoints(c.Joints, kept.Joints, motions) {
				// a valid duplicate takes the place of an invalid one
				if c.Valid && !kept.Valid {
					out[i] = c
				}
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

func sameJoints(a, b []float64, motions []MotionType) bool {
	for i := range a {
		diff := a[i] - b[i]
		if motions[i] == Rotation {
			diff = utils.AngleDiffRad(a[i], b[i])
		}
		if diff > duplicateTolerance || diff < -duplicateTolerance {
			return false
		}
	}
	return true
}

// CheckJoints returns an error if q does not have one value per joint.
func (p *Problem) CheckJoints(q []float64) error {
	if len(q) != p.Size() {
		return referenceframe.NewIncorrectDoFError(len(q), p.Size())
	}
	return nil
}
