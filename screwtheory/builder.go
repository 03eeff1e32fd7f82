package screwtheory

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrUnsupportedTopology is returned by Build when no sequence of subproblems resolves every joint of a chain.
var ErrUnsupportedTopology = errors.New("chain topology cannot be solved in closed form")

// equationForm is the way a step reduces the full pose equation to a small subproblem.
type equationForm int

const (
	// pointForm: e_a...e_b * p = K * p.
	pointForm equationForm = iota
	// directionForm: the rotational part of the point form applied to a direction; translations drop out.
	directionForm
	// distanceForm: ||e_a * p - q|| = ||K * p - q||.
	distanceForm
	// heightForm: the component along a translation axis of the point form. Rotations about parallel axes and
	// translations across the axis drop out.
	heightForm
)

func (f equationForm) String() string {
	switch f {
	case pointForm:
		return "point"
	case directionForm:
		return "direction"
	case distanceForm:
		return "distance"
	case heightForm:
		return "height"
	default:
		return fmt.Sprintf("equationForm(%d)", int(f))
	}
}

type subproblemKind int

const (
	singleRotation subproblemKind = iota
	intersectingRotations
	parallelRotations
	rotationToDistance
	singleTranslation
	doubleTranslation
	tripleTranslation
	translationToDistance
	translationToPlane
	rotationTranslation
	translationRotation
)

var subproblemNames = map[subproblemKind]string{
	singleRotation:        "SingleRotation",
	intersectingRotations: "IntersectingRotations",
	parallelRotations:     "ParallelRotations",
	rotationToDistance:    "RotationToDistance",
	singleTranslation:     "SingleTranslation",
	doubleTranslation:     "DoubleTranslation",
	tripleTranslation:     "TripleTranslation",
	translationToDistance: "TranslationToDistance",
	translationToPlane:    "TranslationToPlane",
	rotationTranslation:   "RotationTranslation",
	translationRotation:   "TranslationRotation",
}

func (k subproblemKind) String() string {
	if name, ok := subproblemNames[k]; ok {
		return name
	}
	return fmt.Sprintf("subproblemKind(%d)", int(k))
}

// planStep is one subproblem application. It refers to joints by index into the chain it was planned on.
type planStep struct {
	form   equationForm
	kind   subproblemKind
	joints []int

	// point is p (a direction for directionForm); target is q for distanceForm.
	point  r3.Vector
	target r3.Vector

	// exps [0, prefixEnd) and [suffixStart, N) are known when the step runs and are absorbed into K.
	prefixEnd   int
	suffixStart int
	// leadApply lists known exps whose inverse is applied to target, in order.
	leadApply []int
	// trailApply lists known exps applied to point, in order.
	trailApply []int
}

// planner searches for a plan by repeatedly picking the first step that resolves unknown joints, given which
// joints earlier steps already resolved.
type planner struct {
	exps       []MatrixExponential
	known      []bool
	points     []r3.Vector
	directions []r3.Vector
}

func newPlanner(chain *PoeExpression) *planner {
	exps := make([]MatrixExponential, chain.Size())
	copy(exps, chain.exps)
	return &planner{
		exps:       exps,
		known:      make([]bool, len(exps)),
		points:     testPoints(exps),
		directions: testDirections(exps),
	}
}

func (pl *planner) plan() ([]planStep, bool) {
	var steps []planStep
	for remaining := len(pl.exps); remaining > 0; {
		step, ok := pl.nextStep()
		if !ok {
			return nil, false
		}
		for _, j := range step.joints {
			pl.known[j] = true
		}
		remaining -= len(step.joints)
		steps = append(steps, step)
	}
	return steps, true
}

// nextStep prefers steps resolving more joints, then the earliest first joint, then point over direction over
// distance equations.
func (pl *planner) nextStep() (planStep, bool) {
	n := len(pl.exps)
	for size := 3; size >= 1; size-- {
		for a := 0; a < n; a++ {
			if pl.known[a] {
				continue
			}
			switch size {
			case 3:
				if a+2 < n && pl.unknownTranslations(a, a+1, a+2) {
					if step, ok := pl.tryPoint([]int{a, a + 1, a + 2}); ok {
						return step, true
					}
				}
			case 2:
				if a+1 < n && !pl.known[a+1] {
					if step, ok := pl.tryPoint([]int{a, a + 1}); ok {
						return step, true
					}
				}
				if b, ok := pl.nextRotation(a); ok && pl.exps[a].motion == Rotation && !pl.known[b] {
					if step, ok := pl.tryDirection([]int{a, b}); ok {
						return step, true
					}
				}
			case 1:
				if step, ok := pl.tryPoint([]int{a}); ok {
					return step, true
				}
				if pl.exps[a].motion == Translation {
					if step, ok := pl.tryHeight(a); ok {
						return step, true
					}
				}
				if pl.exps[a].motion == Rotation {
					if step, ok := pl.tryDirection([]int{a}); ok {
						return step, true
					}
				}
				if step, ok := pl.tryDistance(a); ok {
					return step, true
				}
			}
		}
	}
	return planStep{}, false
}

func (pl *planner) unknownTranslations(joints ...int) bool {
	for _, j := range joints {
		if pl.known[j] || pl.exps[j].motion != Translation {
			return false
		}
	}
	return true
}

// nextRotation returns the first rotation after a.
func (pl *planner) nextRotation(a int) (int, bool) {
	for i := a + 1; i < len(pl.exps); i++ {
		if pl.exps[i].motion == Rotation {
			return i, true
		}
	}
	return 0, false
}

// knownSuffix returns the start of the longest run of known exps ending the chain, never reaching below from.
// With rotationsOnly, translations count as known since they do not act on directions.
func (pl *planner) knownSuffix(from int, rotationsOnly bool) int {
	s := len(pl.exps)
	for s > from && (pl.known[s-1] || (rotationsOnly && pl.exps[s-1].motion == Translation)) {
		s--
	}
	return s
}

// scanTrailing walks exps [from, to) right to left, starting from the test point. Exps that leave the point
// unchanged are dropped until the first one that moves it; from there on every exp must be known, and those are
// returned in the order they are applied.
func (pl *planner) scanTrailing(from, to int, fixes func(MatrixExponential) bool, rotationsOnly bool) ([]int, bool) {
	var apply []int
	for i := to - 1; i >= from; i-- {
		exp := pl.exps[i]
		if rotationsOnly && exp.motion == Translation {
			continue
		}
		if len(apply) == 0 && fixes(exp) {
			continue
		}
		if !pl.known[i] {
			return nil, false
		}
		apply = append(apply, i)
	}
	return apply, true
}

// scanLeading is scanTrailing for exps [0, to), walked left to right from the distance target.
func (pl *planner) scanLeading(to int, q r3.Vector) ([]int, bool) {
	var apply []int
	for i := 0; i < to; i++ {
		if len(apply) == 0 && pl.exps[i].passesThrough(q) {
			continue
		}
		if !pl.known[i] {
			return nil, false
		}
		apply = append(apply, i)
	}
	return apply, true
}

func (pl *planner) tryPoint(joints []int) (planStep, bool) {
	a, last := joints[0], joints[len(joints)-1]
	for i := 0; i < a; i++ {
		if !pl.known[i] {
			return planStep{}, false
		}
	}
	suffix := pl.knownSuffix(last+1, false)
	for _, p := range pl.points {
		trail, ok := pl.scanTrailing(last+1, suffix, func(exp MatrixExponential) bool { return exp.passesThrough(p) }, false)
		if !ok {
			continue
		}
		kind, ok := pl.pointKind(joints, pl.carry(p, trail))
		if !ok {
			continue
		}
		return planStep{
			form:        pointForm,
			kind:        kind,
			joints:      joints,
			point:       p,
			prefixEnd:   a,
			suffixStart: suffix,
			trailApply:  trail,
		}, true
	}
	return planStep{}, false
}

// carry applies the trailing known exps to p at a generic joint value. The subproblem sees the carried point, so
// axis checks run on it; a point that only lands on an axis for particular joint values ends that branch at solve
// time instead.
func (pl *planner) carry(p r3.Vector, trail []int) r3.Vector {
	for _, i := range trail {
		p = pl.exps[i].Apply(genericJointValue, p)
	}
	return p
}

// pointKind picks the subproblem for a point equation and rejects test points that leave a joint undetermined.
func (pl *planner) pointKind(joints []int, p r3.Vector) (subproblemKind, bool) {
	switch len(joints) {
	case 1:
		exp := pl.exps[joints[0]]
		if exp.motion == Translation {
			return singleTranslation, true
		}
		return singleRotation, !exp.passesThrough(p)
	case 2:
		first, second := pl.exps[joints[0]], pl.exps[joints[1]]
		switch {
		case first.motion == Rotation && second.motion == Rotation:
			if second.passesThrough(p) {
				return 0, false
			}
			if _, ok := lineIntersection(first.origin, first.axis, second.origin, second.axis); ok {
				return intersectingRotations, true
			}
			if parallel(first.axis, second.axis) && distanceToLine(second.origin, first.origin, first.axis) > geometryTolerance {
				return parallelRotations, true
			}
			return 0, false
		case first.motion == Translation && second.motion == Translation:
			return doubleTranslation, !parallel(first.axis, second.axis)
		case first.motion == Rotation:
			if parallel(first.axis, second.axis) && first.passesThrough(p) {
				return 0, false
			}
			return rotationTranslation, true
		default:
			return translationRotation, !second.passesThrough(p)
		}
	case 3:
		v1, v2, v3 := pl.exps[joints[0]].axis, pl.exps[joints[1]].axis, pl.exps[joints[2]].axis
		return tripleTranslation, math.Abs(v1.Dot(v2.Cross(v3))) > geometryTolerance
	}
	return 0, false
}

func (pl *planner) tryDirection(joints []int) (planStep, bool) {
	a, last := joints[0], joints[len(joints)-1]
	for i := 0; i < a; i++ {
		if !pl.known[i] && pl.exps[i].motion == Rotation {
			return planStep{}, false
		}
	}
	if len(joints) == 2 && parallel(pl.exps[a].axis, pl.exps[last].axis) {
		return planStep{}, false
	}
	suffix := pl.knownSuffix(last+1, true)
	for _, d := range pl.directions {
		trail, ok := pl.scanTrailing(last+1, suffix, func(exp MatrixExponential) bool { return parallel(exp.axis, d) }, true)
		if !ok || parallel(d, pl.exps[last].axis) {
			continue
		}
		kind := singleRotation
		if len(joints) == 2 {
			kind = intersectingRotations
		}
		return planStep{
			form:        directionForm,
			kind:        kind,
			joints:      joints,
			point:       d,
			prefixEnd:   a,
			suffixStart: suffix,
			trailApply:  trail,
		}, true
	}
	return planStep{}, false
}

// keepsHeight reports whether exp leaves the component of every point along v unchanged.
func keepsHeight(exp MatrixExponential, v r3.Vector) bool {
	if exp.motion == Rotation {
		return parallel(exp.axis, v)
	}
	return math.Abs(exp.axis.Dot(v)) < geometryTolerance
}

// tryHeight solves translation a from the height of a point along its axis. Unknown joints may remain on either
// side as long as they keep that height.
func (pl *planner) tryHeight(a int) (planStep, bool) {
	v := pl.exps[a].axis
	prefixEnd := a
	for i := 0; i < a; i++ {
		if !pl.known[i] {
			prefixEnd = 0
			break
		}
	}
	if prefixEnd == 0 {
		for i := 0; i < a; i++ {
			if !keepsHeight(pl.exps[i], v) {
				return planStep{}, false
			}
		}
	}

	suffix := pl.knownSuffix(a+1, false)
	start := a + 1
	for start < suffix && keepsHeight(pl.exps[start], v) {
		start++
	}
	var trail []int
	for i := suffix - 1; i >= start; i-- {
		if !pl.known[i] {
			return planStep{}, false
		}
		trail = append(trail, i)
	}

	var p r3.Vector
	if len(pl.points) > 0 {
		p = pl.points[0]
	}
	return planStep{
		form:        heightForm,
		kind:        translationToPlane,
		joints:      []int{a},
		point:       p,
		prefixEnd:   prefixEnd,
		suffixStart: suffix,
		trailApply:  trail,
	}, true
}

func (pl *planner) tryDistance(a int) (planStep, bool) {
	exp := pl.exps[a]
	suffix := pl.knownSuffix(a+1, false)
	for _, p := range pl.points {
		if exp.passesThrough(p) {
			continue
		}
		trail, ok := pl.scanTrailing(a+1, suffix, func(e MatrixExponential) bool { return e.passesThrough(p) }, false)
		if !ok {
			continue
		}
		for _, q := range pl.points {
			if samePoint(p, q) || exp.passesThrough(q) {
				continue
			}
			lead, ok := pl.scanLeading(a, q)
			if !ok {
				continue
			}
			kind := rotationToDistance
			if exp.motion == Translation {
				kind = translationToDistance
			}
			return planStep{
				form:        distanceForm,
				kind:        kind,
				joints:      []int{a},
				point:       p,
				target:      q,
				suffixStart: suffix,
				leadApply:   lead,
				trailApply:  trail,
			}, true
		}
	}
	return planStep{}, false
}

var (
	genericPoints = []r3.Vector{
		{X: 0.3141, Y: -0.2718, Z: 0.1618},
		{X: -0.5772, Y: 0.7071, Z: 1.4142},
		{X: 1.2021, Y: 0.4669, Z: -0.6931},
	}
	genericDirections = []r3.Vector{
		{X: 0.2673, Y: 0.5345, Z: 0.8018},
		{X: -0.6247, Y: 0.7809, Z: 0.0},
		{X: 0.4082, Y: -0.4082, Z: 0.8165},
	}
)

// genericClearance is how far generic test points and directions must stay from every axis.
const genericClearance = 1e-3

// genericJointValue stands in for a known joint when checking where a carried test point lands.
const genericJointValue = 0.7321

// testPoints returns, in order: pairwise intersections of rotation axes, two points on every rotation axis, and
// one point off every axis.
func testPoints(exps []MatrixExponential) []r3.Vector {
	var points []r3.Vector
	add := func(p r3.Vector) {
		for _, other := range points {
			if samePoint(p, other) {
				return
			}
		}
		points = append(points, p)
	}

	for i, ei := range exps {
		if ei.motion != Rotation {
			continue
		}
		for _, ej := range exps[i+1:] {
			if ej.motion != Rotation {
				continue
			}
			if p, ok := lineIntersection(ei.origin, ei.axis, ej.origin, ej.axis); ok {
				add(p)
			}
		}
	}
	for _, exp := range exps {
		if exp.motion == Rotation {
			add(exp.origin)
			add(exp.origin.Add(exp.axis))
		}
	}

	for _, p := range genericPoints {
		offAxis := true
		for _, exp := range exps {
			if exp.motion == Rotation && distanceToLine(p, exp.origin, exp.axis) < genericClearance {
				offAxis = false
				break
			}
		}
		if offAxis {
			add(p)
			break
		}
	}
	return points
}

// testDirections returns every distinct rotation axis followed by one direction parallel to none of them.
func testDirections(exps []MatrixExponential) []r3.Vector {
	var dirs []r3.Vector
	for _, exp := range exps {
		if exp.motion != Rotation {
			continue
		}
		dup := false
		for _, d := range dirs {
			if parallel(d, exp.axis) {
				dup = true
				break
			}
		}
		if !dup {
			dirs = append(dirs, exp.axis)
		}
	}
	for _, d := range genericDirections {
		d = d.Normalize()
		offAxis := true
		for _, exp := range exps {
			if exp.motion == Rotation && d.Cross(exp.axis).Norm() < genericClearance {
				offAxis = false
				break
			}
		}
		if offAxis {
			return append(dirs, d)
		}
	}
	return dirs
}

// Build analyses a chain and returns a Problem that solves it in closed form. The chain is copied; later changes
// to it do not affect the Problem. If the chain cannot be solved as given, its reverse is tried before giving up
// with ErrUnsupportedTopology.
func Build(chain *PoeExpression) (*Problem, error) {
	if chain.Size() == 0 {
		return nil, errors.New("cannot build a problem for a chain with no joints")
	}
	forward := chain.Clone()
	if steps, ok := newPlanner(forward).plan(); ok {
		return &Problem{chain: forward, solveChain: forward, steps: steps}, nil
	}
	reverse := forward.MakeReverse()
	if steps, ok := newPlanner(reverse).plan(); ok {
		return &Problem{chain: forward, solveChain: reverse, steps: steps, reversed: true}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedTopology, "%d-joint chain", chain.Size())
}
