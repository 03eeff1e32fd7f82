// Package ik turns the closed-form candidates of a screwtheory.Problem into single answers: it picks the best
// candidate under joint limits, exposes the result as a Cartesian solver and feeds it from pose streams.
package ik

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/screwtheory"
	"go.viam.com/screwik/utils"
)

// Strategy names accepted by NewConfigurationSelector.
const (
	LeastOverallAngularDisplacement = "leastOverallAngularDisplacement"
	LeastSquaredDisplacement        = "leastSquaredDisplacement"

	// DefaultStrategy is used when a chain does not name one.
	DefaultStrategy = LeastOverallAngularDisplacement
)

// ConfigurationSelector chooses among the joint solutions of one pose. It is not safe for concurrent use.
type ConfigurationSelector interface {
	// SetReference sets the configuration that candidates are compared against, usually the current one.
	SetReference(reference []float64) error
	// FindOptimalConfiguration returns the in-limit candidate closest to the reference, with revolute joints moved
	// by whole turns where that brings them inside their limits. ok is false when no candidate fits the limits.
	FindOptimalConfiguration(candidates [][]float64) (best []float64, ok bool)
	// Rank returns the indices of the in-limit candidates, best first. Ties keep discovery order.
	Rank(candidates [][]float64) []int
}

// NewConfigurationSelector returns the selector registered under strategy. An empty strategy selects
// DefaultStrategy.
func NewConfigurationSelector(
	strategy string,
	limits []referenceframe.Limit,
	motions []screwtheory.MotionType,
) (ConfigurationSelector, error) {
	if len(limits) != len(motions) {
		return nil, referenceframe.NewIncorrectDoFError(len(limits), len(motions))
	}
	if err := referenceframe.ValidateLimits(limits); err != nil {
		return nil, err
	}
	base := selectorBase{limits: limits, motions: motions}
	switch strategy {
	case LeastOverallAngularDisplacement, "":
		return &leastOverallAngularDisplacement{base}, nil
	case LeastSquaredDisplacement:
		return &leastSquaredDisplacement{base}, nil
	default:
		return nil, utils.NewUnknownStrategyError(strategy)
	}
}

type selectorBase struct {
	limits    []referenceframe.Limit
	motions   []screwtheory.MotionType
	reference []float64
}

func (s *selectorBase) SetReference(reference []float64) error {
	if len(reference) != len(s.limits) {
		return referenceframe.NewIncorrectDoFError(len(reference), len(s.limits))
	}
	s.reference = append(s.reference[:0], reference...)
	return nil
}

func (s *selectorBase) ref(i int) float64 {
	if len(s.reference) == 0 {
		return 0
	}
	return s.reference[i]
}

// fit moves each revolute joint to the whole-turn equivalent inside its limit that lies nearest the reference.
func (s *selectorBase) fit(q []float64) ([]float64, bool) {
	if len(q) != len(s.limits) {
		return nil, false
	}
	out := make([]float64, len(q))
	for i, v := range q {
		limit := s.limits[i]
		if s.motions[i] == screwtheory.Translation {
			if !limit.Contains(v) {
				return nil, false
			}
			out[i] = v
			continue
		}
		found := false
		for _, alt := range []float64{v, v + 2*math.Pi, v - 2*math.Pi} {
			if !limit.Contains(alt) {
				continue
			}
			if !found || math.Abs(alt-s.ref(i)) < math.Abs(out[i]-s.ref(i)) {
				out[i] = alt
				found = true
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}

type scored struct {
	index  int
	joints []float64
	score  float64
}

func (s *selectorBase) score(candidates [][]float64, distance func([]float64) float64) []scored {
	var out []scored
	for i, c := range candidates {
		q, ok := s.fit(c)
		if !ok {
			continue
		}
		out = append(out, scored{index: i, joints: q, score: distance(q)})
	}
	return out
}

func best(all []scored) ([]float64, bool) {
	if len(all) == 0 {
		return nil, false
	}
	winner := all[0]
	for _, c := range all[1:] {
		if c.score < winner.score {
			winner = c
		}
	}
	return winner.joints, true
}

func rank(all []scored) []int {
	sort.SliceStable(all, func(i, j int) bool { return all[i].score < all[j].score })
	out := make([]int, 0, len(all))
	for _, c := range all {
		out = append(out, c.index)
	}
	return out
}

// leastOverallAngularDisplacement sums the absolute joint displacements from the reference, measuring revolute
// joints the short way around the circle.
type leastOverallAngularDisplacement struct {
	selectorBase
}

func (s *leastOverallAngularDisplacement) displacement(q []float64) float64 {
	sum := 0.
	for i, v := range q {
		if s.motions[i] == screwtheory.Rotation {
			sum += math.Abs(utils.AngleDiffRad(v, s.ref(i)))
		} else {
			sum += math.Abs(v - s.ref(i))
		}
	}
	return sum
}

func (s *leastOverallAngularDisplacement) FindOptimalConfiguration(candidates [][]float64) ([]float64, bool) {
	return best(s.score(candidates, s.displacement))
}

func (s *leastOverallAngularDisplacement) Rank(candidates [][]float64) []int {
	return rank(s.score(candidates, s.displacement))
}

// leastSquaredDisplacement minimizes the euclidean distance to the reference in joint space.
type leastSquaredDisplacement struct {
	selectorBase
}

func (s *leastSquaredDisplacement) displacement(q []float64) float64 {
	if len(s.reference) == 0 {
		return floats.Norm(q, 2)
	}
	return floats.Distance(q, s.reference, 2)
}

func (s *leastSquaredDisplacement) FindOptimalConfiguration(candidates [][]float64) ([]float64, bool) {
	return best(s.score(candidates, s.displacement))
}

func (s *leastSquaredDisplacement) Rank(candidates [][]float64) []int {
	return rank(s.score(candidates, s.displacement))
}
