package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"go.viam.com/screwik/ik"
	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/screwtheory"
	"go.viam.com/screwik/spatialmath"
	"go.viam.com/screwik/utils"
)

// roundTripTolerance is the largest joint error at which a sampled configuration counts as recovered.
const roundTripTolerance = 1e-4

// sampleTravel bounds unlimited prismatic joints when sampling, in meters.
const sampleTravel = 1.

// PlanAction prints the solution plan of a chain.
func PlanAction(c *cli.Context) error {
	chain, err := loadChain(c)
	if err != nil {
		return err
	}
	problem, err := screwtheory.Build(chain.Poe)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Subproblem", "Joints", "Form", "Point"})
	for i, step := range problem.Plan() {
		joints := make([]string, 0, len(step.Joints))
		for _, j := range step.Joints {
			joints = append(joints, fmt.Sprintf("q%d", j+1))
		}
		t.AppendRow(table.Row{
			i + 1,
			step.Subproblem,
			joints,
			step.Form,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", step.Point.X, step.Point.Y, step.Point.Z),
		})
	}
	printf(c.App.Writer, "chain %q: %d joints, reversed: %t", chain.Name, problem.Size(), problem.Reversed())
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// FKAction prints the tool pose for the given joints.
func FKAction(c *cli.Context) error {
	chain, err := loadChain(c)
	if err != nil {
		return err
	}
	q, err := jointsFromFlag(c, jointsFlag, chain.Poe.Motions())
	if err != nil {
		return err
	}
	if err := referenceframe.CheckInputs(chain.Limits, referenceframe.FloatsToInputs(q)); err != nil {
		newLogger(c).Warnw("joints outside limits", "error", err)
	}
	pose, err := chain.Poe.Evaluate(q)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", formatPose(pose))
	m := spatialmath.PoseToMatrix(pose)
	for row := 0; row < 4; row++ {
		printf(c.App.Writer, "%10.6f %10.6f %10.6f %10.6f", m[4*row], m[4*row+1], m[4*row+2], m[4*row+3])
	}
	return nil
}

// IKAction solves the given poses. With --all it lists every candidate of the first pose; otherwise it tracks the
// poses in order and prints the selected configuration of each.
func IKAction(c *cli.Context) error {
	logger := newLogger(c)
	chain, err := loadChain(c)
	if err != nil {
		return err
	}
	poses, err := posesFromFlag(c)
	if err != nil {
		return err
	}
	motions := chain.Poe.Motions()
	seed, err := jointsFromFlag(c, seedFlag, motions)
	if err != nil {
		return err
	}
	frame, err := screwtheory.ParseReferenceFrame(c.String(frameFlag))
	if err != nil {
		return err
	}

	solver, err := ik.NewScrewTheorySolver(chain, logger)
	if err != nil {
		return err
	}

	if c.Bool(allFlag) {
		return printCandidates(c, chain, solver, poses[0], seed, frame)
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Pose", "Joints"})
	err = ik.Track(c.Context, solver, ik.NewSlicePoseStream(poses...), seed,
		ik.TrackOptions{Frame: frame, Period: c.Duration(periodFlag)},
		func(r ik.TrackResult) error {
			if r.Err != nil {
				t.AppendRow(table.Row{r.Index + 1, formatPose(r.Pose), r.Err.Error()})
				return nil
			}
			t.AppendRow(table.Row{r.Index + 1, formatPose(r.Pose), formatJoints(c, r.Joints, motions)})
			return nil
		})
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

func printCandidates(
	c *cli.Context,
	chain *screwtheory.Chain,
	solver *ik.ScrewTheorySolver,
	pose spatialmath.Pose,
	seed []float64,
	frame screwtheory.ReferenceFrame,
) error {
	motions := chain.Poe.Motions()
	candidates, err := solver.Problem().SolveAll(pose, frame, seed)
	if err != nil {
		return err
	}
	selector, err := ik.NewConfigurationSelector(chain.Strategy, solver.Limits(), motions)
	if err != nil {
		return err
	}
	if err := selector.SetReference(seed); err != nil {
		return err
	}

	var valid [][]float64
	var validIdx []int
	for i, cand := range candidates {
		if cand.Valid {
			valid = append(valid, cand.Joints)
			validIdx = append(validIdx, i)
		}
	}
	rankOf := make(map[int]int, len(valid))
	for r, i := range selector.Rank(valid) {
		rankOf[validIdx[i]] = r + 1
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Joints", "Valid", "Rank"})
	for i, cand := range candidates {
		rank := "-"
		if r, ok := rankOf[i]; ok {
			rank = fmt.Sprint(r)
		}
		t.AppendRow(table.Row{i + 1, formatJoints(c, cand.Joints, motions), cand.Valid, rank})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

type sampleResult struct {
	candidates int
	jointError float64
}

// SampleAction draws random in-limit configurations, solves their forward kinematics and reports how many were
// recovered.
func SampleAction(c *cli.Context) error {
	chain, err := loadChain(c)
	if err != nil {
		return err
	}
	problem, err := screwtheory.Build(chain.Poe)
	if err != nil {
		return err
	}
	count, workers := c.Int(countFlag), c.Int(workersFlag)
	if count <= 0 || workers <= 0 {
		return errors.New("count and workers must be positive")
	}

	//nolint:gosec
	rnd := rand.New(rand.NewSource(c.Int64(randSeedFlag)))
	limits := boundedLimits(chain)
	configs := make([][]float64, count)
	for i := range configs {
		configs[i] = referenceframe.InputsToFloats(referenceframe.RandomInputs(limits, rnd))
	}

	results, err := sample(c.Context, problem, configs, workers)
	if err != nil {
		return err
	}

	var counts, errs []float64
	misses := 0
	for _, r := range results {
		counts = append(counts, float64(r.candidates))
		errs = append(errs, r.jointError)
		if r.jointError > roundTripTolerance {
			misses++
		}
	}
	meanCount, err := stats.Mean(counts)
	if err != nil {
		return err
	}
	maxCount, err := stats.Max(counts)
	if err != nil {
		return err
	}
	medianErr, err := stats.Median(errs)
	if err != nil {
		return err
	}
	p99Err, err := stats.Percentile(errs, 99)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Samples", "Recovered", "Mean candidates", "Max candidates", "Median error", "P99 error"})
	t.AppendRow(table.Row{
		count,
		count - misses,
		fmt.Sprintf("%.2f", meanCount),
		maxCount,
		fmt.Sprintf("%.3g", medianErr),
		fmt.Sprintf("%.3g", p99Err),
	})
	printf(c.App.Writer, "%s", t.Render())
	if misses > 0 {
		return errors.Errorf("%d of %d configurations were not recovered", misses, count)
	}
	return nil
}

// sample solves every configuration concurrently. Workers share the problem and its chain, which are only read.
func sample(ctx context.Context, problem *screwtheory.Problem, configs [][]float64, workers int) ([]sampleResult, error) {
	chain := problem.Chain()
	motions := chain.Motions()
	results := make([]sampleResult, len(configs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, q := range configs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			goal, err := chain.Evaluate(q)
			if err != nil {
				return err
			}
			candidates, err := problem.Solve(goal, screwtheory.BaseFrame, nil)
			if err != nil {
				return err
			}
			results[i] = sampleResult{candidates: len(candidates), jointError: closest(candidates, q, motions)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// closest returns the smallest largest-joint error between q and any candidate.
func closest(candidates []screwtheory.Candidate, q []float64, motions []screwtheory.MotionType) float64 {
	best := math.Inf(1)
	for _, c := range candidates {
		worst := 0.
		for i, v := range c.Joints {
			diff := v - q[i]
			if motions[i] == screwtheory.Rotation {
				diff = utils.AngleDiffRad(v, q[i])
			}
			worst = math.Max(worst, math.Abs(diff))
		}
		best = math.Min(best, worst)
	}
	return best
}

// boundedLimits narrows the joint limits to one turn for revolute joints and a meter either way for prismatic
// ones, so that unbounded joints still sample a useful range.
func boundedLimits(chain *screwtheory.Chain) []referenceframe.Limit {
	limits := make([]referenceframe.Limit, chain.Poe.Size())
	for i := range limits {
		limit := referenceframe.UnboundedLimit
		if i < len(chain.Limits) {
			limit = chain.Limits[i]
		}
		span := sampleTravel
		if chain.Poe.Exponential(i).Motion() == screwtheory.Rotation {
			span = math.Pi
		}
		limits[i] = referenceframe.Limit{Min: math.Max(limit.Min, -span), Max: math.Min(limit.Max, span)}
	}
	return limits
}

// SchemaAction prints the JSON schema of chain description files.
func SchemaAction(c *cli.Context) error {
	data, err := json.MarshalIndent(screwtheory.ChainSchema(), "", "  ")
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", data)
	return nil
}
