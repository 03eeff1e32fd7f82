package ik

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/screwik/screwtheory"
	"go.viam.com/screwik/spatialmath"
)

// PoseStream is a source of target poses. Next returns io.EOF once the stream is exhausted.
type PoseStream interface {
	Next(ctx context.Context) (spatialmath.Pose, error)
}

// SlicePoseStream replays a fixed list of poses.
type SlicePoseStream struct {
	poses []spatialmath.Pose
	next  int
}

// NewSlicePoseStream returns a stream over poses.
func NewSlicePoseStream(poses ...spatialmath.Pose) *SlicePoseStream {
	return &SlicePoseStream{poses: poses}
}

// Next returns the next pose, or io.EOF.
func (s *SlicePoseStream) Next(ctx context.Context) (spatialmath.Pose, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.poses) {
		return nil, io.EOF
	}
	pose := s.poses[s.next]
	s.next++
	return pose, nil
}

// TrackResult is the outcome of solving one streamed pose.
type TrackResult struct {
	Index  int
	Pose   spatialmath.Pose
	Joints []float64
	// Err is ErrNoSolution or ErrOutOfLimits when the pose was skipped.
	Err error
}

// TrackOptions configures Track.
type TrackOptions struct {
	Frame screwtheory.ReferenceFrame
	// Period is the minimum time between two solves. Zero solves as fast as poses arrive.
	Period time.Duration
}

// Track solves every pose of the stream in order, seeding each solve with the previous answer, and hands the results
// to sink. Unreachable poses are reported and skipped without changing the seed. Track returns nil once the stream
// ends, and stops early on context cancellation or on any error from the stream, the solver or the sink.
func Track(
	ctx context.Context,
	solver CartesianSolver,
	stream PoseStream,
	seed []float64,
	opts TrackOptions,
	sink func(TrackResult) error,
) error {
	if len(seed) != solver.NumJoints() {
		return errors.Errorf("seed has %d joints, solver has %d", len(seed), solver.NumJoints())
	}
	current := append([]float64(nil), seed...)
	for i := 0; ; i++ {
		pose, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		result := TrackResult{Index: i, Pose: pose}
		q, err := solver.InvKin(pose, current, opts.Frame)
		switch {
		case err == nil:
			current = q
			// the sink may keep or change its copy
			result.Joints = append([]float64(nil), q...)
		case errors.Is(err, ErrNoSolution), errors.Is(err, ErrOutOfLimits):
			result.Err = err
		default:
			return errors.Wrapf(err, "pose %d", i)
		}
		if err := sink(result); err != nil {
			return err
		}

		if opts.Period > 0 && !goutils.SelectContextOrWait(ctx, opts.Period) {
			return ctx.Err()
		}
	}
}
