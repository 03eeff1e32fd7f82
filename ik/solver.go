package ik

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/screwik/logging"
	"go.viam.com/screwik/referenceframe"
	"go.viam.com/screwik/screwtheory"
	"go.viam.com/screwik/spatialmath"
)

var (
	// ErrNoSolution is returned when a pose is out of reach of the chain.
	ErrNoSolution = errors.New("no inverse kinematics solution for the requested pose")
	// ErrOutOfLimits is returned when a pose is reachable, but only with joints outside their limits.
	ErrOutOfLimits = errors.New("every inverse kinematics solution violates the joint limits")
)

// CartesianSolver converts between joint space and Cartesian space for one chain.
type CartesianSolver interface {
	NumJoints() int
	// AppendLink adds a fixed offset after the current tool frame.
	AppendLink(x spatialmath.Pose) error
	// RestoreOriginalChain removes every offset added with AppendLink.
	RestoreOriginalChain() error
	// ChangeOrigin re-expresses a pose given in an old frame, using the pose of that old frame in the new one.
	ChangeOrigin(xOldObj, xNewOld spatialmath.Pose) spatialmath.Pose
	FwdKin(q []float64) (spatialmath.Pose, error)
	// PoseDiff returns lhs - rhs as a translation followed by a scaled axis-angle rotation.
	PoseDiff(lhs, rhs spatialmath.Pose) []float64
	InvKin(xd spatialmath.Pose, qGuess []float64, frame screwtheory.ReferenceFrame) ([]float64, error)
	DiffInvKin(q, xdot []float64, frame screwtheory.ReferenceFrame) ([]float64, error)
}

// ScrewTheorySolver solves inverse kinematics in closed form with a screwtheory.Problem, then picks one
// candidate with a ConfigurationSelector.
type ScrewTheorySolver struct {
	logger logging.Logger
	limits []referenceframe.Limit

	mu       sync.Mutex
	chain    *screwtheory.PoeExpression
	problem  *screwtheory.Problem
	selector ConfigurationSelector
}

// NewScrewTheorySolver analyses the chain and returns a solver for it. Chains whose topology cannot be solved in
// closed form are rejected with an error wrapping screwtheory.ErrUnsupportedTopology.
func NewScrewTheorySolver(chain *screwtheory.Chain, logger logging.Logger) (*ScrewTheorySolver, error) {
	if chain == nil || chain.Poe == nil {
		return nil, errors.New("cannot create a solver without a chain")
	}
	logger = logger.Sublogger("solver")
	poe := chain.Poe.Clone()
	limits := append([]referenceframe.Limit(nil), chain.Limits...)
	if len(chain.Limits) == 0 {
		limits = make([]referenceframe.Limit, poe.Size())
		for i := range limits {
			limits[i] = referenceframe.UnboundedLimit
		}
	}
	if len(limits) != poe.Size() {
		return nil, referenceframe.NewIncorrectDoFError(len(limits), poe.Size())
	}
	for i, limit := range limits {
		if limit.Degenerate() {
			logger.Warnw("joint limit allows a single value", "chain", chain.Name, "joint", i, "value", limit.Min)
		}
	}

	selector, err := NewConfigurationSelector(chain.Strategy, limits, poe.Motions())
	if err != nil {
		return nil, err
	}

	s := &ScrewTheorySolver{
		logger:   logger,
		limits:   limits,
		chain:    poe,
		selector: selector,
	}
	if err := s.rebuild(); err != nil {
		logger.Warnw("chain cannot be solved in closed form", "chain", chain.Name, "joints", poe.Size(), "error", err)
		return nil, err
	}
	steps := make([]string, 0, len(s.problem.Plan()))
	for _, step := range s.problem.Plan() {
		steps = append(steps, step.String())
	}
	logger.Infow("built closed-form solution", "chain", chain.Name, "reversed", s.problem.Reversed(), "steps", steps)
	return s, nil
}

// rebuild must be called with mu held or before the solver is shared.
func (s *ScrewTheorySolver) rebuild() error {
	problem, err := screwtheory.Build(s.chain)
	if err != nil {
		return err
	}
	s.problem = problem
	return nil
}

// Problem returns the current solution plan.
func (s *ScrewTheorySolver) Problem() *screwtheory.Problem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.problem
}

// Limits returns a copy of the joint limits.
func (s *ScrewTheorySolver) Limits() []referenceframe.Limit {
	return append([]referenceframe.Limit(nil), s.limits...)
}

// NumJoints returns the number of joints of the chain.
func (s *ScrewTheorySolver) NumJoints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Size()
}

// AppendLink adds a fixed offset after the current tool frame and rebuilds the solution plan.
func (s *ScrewTheorySolver) AppendLink(x spatialmath.Pose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain.PushTool(x)
	if err := s.rebuild(); err != nil {
		s.logger.Warnw("cannot solve chain with the new tool offset", "error", err)
		// the chain was solvable before the push
		if popErr := s.chain.PopTool(); popErr != nil {
			return popErr
		}
		return err
	}
	s.logger.Infow("appended tool offset", "offset", spatialmath.PoseToVector(x), "depth", s.chain.ToolDepth())
	return nil
}

// RestoreOriginalChain removes every offset added with AppendLink.
func (s *ScrewTheorySolver) RestoreOriginalChain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chain.ToolDepth() == 0 {
		return nil
	}
	s.chain.RestoreTool()
	if err := s.rebuild(); err != nil {
		return err
	}
	s.logger.Info("restored original tool frame")
	return nil
}

// ChangeOrigin returns the pose of an object in a new frame.
func (s *ScrewTheorySolver) ChangeOrigin(xOldObj, xNewOld spatialmath.Pose) spatialmath.Pose {
	return spatialmath.Compose(xNewOld, xOldObj)
}

// FwdKin returns the tool pose at q.
func (s *ScrewTheorySolver) FwdKin(q []float64) (spatialmath.Pose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chain.Evaluate(q)
}

// PoseDiff implements CartesianSolver.
func (s *ScrewTheorySolver) PoseDiff(lhs, rhs spatialmath.Pose) []float64 {
	return PoseDiff(lhs, rhs)
}

// PoseDiff returns the translation and scaled axis-angle rotation taking rhs to lhs, both in the base frame.
func PoseDiff(lhs, rhs spatialmath.Pose) []float64 {
	return spatialmath.PoseDelta(rhs, lhs)
}

// InvKin returns the joint configuration reaching xd that the selector prefers, relative to qGuess. For TCPFrame
// goals xd is relative to the tool pose at qGuess.
func (s *ScrewTheorySolver) InvKin(
	xd spatialmath.Pose,
	qGuess []float64,
	frame screwtheory.ReferenceFrame,
) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.problem.CheckJoints(qGuess); err != nil {
		return nil, err
	}

	candidates, err := s.problem.Solve(xd, frame, qGuess)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Debugw("pose out of reach", "pose", spatialmath.PoseToVector(xd), "frame", frame.String())
		return nil, ErrNoSolution
	}

	joints := make([][]float64, 0, len(candidates))
	for _, c := range candidates {
		joints = append(joints, c.Joints)
	}
	if err := s.selector.SetReference(qGuess); err != nil {
		return nil, err
	}
	q, ok := s.selector.FindOptimalConfiguration(joints)
	if !ok {
		s.logger.Debugw("no solution within limits", "candidates", len(joints))
		return nil, ErrOutOfLimits
	}
	s.logger.Debugw("solved pose", "candidates", len(joints), "joints", q)
	return q, nil
}

// DiffInvKin returns the joint velocities producing the tool velocity xdot at q. xdot holds the linear velocity of
// the tool point followed by the angular velocity, in the base frame or, for TCPFrame, in the tool frame.
func (s *ScrewTheorySolver) DiffInvKin(q, xdot []float64, frame screwtheory.ReferenceFrame) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jac, err := Jacobian(s.chain, q, frame)
	if err != nil {
		return nil, err
	}
	return solvePseudoInverse(jac, xdot)
}
