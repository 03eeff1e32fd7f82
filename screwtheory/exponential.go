// Package screwtheory implements closed-form inverse kinematics for serial chains described as a product of
// exponentials. A chain is analysed once by Build, which produces a Problem: an ordered plan of geometric
// subproblems that can then be solved for any number of target poses.
package screwtheory

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/screwik/spatialmath"
)

// MotionType is the kind of screw motion a joint performs.
type MotionType int

const (
	// Rotation is a revolute joint: theta is an angle in radians about the axis.
	Rotation MotionType = iota
	// Translation is a prismatic joint: theta is a distance in meters along the axis.
	Translation
)

func (m MotionType) String() string {
	switch m {
	case Rotation:
		return "rotation"
	case Translation:
		return "translation"
	default:
		return fmt.Sprintf("MotionType(%d)", int(m))
	}
}

// ParseMotionType parses the names produced by MotionType.String.
func ParseMotionType(s string) (MotionType, error) {
	switch s {
	case "rotation", "revolute":
		return Rotation, nil
	case "translation", "prismatic":
		return Translation, nil
	}
	return 0, errors.Errorf("unknown motion type %q", s)
}

// MatrixExponential is the exponential of a single joint twist at the chain's zero configuration.
// For rotations origin is any point on the axis; for translations it is ignored.
type MatrixExponential struct {
	motion MotionType
	axis   r3.Vector
	origin r3.Vector
}

// NewMatrixExponential creates a new screw. The axis is normalized.
func NewMatrixExponential(motion MotionType, axis, origin r3.Vector) (MatrixExponential, error) {
	if motion != Rotation && motion != Translation {
		return MatrixExponential{}, errors.Errorf("unknown motion type %d", int(motion))
	}
	if axis.Norm() < 1e-9 {
		return MatrixExponential{}, errors.New("screw axis must be non-zero")
	}
	return MatrixExponential{motion: motion, axis: axis.Normalize(), origin: origin}, nil
}

// Motion returns the kind of motion.
func (exp MatrixExponential) Motion() MotionType {
	return exp.motion
}

// Axis returns the unit axis.
func (exp MatrixExponential) Axis() r3.Vector {
	return exp.axis
}

// Origin returns the reference point on the axis.
func (exp MatrixExponential) Origin() r3.Vector {
	return exp.origin
}

// AsPose returns the rigid transform of the screw motion for the joint value theta.
func (exp MatrixExponential) AsPose(theta float64) spatialmath.Pose {
	switch exp.motion {
	case Rotation:
		rot := &spatialmath.R4AA{Theta: theta, RX: exp.axis.X, RY: exp.axis.Y, RZ: exp.axis.Z}
		q := rot.ToQuat()
		// (I - R) * (w x v) + w * w^T * v * theta with v = -w x origin; the second term vanishes
		// and the first reduces to (I - R) * origin for a pure rotation.
		trans := exp.origin.Sub(spatialmath.RotateVector(q, exp.origin))
		return spatialmath.NewPose(trans, spatialmath.NewQuaternionOrientation(q))
	case Translation:
		return spatialmath.NewPoseFromPoint(exp.axis.Mul(theta))
	default:
		panic(errors.Errorf("unrecognized motion type %d", int(exp.motion)))
	}
}

// Apply transforms a point by the screw motion for the joint value theta.
func (exp MatrixExponential) Apply(theta float64, p r3.Vector) r3.Vector {
	switch exp.motion {
	case Rotation:
		rot := &spatialmath.R4AA{Theta: theta, RX: exp.axis.X, RY: exp.axis.Y, RZ: exp.axis.Z}
		return spatialmath.RotateVector(rot.ToQuat(), p.Sub(exp.origin)).Add(exp.origin)
	case Translation:
		return p.Add(exp.axis.Mul(theta))
	default:
		panic(errors.Errorf("unrecognized motion type %d", int(exp.motion)))
	}
}

// Rotate applies only the rotational part of the screw motion to a direction vector.
func (exp MatrixExponential) Rotate(theta float64, v r3.Vector) r3.Vector {
	if exp.motion != Rotation {
		return v
	}
	rot := &spatialmath.R4AA{Theta: theta, RX: exp.axis.X, RY: exp.axis.Y, RZ: exp.axis.Z}
	return spatialmath.RotateVector(rot.ToQuat(), v)
}

// ChangeBase re-expresses the screw in another frame, given the pose of the old frame in the new one.
func (exp MatrixExponential) ChangeBase(newOld spatialmath.Pose) MatrixExponential {
	return MatrixExponential{
		motion: exp.motion,
		axis:   spatialmath.RotatePoint(newOld, exp.axis).Normalize(),
		origin: spatialmath.TransformPoint(newOld, exp.origin),
	}
}

// Reversed returns the screw whose motion for theta equals this screw's motion for -theta.
func (exp MatrixExponential) Reversed() MatrixExponential {
	return MatrixExponential{motion: exp.motion, axis: exp.axis.Mul(-1), origin: exp.origin}
}

// throughOrigin returns the same rotation with its axis moved to pass through the origin.
func (exp MatrixExponential) throughOrigin() MatrixExponential {
	return MatrixExponential{motion: exp.motion, axis: exp.axis}
}

// passesThrough reports whether the point lies on the rotation axis.
func (exp MatrixExponential) passesThrough(p r3.Vector) bool {
	if exp.motion != Rotation {
		return false
	}
	return distanceToLine(p, exp.origin, exp.axis) < geometryTolerance
}

func (exp MatrixExponential) String() string {
	return fmt.Sprintf("%s axis=(%.4g, %.4g, %.4g) origin=(%.4g, %.4g, %.4g)",
		exp.motion, exp.axis.X, exp.axis.Y, exp.axis.Z, exp.origin.X, exp.origin.Y, exp.origin.Z)
}
