package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"go.viam.com/screwik/logging"
	"go.viam.com/screwik/screwtheory"
	"go.viam.com/screwik/spatialmath"
	"go.viam.com/screwik/utils"
)

// printf prints a message with no decoration.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// newLogger returns a logger writing to the app's error stream, so command output stays parseable.
func newLogger(c *cli.Context) logging.Logger {
	logger := logging.NewBlankLogger("screwik")
	logger.AddAppender(logging.NewWriterAppender(zapcore.AddSync(c.App.ErrWriter)))
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
	} else {
		logger.SetLevel(logging.INFO)
	}
	return logger
}

func loadChain(c *cli.Context) (*screwtheory.Chain, error) {
	path, err := utils.ExpandHomeDir(c.String(chainFlag))
	if err != nil {
		return nil, err
	}
	return screwtheory.ParseChainFile(path, "")
}

// jointsFromFlag reads joint values, converting revolute ones from degrees when asked.
func jointsFromFlag(c *cli.Context, name string, motions []screwtheory.MotionType) ([]float64, error) {
	values := c.Float64Slice(name)
	if len(values) == 0 {
		return make([]float64, len(motions)), nil
	}
	if len(values) != len(motions) {
		return nil, errors.Errorf("--%s has %d values, chain has %d joints", name, len(values), len(motions))
	}
	q := append([]float64(nil), values...)
	if c.Bool(degreesFlag) {
		for i, m := range motions {
			if m == screwtheory.Rotation {
				q[i] = utils.DegToRad(q[i])
			}
		}
	}
	return q, nil
}

func formatJoints(c *cli.Context, q []float64, motions []screwtheory.MotionType) string {
	parts := make([]string, 0, len(q))
	for i, v := range q {
		if c.Bool(degreesFlag) && motions[i] == screwtheory.Rotation {
			v = utils.RadToDeg(v)
		}
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return strings.Join(parts, ", ")
}

// posesFromFlag splits the flag values into consecutive 6-vectors.
func posesFromFlag(c *cli.Context) ([]spatialmath.Pose, error) {
	values := c.Float64Slice(poseFlag)
	if len(values) == 0 || len(values)%spatialmath.PoseVectorLength != 0 {
		return nil, utils.NewIncorrectVectorLengthError(len(values), spatialmath.PoseVectorLength)
	}
	var poses []spatialmath.Pose
	for i := 0; i < len(values); i += spatialmath.PoseVectorLength {
		pose, err := spatialmath.NewPoseFromVector(values[i : i+spatialmath.PoseVectorLength])
		if err != nil {
			return nil, err
		}
		poses = append(poses, pose)
	}
	return poses, nil
}

func formatPose(pose spatialmath.Pose) string {
	v := spatialmath.PoseToVector(pose)
	return fmt.Sprintf("[%.6f, %.6f, %.6f] [%.6f, %.6f, %.6f]", v[0], v[1], v[2], v[3], v[4], v[5])
}
