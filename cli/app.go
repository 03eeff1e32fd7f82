// Package cli contains the screwik command line tool: forward and inverse kinematics, plan inspection and
// round-trip sampling for chain description files.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	debugFlag    = "debug"
	chainFlag    = "chain"
	jointsFlag   = "joints"
	degreesFlag  = "degrees"
	poseFlag     = "pose"
	seedFlag     = "seed"
	frameFlag    = "frame"
	allFlag      = "all"
	periodFlag   = "period"
	countFlag    = "count"
	workersFlag  = "workers"
	randSeedFlag = "rand-seed"
)

func chainFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     chainFlag,
		Aliases:  []string{"c"},
		Usage:    "load the chain description from `FILE`",
		Required: true,
		EnvVars:  []string{"SCREWIK_CHAIN"},
	}
}

func degreesBoolFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  degreesFlag,
		Usage: "read and print revolute joint values in degrees",
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Writer:          out,
		ErrWriter:       errOut,
		Name:            "screwik",
		Usage:           "closed-form inverse kinematics for serial chains",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "plan",
				Usage:     "print the subproblem sequence that solves the chain",
				UsageText: "screwik plan --chain <file>",
				Flags:     []cli.Flag{chainFileFlag()},
				Action:    PlanAction,
			},
			{
				Name:      "fk",
				Usage:     "compute the tool pose for a joint configuration",
				UsageText: "screwik fk --chain <file> --joints <q1,q2,...>",
				Flags: []cli.Flag{
					chainFileFlag(),
					degreesBoolFlag(),
					&cli.Float64SliceFlag{
						Name:     jointsFlag,
						Aliases:  []string{"q"},
						Usage:    "joint values, radians or meters",
						Required: true,
					},
				},
				Action: FKAction,
			},
			{
				Name:  "ik",
				Usage: "solve one or more poses",
				UsageText: "screwik ik --chain <file> --pose <x,y,z,rx,ry,rz> [--pose ...] [--seed <q1,q2,...>]\n" +
					"   poses are a translation in meters followed by an axis-angle rotation scaled by its angle in radians",
				Flags: []cli.Flag{
					chainFileFlag(),
					degreesBoolFlag(),
					&cli.Float64SliceFlag{
						Name:     poseFlag,
						Aliases:  []string{"p"},
						Usage:    "target pose; repeat to track several poses in order",
						Required: true,
					},
					&cli.Float64SliceFlag{
						Name:  seedFlag,
						Usage: "configuration to start from, defaults to all zeros",
					},
					&cli.StringFlag{
						Name:  frameFlag,
						Value: "base",
						Usage: "frame the poses are expressed in, base or tcp",
					},
					&cli.BoolFlag{
						Name:  allFlag,
						Usage: "print every candidate of the first pose, ranked, instead of the selected one",
					},
					&cli.DurationFlag{
						Name:  periodFlag,
						Usage: "minimum time between two tracked poses",
					},
				},
				Action: IKAction,
			},
			{
				Name:      "sample",
				Usage:     "round-trip random configurations through forward and inverse kinematics",
				UsageText: "screwik sample --chain <file> [--count N] [--workers N]",
				Flags: []cli.Flag{
					chainFileFlag(),
					&cli.IntFlag{
						Name:  countFlag,
						Value: 1000,
						Usage: "number of configurations",
					},
					&cli.IntFlag{
						Name:  workersFlag,
						Value: 4,
						Usage: "number of concurrent solves",
					},
					&cli.Int64Flag{
						Name:  randSeedFlag,
						Value: 1,
						Usage: "random seed",
					},
				},
				Action: SampleAction,
			},
			{
				Name:   "schema",
				Usage:  "print the JSON schema of chain description files",
				Action: SchemaAction,
			},
		},
	}
}
