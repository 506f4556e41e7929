package drive

import (
	"fmt"
	"math"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robofleet/pkg/cli/sh"
	"github.com/robotalks/robofleet/pkg/msgs"
)

var velocityArgs = []string{"VX", "VY", "W"}

// ParseVelocity parses "VX [VY [W]]", W in degrees/s.
func ParseVelocity(args []string) (*msgs.TargetVelocity, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("VX required")
	}
	if len(args) > len(velocityArgs) {
		return nil, fmt.Errorf("too many arguments")
	}
	var vals [3]float64
	for n, arg := range args {
		val, err := strconv.ParseFloat(arg, 32)
		if err != nil {
			return nil, fmt.Errorf("Invalid %s: %v", velocityArgs[n], err)
		}
		vals[n] = val
	}
	return &msgs.TargetVelocity{
		LinearX: float32(vals[0]),
		LinearY: float32(vals[1]),
		Angular: float32(vals[2] * math.Pi / 180),
	}, nil
}

var (
	// DriveCmd sends a target velocity.
	DriveCmd = ishell.Cmd{
		Name:    "drive",
		Aliases: []string{"d"},
		Help:    "VX(m/s) [VY(m/s) [W(degrees/s)]]",
		Func: sh.MustSelectRobot(func(c *ishell.Context) {
			vel, err := ParseVelocity(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.SendCommand(c, &msgs.OperatorCommand{Op: msgs.OperatorOpVelocity, Velocity: vel})
		}),
	}

	// StopCmd stops the robot.
	StopCmd = ishell.Cmd{
		Name:    "stop",
		Aliases: []string{"x"},
		Help:    "",
		Func: sh.MustSelectRobot(func(c *ishell.Context) {
			sh.SendCommand(c, &msgs.OperatorCommand{Op: msgs.OperatorOpVelocity, Velocity: &msgs.TargetVelocity{}})
		}),
	}
)

func init() {
	sh.AddCmds(
		&DriveCmd,
		&StopCmd,
	)
}
