package game

import (
	"fmt"
	"strconv"
	"strings"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/sim"
)

// ParseCommand converts a text command from a client into a world message.
//
//	p                    pause
//	P                    resume
//	r, R                 reset
//	s <robot> <x> <y> <theta>  place a robot, theta in radians
func ParseCommand(text string) (fx.Message, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	switch fields[0] {
	case "p":
		return &sim.PauseMsg{Paused: true}, nil
	case "P":
		return &sim.PauseMsg{Paused: false}, nil
	case "r", "R":
		return &sim.ResetMsg{}, nil
	case "s":
		if len(fields) != 5 {
			return nil, fmt.Errorf("invalid pose command %q", text)
		}
		var vals [3]float64
		for i, s := range fields[2:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid pose command %q: %w", text, err)
			}
			vals[i] = v
		}
		return &sim.SetPoseMsg{
			Robot: fields[1],
			Pose: sim.Pose2D{
				Pos2D:       sim.Pos2D{X: vals[0], Y: vals[1]},
				Orientation: sim.AngleFromRadians(vals[2]),
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown command %q", text)
}
