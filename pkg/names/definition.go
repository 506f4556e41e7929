package names

import "math"

// Unit conversions between grid units and physical lengths.
const (
	InchesPerGU = 3.5
	GUPerInch   = 1.0 / InchesPerGU
	InchesPerM  = 1000.0 / 25.4
	GUPerM      = GUPerInch * InchesPerM
)

// NumWheels is the number of driven wheels on every robot.
const NumWheels = 3

// Definition describes the physical configuration of a robot.
type Definition struct {
	// Radius of the circle the robot fits into, in grid units.
	Radius float64
	Drive  Omniwheel
	// PwmTop is the maximum duty value of a PWM pin.
	PwmTop uint16
	// DefaultMotorConfig maps each motor to its forward and backward pin.
	DefaultMotorConfig [NumWheels][2]int
	DefaultPid         [3]float64
	HasScreen          bool
}

var defaultDefinition = Definition{
	Radius: 0.715,
	Drive: Omniwheel{
		WheelRadius:         0.019 * GUPerM,
		RobotRadius:         2.1 * GUPerInch,
		Angles:              [NumWheels]float64{0, 2 * math.Pi / 3, 4 * math.Pi / 3},
		ForwardsIsClockwise: [NumWheels]bool{true, true, true},
	},
	PwmTop:             0x8000,
	DefaultMotorConfig: [NumWheels][2]int{{0, 1}, {2, 3}, {4, 5}},
	DefaultPid:         [3]float64{5.0, 0.1, 0.0},
}

// Definition returns the physical configuration of the robot.
func (n RobotName) Definition() Definition {
	def := defaultDefinition
	def.HasScreen = n.IsSimulated()
	return def
}
