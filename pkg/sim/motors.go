package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/robotalks/robofleet/pkg/names"
)

// MaxWheelSpeed is the wheel speed, in radians per second, at full duty.
const MaxWheelSpeed = 60.0

// Motors implements robot.Motors by turning PWM duty into wheel speed.
type Motors struct {
	Robot *Robot

	lock sync.Mutex
	pwm  [names.NumWheels][2]uint16
}

// NewMotors creates the motors behavior of r.
func NewMotors(r *Robot) *Motors {
	return &Motors{Robot: r}
}

// WantsSelfClosedLoop implements robot.Motors.
func (m *Motors) WantsSelfClosedLoop() bool {
	return true
}

// SetActuatorSpeed implements robot.Motors.
func (m *Motors) SetActuatorSpeed(ctx context.Context, motor int, speed float64) error {
	if motor < 0 || motor >= names.NumWheels {
		return fmt.Errorf("invalid motor %d", motor)
	}
	m.Robot.setWheel(motor, speed)
	return nil
}

// SetPwm implements robot.Motors.
func (m *Motors) SetPwm(ctx context.Context, pin int, duty uint16) error {
	motor := pin / 2
	if pin < 0 || motor >= names.NumWheels {
		return fmt.Errorf("invalid pin %d", pin)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.pwm[motor][pin%2] == duty {
		return nil
	}
	m.pwm[motor][pin%2] = duty
	fwd, back := float64(m.pwm[motor][0]), float64(m.pwm[motor][1])
	m.Robot.setWheel(motor, MaxWheelSpeed*(fwd-back)/float64(m.Robot.def.PwmTop))
	return nil
}

// MotorSpeed implements robot.Motors.
func (m *Motors) MotorSpeed(ctx context.Context, motor int) (float64, error) {
	if motor < 0 || motor >= names.NumWheels {
		return 0, fmt.Errorf("invalid motor %d", motor)
	}
	return m.Robot.WheelSpeeds()[motor], nil
}
