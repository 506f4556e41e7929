package host

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/robot"
)

// DefaultBatteryPath reports the supply voltage in microvolts.
const DefaultBatteryPath = "/sys/class/power_supply/BAT0/voltage_now"

// Motors implements robot.Motors for a motor controller taking wheel
// speeds directly. Speeds are kept and reported as measured.
type Motors struct {
	lock   sync.Mutex
	speeds [names.NumWheels]float64
	pwm    [2 * names.NumWheels]uint16
}

// WantsSelfClosedLoop implements robot.Motors.
func (m *Motors) WantsSelfClosedLoop() bool {
	return false
}

// SetActuatorSpeed implements robot.Motors.
func (m *Motors) SetActuatorSpeed(ctx context.Context, motor int, speed float64) error {
	if motor < 0 || motor >= names.NumWheels {
		return fmt.Errorf("invalid motor %d", motor)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.speeds[motor] != speed {
		glog.V(4).Infof("motor %d speed %.3f", motor, speed)
	}
	m.speeds[motor] = speed
	return nil
}

// SetPwm implements robot.Motors.
func (m *Motors) SetPwm(ctx context.Context, pin int, duty uint16) error {
	if pin < 0 || pin >= len(m.pwm) {
		return fmt.Errorf("invalid pin %d", pin)
	}
	m.lock.Lock()
	m.pwm[pin] = duty
	m.lock.Unlock()
	return nil
}

// MotorSpeed implements robot.Motors.
func (m *Motors) MotorSpeed(ctx context.Context, motor int) (float64, error) {
	if motor < 0 || motor >= names.NumWheels {
		return 0, fmt.Errorf("invalid motor %d", motor)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.speeds[motor], nil
}

// Peripherals implements robot.Peripherals for a board without a screen.
// The only sensor is the supply voltage.
type Peripherals struct {
	BatteryPath string

	screen  robot.Framebuffer
	sensors []robot.Sensor
}

// NewPeripherals creates Peripherals reading the battery from path.
func NewPeripherals(batteryPath string) *Peripherals {
	if batteryPath == "" {
		batteryPath = DefaultBatteryPath
	}
	p := &Peripherals{BatteryPath: batteryPath}
	p.sensors = []robot.Sensor{&battery{path: batteryPath}}
	return p
}

// Draw implements robot.Peripherals.
func (p *Peripherals) Draw(fn func(*robot.Framebuffer)) error {
	fn(&p.screen)
	return nil
}

// Flip implements robot.Peripherals.
func (p *Peripherals) Flip(context.Context) error {
	return nil
}

// Sensors implements robot.Peripherals.
func (p *Peripherals) Sensors() []robot.Sensor {
	return p.sensors
}

type battery struct {
	path string
}

func (b *battery) Name() string     { return "battery" }
func (b *battery) Slot() robot.Slot { return robot.Slot{Kind: robot.SensorBattery} }

func (b *battery) Initialize(ctx context.Context) error {
	if _, err := os.Stat(b.path); err != nil {
		if os.IsNotExist(err) {
			return &robot.DeviceError{Device: b.Name(), Kind: robot.DeviceDisabled, Err: err}
		}
		return &robot.DeviceError{Device: b.Name(), Kind: robot.DeviceFault, Err: err}
	}
	return nil
}

func (b *battery) Poll(ctx context.Context) (float64, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return 0, &robot.DeviceError{Device: b.Name(), Kind: robot.DeviceTransient, Err: err}
	}
	uv, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, &robot.DeviceError{Device: b.Name(), Kind: robot.DeviceFault, Err: err}
	}
	return uv / 1e6, nil
}
