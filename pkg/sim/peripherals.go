package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/robotalks/robofleet/pkg/robot"
)

// Defaults of simulated peripherals.
const (
	DistanceRange  = 30.0
	DefaultBattery = 7.4
)

// Peripherals implements robot.Peripherals from the pose of the robot in
// the arena.
type Peripherals struct {
	Robot   *Robot
	Bounds  Rect
	Battery float64
	// Disabled lists sensors, by name, which report as not fitted.
	Disabled map[string]bool

	sensors []robot.Sensor
}

// NewPeripherals creates the peripherals behavior of r inside bounds.
func NewPeripherals(r *Robot, bounds Rect) *Peripherals {
	p := &Peripherals{Robot: r, Bounds: bounds, Battery: DefaultBattery}
	p.sensors = append(p.sensors, &imu{p: p})
	for i := 0; i < robot.NumDistanceSensors; i++ {
		p.sensors = append(p.sensors, &distanceSensor{p: p, index: i})
	}
	p.sensors = append(p.sensors, &battery{p: p})
	return p
}

// Draw implements robot.Peripherals.
func (p *Peripherals) Draw(fn func(*robot.Framebuffer)) error {
	p.Robot.lock.Lock()
	defer p.Robot.lock.Unlock()
	fn(&p.Robot.display)
	return nil
}

// Flip implements robot.Peripherals.
func (p *Peripherals) Flip(context.Context) error {
	p.Robot.lock.Lock()
	p.Robot.displayUpdated = true
	p.Robot.lock.Unlock()
	return nil
}

// Sensors implements robot.Peripherals.
func (p *Peripherals) Sensors() []robot.Sensor {
	return p.sensors
}

func (p *Peripherals) initialize(name string) error {
	if p.Disabled[name] {
		return &robot.DeviceError{Device: name, Kind: robot.DeviceDisabled}
	}
	return nil
}

type imu struct {
	p *Peripherals
}

func (s *imu) Name() string                         { return "imu" }
func (s *imu) Slot() robot.Slot                     { return robot.Slot{Kind: robot.SensorAngle} }
func (s *imu) Initialize(ctx context.Context) error { return s.p.initialize(s.Name()) }

func (s *imu) Poll(context.Context) (float64, error) {
	return s.p.Robot.Position2D().Orientation.Radians(), nil
}

// distanceSensor faces index quarter turns from the heading.
type distanceSensor struct {
	p     *Peripherals
	index int
}

func (s *distanceSensor) Name() string {
	return fmt.Sprintf("dist%d", s.index)
}

func (s *distanceSensor) Slot() robot.Slot {
	return robot.Slot{Kind: robot.SensorDistance, Index: s.index}
}

func (s *distanceSensor) Initialize(context.Context) error {
	return s.p.initialize(s.Name())
}

func (s *distanceSensor) Poll(context.Context) (float64, error) {
	pose := s.p.Robot.Position2D()
	dir := pose.Orientation.AddRadians(float64(s.index) * math.Pi / 2)
	origin := pose.Pos2D.Add(dir.Project(s.p.Robot.def.Radius))
	return castRay(s.p.Bounds, origin, dir.Project(1)), nil
}

type battery struct {
	p *Peripherals
}

func (s *battery) Name() string                         { return "battery" }
func (s *battery) Slot() robot.Slot                     { return robot.Slot{Kind: robot.SensorBattery} }
func (s *battery) Initialize(ctx context.Context) error { return s.p.initialize(s.Name()) }

func (s *battery) Poll(context.Context) (float64, error) {
	return s.p.Battery, nil
}

// castRay returns the distance from origin along the unit vector dir to the
// boundary of bounds, capped at DistanceRange.
func castRay(bounds Rect, origin, dir Pos2D) float64 {
	dist := DistanceRange
	if dir.X > 1e-9 {
		dist = math.Min(dist, (bounds.Max.X-origin.X)/dir.X)
	} else if dir.X < -1e-9 {
		dist = math.Min(dist, (bounds.Min.X-origin.X)/dir.X)
	}
	if dir.Y > 1e-9 {
		dist = math.Min(dist, (bounds.Max.Y-origin.Y)/dir.Y)
	} else if dir.Y < -1e-9 {
		dist = math.Min(dist, (bounds.Min.Y-origin.Y)/dir.Y)
	}
	return math.Max(dist, 0)
}
