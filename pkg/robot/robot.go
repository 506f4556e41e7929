package robot

import (
	"context"
	"time"

	"github.com/robotalks/robofleet/pkg/bus"
	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/names"
)

// Behaviors is the set of capabilities a robot runs on.
type Behaviors struct {
	Network     Network
	Motors      Motors
	Peripherals Peripherals
}

// Config tunes a Robot.
type Config struct {
	SSID            string
	Password        string
	BusCapacity     int
	RestartDelay    time.Duration
	DisplayInterval time.Duration
}

// DefaultConfig returns the default Config.
func DefaultConfig() Config {
	return Config{
		SSID:            DefaultSSID,
		BusCapacity:     bus.DefaultCapacity,
		RestartDelay:    fx.DefaultRestartDelay,
		DisplayInterval: DefaultDisplayInterval,
	}
}

// Robot is the three tasks of one robot sharing a bus.
type Robot struct {
	Name        names.RobotName
	Bus         *bus.Bus
	Network     *NetworkTask
	Motors      *MotorsTask
	Peripherals *PeripheralsTask

	supervisors []*fx.Supervisor
}

// New creates a Robot.
func New(name names.RobotName, b Behaviors, conf Config) *Robot {
	msgBus := bus.New(conf.BusCapacity)
	r := &Robot{
		Name:        name,
		Bus:         msgBus,
		Network:     NewNetworkTask(b.Network, msgBus),
		Motors:      NewMotorsTask(b.Motors, msgBus, name.Definition()),
		Peripherals: NewPeripheralsTask(b.Peripherals, msgBus),
	}
	if conf.SSID != "" {
		r.Network.SSID = conf.SSID
	}
	r.Network.Password = conf.Password
	if conf.DisplayInterval > 0 {
		r.Peripherals.DisplayInterval = conf.DisplayInterval
	}
	delay := conf.RestartDelay
	if delay <= 0 {
		delay = fx.DefaultRestartDelay
	}
	for _, task := range []interface {
		fx.Runnable
		fx.Named
	}{r.Network, r.Motors, r.Peripherals} {
		sup := fx.Supervise(name.String()+"/"+task.Name(), task).WithRestartDelay(delay)
		r.supervisors = append(r.supervisors, sup)
	}
	return r
}

// Status returns the latest network status.
func (r *Robot) Status() *bus.Watch[bus.NetworkStatus] {
	return r.Network.Status
}

// Sensors returns the latest sensor readings.
func (r *Robot) Sensors() *bus.Watch[SensorData] {
	return r.Peripherals.Sensors
}

// Restarts returns how many times each task was restarted, in task order.
func (r *Robot) Restarts() [bus.NumTasks]int {
	var n [bus.NumTasks]int
	for i, sup := range r.supervisors {
		n[i] = sup.Restarts()
	}
	return n
}

// Run implements Runnable. Tasks are restarted when they fail and all
// stop when ctx is done.
func (r *Robot) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	for _, sup := range r.supervisors {
		runner.Go(sup)
	}
	return runner.Wait()
}
