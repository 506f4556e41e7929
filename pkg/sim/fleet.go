package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/robot"
)

// Fleet runs simulated robots inside a World.
type Fleet struct {
	World  *World
	Config robot.Config
	// Port overrides the port of every robot when non-zero.
	Port uint16
	// FailJoin lists robots whose association always fails.
	FailJoin map[names.RobotName]bool

	lock    sync.Mutex
	members map[names.RobotName]*member
}

type member struct {
	parent  context.Context
	body    *Robot
	network *Network
	robot   *robot.Robot
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFleet creates an empty fleet.
func NewFleet(world *World, conf robot.Config) *Fleet {
	return &Fleet{World: world, Config: conf, members: make(map[names.RobotName]*member)}
}

// Spawn starts a robot at the start position. The robot runs until
// destroyed or ctx is done.
func (f *Fleet) Spawn(ctx context.Context, name names.RobotName) error {
	if !name.IsValid() {
		return fmt.Errorf("invalid robot %d", name)
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	if _, ok := f.members[name]; ok {
		return fmt.Errorf("%s already spawned", name)
	}
	f.start(ctx, NewRobot(name, DefaultStart))
	return nil
}

// start must be called with f.lock held.
func (f *Fleet) start(parent context.Context, body *Robot) {
	name := body.RobotName()
	network := NewNetwork(body)
	network.FailJoin = f.FailJoin[name]
	network.OnReboot = func(swapped bool) {
		go f.reboot(name, swapped)
	}
	r := robot.New(name, robot.Behaviors{
		Network:     network,
		Motors:      NewMotors(body),
		Peripherals: NewPeripherals(body, f.World.Bounds),
	}, f.Config)
	if f.Port != 0 {
		r.Network.Port = f.Port
	}

	ctx, cancel := context.WithCancel(parent)
	m := &member{parent: parent, body: body, network: network, robot: r, cancel: cancel, done: make(chan struct{})}
	f.members[name] = m
	f.World.Add(body)
	go func() {
		defer close(m.done)
		if err := r.Run(ctx); err != nil && ctx.Err() == nil {
			glog.Errorf("%s stopped: %v", name, err)
		}
	}()
	glog.Infof("%s spawned", name)
}

// Destroy stops a robot and removes it from the world.
func (f *Fleet) Destroy(name names.RobotName) error {
	f.lock.Lock()
	m, ok := f.members[name]
	if ok {
		delete(f.members, name)
	}
	f.lock.Unlock()
	if !ok {
		return fmt.Errorf("%s not spawned", name)
	}
	m.stop()
	f.World.Remove(name.String())
	glog.Infof("%s destroyed", name)
	return nil
}

// DestroyAll stops every robot.
func (f *Fleet) DestroyAll() {
	for _, name := range f.Names() {
		f.Destroy(name)
	}
}

// reboot restarts a robot in place, keeping its pose.
func (f *Fleet) reboot(name names.RobotName, swapped bool) {
	f.lock.Lock()
	m, ok := f.members[name]
	f.lock.Unlock()
	if !ok {
		return
	}
	m.stop()
	m.body.setSwapped(swapped)
	m.body.lock.Lock()
	m.body.wheels = [names.NumWheels]float64{}
	m.body.lock.Unlock()

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.members[name] != m {
		return
	}
	if m.parent.Err() != nil {
		delete(f.members, name)
		return
	}
	f.start(m.parent, m.body)
	glog.Infof("%s rebooted", name)
}

func (m *member) stop() {
	m.cancel()
	<-m.done
	m.network.Close()
}

// Names returns the spawned robots.
func (f *Fleet) Names() []names.RobotName {
	f.lock.Lock()
	defer f.lock.Unlock()
	var spawned []names.RobotName
	for _, name := range names.All() {
		if _, ok := f.members[name]; ok {
			spawned = append(spawned, name)
		}
	}
	return spawned
}

// Robot returns the running tasks of a robot.
func (f *Fleet) Robot(name names.RobotName) *robot.Robot {
	f.lock.Lock()
	defer f.lock.Unlock()
	if m, ok := f.members[name]; ok {
		return m.robot
	}
	return nil
}

// Body returns the simulated body of a robot.
func (f *Fleet) Body(name names.RobotName) *Robot {
	f.lock.Lock()
	defer f.lock.Unlock()
	if m, ok := f.members[name]; ok {
		return m.body
	}
	return nil
}
