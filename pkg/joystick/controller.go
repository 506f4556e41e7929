// Package joystick drives a robot from a gamepad through the coordinator.
package joystick

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/joystick/device"
	"github.com/robotalks/robofleet/pkg/msgs"
)

// CommandSender delivers operator commands, usually an *mqtt.Bridge.
type CommandSender interface {
	SendCommand(*msgs.OperatorCommand) error
}

// Mapping translates stick positions into a target velocity.
type Mapping struct {
	// Axes driving forward, sideways and rotation.
	ForwardAxis int
	SideAxis    int
	TurnAxis    int
	MaxLinear   float64
	MaxAngular  float64
	// DeadZone is the fraction of the axis range read as zero.
	DeadZone float64
}

// DefaultMapping uses the left stick to move and the right stick to turn.
var DefaultMapping = Mapping{
	ForwardAxis: 1,
	SideAxis:    0,
	TurnAxis:    3,
	MaxLinear:   1,
	MaxAngular:  math.Pi,
	DeadZone:    0.1,
}

// Velocity computes the target velocity from axis values. Pushing a stick
// up or left produces positive values, matching the robot frame.
func (m Mapping) Velocity(axes map[int]int) *msgs.TargetVelocity {
	return &msgs.TargetVelocity{
		LinearX: float32(-m.scale(axes[m.ForwardAxis]) * m.MaxLinear),
		LinearY: float32(-m.scale(axes[m.SideAxis]) * m.MaxLinear),
		Angular: float32(-m.scale(axes[m.TurnAxis]) * m.MaxAngular),
	}
}

func (m Mapping) scale(val int) float64 {
	v := float64(val) / device.AxisMax
	if math.Abs(v) < m.DeadZone {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// Controller reads a joystick and sends velocity commands for one robot.
// Non-zero velocities are repeated every loop iteration so the robot's
// command timeout doesn't stop it.
type Controller struct {
	Sender      CommandSender
	Robot       string
	DeviceIndex int
	Verbose     bool
	Mapping     Mapping
	Open        func(index int) (device.Device, error)
	Detect      func(startIndex int) (device.Device, error)

	axes    map[int]int
	current *msgs.TargetVelocity
	changed bool
}

// NewController creates a Controller.
func NewController(sender CommandSender, robot string) *Controller {
	return &Controller{
		Sender:      sender,
		Robot:       robot,
		DeviceIndex: defaultConfig.DeviceIndex,
		Verbose:     defaultConfig.Verbose,
		Mapping:     DefaultMapping,
		Open:        device.Open,
		Detect:      device.DetectAndOpen,
		axes:        make(map[int]int),
		current:     &msgs.TargetVelocity{},
	}
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(c)
	loop.AddController(fx.PrLvControl, c)
	loop.AddController(fx.PrLvAcuate, fx.ControlFunc(c.sendVelocity))
}

// Run implements Runnable. It opens the device, retrying every second,
// and posts its events to the loop.
func (c *Controller) Run(ctx context.Context) error {
	loopCtl := fx.LoopCtlFrom(ctx)
	for {
		if js := c.openDevice(); js != nil {
			glog.Infof("joystick %d %q opened", js.Index(), js.Name())
			events := make(chan device.Event, 1)
			go c.poll(js, events)
			err := c.forward(ctx, loopCtl, events)
			js.Close()
			loopCtl.PostMessage(&eventMsg{stopAll: true})
			loopCtl.TriggerNext()
			if err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *Controller) openDevice() device.Device {
	var js device.Device
	var err error
	if c.DeviceIndex >= 0 {
		js, err = c.Open(c.DeviceIndex)
	} else {
		js, err = c.Detect(0)
	}
	if err != nil {
		glog.Warningf("open joystick: %v", err)
		return nil
	}
	return js
}

// forward returns nil when the device is gone.
func (c *Controller) forward(ctx context.Context, loopCtl fx.LoopControl, events <-chan device.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			loopCtl.PostMessage(&eventMsg{event: ev})
			loopCtl.TriggerNext()
		}
	}
}

func (c *Controller) poll(js device.Device, events chan<- device.Event) {
	defer close(events)
	for {
		ev, err := js.ReadEvent()
		if err != nil {
			glog.Warningf("joystick read: %v", err)
			return
		}
		if c.Verbose {
			switch evt := ev.(type) {
			case device.AxisEvent:
				glog.Infof("axis %d: %d (init=%v)", evt.Index(), evt.Value(), evt.IsInit())
			case device.ButtonEvent:
				glog.Infof("button %d: %v (init=%v)", evt.Index(), evt.Pressed(), evt.IsInit())
			}
		}
		events <- ev
	}
}

// Control implements Controller.
func (c *Controller) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		msg, ok := mctx.CurrentMessage().(*eventMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		if msg.stopAll {
			c.axes = make(map[int]int)
		} else if ev, ok := msg.event.(device.AxisEvent); ok {
			c.axes[ev.Index()] = ev.Value()
		}
		if v := c.Mapping.Velocity(c.axes); !velocityEqual(v, c.current) {
			c.current, c.changed = v, true
		}
	}))
	return nil
}

func (c *Controller) sendVelocity(cc fx.ControlContext) error {
	if !c.changed && isZero(c.current) {
		return nil
	}
	c.changed = false
	cmd := &msgs.OperatorCommand{Robot: c.Robot, Op: msgs.OperatorOpVelocity, Velocity: c.current}
	if err := c.Sender.SendCommand(cmd); err != nil {
		glog.Warningf("send velocity to %s: %v", c.Robot, err)
	}
	return nil
}

func velocityEqual(a, b *msgs.TargetVelocity) bool {
	return a.LinearX == b.LinearX && a.LinearY == b.LinearY && a.Angular == b.Angular
}

func isZero(v *msgs.TargetVelocity) bool {
	return velocityEqual(v, &msgs.TargetVelocity{})
}

type eventMsg struct {
	event   device.Event
	stopAll bool
}

func (m *eventMsg) NewMessage() fx.Message { return &eventMsg{} }
