package robot

import (
	"context"
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/bus"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
)

// Motors task defaults.
const (
	DefaultControlPeriod  = 30 * time.Millisecond
	DefaultCommandTimeout = 300 * time.Millisecond
)

// MotorsTask converts target velocities into wheel commands.
type MotorsTask struct {
	Motors     Motors
	Bus        *bus.Bus
	Definition names.Definition
	Period     time.Duration
	// CommandTimeout stops the wheels when no command arrived for this long.
	CommandTimeout time.Duration

	config      [names.NumWheels][2]int
	pids        [names.NumWheels]*PID
	target      *msgs.TargetVelocity
	overrides   [names.NumWheels]*float64
	pwmOverride [names.NumWheels][2]*uint16
	lastCommand time.Time
	start       time.Time
	monitor     *UtilizationMonitor
	lastReport  time.Time
}

// NewMotorsTask creates a MotorsTask with defaults.
func NewMotorsTask(motors Motors, b *bus.Bus, def names.Definition) *MotorsTask {
	return &MotorsTask{
		Motors:         motors,
		Bus:            b,
		Definition:     def,
		Period:         DefaultControlPeriod,
		CommandTimeout: DefaultCommandTimeout,
	}
}

// Name implements Named.
func (t *MotorsTask) Name() string {
	return bus.TaskMotors.String()
}

// Run implements Runnable. Any behavior error ends the task.
func (t *MotorsTask) Run(ctx context.Context) error {
	t.reset(time.Now())
	ep := t.Bus.Endpoint(bus.TaskMotors)
	period := t.Period
	if period <= 0 {
		period = DefaultControlPeriod
	}
	next := time.Now()
	for {
		msg, err := ep.ReceiveTimeout(ctx, time.Until(next))
		if err != nil {
			return err
		}
		now := time.Now()
		if msg != nil {
			t.handle(now, msg)
			if now.Before(next) {
				continue
			}
		}
		t.monitor.Start()
		if err := t.Step(ctx, now); err != nil {
			glog.Errorf("motors: %v", err)
			return err
		}
		t.monitor.Stop()
		if next = next.Add(period); next.Before(now) {
			next = now.Add(period)
		}
	}
}

func (t *MotorsTask) reset(now time.Time) {
	t.config = t.Definition.DefaultMotorConfig
	limit := float64(t.Definition.PwmTop)
	for n := range t.pids {
		t.pids[n] = NewPID(t.Definition.DefaultPid, limit)
	}
	t.target = nil
	t.overrides = [names.NumWheels]*float64{}
	t.pwmOverride = [names.NumWheels][2]*uint16{}
	t.start, t.lastCommand, t.lastReport = now, now, now
	t.monitor = NewUtilizationMonitor()
}

func (t *MotorsTask) handle(now time.Time, msg bus.Message) {
	cmd, ok := msg.(bus.Command)
	if !ok {
		glog.V(2).Infof("motors ignored %T", msg)
		return
	}
	switch m := cmd.Msg.(type) {
	case *msgs.TargetVelocity:
		t.lastCommand, t.target = now, m
	case *msgs.MotorsOverride:
		t.lastCommand = now
		t.overrides = [names.NumWheels]*float64{}
		for _, o := range m.Overrides {
			if o.Motor < names.NumWheels {
				speed := float64(o.Speed)
				t.overrides[o.Motor] = &speed
			}
		}
	case *msgs.PwmOverride:
		t.lastCommand = now
		t.pwmOverride = [names.NumWheels][2]*uint16{}
		for _, o := range m.Overrides {
			if o.Motor < names.NumWheels && o.Pin < 2 {
				duty := uint16(o.Duty)
				t.pwmOverride[o.Motor][o.Pin] = &duty
			}
		}
	case *msgs.MotorConfig:
		if len(m.Pins) != 2*names.NumWheels {
			glog.Warningf("motors: config with %d pins ignored", len(m.Pins))
			return
		}
		for n, pin := range m.Pins {
			t.config[n/2][n%2] = int(pin)
		}
	case *msgs.PidSettings:
		gains := [3]float64{float64(m.P), float64(m.I), float64(m.D)}
		for _, pid := range t.pids {
			pid.SetGains(gains)
		}
	default:
		glog.V(2).Infof("motors ignored %T", cmd.Msg)
	}
}

// Step runs one control iteration at now.
func (t *MotorsTask) Step(ctx context.Context, now time.Time) error {
	if t.pids[0] == nil {
		t.reset(now)
	}
	stopped := now.Sub(t.lastCommand) > t.commandTimeout()
	if stopped {
		// we might have disconnected
		t.target = nil
		t.overrides = [names.NumWheels]*float64{}
		t.pwmOverride = [names.NumWheels][2]*uint16{}
	}

	var setPoints [names.NumWheels]float64
	if t.target != nil {
		setPoints = t.Definition.Drive.MotorSpeeds(float64(t.target.LinearX), float64(t.target.LinearY), float64(t.target.Angular))
	}
	for m, o := range t.overrides {
		if o != nil {
			setPoints[m] = *o
		}
	}

	status := &msgs.MotorControlStatus{
		ElapsedMs: uint64(now.Sub(t.start) / time.Millisecond),
		SetPoints: make([]float32, names.NumWheels),
		Measured:  make([]float32, names.NumWheels),
		Pwm:       make([]uint32, 2*names.NumWheels),
	}
	for m := range setPoints {
		status.SetPoints[m] = float32(setPoints[m])
	}

	if !t.Motors.WantsSelfClosedLoop() {
		for m, speed := range setPoints {
			if err := t.Motors.SetActuatorSpeed(ctx, m, speed); err != nil {
				return err
			}
		}
		t.report(now, status)
		return nil
	}

	if stopped {
		for m := range t.config {
			t.pids[m].Reset()
			for _, pin := range t.config[m] {
				if err := t.Motors.SetPwm(ctx, pin, 0); err != nil {
					return err
				}
			}
		}
		t.report(now, status)
		return nil
	}

	for m := range setPoints {
		measured, err := t.Motors.MotorSpeed(ctx, m)
		if err != nil {
			return err
		}
		status.Measured[m] = float32(measured)
		t.pids[m].Setpoint = setPoints[m]
		out := t.pids[m].Update(measured)
		duty := uint16(math.Round(math.Abs(out)))
		pwm := [2]uint16{0, duty}
		if out > 0 {
			pwm = [2]uint16{duty, 0}
		}
		for p := range pwm {
			if o := t.pwmOverride[m][p]; o != nil {
				pwm[p] = *o
			}
			if err := t.Motors.SetPwm(ctx, t.config[m][p], pwm[p]); err != nil {
				return err
			}
			status.Pwm[2*m+p] = uint32(pwm[p])
		}
	}
	t.report(now, status)
	return nil
}

func (t *MotorsTask) report(now time.Time, status *msgs.MotorControlStatus) {
	t.Bus.TrySend(bus.TaskWifi, bus.ToServer{Msg: status})
	if t.monitor != nil && now.Sub(t.lastReport) >= time.Second {
		t.lastReport = now
		t.Bus.TrySend(bus.TaskWifi, bus.Utilization{Task: bus.TaskMotors, Ratio: t.monitor.Utilization()})
	}
}

func (t *MotorsTask) commandTimeout() time.Duration {
	if t.CommandTimeout > 0 {
		return t.CommandTimeout
	}
	return DefaultCommandTimeout
}
