package robot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/bus"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
)

func newTestMotorsTask(motors *fakeMotors) (*MotorsTask, *bus.Bus, time.Time) {
	b := bus.New(bus.DefaultCapacity)
	task := NewMotorsTask(motors, b, names.Stella.Definition())
	now := time.Unix(100, 0)
	task.reset(now)
	return task, b, now
}

func lastStatus(t *testing.T, b *bus.Bus) *msgs.MotorControlStatus {
	var status *msgs.MotorControlStatus
	ep := b.Endpoint(bus.TaskWifi)
	for b.Pending(bus.TaskWifi) > 0 {
		msg, err := ep.Receive(context.Background())
		require.NoError(t, err)
		if ts, ok := msg.(bus.ToServer); ok {
			if s, ok := ts.Msg.(*msgs.MotorControlStatus); ok {
				status = s
			}
		}
	}
	require.NotNil(t, status)
	return status
}

func TestMotorsClosedLoop(t *testing.T) {
	motors := &fakeMotors{closedLoop: true}
	task, b, now := newTestMotorsTask(motors)
	task.handle(now, bus.Command{Msg: &msgs.TargetVelocity{Angular: 1}})
	require.NoError(t, task.Step(context.Background(), now.Add(30*time.Millisecond)))

	expected := task.Definition.Drive.MotorSpeeds(0, 0, 1)
	status := lastStatus(t, b)
	pins := motors.pins()
	for m := 0; m < names.NumWheels; m++ {
		require.InDelta(t, expected[m], status.SetPoints[m], 1e-4)
		fwd, back := pins[2*m], pins[2*m+1]
		if expected[m] > 0 {
			require.True(t, fwd > 0)
			require.Zero(t, back)
		} else {
			require.Zero(t, fwd)
			require.True(t, back > 0)
		}
		require.Equal(t, uint32(fwd), status.Pwm[2*m])
	}
}

func TestMotorsCommandTimeout(t *testing.T) {
	motors := &fakeMotors{closedLoop: true}
	task, b, now := newTestMotorsTask(motors)
	task.handle(now, bus.Command{Msg: &msgs.TargetVelocity{LinearX: 1}})
	require.NoError(t, task.Step(context.Background(), now.Add(30*time.Millisecond)))
	require.NotEqual(t, [6]uint16{}, motors.pins())

	require.NoError(t, task.Step(context.Background(), now.Add(400*time.Millisecond)))
	require.Equal(t, [6]uint16{}, motors.pins())
	require.Nil(t, task.target)
	require.Equal(t, make([]float32, 3), lastStatus(t, b).SetPoints)
}

func TestMotorsOverrides(t *testing.T) {
	testCases := []struct {
		name   string
		msgs   []*msgs.MotorsOverride
		pwm    *msgs.PwmOverride
		config *msgs.MotorConfig
		check  func(t *testing.T, pins [6]uint16)
	}{
		{
			name: "pwm override",
			pwm:  &msgs.PwmOverride{Overrides: []*msgs.PwmPinOverride{{Motor: 1, Pin: 1, Duty: 1234}}},
			check: func(t *testing.T, pins [6]uint16) {
				require.Equal(t, uint16(1234), pins[3])
				require.Zero(t, pins[0]+pins[1])
			},
		},
		{
			name: "motor override",
			msgs: []*msgs.MotorsOverride{{Overrides: []*msgs.MotorOverride{{Motor: 2, Speed: -10}}}},
			check: func(t *testing.T, pins [6]uint16) {
				require.Zero(t, pins[4])
				require.True(t, pins[5] > 0)
				require.Zero(t, pins[0]+pins[1]+pins[2]+pins[3])
			},
		},
		{
			name:   "motor config",
			msgs:   []*msgs.MotorsOverride{{Overrides: []*msgs.MotorOverride{{Motor: 0, Speed: 10}}}},
			config: &msgs.MotorConfig{Pins: []uint32{5, 4, 3, 2, 1, 0}},
			check: func(t *testing.T, pins [6]uint16) {
				require.True(t, pins[5] > 0)
				require.Zero(t, pins[4])
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			motors := &fakeMotors{closedLoop: true}
			task, _, now := newTestMotorsTask(motors)
			if tc.config != nil {
				task.handle(now, bus.Command{Msg: tc.config})
			}
			for _, m := range tc.msgs {
				task.handle(now, bus.Command{Msg: m})
			}
			if tc.pwm != nil {
				task.handle(now, bus.Command{Msg: tc.pwm})
			}
			require.NoError(t, task.Step(context.Background(), now.Add(30*time.Millisecond)))
			tc.check(t, motors.pins())
		})
	}
}

func TestMotorsDelegated(t *testing.T) {
	motors := &fakeMotors{}
	task, _, now := newTestMotorsTask(motors)
	task.handle(now, bus.Command{Msg: &msgs.TargetVelocity{LinearY: 2}})
	require.NoError(t, task.Step(context.Background(), now.Add(30*time.Millisecond)))
	expected := task.Definition.Drive.MotorSpeeds(0, 2, 0)
	for m := range expected {
		require.InDelta(t, expected[m], motors.speeds[m], 1e-4)
	}
	require.Equal(t, [6]uint16{}, motors.pins())
}

func TestMotorsPidSettings(t *testing.T) {
	task, _, now := newTestMotorsTask(&fakeMotors{closedLoop: true})
	task.handle(now, bus.Command{Msg: &msgs.PidSettings{P: 1, I: 2, D: 3}})
	for _, pid := range task.pids {
		require.Equal(t, 1.0, pid.Kp)
		require.Equal(t, 2.0, pid.Ki)
		require.Equal(t, 3.0, pid.Kd)
	}
}

func TestMotorsTaskTerminatesOnBehaviorError(t *testing.T) {
	motors := &fakeMotors{speedErr: errors.New("driver fault")}
	task := NewMotorsTask(motors, bus.New(0), names.Stella.Definition())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.EqualError(t, task.Run(ctx), "driver fault")
}
