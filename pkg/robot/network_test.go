package robot

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/bus"
	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
)

func startNetworkTask(t *testing.T, network *fakeNetwork) (*NetworkTask, *bus.Bus) {
	b := bus.New(bus.DefaultCapacity)
	task := NewNetworkTask(network, b)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- task.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return task, b
}

func receiveWithin(t *testing.T, ep *bus.Endpoint) bus.Message {
	msg, err := ep.ReceiveTimeout(context.Background(), 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, msg)
	return msg
}

func TestResolve(t *testing.T) {
	name, err := Resolve(context.Background(), newFakeNetwork(names.Stevie))
	require.NoError(t, err)
	require.Equal(t, names.Stevie, name)

	unknown := newFakeNetwork(names.Stevie)
	unknown.mac = [6]byte{1, 2, 3, 4, 5, 6}
	_, err = Resolve(context.Background(), unknown)
	require.ErrorIs(t, err, ErrUnknownRobot)
}

func TestNetworkJoinAlwaysFails(t *testing.T) {
	network := newFakeNetwork(names.Stella)
	network.joinErr = errors.New("no such network")
	b := bus.New(bus.DefaultCapacity)
	task := NewNetworkTask(network, b)
	sup := fx.Supervise("wifi", task).WithRestartDelay(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	peripherals := b.Endpoint(bus.TaskPeripherals)
	var states []bus.NetworkState
	for len(states) < 20 {
		msg := receiveWithin(t, peripherals)
		states = append(states, msg.(bus.NetworkStatus).State)
	}
	cancel()
	require.Equal(t, context.Canceled, <-done)

	for _, st := range states {
		require.NotEqual(t, bus.Connected, st)
	}
	require.Contains(t, states, bus.ConnectionFailed)
	require.True(t, network.joinCount() >= 10)
	require.True(t, sup.Restarts() >= 9)
	require.NotEqual(t, bus.Connected, task.Status.Get().State)
}

func TestNetworkSession(t *testing.T) {
	network := newFakeNetwork(names.Stella)
	task, b := startNetworkTask(t, network)
	peripherals := b.Endpoint(bus.TaskPeripherals)
	require.Equal(t, bus.NetworkStatus{State: bus.Connecting}, receiveWithin(t, peripherals))
	connected := receiveWithin(t, peripherals).(bus.NetworkStatus)
	require.Equal(t, bus.Connected, connected.State)
	require.Equal(t, "127.0.0.1", connected.IP.String())
	require.Equal(t, bus.Connected, task.Status.Get().State)

	client := network.connect(t)
	require.Equal(t, "Stella", expect[*msgs.RobotIdentity](client).Name)

	client.send(&msgs.Ping{})
	expect[*msgs.Pong](client)

	client.send(&msgs.TargetVelocity{LinearX: 1})
	cmd := receiveWithin(t, b.Endpoint(bus.TaskMotors)).(bus.Command)
	require.Equal(t, &msgs.TargetVelocity{LinearX: 1}, cmd.Msg)
	require.IsType(t, bus.Command{}, receiveWithin(t, peripherals))

	client.send(&msgs.PidSettings{P: 1})
	require.IsType(t, &msgs.PidSettings{}, receiveWithin(t, b.Endpoint(bus.TaskMotors)).(bus.Command).Msg)

	client.send(&msgs.ResetAngle{})
	require.Equal(t, bus.ResetAngle{}, receiveWithin(t, peripherals))

	require.NoError(t, b.Send(context.Background(), bus.TaskWifi, bus.ToServer{Msg: &msgs.Sensors{Battery: 7.5}}))
	require.Equal(t, float32(7.5), expect[*msgs.Sensors](client).Battery)

	require.NoError(t, b.Send(context.Background(), bus.TaskWifi, bus.Utilization{Task: bus.TaskMotors, Ratio: 0.25}))
	util := expect[*msgs.Utilization](client)
	require.Equal(t, uint32(bus.TaskMotors), util.Task)
	require.Equal(t, float32(0.25), util.Ratio)
}

func TestNetworkFirmware(t *testing.T) {
	network := newFakeNetwork(names.Stevie)
	startNetworkTask(t, network)
	client := network.connect(t)
	expect[*msgs.RobotIdentity](client)

	client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpReady})
	require.Equal(t, msgs.FirmwareOpReady, expect[*msgs.FirmwareReply](client).Op)

	image := []byte("firmware image bytes")
	for offset := 0; offset < len(image); offset += 8 {
		end := offset + 8
		if end > len(image) {
			end = len(image)
		}
		client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpWritePart, Offset: uint32(offset), Length: uint32(end - offset)})
		client.sendRaw(image[offset:end])
		reply := expect[*msgs.FirmwareReply](client)
		require.Empty(t, reply.Error)
		require.Equal(t, msgs.FirmwareOpWritePart, reply.Op)
		require.Equal(t, uint32(offset), reply.Offset)
		require.Equal(t, uint32(end-offset), reply.Length)
	}

	client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpHash, Length: uint32(len(image))})
	hash := sha256.Sum256(image)
	require.Equal(t, hash[:], expect[*msgs.FirmwareReply](client).Hash)

	// a short part is reported, not written
	client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpWritePart, Offset: uint32(len(image)), Length: 10})
	client.sendRaw([]byte{1, 2})
	require.NotEmpty(t, expect[*msgs.FirmwareReply](client).Error)

	client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpReboot})
	require.Equal(t, msgs.FirmwareOpReboot, expect[*msgs.FirmwareReply](client).Op)
	client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpIsSwapped})
	require.True(t, expect[*msgs.FirmwareReply](client).Swapped)

	client.send(&msgs.FirmwareRequest{Op: msgs.FirmwareOpMarkBooted})
	expect[*msgs.FirmwareReply](client)
	network.lock.Lock()
	defer network.lock.Unlock()
	require.Equal(t, 1, network.rebooted)
	require.Equal(t, []string{"prepare", "booted"}, network.ops)
}

func TestNetworkReacceptsAfterDisconnect(t *testing.T) {
	network := newFakeNetwork(names.Speers)
	startNetworkTask(t, network)

	first := network.connect(t)
	expect[*msgs.RobotIdentity](first)
	first.conn.Close()

	second := network.connect(t)
	require.Equal(t, "Speers", expect[*msgs.RobotIdentity](second).Name)
	second.send(&msgs.Ping{})
	expect[*msgs.Pong](second)
	require.Equal(t, 1, network.joinCount())
}

func TestNetworkKeepsConnectionOnDecodeError(t *testing.T) {
	network := newFakeNetwork(names.Stella)
	startNetworkTask(t, network)
	client := network.connect(t)
	expect[*msgs.RobotIdentity](client)

	client.sendRaw([]byte{0xff})
	// a frame claiming to be typed with a garbage body
	_, err := client.conn.Write([]byte{0, 0, 0, 11, 0, 0, 0, 2, 0, 0xff, 0xff})
	require.NoError(t, err)
	client.send(&msgs.Ping{})
	expect[*msgs.Pong](client)
}

func TestNetworkDiscardsStaleBacklog(t *testing.T) {
	network := newFakeNetwork(names.Stella)
	_, b := startNetworkTask(t, network)
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Send(context.Background(), bus.TaskWifi, bus.ToServer{Msg: &msgs.MotorControlStatus{ElapsedMs: uint64(i)}}))
	}

	client := network.connect(t)
	require.IsType(t, &msgs.RobotIdentity{}, client.next())
	require.NoError(t, b.Send(context.Background(), bus.TaskWifi, bus.ToServer{Msg: &msgs.Sensors{Battery: 7.5}}))
	require.Equal(t, &msgs.Sensors{Battery: 7.5}, client.next())
}
