package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/msgs"
)

func TestFIFO(t *testing.T) {
	b := New(DefaultCapacity)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, b.Send(ctx, TaskMotors, Utilization{Task: TaskMotors, Ratio: float32(i)}))
	}
	require.NoError(t, b.Send(ctx, TaskPeripherals, ResetAngle{}))
	ep := b.Endpoint(TaskMotors)
	for i := 1; i <= 3; i++ {
		msg, err := ep.Receive(ctx)
		require.NoError(t, err)
		require.Equal(t, Utilization{Task: TaskMotors, Ratio: float32(i)}, msg)
	}
	msg, err := b.Endpoint(TaskPeripherals).Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, ResetAngle{}, msg)
}

func TestFIFOManyProducers(t *testing.T) {
	b := New(4)
	ctx := context.Background()
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				require.NoError(t, b.Send(ctx, TaskWifi, Utilization{Task: Task(p), Ratio: float32(i)}))
			}
		}(p)
	}
	ep := b.Endpoint(TaskWifi)
	last := map[Task]float32{0: -1, 1: -1, 2: -1, 3: -1}
	for n := 0; n < 200; n++ {
		msg, err := ep.Receive(ctx)
		require.NoError(t, err)
		u := msg.(Utilization)
		require.Greater(t, u.Ratio, last[u.Task])
		last[u.Task] = u.Ratio
	}
	wg.Wait()
}

func TestTrySendDropsWhenFull(t *testing.T) {
	b := New(2)
	require.True(t, b.TrySend(TaskWifi, ToServer{Msg: &msgs.Pong{}}))
	require.True(t, b.TrySend(TaskWifi, ToServer{Msg: &msgs.Pong{}}))
	require.False(t, b.TrySend(TaskWifi, ToServer{Msg: &msgs.Pong{}}))
	require.Equal(t, 2, b.Pending(TaskWifi))
}

func TestSendBlocksWhenFull(t *testing.T) {
	b := New(1)
	require.NoError(t, b.Send(context.Background(), TaskMotors, ResetAngle{}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, b.Send(ctx, TaskMotors, ResetAngle{}))

	done := make(chan error, 1)
	go func() { done <- b.Send(context.Background(), TaskMotors, ResetAngle{}) }()
	select {
	case <-done:
		t.Fatal("send should block on a full queue")
	case <-time.After(20 * time.Millisecond):
	}
	_, err := b.Endpoint(TaskMotors).Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func TestReceiveTimeout(t *testing.T) {
	b := New(DefaultCapacity)
	ep := b.Endpoint(TaskPeripherals)
	msg, err := ep.ReceiveTimeout(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, msg)

	b.TrySend(TaskPeripherals, NetworkStatus{State: Connected})
	msg, err = ep.ReceiveTimeout(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, NetworkStatus{State: Connected}, msg)
}

func TestWatch(t *testing.T) {
	w := NewWatch(NotConnected)
	v, ver := w.Load()
	require.Equal(t, NotConnected, v)
	require.Equal(t, uint64(0), ver)

	changed := w.Changed()
	w.Publish(Connecting)
	w.Publish(Connected)
	select {
	case <-changed:
	default:
		t.Fatal("changed not signalled")
	}
	v, ver = w.Load()
	require.Equal(t, Connected, v)
	require.Equal(t, uint64(2), ver)
}
