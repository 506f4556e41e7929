package robot

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/wire"
)

type fakeNetwork struct {
	mac     [6]byte
	joinErr error

	lock     sync.Mutex
	ip       net.IP
	joins    int
	conns    chan io.ReadWriteCloser
	image    []byte
	swapped  bool
	rebooted int
	ops      []string
}

func newFakeNetwork(name names.RobotName) *fakeNetwork {
	return &fakeNetwork{mac: name.MAC(), conns: make(chan io.ReadWriteCloser, 4)}
}

func (n *fakeNetwork) record(op string) {
	n.lock.Lock()
	n.ops = append(n.ops, op)
	n.lock.Unlock()
}

func (n *fakeNetwork) joinCount() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.joins
}

func (n *fakeNetwork) MAC(context.Context) ([6]byte, error) { return n.mac, nil }

func (n *fakeNetwork) Address(context.Context) (net.IP, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.ip, nil
}

func (n *fakeNetwork) Scan(context.Context, int) ([]AccessPoint, error) {
	return []AccessPoint{{SSID: DefaultSSID}}, nil
}

func (n *fakeNetwork) Join(ctx context.Context, ssid, password string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.joins++
	if n.joinErr != nil {
		return n.joinErr
	}
	n.ip = net.IPv4(127, 0, 0, 1)
	return nil
}

func (n *fakeNetwork) Leave(context.Context) error {
	n.lock.Lock()
	n.ip = nil
	n.lock.Unlock()
	return nil
}

func (n *fakeNetwork) Accept(ctx context.Context, port uint16) (io.ReadWriteCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case conn := <-n.conns:
		return conn, nil
	}
}

func (n *fakeNetwork) PrepareUpdate(context.Context) error {
	n.record("prepare")
	n.lock.Lock()
	n.image = nil
	n.lock.Unlock()
	return nil
}

func (n *fakeNetwork) WriteFirmware(ctx context.Context, offset int, data []byte) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if offset != len(n.image) {
		return errors.New("out of order write")
	}
	n.image = append(n.image, data...)
	return nil
}

func (n *fakeNetwork) FirmwareHash(ctx context.Context, length int) ([32]byte, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if length > len(n.image) {
		return [32]byte{}, errors.New("hash beyond image")
	}
	return sha256.Sum256(n.image[:length]), nil
}

func (n *fakeNetwork) MarkUpdated(context.Context) error {
	n.record("updated")
	return nil
}

func (n *fakeNetwork) IsSwapped(context.Context) (bool, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.swapped, nil
}

func (n *fakeNetwork) MarkBooted(context.Context) error {
	n.record("booted")
	return nil
}

func (n *fakeNetwork) CancelUpdate(context.Context) error {
	n.record("cancel")
	return nil
}

func (n *fakeNetwork) Reboot(context.Context) error {
	n.lock.Lock()
	n.rebooted++
	n.swapped = true
	n.lock.Unlock()
	return nil
}

// connect hands a new connection to Accept and returns the client side.
func (n *fakeNetwork) connect(t *testing.T) *testClient {
	server, client := net.Pipe()
	n.conns <- server
	c := &testClient{t: t, conn: client, w: wire.NewWriter(client), r: wire.NewReader(wire.DefaultCapacity)}
	t.Cleanup(func() { client.Close() })
	return c
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	w    *wire.Writer
	r    *wire.Reader
}

func (c *testClient) send(msg fx.Message) {
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	require.NoError(c.t, c.w.WriteMsg(msg))
}

func (c *testClient) sendRaw(data []byte) {
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	require.NoError(c.t, c.w.WriteFrame(wire.Raw(data)))
}

func (c *testClient) next() fx.Message {
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := c.r.ReadFrame(c.conn)
	require.NoError(c.t, err)
	require.Equal(c.t, wire.KindTyped, f.Payload.Kind)
	return f.Payload.Msg
}

// expect skips messages until one of type T arrives.
func expect[T fx.Message](c *testClient) T {
	for i := 0; i < 100; i++ {
		if m, ok := c.next().(T); ok {
			return m
		}
	}
	var zero T
	require.FailNowf(c.t, "message not received", "%T", zero)
	return zero
}

type fakeMotors struct {
	closedLoop bool
	speedErr   error

	lock     sync.Mutex
	pwm      [2 * names.NumWheels]uint16
	speeds   [names.NumWheels]float64
	measured [names.NumWheels]float64
}

func (m *fakeMotors) WantsSelfClosedLoop() bool { return m.closedLoop }

func (m *fakeMotors) SetActuatorSpeed(ctx context.Context, motor int, speed float64) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.speedErr != nil {
		return m.speedErr
	}
	m.speeds[motor] = speed
	return nil
}

func (m *fakeMotors) SetPwm(ctx context.Context, pin int, duty uint16) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.pwm[pin] = duty
	return nil
}

func (m *fakeMotors) MotorSpeed(ctx context.Context, motor int) (float64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.measured[motor], nil
}

func (m *fakeMotors) pins() [2 * names.NumWheels]uint16 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.pwm
}

type fakeSensor struct {
	name    string
	slot    Slot
	initErr []error
	pollErr error
	value   float64

	inits int
	polls int
}

func (s *fakeSensor) Name() string { return s.name }
func (s *fakeSensor) Slot() Slot   { return s.slot }

func (s *fakeSensor) Initialize(context.Context) error {
	s.inits++
	if len(s.initErr) > 0 {
		err := s.initErr[0]
		s.initErr = s.initErr[1:]
		return err
	}
	return nil
}

func (s *fakeSensor) Poll(context.Context) (float64, error) {
	s.polls++
	if s.pollErr != nil {
		return 0, s.pollErr
	}
	return s.value, nil
}

type fakePeripherals struct {
	sensors []Sensor
	fb      Framebuffer
	flips   int
}

func (p *fakePeripherals) Draw(fn func(*Framebuffer)) error {
	fn(&p.fb)
	return nil
}

func (p *fakePeripherals) Flip(context.Context) error {
	p.flips++
	return nil
}

func (p *fakePeripherals) Sensors() []Sensor { return p.sensors }
