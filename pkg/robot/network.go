package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robofleet/pkg/bus"
	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/wire"
)

// Network task defaults.
const (
	DefaultSSID             = "MdrcPacbot"
	DefaultDropAfter        = time.Second
	DefaultAcceptRetryDelay = 100 * time.Millisecond
)

// ErrUnknownRobot indicates the link-layer address matches no robot.
var ErrUnknownRobot = errors.New("unrecognized mac address")

// Resolve finds the robot name from the link-layer address.
func Resolve(ctx context.Context, network Network) (names.RobotName, error) {
	mac, err := network.MAC(ctx)
	if err != nil {
		return 0, err
	}
	name, ok := names.FromMAC(mac)
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrUnknownRobot, net.HardwareAddr(mac[:]))
	}
	return name, nil
}

// NetworkTask joins the access point, accepts the coordinator connection
// and relays messages between it and the other tasks.
type NetworkTask struct {
	Network  Network
	Bus      *bus.Bus
	Status   *bus.Watch[bus.NetworkStatus]
	SSID     string
	Password string
	// Port overrides the listening port of the robot when non-zero.
	Port uint16
	// DropAfter is how long writes may keep failing before the connection
	// is abandoned.
	DropAfter        time.Duration
	AcceptRetryDelay time.Duration

	utilization [bus.NumTasks]float32
}

// NewNetworkTask creates a NetworkTask with defaults.
func NewNetworkTask(network Network, b *bus.Bus) *NetworkTask {
	return &NetworkTask{
		Network:          network,
		Bus:              b,
		Status:           bus.NewWatch(bus.NetworkStatus{}),
		SSID:             DefaultSSID,
		DropAfter:        DefaultDropAfter,
		AcceptRetryDelay: DefaultAcceptRetryDelay,
	}
}

// Name implements Named.
func (t *NetworkTask) Name() string {
	return bus.TaskWifi.String()
}

// Run implements Runnable. It returns when joining fails, leaving the
// retry to a supervisor.
func (t *NetworkTask) Run(ctx context.Context) error {
	name, err := Resolve(ctx, t.Network)
	if err != nil {
		return err
	}
	glog.Infof("%s initialized", name)
	for {
		if err := t.associate(ctx, name); err != nil {
			return err
		}
		port := t.Port
		if port == 0 {
			port = name.Port()
		}
		conn, err := t.Network.Accept(ctx, port)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			glog.Warningf("%s accept failed: %v", name, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.acceptRetryDelay()):
			}
			continue
		}
		glog.Infof("%s client connected", name)
		err = t.serve(ctx, name, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		glog.Infof("%s client disconnected: %v", name, err)
	}
}

func (t *NetworkTask) acceptRetryDelay() time.Duration {
	if t.AcceptRetryDelay > 0 {
		return t.AcceptRetryDelay
	}
	return DefaultAcceptRetryDelay
}

func (t *NetworkTask) associate(ctx context.Context, name names.RobotName) error {
	ip, err := t.Network.Address(ctx)
	if err != nil {
		return err
	}
	if ip != nil {
		return nil
	}
	if err := t.setStatus(ctx, bus.Connecting, nil); err != nil {
		return err
	}
	if err := t.Network.Join(ctx, t.SSID, t.Password); err != nil {
		t.setStatus(ctx, bus.ConnectionFailed, nil)
		return fmt.Errorf("join %s: %w", t.SSID, err)
	}
	if ip, err = t.Network.Address(ctx); err != nil {
		return err
	}
	glog.Infof("%s network connected: %s", name, ip)
	return t.setStatus(ctx, bus.Connected, ip)
}

func (t *NetworkTask) setStatus(ctx context.Context, state bus.NetworkState, ip net.IP) error {
	st := bus.NetworkStatus{State: state, IP: ip}
	t.Status.Publish(st)
	return t.Bus.Send(ctx, bus.TaskPeripherals, st)
}

type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// session is one accepted connection.
type session struct {
	task      *NetworkTask
	name      names.RobotName
	writer    *wire.Writer
	deadliner writeDeadliner
	timeout   time.Duration

	lock        sync.Mutex
	failedSince time.Time

	// pendingPart is the WritePart request waiting for its raw frame.
	pendingPart *msgs.FirmwareRequest
}

func (t *NetworkTask) serve(ctx context.Context, name names.RobotName, conn io.ReadWriteCloser) error {
	dropAfter := t.DropAfter
	if dropAfter <= 0 {
		dropAfter = DefaultDropAfter
	}
	s := &session{task: t, name: name, writer: wire.NewWriter(conn), timeout: dropAfter}
	s.deadliner, _ = conn.(writeDeadliner)
	ep := t.Bus.Endpoint(bus.TaskWifi)
	t.discardBacklog(name, ep)
	if err := s.send(&msgs.RobotIdentity{Name: name.String()}); err != nil {
		return fmt.Errorf("send name: %w", err)
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	readErrCh := make(chan error, 1)
	go func() {
		readErrCh <- s.readLoop(connCtx, conn)
	}()

	monitor := NewUtilizationMonitor()
	check := time.NewTicker(dropAfter / 4)
	defer check.Stop()
	for {
		monitor.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrCh:
			return err
		case msg := <-ep.Chan():
			monitor.Start()
			s.relay(msg, monitor)
		case <-check.C:
			monitor.Start()
		}
		if s.failedFor(time.Now()) >= dropAfter {
			return errors.New("dropping socket due to extended downtime")
		}
	}
}

// discardBacklog drops what queued up for the server while no client
// was connected. Utilization ratios are kept.
func (t *NetworkTask) discardBacklog(name names.RobotName, ep *bus.Endpoint) {
	dropped := 0
	for {
		select {
		case msg := <-ep.Chan():
			if u, ok := msg.(bus.Utilization); ok {
				t.utilization[u.Task] = u.Ratio
				continue
			}
			dropped++
		default:
			if dropped > 0 {
				glog.V(1).Infof("%s discarded %d stale messages", name, dropped)
			}
			return
		}
	}
}

func (s *session) relay(msg bus.Message, monitor *UtilizationMonitor) {
	switch m := msg.(type) {
	case bus.ToServer:
		s.send(m.Msg)
	case bus.Utilization:
		s.task.utilization[m.Task] = m.Ratio
		s.task.utilization[bus.TaskWifi] = monitor.Utilization()
		s.send(&msgs.Utilization{Task: uint32(m.Task), Ratio: m.Ratio})
		s.send(&msgs.Utilization{Task: uint32(bus.TaskWifi), Ratio: s.task.utilization[bus.TaskWifi]})
	default:
		glog.V(2).Infof("%s network task ignored %T", s.name, msg)
	}
}

func (s *session) readLoop(ctx context.Context, conn io.Reader) error {
	r := wire.NewReader(wire.DefaultCapacity)
	for {
		f, err := r.ReadFrame(conn)
		if err != nil {
			var decErr *wire.DecodeError
			if errors.As(err, &decErr) {
				glog.Errorf("%s dropped message: %v", s.name, err)
				continue
			}
			return err
		}
		glog.V(4).Infof("%s received frame %d", s.name, f.Seq)
		if f.Payload.Kind == wire.KindRaw {
			s.handleRaw(ctx, f.Payload.Raw)
			continue
		}
		if err := s.dispatch(ctx, f.Payload.Msg); err != nil {
			return err
		}
	}
}

func (s *session) dispatch(ctx context.Context, msg fx.Message) error {
	b := s.task.Bus
	switch m := msg.(type) {
	case *msgs.Ping:
		s.send(&msgs.Pong{})
	case *msgs.TargetVelocity:
		b.TrySend(bus.TaskMotors, bus.Command{Msg: m})
		b.TrySend(bus.TaskPeripherals, bus.Command{Msg: m})
	case *msgs.MotorsOverride, *msgs.PwmOverride, *msgs.MotorConfig, *msgs.PidSettings:
		if !b.TrySend(bus.TaskMotors, bus.Command{Msg: m}) {
			glog.Warningf("%s motors queue full, dropped %T", s.name, m)
		}
	case *msgs.ResetAngle:
		return b.Send(ctx, bus.TaskPeripherals, bus.ResetAngle{})
	case *msgs.FirmwareRequest:
		s.handleFirmware(ctx, m)
	default:
		glog.Warningf("%s unexpected message %T", s.name, msg)
	}
	return nil
}

func (s *session) handleFirmware(ctx context.Context, req *msgs.FirmwareRequest) {
	fw := s.task.Network
	reply := &msgs.FirmwareReply{Op: req.Op, Offset: req.Offset, Length: req.Length}
	var err error
	switch req.Op {
	case msgs.FirmwareOpReady:
		err = fw.PrepareUpdate(ctx)
	case msgs.FirmwareOpWritePart:
		s.pendingPart = req
		return
	case msgs.FirmwareOpHash:
		var hash [32]byte
		if hash, err = fw.FirmwareHash(ctx, int(req.Length)); err == nil {
			reply.Hash = hash[:]
		}
	case msgs.FirmwareOpMarkUpdated:
		err = fw.MarkUpdated(ctx)
	case msgs.FirmwareOpIsSwapped:
		reply.Swapped, err = fw.IsSwapped(ctx)
	case msgs.FirmwareOpReboot:
		s.send(reply)
		glog.Infof("%s rebooting", s.name)
		if err := fw.Reboot(ctx); err != nil {
			glog.Errorf("%s reboot failed: %v", s.name, err)
		}
		return
	case msgs.FirmwareOpMarkBooted:
		err = fw.MarkBooted(ctx)
	case msgs.FirmwareOpCancel:
		s.pendingPart = nil
		err = fw.CancelUpdate(ctx)
	default:
		err = fmt.Errorf("unsupported firmware op %s", req.Op)
	}
	if err != nil {
		glog.Errorf("%s firmware %s: %v", s.name, req.Op, err)
		reply.Error = err.Error()
	}
	s.send(reply)
}

func (s *session) handleRaw(ctx context.Context, data []byte) {
	req := s.pendingPart
	if req == nil {
		glog.V(2).Infof("%s ignored %d raw bytes", s.name, len(data))
		return
	}
	s.pendingPart = nil
	reply := &msgs.FirmwareReply{Op: msgs.FirmwareOpWritePart, Offset: req.Offset, Length: uint32(len(data))}
	var err error
	if len(data) != int(req.Length) {
		err = fmt.Errorf("part at %d has %d bytes, expected %d", req.Offset, len(data), req.Length)
	} else {
		err = s.task.Network.WriteFirmware(ctx, int(req.Offset), data)
	}
	if err != nil {
		glog.Errorf("%s write firmware: %v", s.name, err)
		reply.Error = err.Error()
	}
	s.send(reply)
}

func (s *session) send(msg fx.Message) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.deadliner != nil {
		s.deadliner.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	err := s.writer.WriteMsg(msg)
	if err != nil {
		var encErr *wire.EncodeError
		if errors.As(err, &encErr) || errors.Is(err, wire.ErrInsufficientSpace) {
			glog.Errorf("%s failed to encode %T: %v", s.name, msg, err)
			return err
		}
		if s.failedSince.IsZero() {
			s.failedSince = time.Now()
		}
		glog.V(2).Infof("%s failed to send %T: %v", s.name, msg, err)
		return err
	}
	s.failedSince = time.Time{}
	return nil
}

func (s *session) failedFor(now time.Time) time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.failedSince.IsZero() {
		return 0
	}
	return now.Sub(s.failedSince)
}
