package fleet

import (
	"os"
	"sort"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/ota"
	"github.com/robotalks/robofleet/pkg/wire"
)

// DefaultStatusInterval is the longest time between two status reports of
// an unchanged robot.
const DefaultStatusInterval = time.Second

// Sender writes frames to a robot.
type Sender interface {
	Send(payloads ...wire.Payload) error
}

// StatusPublisher reports robot status to operators.
type StatusPublisher interface {
	PublishStatus(*msgs.RobotStatus) error
}

// FirmwareFile loads the firmware image from path each time it's fetched.
func FirmwareFile(path string) ota.BinarySource {
	return func() ([]byte, error) {
		return os.ReadFile(path)
	}
}

// Server is the coordinator: it owns the update state of each robot,
// forwards operator commands and reports status.
type Server struct {
	Publisher      StatusPublisher
	StatusInterval time.Duration

	robots map[names.RobotName]*robotState
	order  []names.RobotName
}

type robotState struct {
	name      names.RobotName
	link      Sender
	ota       *ota.Machine
	connected bool
	sensors   *msgs.Sensors
	changed   bool
	reported  time.Time
}

// NewServer creates a Server.
func NewServer(pub StatusPublisher) *Server {
	return &Server{
		Publisher:      pub,
		StatusInterval: DefaultStatusInterval,
		robots:         make(map[names.RobotName]*robotState),
	}
}

// AddRobot registers a robot with its link and update machine.
// A link which is also a Runnable is run by the loop.
func (s *Server) AddRobot(name names.RobotName, link Sender, machine *ota.Machine) *Server {
	if _, exist := s.robots[name]; !exist {
		s.order = append(s.order, name)
		sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	}
	s.robots[name] = &robotState{name: name, link: link, ota: machine, changed: true}
	return s
}

// Machine returns the update machine of a robot.
func (s *Server) Machine(name names.RobotName) *ota.Machine {
	if st := s.robots[name]; st != nil {
		return st.ota
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(l *fx.Loop) {
	for _, name := range s.order {
		if r, ok := s.robots[name].link.(fx.Runnable); ok {
			l.AddRunnable(r)
		}
	}
	l.AddController(fx.PrLvControl, fx.ControlFunc(s.handleMessages))
	l.AddController(fx.PrLvPostProc, fx.ControlFunc(s.update))
}

func (s *Server) handleMessages(cc fx.ControlContext) error {
	now := cc.Time()
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mpc fx.MessageProcessingContext) {
		if s.handle(now, mpc.CurrentMessage()) {
			mpc.MessageTaken()
		}
	}))
	return nil
}

func (s *Server) update(cc fx.ControlContext) error {
	s.tick(cc.Time())
	return nil
}

// handle processes one message and tells if it was consumed.
func (s *Server) handle(now time.Time, msg fx.Message) bool {
	switch m := msg.(type) {
	case *LinkState:
		if st := s.robots[m.Robot]; st != nil {
			st.connected, st.changed = m.Connected, true
		}
	case *RobotMessage:
		if st := s.robots[m.Robot]; st != nil {
			s.handleRobot(now, st, m.Msg)
		}
	case *msgs.OperatorCommand:
		s.handleCommand(now, m)
	default:
		return false
	}
	return true
}

func (s *Server) handleRobot(now time.Time, st *robotState, msg fx.Message) {
	switch m := msg.(type) {
	case *msgs.FirmwareReply:
		s.send(st, st.ota.HandleReply(now, m))
		st.changed = true
	case *msgs.Sensors:
		st.sensors = m
	case *msgs.RobotIdentity:
		glog.Infof("%s identified", st.name)
	default:
		glog.V(4).Infof("%s: %T", st.name, msg)
	}
}

func (s *Server) handleCommand(now time.Time, cmd *msgs.OperatorCommand) {
	name, err := names.Parse(cmd.Robot)
	if err != nil {
		glog.Warningf("operator command: %v", err)
		return
	}
	st := s.robots[name]
	if st == nil {
		glog.Warningf("operator command for unmanaged robot %s", name)
		return
	}
	switch cmd.Op {
	case msgs.OperatorOpStartOta:
		glog.Infof("%s firmware update requested", name)
		s.send(st, st.ota.Start(now))
	case msgs.OperatorOpConfirmOta:
		out, err := st.ota.Confirm(now)
		if err != nil {
			glog.Warningf("%s confirm: %v", name, err)
			return
		}
		s.send(st, out)
	case msgs.OperatorOpCancelOta:
		glog.Infof("%s firmware update cancelled", name)
		s.send(st, st.ota.Cancel(now))
	case msgs.OperatorOpClearOtaHistory:
		st.ota.ClearHistory()
	case msgs.OperatorOpVelocity:
		if cmd.Velocity == nil {
			return
		}
		if err := st.link.Send(wire.Typed(cmd.Velocity)); err != nil {
			glog.V(2).Infof("%s velocity: %v", name, err)
		}
		return
	default:
		glog.Warningf("%s unknown operator op %d", name, cmd.Op)
		return
	}
	st.changed = true
}

// tick advances every update and reports status.
func (s *Server) tick(now time.Time) {
	for _, name := range s.order {
		st := s.robots[name]
		if out := st.ota.Tick(now); len(out) > 0 {
			s.send(st, out)
			st.changed = true
		}
		if st.ota.InProgress() {
			st.changed = true
		}
		if !st.changed && now.Sub(st.reported) < s.statusInterval() {
			continue
		}
		st.changed, st.reported = false, now
		if s.Publisher == nil {
			continue
		}
		if err := s.Publisher.PublishStatus(s.status(now, st)); err != nil {
			glog.Errorf("publish %s status: %v", name, err)
		}
	}
}

// send writes each request followed by its raw part. A failed write is
// retried by the machine.
func (s *Server) send(st *robotState, out []ota.Outgoing) {
	for _, o := range out {
		payloads := []wire.Payload{wire.Typed(o.Msg)}
		if o.Raw != nil {
			payloads = append(payloads, wire.Raw(o.Raw))
		}
		if err := st.link.Send(payloads...); err != nil {
			glog.V(2).Infof("%s send %T: %v", st.name, o.Msg, err)
			return
		}
	}
}

func (s *Server) status(now time.Time, st *robotState) *msgs.RobotStatus {
	update := st.ota.Status(now)
	status := &msgs.RobotStatus{
		Robot:      st.name.String(),
		Connected:  st.connected,
		OtaCurrent: stepRecord(update.Current),
		Sensors:    st.sensors,
	}
	for _, rec := range update.History {
		status.OtaHistory = append(status.OtaHistory, stepRecord(rec))
	}
	return status
}

func (s *Server) statusInterval() time.Duration {
	if s.StatusInterval > 0 {
		return s.StatusInterval
	}
	return DefaultStatusInterval
}

func stepRecord(rec ota.Record) *msgs.OtaStepRecord {
	return &msgs.OtaStepRecord{
		Step:      uint32(rec.Step),
		Name:      rec.Step.String(),
		Received:  uint32(rec.Progress.Received),
		Total:     uint32(rec.Progress.Total),
		Outcome:   uint32(rec.Outcome),
		ElapsedMs: uint64(rec.Elapsed / time.Millisecond),
	}
}
