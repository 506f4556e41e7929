package sim

import (
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
)

// DefaultBounds is the arena, in grid units.
var DefaultBounds = Rect{Max: Pos2D{X: 32, Y: 32}}

// DefaultStart is where robots are placed when spawned or reset.
var DefaultStart = Pose2D{Pos2D: Pos2D{X: 23.5, Y: 13}, Orientation: AngleFromRadians(0)}

// PauseMsg stops or resumes the world.
type PauseMsg struct {
	Paused bool
}

// NewMessage implements Message.
func (m *PauseMsg) NewMessage() fx.Message { return &PauseMsg{} }

// ResetMsg places every robot back at the start.
type ResetMsg struct{}

// NewMessage implements Message.
func (m *ResetMsg) NewMessage() fx.Message { return &ResetMsg{} }

// SetPoseMsg teleports a robot.
type SetPoseMsg struct {
	Robot string
	Pose  Pose2D
}

// NewMessage implements Message.
func (m *SetPoseMsg) NewMessage() fx.Message { return &SetPoseMsg{} }

// World moves robot bodies from their wheel speeds. It is kinematic:
// wheels never slip and there is nothing to collide with except the arena
// boundary.
type World struct {
	Bounds Rect

	lock      sync.Mutex
	robots    map[string]*Robot
	removed   []Object
	listeners []ObjectsChangeListener
	paused    bool
	last      time.Time
}

// NewWorld creates an empty world.
func NewWorld(bounds Rect) *World {
	return &World{Bounds: bounds, robots: make(map[string]*Robot)}
}

// Add places a robot in the world, replacing one with the same name.
func (w *World) Add(r *Robot) {
	w.lock.Lock()
	w.robots[r.Name()] = r
	w.lock.Unlock()
}

// Remove takes a robot out of the world.
func (w *World) Remove(name string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if r, ok := w.robots[name]; ok {
		delete(w.robots, name)
		w.removed = append(w.removed, r)
	}
}

// Robot finds a robot by name.
func (w *World) Robot(name string) *Robot {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.robots[name]
}

// Robots returns all robots ordered by name.
func (w *World) Robots() []*Robot {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.sortedRobots()
}

// Paused tells if the world is frozen.
func (w *World) Paused() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.paused
}

func (w *World) sortedRobots() []*Robot {
	robots := make([]*Robot, 0, len(w.robots))
	for _, r := range w.robots {
		robots = append(robots, r)
	}
	sort.Slice(robots, func(i, j int) bool { return robots[i].Name() < robots[j].Name() })
	return robots
}

// Step advances every robot by dt and returns the robots.
func (w *World) Step(dt time.Duration) []Object {
	w.lock.Lock()
	robots, paused := w.sortedRobots(), w.paused
	w.lock.Unlock()
	objs := make([]Object, 0, len(robots))
	for _, r := range robots {
		if !paused && dt > 0 {
			r.move(dt.Seconds(), w.Bounds)
		}
		objs = append(objs, r)
	}
	return objs
}

// SubscribeObjectsChange implements ObjectsChangeSubscriber.
func (w *World) SubscribeObjectsChange(ln ObjectsChangeListener) {
	w.lock.Lock()
	w.listeners = append(w.listeners, ln)
	w.lock.Unlock()
}

// AddToLoop implements LoopAdder.
func (w *World) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, fx.ControlFunc(w.HandleCommand))
	l.AddController(fx.PrLvAcuate, fx.ControlFunc(w.Execute))
}

// HandleCommand is a controller processing world commands.
func (w *World) HandleCommand(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch m := mctx.CurrentMessage().(type) {
		case *PauseMsg:
			mctx.MessageTaken()
			w.lock.Lock()
			w.paused = m.Paused
			w.lock.Unlock()
			glog.Infof("world paused=%v", m.Paused)
		case *ResetMsg:
			mctx.MessageTaken()
			for _, r := range w.Robots() {
				r.SetPose2D(DefaultStart)
			}
			glog.Infof("world reset")
		case *SetPoseMsg:
			mctx.MessageTaken()
			if r := w.Robot(m.Robot); r != nil {
				r.SetPose2D(Pose2D{Pos2D: w.Bounds.Clamp(m.Pose.Pos2D), Orientation: m.Pose.Orientation})
			} else {
				glog.Warningf("set pose: unknown robot %q", m.Robot)
			}
		}
	}))
	return nil
}

// Execute is a controller moving robots and notifying listeners.
func (w *World) Execute(cc fx.ControlContext) error {
	now := cc.Time()
	var dt time.Duration
	if !w.last.IsZero() {
		dt = now.Sub(w.last)
	}
	w.last = now
	objs := w.Step(dt)

	w.lock.Lock()
	removed, listeners := w.removed, w.listeners
	w.removed = nil
	w.lock.Unlock()
	for _, ln := range listeners {
		if len(removed) > 0 {
			ln.ObjectsRemoved(cc, removed...)
		}
		if len(objs) > 0 {
			ln.ObjectsChanged(cc, objs...)
		}
	}
	return nil
}
