package sim

import (
	"sync"

	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/robot"
)

// Robot is the simulated body of one robot. It is shared between the
// behaviors the robot tasks run on and the World moving it.
type Robot struct {
	name names.RobotName
	def  names.Definition

	lock           sync.Mutex
	pose           Pose2D
	wheels         [names.NumWheels]float64
	display        robot.Framebuffer
	displayUpdated bool
	swapped        bool
}

// NewRobot creates the body placed at pose.
func NewRobot(name names.RobotName, pose Pose2D) *Robot {
	return &Robot{name: name, def: name.Definition(), pose: pose}
}

// Name implements Object.
func (r *Robot) Name() string {
	return r.name.String()
}

// RobotName returns the identity of the robot.
func (r *Robot) RobotName() names.RobotName {
	return r.name
}

// Position2D implements Positionable2D.
func (r *Robot) Position2D() Pose2D {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.pose
}

// SetPose2D teleports the robot.
func (r *Robot) SetPose2D(pose Pose2D) {
	r.lock.Lock()
	r.pose = pose
	r.lock.Unlock()
}

// WheelSpeeds returns the current angular speed of each wheel.
func (r *Robot) WheelSpeeds() [names.NumWheels]float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.wheels
}

func (r *Robot) setWheel(motor int, speed float64) {
	r.lock.Lock()
	r.wheels[motor] = speed
	r.lock.Unlock()
}

// TakeDisplay returns the screen content and whether it was flipped since
// the last call.
func (r *Robot) TakeDisplay() (robot.Framebuffer, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	updated := r.displayUpdated
	r.displayUpdated = false
	return r.display, updated
}

// Swapped tells if the robot runs freshly installed firmware.
func (r *Robot) Swapped() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.swapped
}

func (r *Robot) setSwapped(swapped bool) {
	r.lock.Lock()
	r.swapped = swapped
	r.lock.Unlock()
}

// move advances the pose by dt seconds of wheel motion and keeps the
// body inside bounds.
func (r *Robot) move(dt float64, bounds Rect) Pose2D {
	r.lock.Lock()
	defer r.lock.Unlock()
	vx, vy, w := r.def.Drive.Velocity(r.wheels)
	delta := r.pose.Orientation.Rotate(Pos2D{X: vx, Y: vy}).Scale(dt)
	r.pose.Pos2D = bounds.Inset(r.def.Radius).Clamp(r.pose.Pos2D.Add(delta))
	r.pose.Orientation = r.pose.Orientation.AddRadians(w * dt)
	return r.pose
}
