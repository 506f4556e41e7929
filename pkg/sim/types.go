package sim

import (
	fx "github.com/robotalks/robofleet/pkg/framework"
)

// Pos2D defines the position in 2D, in grid units.
type Pos2D struct {
	X, Y float64
}

// Pose2D defines the pose in 2D.
type Pose2D struct {
	Pos2D
	Orientation Angle
}

// Angle is the common representation of angle in radians.
type Angle float64

// Rect is an axis aligned area.
type Rect struct {
	Min, Max Pos2D
}

// Contains tells if p is inside the area.
func (r Rect) Contains(p Pos2D) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Inset shrinks the rect by d on every side.
func (r Rect) Inset(d float64) Rect {
	return Rect{Min: Pos2D{X: r.Min.X + d, Y: r.Min.Y + d}, Max: Pos2D{X: r.Max.X - d, Y: r.Max.Y - d}}
}

// Clamp moves p to the closest point inside the area.
func (r Rect) Clamp(p Pos2D) Pos2D {
	return Pos2D{X: clamp(p.X, r.Min.X, r.Max.X), Y: clamp(p.Y, r.Min.Y, r.Max.Y)}
}

// Positionable2D object maintains a 2D position.
type Positionable2D interface {
	Position2D() Pose2D
}

// Object represents an object in the world.
type Object interface {
	fx.Named
	Positionable2D
}

// ObjectsChangeListener listens for object changes.
type ObjectsChangeListener interface {
	ObjectsChanged(fx.ControlContext, ...Object)
	ObjectsRemoved(fx.ControlContext, ...Object)
}

// ObjectsChangeSubscriber subscribes objects change notifications.
type ObjectsChangeSubscriber interface {
	SubscribeObjectsChange(ObjectsChangeListener)
}

// Add is a helper to add Pos2D.
func (p Pos2D) Add(p1 Pos2D) Pos2D {
	return Pos2D{X: p.X + p1.X, Y: p.Y + p1.Y}
}

// Scale multiplies both coordinates by f.
func (p Pos2D) Scale(f float64) Pos2D {
	return Pos2D{X: p.X * f, Y: p.Y * f}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
