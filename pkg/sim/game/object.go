package game

import (
	"encoding/base64"
	"strings"

	"github.com/robotalks/robofleet/pkg/sim"
)

// Object is the data model used to represent an object to clients.
type Object map[string]interface{}

// Pos is a position.
type Pos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Message is one update sent to clients.
type Message struct {
	Action   string `json:"action"`
	Object   Object `json:"object,omitempty"`
	RemoveID string `json:"id,omitempty"`
	Paused   *bool  `json:"paused,omitempty"`
}

// Actions
const (
	ActionReset  = "reset"
	ActionObject = "object"
	ActionRemove = "remove"
	ActionState  = "state"
)

// Properties
const (
	PropID      = "id"
	PropType    = "type"
	PropOrigin  = "origin"
	PropRadius  = "radius"
	PropRotate  = "rotate"
	PropDisplay = "display"
	PropSwapped = "swapped"
)

// ObjectID converts object name to ID.
func ObjectID(name string) string {
	return strings.ToLower(strings.Replace(name, "/", ".", -1))
}

// NewObject creates Object.
func NewObject(typ, id string) Object {
	o := make(Object)
	o[PropID] = id
	o[PropType] = typ
	return o
}

// ObjectFrom constructs an object from a world object.
func ObjectFrom(obj sim.Object) Object {
	po := obj.Position2D()
	o := NewObject("object", ObjectID(obj.Name())).
		At(po.X, po.Y).
		Rotate(po.Orientation.Degrees())
	if r, ok := obj.(*sim.Robot); ok {
		o[PropType] = "robot"
		o.Radius(r.RobotName().Definition().Radius)
		o.With(PropSwapped, r.Swapped())
		if fb, updated := r.TakeDisplay(); updated {
			o.With(PropDisplay, base64.StdEncoding.EncodeToString(fb.Bytes()))
		}
	}
	return o
}

// At sets origin.
func (o Object) At(x, y float64) Object {
	o[PropOrigin] = &Pos{X: x, Y: y}
	return o
}

// Radius sets radius.
func (o Object) Radius(r float64) Object {
	o[PropRadius] = r
	return o
}

// Rotate sets rotate.
func (o Object) Rotate(deg float64) Object {
	o[PropRotate] = deg
	return o
}

// With sets a custom property.
func (o Object) With(key string, val interface{}) Object {
	o[key] = val
	return o
}
