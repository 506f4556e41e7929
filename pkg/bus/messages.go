package bus

import (
	"net"

	fx "github.com/robotalks/robofleet/pkg/framework"
)

// Message is a value passed between tasks.
// Ownership moves to the receiver on send.
type Message interface {
	busMessage()
}

// Command carries a decoded server message to a task.
type Command struct {
	Msg fx.Message
}

// ToServer asks the network task to send Msg to the connected server.
type ToServer struct {
	Msg fx.Message
}

// NetworkState is the association state of the robot.
type NetworkState int

// Network states.
const (
	NotConnected NetworkState = iota
	Connecting
	Connected
	ConnectionFailed
)

func (s NetworkState) String() string {
	switch s {
	case NotConnected:
		return "not connected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectionFailed:
		return "connection failed"
	}
	return "unknown"
}

// NetworkStatus reports association changes.
type NetworkStatus struct {
	State NetworkState
	IP    net.IP
}

// ResetAngle asks the peripherals task to zero the IMU heading.
type ResetAngle struct{}

// Utilization reports the busy ratio of a task.
type Utilization struct {
	Task  Task
	Ratio float32
}

func (Command) busMessage()       {}
func (ToServer) busMessage()      {}
func (NetworkStatus) busMessage() {}
func (ResetAngle) busMessage()    {}
func (Utilization) busMessage()   {}
