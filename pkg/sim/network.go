package sim

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/robot"
)

// DefaultHost is where simulated robots accept connections.
const DefaultHost = "127.0.0.1"

// Errors
var (
	ErrNotAssociated = errors.New("not associated")
	ErrJoinRefused   = errors.New("association refused")
)

// Network implements robot.Network on the local host. Firmware is
// written into memory.
type Network struct {
	Robot *Robot
	Host  string
	// FailJoin makes every association attempt fail.
	FailJoin bool
	// OnReboot is invoked when the robot asks to reboot, with whether the
	// new image should be running after the boot.
	OnReboot func(swapped bool)

	lock     sync.Mutex
	ip       net.IP
	listener net.Listener
	image    []byte
	updated  bool
	booted   bool
}

// NewNetwork creates the network behavior of r.
func NewNetwork(r *Robot) *Network {
	return &Network{Robot: r, Host: DefaultHost}
}

// MAC implements robot.Network.
func (n *Network) MAC(context.Context) ([6]byte, error) {
	return n.Robot.RobotName().MAC(), nil
}

// Address implements robot.Network.
func (n *Network) Address(context.Context) (net.IP, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.ip, nil
}

// Scan implements robot.Network.
func (n *Network) Scan(ctx context.Context, max int) ([]robot.AccessPoint, error) {
	if max < 1 {
		return nil, nil
	}
	return []robot.AccessPoint{{SSID: robot.DefaultSSID}}, nil
}

// Join implements robot.Network.
func (n *Network) Join(ctx context.Context, ssid, password string) error {
	if n.FailJoin {
		return ErrJoinRefused
	}
	n.lock.Lock()
	n.ip = net.ParseIP(n.host())
	n.lock.Unlock()
	return nil
}

// Leave implements robot.Network.
func (n *Network) Leave(context.Context) error {
	n.lock.Lock()
	n.ip = nil
	n.lock.Unlock()
	return n.Close()
}

// Accept implements robot.Network.
func (n *Network) Accept(ctx context.Context, port uint16) (io.ReadWriteCloser, error) {
	l, err := n.listen(port)
	if err != nil {
		return nil, err
	}
	var conn net.Conn
	err = fx.RunWithContextCancel(ctx, func() { n.Close() }, func() (err error) {
		conn, err = l.Accept()
		return
	})
	if err != nil {
		n.Close()
		return nil, err
	}
	glog.V(2).Infof("%s: client connected from %s", n.Robot.Name(), conn.RemoteAddr())
	return conn, nil
}

// Close releases the listener.
func (n *Network) Close() error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.listener == nil {
		return nil
	}
	err := n.listener.Close()
	n.listener = nil
	return err
}

// ListenAddr returns the address connections are accepted on, nil when not
// listening.
func (n *Network) ListenAddr() net.Addr {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.listener == nil {
		return nil
	}
	return n.listener.Addr()
}

func (n *Network) host() string {
	if n.Host == "" {
		return DefaultHost
	}
	return n.Host
}

func (n *Network) listen(port uint16) (net.Listener, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.ip == nil {
		return nil, ErrNotAssociated
	}
	if n.listener != nil {
		return n.listener, nil
	}
	l, err := net.Listen("tcp", net.JoinHostPort(n.host(), strconv.Itoa(int(port))))
	if err != nil {
		return nil, err
	}
	n.listener = l
	return l, nil
}

// PrepareUpdate implements robot.Firmware.
func (n *Network) PrepareUpdate(context.Context) error {
	n.lock.Lock()
	n.image, n.updated = nil, false
	n.lock.Unlock()
	return nil
}

// WriteFirmware implements robot.Firmware.
func (n *Network) WriteFirmware(ctx context.Context, offset int, data []byte) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	if offset < 0 || offset > len(n.image) {
		return fmt.Errorf("write at %d beyond image of %d bytes", offset, len(n.image))
	}
	if end := offset + len(data); end > len(n.image) {
		n.image = append(n.image, make([]byte, end-len(n.image))...)
	}
	copy(n.image[offset:], data)
	return nil
}

// FirmwareHash implements robot.Firmware.
func (n *Network) FirmwareHash(ctx context.Context, length int) ([32]byte, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if length < 0 || length > len(n.image) {
		return [32]byte{}, fmt.Errorf("hash of %d bytes beyond image of %d bytes", length, len(n.image))
	}
	return sha256.Sum256(n.image[:length]), nil
}

// MarkUpdated implements robot.Firmware.
func (n *Network) MarkUpdated(context.Context) error {
	n.lock.Lock()
	n.updated = true
	n.lock.Unlock()
	return nil
}

// IsSwapped implements robot.Firmware.
func (n *Network) IsSwapped(context.Context) (bool, error) {
	return n.Robot.Swapped(), nil
}

// MarkBooted implements robot.Firmware.
func (n *Network) MarkBooted(context.Context) error {
	n.lock.Lock()
	n.booted = true
	n.lock.Unlock()
	return nil
}

// CancelUpdate implements robot.Firmware.
func (n *Network) CancelUpdate(context.Context) error {
	n.lock.Lock()
	n.image, n.updated = nil, false
	n.lock.Unlock()
	return nil
}

// Reboot implements robot.Firmware.
func (n *Network) Reboot(context.Context) error {
	n.lock.Lock()
	swapped := n.updated
	n.updated = false
	n.lock.Unlock()
	glog.Infof("%s: rebooting, swapped=%v", n.Robot.Name(), swapped)
	if n.OnReboot != nil {
		n.OnReboot(swapped)
	} else {
		n.Robot.setSwapped(swapped)
	}
	return nil
}

// Booted tells if the running firmware was confirmed.
func (n *Network) Booted() bool {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.booted
}
