//go:build linux

package host

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/robot"
)

// Network defaults.
const (
	DefaultInterface   = "wlan0"
	DefaultJoinTimeout = 10 * time.Second
	addressPollPeriod  = 200 * time.Millisecond
)

// netlinkAPI is the part of netlink used by Network; extracted for tests.
type netlinkAPI interface {
	LinkByName(string) (netlink.Link, error)
	AddrList(netlink.Link, int) ([]netlink.Addr, error)
	LinkSetUp(netlink.Link) error
	LinkSetDown(netlink.Link) error
}

type defaultNetlink struct{}

func (defaultNetlink) LinkByName(name string) (netlink.Link, error) { return netlink.LinkByName(name) }
func (defaultNetlink) AddrList(l netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(l, family)
}
func (defaultNetlink) LinkSetUp(l netlink.Link) error   { return netlink.LinkSetUp(l) }
func (defaultNetlink) LinkSetDown(l netlink.Link) error { return netlink.LinkSetDown(l) }

// Network implements robot.Network on a Linux network interface.
// Association with the access point is left to the system; joining brings
// the interface up and waits for an address.
type Network struct {
	*FirmwareStore

	Interface   string
	JoinTimeout time.Duration
	// HardwareAddr overrides the address of the interface.
	HardwareAddr net.HardwareAddr

	nl       netlinkAPI
	lock     sync.Mutex
	listener net.Listener
}

// NewNetwork creates the behavior on iface keeping firmware in store.
func NewNetwork(iface string, store *FirmwareStore) *Network {
	if iface == "" {
		iface = DefaultInterface
	}
	return &Network{
		FirmwareStore: store,
		Interface:     iface,
		JoinTimeout:   DefaultJoinTimeout,
		nl:            defaultNetlink{},
	}
}

// RebootSystem syncs file systems and restarts the board.
func RebootSystem() error {
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

func (n *Network) link() (netlink.Link, error) {
	link, err := n.nl.LinkByName(n.Interface)
	if err != nil {
		return nil, fmt.Errorf("lookup link %s: %w", n.Interface, err)
	}
	return link, nil
}

// MAC implements robot.Network.
func (n *Network) MAC(context.Context) (mac [6]byte, err error) {
	addr := n.HardwareAddr
	if len(addr) == 0 {
		link, err := n.link()
		if err != nil {
			return mac, err
		}
		addr = link.Attrs().HardwareAddr
	}
	if len(addr) != len(mac) {
		return mac, fmt.Errorf("unexpected hardware address %s", addr)
	}
	copy(mac[:], addr)
	return mac, nil
}

// Address implements robot.Network.
func (n *Network) Address(context.Context) (net.IP, error) {
	link, err := n.link()
	if err != nil {
		return nil, err
	}
	if link.Attrs().Flags&net.FlagUp == 0 {
		return nil, nil
	}
	addrs, err := n.nl.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if addr.IPNet != nil && addr.IP.To4() != nil {
			return addr.IP, nil
		}
	}
	return nil, nil
}

// Scan implements robot.Network. Scanning is not available through
// netlink, so only the network the interface is on is reported.
func (n *Network) Scan(ctx context.Context, max int) ([]robot.AccessPoint, error) {
	ip, err := n.Address(ctx)
	if err != nil || ip == nil || max < 1 {
		return nil, err
	}
	return []robot.AccessPoint{{SSID: n.Interface}}, nil
}

// Join implements robot.Network.
func (n *Network) Join(ctx context.Context, ssid, password string) error {
	link, err := n.link()
	if err != nil {
		return err
	}
	if err := n.nl.LinkSetUp(link); err != nil {
		return fmt.Errorf("link set up: %w", err)
	}
	timeout := n.JoinTimeout
	if timeout <= 0 {
		timeout = DefaultJoinTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(addressPollPeriod)
	defer ticker.Stop()
	for {
		ip, err := n.Address(ctx)
		if err != nil {
			return err
		}
		if ip != nil {
			glog.Infof("%s joined %s as %s", n.Interface, ssid, ip)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no address on %s: %w", n.Interface, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Leave implements robot.Network.
func (n *Network) Leave(context.Context) error {
	n.Close()
	link, err := n.link()
	if err != nil {
		return err
	}
	return n.nl.LinkSetDown(link)
}

// Accept implements robot.Network.
func (n *Network) Accept(ctx context.Context, port uint16) (io.ReadWriteCloser, error) {
	n.lock.Lock()
	if n.listener == nil {
		l, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(int(port))))
		if err != nil {
			n.lock.Unlock()
			return nil, err
		}
		n.listener = l
	}
	l := n.listener
	n.lock.Unlock()

	var conn net.Conn
	err := fx.RunWithContextCancel(ctx, func() { n.Close() }, func() (err error) {
		conn, err = l.Accept()
		return
	})
	if err != nil {
		n.Close()
		return nil, err
	}
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
