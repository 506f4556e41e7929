// Package names resolves robot identities.
package names

import (
	"fmt"
	"net"
	"strings"
)

// RobotName identifies one robot of the fleet.
type RobotName int

// Known robots.
const (
	Pierre RobotName = iota
	Prince
	Stella
	Stevie
	Speers

	numNames
)

type nameInfo struct {
	name      string
	mac       [6]byte
	port      uint16
	defaultIP net.IP
}

var roster = [numNames]nameInfo{
	Pierre: {name: "Pierre", mac: [6]byte{0x28, 0xcd, 0xc1, 0x0f, 0x82, 0x87}, port: 20020, defaultIP: net.IPv4(192, 168, 0, 1)},
	Prince: {name: "Prince", mac: [6]byte{0x28, 0xcd, 0xc1, 0x0f, 0x82, 0x88}, port: 20020, defaultIP: net.IPv4(192, 168, 0, 2)},
	Stella: {name: "Stella", mac: [6]byte{0x02, 0, 0, 0, 0, 0x01}, port: 20022, defaultIP: net.IPv4(127, 0, 0, 1)},
	Stevie: {name: "Stevie", mac: [6]byte{0x02, 0, 0, 0, 0, 0x02}, port: 20024, defaultIP: net.IPv4(127, 0, 0, 1)},
	Speers: {name: "Speers", mac: [6]byte{0x02, 0, 0, 0, 0, 0x03}, port: 20026, defaultIP: net.IPv4(127, 0, 0, 1)},
}

// All returns every known robot.
func All() []RobotName {
	all := make([]RobotName, numNames)
	for n := range all {
		all[n] = RobotName(n)
	}
	return all
}

// Simulated returns the robots which only exist in simulation.
func Simulated() []RobotName {
	var names []RobotName
	for _, name := range All() {
		if name.IsSimulated() {
			names = append(names, name)
		}
	}
	return names
}

// IsValid tells if n is a known robot.
func (n RobotName) IsValid() bool {
	return n >= 0 && n < numNames
}

func (n RobotName) String() string {
	if !n.IsValid() {
		return fmt.Sprintf("RobotName(%d)", int(n))
	}
	return roster[n].name
}

// MAC returns the link-layer address of the robot.
func (n RobotName) MAC() [6]byte {
	return roster[n].mac
}

// HardwareAddr returns MAC as net.HardwareAddr.
func (n RobotName) HardwareAddr() net.HardwareAddr {
	mac := roster[n].mac
	return net.HardwareAddr(mac[:])
}

// Port returns the TCP port the robot accepts its server connection on.
func (n RobotName) Port() uint16 {
	return roster[n].port
}

// DefaultIP returns the address the robot is expected at.
func (n RobotName) DefaultIP() net.IP {
	return roster[n].defaultIP
}

// Addr returns host:port to reach the robot at its default address.
func (n RobotName) Addr() string {
	return net.JoinHostPort(n.DefaultIP().String(), fmt.Sprint(n.Port()))
}

// IsSimulated tells if the robot is simulated, which is the case for
// locally administered MAC addresses.
func (n RobotName) IsSimulated() bool {
	return roster[n].mac[0] == 0x02
}

// FromMAC resolves a robot from its link-layer address.
func FromMAC(mac [6]byte) (RobotName, bool) {
	for n := range roster {
		if roster[n].mac == mac {
			return RobotName(n), true
		}
	}
	return 0, false
}

// FromHardwareAddr resolves a robot from a net.HardwareAddr.
func FromHardwareAddr(addr net.HardwareAddr) (RobotName, bool) {
	var mac [6]byte
	if len(addr) != len(mac) {
		return 0, false
	}
	copy(mac[:], addr)
	return FromMAC(mac)
}

// Parse resolves a robot by its name, case-insensitively.
func Parse(s string) (RobotName, error) {
	for n := range roster {
		if strings.EqualFold(roster[n].name, s) {
			return RobotName(n), nil
		}
	}
	return 0, fmt.Errorf("unknown robot %q", s)
}
