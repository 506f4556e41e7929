// Package robot implements the task loops running on every robot:
// network, motors and peripherals. The loops are written against the
// behavior interfaces in this file and run unchanged on hardware hosts
// and in the simulator.
package robot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// AccessPoint is a visible wireless network.
type AccessPoint struct {
	SSID string
	Is5G bool
}

// Firmware is the bootloader side of an update.
type Firmware interface {
	// PrepareUpdate indicates an update is about to begin.
	PrepareUpdate(ctx context.Context) error
	WriteFirmware(ctx context.Context, offset int, data []byte) error
	// FirmwareHash returns the SHA-256 of the first length bytes written.
	FirmwareHash(ctx context.Context, length int) ([32]byte, error)
	MarkUpdated(ctx context.Context) error
	// IsSwapped tells if the running image is a freshly swapped update.
	IsSwapped(ctx context.Context) (bool, error)
	MarkBooted(ctx context.Context) error
	CancelUpdate(ctx context.Context) error
	// Reboot restarts the robot as fully as possible.
	Reboot(ctx context.Context) error
}

// Network is the link to the coordinator.
type Network interface {
	Firmware

	// MAC returns the link-layer address.
	MAC(ctx context.Context) ([6]byte, error)
	// Address returns the assigned address, or nil when not associated.
	Address(ctx context.Context) (net.IP, error)
	// Scan lists at most max visible networks.
	Scan(ctx context.Context, max int) ([]AccessPoint, error)
	// Join associates with the network. It returns when the association
	// completes or fails and never retries internally.
	Join(ctx context.Context, ssid, password string) error
	Leave(ctx context.Context) error
	// Accept waits for exactly one inbound connection on port, closing
	// any previous one.
	Accept(ctx context.Context, port uint16) (io.ReadWriteCloser, error)
}

// Motors drives the wheels.
type Motors interface {
	// WantsSelfClosedLoop tells if the motors loop should run its own
	// feedback controller and drive PWM pins. Otherwise the set points are
	// passed to SetActuatorSpeed directly.
	WantsSelfClosedLoop() bool
	SetActuatorSpeed(ctx context.Context, motor int, speed float64) error
	SetPwm(ctx context.Context, pin int, duty uint16) error
	// MotorSpeed returns the measured angular speed of a wheel.
	MotorSpeed(ctx context.Context, motor int) (float64, error)
}

// Peripherals is the screen plus sensor devices.
type Peripherals interface {
	// Draw runs fn against the off-screen framebuffer.
	Draw(fn func(*Framebuffer)) error
	// Flip presents the framebuffer.
	Flip(ctx context.Context) error
	Sensors() []Sensor
}

// SensorKind is what a sensor measures.
type SensorKind int

// Sensor kinds.
const (
	SensorAngle SensorKind = iota
	SensorDistance
	SensorBattery
)

func (k SensorKind) String() string {
	switch k {
	case SensorAngle:
		return "angle"
	case SensorDistance:
		return "distance"
	case SensorBattery:
		return "battery"
	}
	return "unknown"
}

// Slot locates the reading of a sensor in SensorData.
type Slot struct {
	Kind SensorKind
	// Index distinguishes distance sensors.
	Index int
}

// Sensor is a polled measurement device.
type Sensor interface {
	Name() string
	Slot() Slot
	Initialize(ctx context.Context) error
	Poll(ctx context.Context) (float64, error)
}

// DeviceErrorKind classifies device failures.
type DeviceErrorKind int

// Device error kinds.
const (
	DeviceFault DeviceErrorKind = iota
	DeviceDisabled
	DeviceNotInitialized
	DeviceTransient
)

func (k DeviceErrorKind) String() string {
	switch k {
	case DeviceFault:
		return "fault"
	case DeviceDisabled:
		return "disabled"
	case DeviceNotInitialized:
		return "not initialized"
	case DeviceTransient:
		return "transient i/o fault"
	}
	return "unknown"
}

// DeviceError is returned by sensors and drivers.
type DeviceError struct {
	Device string
	Kind   DeviceErrorKind
	// Code is a device specific fault code, only meaningful for DeviceFault.
	Code int
	Err  error
}

// Error implements error.
func (e *DeviceError) Error() string {
	msg := e.Device + ": " + e.Kind.String()
	if e.Kind == DeviceFault && e.Code != 0 {
		msg += fmt.Sprintf(" %d", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error { return e.Err }

// DeviceErrorKindOf returns the kind of a DeviceError, or DeviceFault for
// any other error.
func DeviceErrorKindOf(err error) DeviceErrorKind {
	var devErr *DeviceError
	if errors.As(err, &devErr) {
		return devErr.Kind
	}
	return DeviceFault
}
