// Package ota drives the firmware update handshake with one robot.
package ota

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
)

// Defaults
const (
	DefaultPartSize      = 4096
	DefaultRetryInterval = 500 * time.Millisecond
)

var (
	// ErrNotAtGate indicates a confirmation arrived outside an operator gate.
	ErrNotAtGate = errors.New("update is not waiting for confirmation")
	// ErrEmptyBinary indicates the firmware image has no content.
	ErrEmptyBinary = errors.New("empty firmware binary")
)

// Outgoing is a message to send to the robot.
// When Raw is not nil it is sent as a raw frame right after Msg.
type Outgoing struct {
	Msg fx.Message
	Raw []byte
}

// BinarySource loads the firmware image.
type BinarySource func() ([]byte, error)

// Status is a snapshot of the update.
type Status struct {
	Current Record
	History []Record
}

// Machine is the update state for one robot.
// It is driven by operator calls, robot replies and periodic Tick calls,
// and is not safe for concurrent use.
type Machine struct {
	Source        BinarySource
	PartSize      int
	RetryInterval time.Duration

	current  Step
	progress Progress
	binary   []byte
	history  []Record
	start    time.Time
	lastSent time.Time
	due      bool
}

// NewMachine creates a Machine waiting for an operator request.
func NewMachine(src BinarySource) *Machine {
	return &Machine{
		Source:        src,
		PartSize:      DefaultPartSize,
		RetryInterval: DefaultRetryInterval,
	}
}

// Current returns the current step and transfer progress.
func (m *Machine) Current() (Step, Progress) {
	return m.current, m.progress
}

// InProgress tells if an update has started and not yet ended.
func (m *Machine) InProgress() bool {
	return m.current != GuiRequest && !m.current.IsTerminal()
}

// History returns a copy of completed steps.
func (m *Machine) History() []Record {
	return append([]Record(nil), m.history...)
}

// Status returns a snapshot at now.
func (m *Machine) Status(now time.Time) Status {
	cur := Record{Step: m.current, Progress: m.progress, Outcome: Pending}
	switch m.current {
	case Finished:
		cur.Outcome = Success
	case Failed:
		cur.Outcome = Failure
	}
	if !m.start.IsZero() {
		cur.Elapsed = now.Sub(m.start)
	}
	return Status{Current: cur, History: m.History()}
}

// Start begins a new update. An update already in progress is cancelled first.
func (m *Machine) Start(now time.Time) []Outgoing {
	var out []Outgoing
	if m.InProgress() {
		glog.Warningf("update requested while %s in progress, restarting", m.current)
		out = m.fail(now, true)
	}
	m.history, m.binary, m.progress = nil, nil, Progress{}
	m.start, m.current = now, GuiRequest
	m.complete(now)
	return append(out, m.Tick(now)...)
}

// Confirm passes an operator gate.
func (m *Machine) Confirm(now time.Time) ([]Outgoing, error) {
	if !m.current.IsGate() {
		return nil, ErrNotAtGate
	}
	m.complete(now)
	return m.Tick(now), nil
}

// Cancel aborts the update in progress.
func (m *Machine) Cancel(now time.Time) []Outgoing {
	if !m.InProgress() {
		return nil
	}
	return m.fail(now, true)
}

// ClearHistory drops the history. A finished or failed update returns to
// waiting for an operator request.
func (m *Machine) ClearHistory() {
	m.history = nil
	if m.current.IsTerminal() {
		m.current, m.progress, m.start = GuiRequest, Progress{}, time.Time{}
	}
}

// Tick performs automatic transitions and re-sends the request of the
// current step once RetryInterval has passed without a reply.
func (m *Machine) Tick(now time.Time) []Outgoing {
	if m.current == FetchBinary {
		if err := m.fetch(); err != nil {
			glog.Errorf("fetch firmware binary: %v", err)
			return m.fail(now, true)
		}
		m.complete(now)
		m.progress = Progress{Total: len(m.binary)}
		m.history = append(m.history, Record{Step: DataTransfer, Progress: m.progress, Outcome: Pending, Elapsed: now.Sub(m.start)})
	}
	if !m.due && now.Sub(m.lastSent) < m.retryInterval() {
		return nil
	}
	out := m.request()
	if out != nil {
		m.lastSent, m.due = now, false
	}
	return out
}

// HandleReply processes a firmware reply from the robot.
// Replies not expected at the current step are ignored.
func (m *Machine) HandleReply(now time.Time, reply *msgs.FirmwareReply) []Outgoing {
	if op := m.expectedOp(); op == msgs.FirmwareOpNone || reply.Op != op {
		return nil
	}
	if reply.Error != "" {
		glog.Errorf("robot failed %s at %s: %s", reply.Op, m.current, reply.Error)
		return m.fail(now, true)
	}
	switch m.current {
	case DataTransfer:
		return m.confirmPart(now, reply)
	case HashConfirmation:
		expected := sha256.Sum256(m.binary)
		if !bytes.Equal(expected[:], reply.Hash) {
			glog.Errorf("firmware hash mismatch: expected %x, got %x", expected, reply.Hash)
			return m.fail(now, true)
		}
	case CheckFirmwareSwapped:
		if !reply.Swapped {
			glog.Errorf("robot rebooted but firmware is not swapped")
			return m.fail(now, false)
		}
	}
	m.complete(now)
	return m.Tick(now)
}

func (m *Machine) confirmPart(now time.Time, reply *msgs.FirmwareReply) []Outgoing {
	offset, length := int(reply.Offset), int(reply.Length)
	if offset+length == m.progress.Received && offset < m.progress.Received {
		// duplicate confirmation of a retried part
		return nil
	}
	if offset != m.progress.Received {
		glog.Errorf("part confirmed at offset %d, expected %d", offset, m.progress.Received)
		return m.fail(now, true)
	}
	m.progress.Received += length
	if m.progress.Received >= m.progress.Total {
		m.progress.Received = m.progress.Total
		m.complete(now)
	} else {
		m.updateLast(now, Pending)
		m.due = true
	}
	return m.Tick(now)
}

func (m *Machine) fetch() error {
	if m.Source == nil {
		return ErrEmptyBinary
	}
	data, err := m.Source()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return ErrEmptyBinary
	}
	m.binary = data
	return nil
}

func (m *Machine) expectedOp() msgs.FirmwareOp {
	switch m.current {
	case RobotReadyConfirmation:
		return msgs.FirmwareOpReady
	case DataTransfer:
		return msgs.FirmwareOpWritePart
	case HashConfirmation:
		return msgs.FirmwareOpHash
	case MarkUpdateReady:
		return msgs.FirmwareOpMarkUpdated
	case Reboot:
		return msgs.FirmwareOpReboot
	case CheckFirmwareSwapped:
		return msgs.FirmwareOpIsSwapped
	case MarkUpdateBooted:
		return msgs.FirmwareOpMarkBooted
	}
	return msgs.FirmwareOpNone
}

func (m *Machine) request() []Outgoing {
	op := m.expectedOp()
	switch op {
	case msgs.FirmwareOpNone:
		return nil
	case msgs.FirmwareOpWritePart:
		offset := m.progress.Received
		end := offset + m.partSize()
		if end > len(m.binary) {
			end = len(m.binary)
		}
		return []Outgoing{{
			Msg: &msgs.FirmwareRequest{Op: op, Offset: uint32(offset), Length: uint32(end - offset)},
			Raw: m.binary[offset:end],
		}}
	case msgs.FirmwareOpHash:
		return []Outgoing{{Msg: &msgs.FirmwareRequest{Op: op, Length: uint32(len(m.binary))}}}
	}
	return []Outgoing{{Msg: &msgs.FirmwareRequest{Op: op}}}
}

// complete records the current step as successful and moves to the next.
func (m *Machine) complete(now time.Time) {
	if n := len(m.history); n > 0 && m.history[n-1].Step == m.current && m.history[n-1].Outcome == Pending {
		m.updateLast(now, Success)
	} else {
		m.history = append(m.history, Record{Step: m.current, Progress: m.progress, Outcome: Success, Elapsed: now.Sub(m.start)})
	}
	m.current++
	m.due = true
	if m.current == Finished {
		m.history = append(m.history, Record{Step: Finished, Outcome: Success, Elapsed: now.Sub(m.start)})
		m.due = false
	}
}

func (m *Machine) updateLast(now time.Time, outcome Outcome) {
	last := &m.history[len(m.history)-1]
	last.Progress, last.Outcome, last.Elapsed = m.progress, outcome, now.Sub(m.start)
}

func (m *Machine) fail(now time.Time, cancel bool) []Outgoing {
	for n := range m.history {
		if m.history[n].Outcome == Pending {
			m.history[n].Outcome = Failure
		}
	}
	m.history = append(m.history, Record{Step: m.current, Progress: m.progress, Outcome: Failure, Elapsed: now.Sub(m.start)})
	m.current, m.due = Failed, false
	if cancel {
		return []Outgoing{{Msg: &msgs.FirmwareRequest{Op: msgs.FirmwareOpCancel}}}
	}
	return nil
}

func (m *Machine) partSize() int {
	if m.PartSize > 0 {
		return m.PartSize
	}
	return DefaultPartSize
}

func (m *Machine) retryInterval() time.Duration {
	if m.RetryInterval > 0 {
		return m.RetryInterval
	}
	return DefaultRetryInterval
}

// String implements fmt.Stringer.
func (m *Machine) String() string {
	if m.current == DataTransfer {
		return fmt.Sprintf("%s{%d/%d}", m.current, m.progress.Received, m.progress.Total)
	}
	return m.current.String()
}
