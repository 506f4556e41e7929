package ota

import (
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/msgs"
)

type otaTestEnv struct {
	t      *testing.T
	m      *Machine
	now    time.Time
	binary []byte
}

func newOtaTestEnv(t *testing.T, size int) *otaTestEnv {
	binary := make([]byte, size)
	for n := range binary {
		binary[n] = byte(n * 7)
	}
	env := &otaTestEnv{t: t, now: time.Unix(1000, 0), binary: binary}
	env.m = NewMachine(func() ([]byte, error) { return env.binary, nil })
	return env
}

func (e *otaTestEnv) advance(d time.Duration) time.Time {
	e.now = e.now.Add(d)
	return e.now
}

func (e *otaTestEnv) reply(r *msgs.FirmwareReply) []Outgoing {
	return e.m.HandleReply(e.advance(10*time.Millisecond), r)
}

func (e *otaTestEnv) requireRequest(out []Outgoing, op msgs.FirmwareOp) *msgs.FirmwareRequest {
	require.Len(e.t, out, 1)
	req, ok := out[0].Msg.(*msgs.FirmwareRequest)
	require.True(e.t, ok)
	require.Equal(e.t, op, req.Op)
	return req
}

func (e *otaTestEnv) requireStep(step Step) {
	cur, _ := e.m.Current()
	require.Equal(e.t, step, cur)
}

// transfer runs the update from Start up to the first operator gate.
func (e *otaTestEnv) transfer() []int {
	out := e.m.Start(e.now)
	e.requireRequest(out, msgs.FirmwareOpReady)
	e.requireStep(RobotReadyConfirmation)

	out = e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
	var received []int
	for {
		cur, progress := e.m.Current()
		if cur != DataTransfer {
			break
		}
		received = append(received, progress.Received)
		req := e.requireRequest(out, msgs.FirmwareOpWritePart)
		require.Equal(e.t, uint32(progress.Received), req.Offset)
		require.Equal(e.t, e.binary[req.Offset:req.Offset+req.Length], out[0].Raw)
		out = e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpWritePart, Offset: req.Offset, Length: req.Length})
	}
	e.requireRequest(out, msgs.FirmwareOpHash)
	e.requireStep(HashConfirmation)
	hash := sha256.Sum256(e.binary)
	out = e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpHash, Hash: hash[:]})
	require.Empty(e.t, out)
	e.requireStep(GuiConfirmation)
	return received
}

func historySteps(records []Record) []Step {
	steps := make([]Step, len(records))
	for n, r := range records {
		steps[n] = r.Step
	}
	return steps
}

func TestAutoAdvanceStopsAtGate(t *testing.T) {
	env := newOtaTestEnv(t, 3*DefaultPartSize+100)
	received := env.transfer()
	require.Equal(t, []int{0, DefaultPartSize, 2 * DefaultPartSize, 3 * DefaultPartSize}, received)

	require.Equal(t, []Step{GuiRequest, RobotReadyConfirmation, FetchBinary, DataTransfer, HashConfirmation}, historySteps(env.m.History()))
	for _, r := range env.m.History() {
		require.Equal(t, Success, r.Outcome)
	}
	last := env.m.History()[3]
	require.Equal(t, Progress{Received: len(env.binary), Total: len(env.binary)}, last.Progress)

	for i := 0; i < 10; i++ {
		require.Empty(t, env.m.Tick(env.advance(time.Second)))
		env.requireStep(GuiConfirmation)
	}
}

func TestFullUpdate(t *testing.T) {
	env := newOtaTestEnv(t, 5000)
	env.transfer()

	out, err := env.m.Confirm(env.advance(time.Second))
	require.NoError(t, err)
	env.requireRequest(out, msgs.FirmwareOpMarkUpdated)
	env.requireRequest(env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpMarkUpdated}), msgs.FirmwareOpReboot)
	env.requireRequest(env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReboot}), msgs.FirmwareOpIsSwapped)
	env.requireStep(CheckFirmwareSwapped)

	// robot is rebooting, request is retried.
	require.Empty(t, env.m.Tick(env.advance(100*time.Millisecond)))
	env.requireRequest(env.m.Tick(env.advance(DefaultRetryInterval)), msgs.FirmwareOpIsSwapped)

	require.Empty(t, env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpIsSwapped, Swapped: true}))
	env.requireStep(FinalGuiConfirmation)
	require.Empty(t, env.m.Tick(env.advance(time.Second)))

	out, err = env.m.Confirm(env.advance(time.Second))
	require.NoError(t, err)
	env.requireRequest(out, msgs.FirmwareOpMarkBooted)
	require.Empty(t, env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpMarkBooted}))
	env.requireStep(Finished)
	require.False(t, env.m.InProgress())

	history := env.m.History()
	require.Equal(t, Finished, history[len(history)-1].Step)
	for n := 1; n < len(history); n++ {
		require.True(t, history[n].Step > history[n-1].Step)
		require.True(t, history[n].Elapsed >= history[n-1].Elapsed)
	}
	require.Equal(t, Success, env.m.Status(env.now).Current.Outcome)
}

func TestConfirmOutsideGate(t *testing.T) {
	env := newOtaTestEnv(t, 10)
	_, err := env.m.Confirm(env.now)
	require.Equal(t, ErrNotAtGate, err)
	env.m.Start(env.now)
	_, err = env.m.Confirm(env.now)
	require.Equal(t, ErrNotAtGate, err)
	env.requireStep(RobotReadyConfirmation)
}

func TestRetry(t *testing.T) {
	env := newOtaTestEnv(t, 10)
	env.m.Start(env.now)
	require.Empty(t, env.m.Tick(env.advance(DefaultRetryInterval/2)))
	env.requireRequest(env.m.Tick(env.advance(DefaultRetryInterval)), msgs.FirmwareOpReady)
	require.Empty(t, env.m.Tick(env.advance(time.Millisecond)))
}

func TestFailures(t *testing.T) {
	testCases := []struct {
		name   string
		run    func(*otaTestEnv) []Outgoing
		cancel bool
	}{
		{
			name: "wrong offset",
			run: func(e *otaTestEnv) []Outgoing {
				e.m.Start(e.now)
				e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
				return e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpWritePart, Offset: 100, Length: DefaultPartSize})
			},
			cancel: true,
		},
		{
			name: "hash mismatch",
			run: func(e *otaTestEnv) []Outgoing {
				e.m.Start(e.now)
				e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
				e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpWritePart, Offset: 0, Length: uint32(len(e.binary))})
				return e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpHash, Hash: make([]byte, 32)})
			},
			cancel: true,
		},
		{
			name: "not swapped",
			run: func(e *otaTestEnv) []Outgoing {
				e.transfer()
				e.m.Confirm(e.now)
				e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpMarkUpdated})
				e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReboot})
				return e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpIsSwapped, Swapped: false})
			},
		},
		{
			name: "robot error",
			run: func(e *otaTestEnv) []Outgoing {
				e.m.Start(e.now)
				return e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady, Error: "flash busy"})
			},
			cancel: true,
		},
		{
			name: "binary unavailable",
			run: func(e *otaTestEnv) []Outgoing {
				e.m.Source = func() ([]byte, error) { return nil, errors.New("not found") }
				e.m.Start(e.now)
				return e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
			},
			cancel: true,
		},
		{
			name: "operator cancel",
			run: func(e *otaTestEnv) []Outgoing {
				e.m.Start(e.now)
				e.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
				return e.m.Cancel(e.now)
			},
			cancel: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newOtaTestEnv(t, 2*DefaultPartSize)
			out := tc.run(env)
			if tc.cancel {
				env.requireRequest(out, msgs.FirmwareOpCancel)
			} else {
				require.Empty(t, out)
			}
			env.requireStep(Failed)
			history := env.m.History()
			require.Equal(t, Failure, history[len(history)-1].Outcome)
			for _, r := range history {
				require.NotEqual(t, Pending, r.Outcome)
			}
			require.Empty(t, env.m.Tick(env.advance(time.Second)))
			require.Empty(t, env.m.HandleReply(env.now, &msgs.FirmwareReply{Op: msgs.FirmwareOpReady}))
			env.requireStep(Failed)
		})
	}
}

func TestStartWhileInProgress(t *testing.T) {
	env := newOtaTestEnv(t, 2*DefaultPartSize)
	env.m.Start(env.now)
	env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
	env.requireStep(DataTransfer)

	out := env.m.Start(env.advance(time.Second))
	require.Len(t, out, 2)
	env.requireRequest(out[:1], msgs.FirmwareOpCancel)
	env.requireRequest(out[1:], msgs.FirmwareOpReady)
	require.Equal(t, []Step{GuiRequest}, historySteps(env.m.History()))
	env.requireStep(RobotReadyConfirmation)
}

func TestDuplicatePartConfirmation(t *testing.T) {
	env := newOtaTestEnv(t, 2*DefaultPartSize)
	env.m.Start(env.now)
	env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpReady})
	env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpWritePart, Offset: 0, Length: DefaultPartSize})
	require.Empty(t, env.reply(&msgs.FirmwareReply{Op: msgs.FirmwareOpWritePart, Offset: 0, Length: DefaultPartSize}))
	cur, progress := env.m.Current()
	require.Equal(t, DataTransfer, cur)
	require.Equal(t, DefaultPartSize, progress.Received)
}

func TestClearHistory(t *testing.T) {
	env := newOtaTestEnv(t, 10)
	env.m.Start(env.now)
	env.m.Cancel(env.now)
	env.requireStep(Failed)
	env.m.ClearHistory()
	env.requireStep(GuiRequest)
	require.Empty(t, env.m.History())
}
