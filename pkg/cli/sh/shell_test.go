package sh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
)

func TestFormatStatus(t *testing.T) {
	testCases := []struct {
		name   string
		status *msgs.RobotStatus
		text   string
	}{
		{"idle", &msgs.RobotStatus{Robot: "Stella"}, "Stella disconnected"},
		{
			"transfer",
			&msgs.RobotStatus{Robot: "Stevie", Connected: true, OtaCurrent: &msgs.OtaStepRecord{Name: "DataTransfer", Received: 4096, Total: 10000, ElapsedMs: 1500}},
			"Stevie connected ota=DataTransfer 4096/10000 (pending, 1.5s)",
		},
		{
			"sensors",
			&msgs.RobotStatus{Robot: "Speers", Connected: true, Sensors: &msgs.Sensors{Battery: 7.4}},
			"Speers connected battery=7.40V",
		},
		{
			"failed",
			&msgs.RobotStatus{Robot: "Pierre", OtaCurrent: &msgs.OtaStepRecord{Name: "Failed", Outcome: 2}},
			"Pierre disconnected ota=Failed (failure, 0s)",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.text, FormatStatus(tc.status))
		})
	}
}

func TestShellStatuses(t *testing.T) {
	s := &Shell{statuses: make(map[string]*msgs.RobotStatus)}
	s.UpdateStatus(&msgs.RobotStatus{Robot: "Stevie"})
	s.UpdateStatus(&msgs.RobotStatus{Robot: "Stella"})
	s.UpdateStatus(&msgs.RobotStatus{Robot: "Stevie", Connected: true})

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	require.Equal(t, "Stella", statuses[0].Robot)
	require.True(t, s.Status(names.Stevie).Connected)
	require.Nil(t, s.Status(names.Speers))
}

type recordingSender []*msgs.OperatorCommand

func (r *recordingSender) SendCommand(cmd *msgs.OperatorCommand) error {
	*r = append(*r, cmd)
	return nil
}

func TestShellSend(t *testing.T) {
	var sent recordingSender
	s := &Shell{Sender: &sent}
	require.Equal(t, ErrNoRobot, s.Send(&msgs.OperatorCommand{Op: msgs.OperatorOpStartOta}))
	require.Empty(t, sent)

	require.Error(t, s.Use("nobody"))
	require.NoError(t, s.Use("speers"))
	require.NoError(t, s.Send(&msgs.OperatorCommand{Robot: "Stella", Op: msgs.OperatorOpCancelOta}))
	require.Len(t, sent, 1)
	require.Equal(t, "Speers", sent[0].Robot)
	require.Equal(t, msgs.OperatorOpCancelOta, sent[0].Op)
}
