package game

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/sim"
)

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected fx.Message
		err      bool
	}{
		{name: "pause", text: "p", expected: &sim.PauseMsg{Paused: true}},
		{name: "resume", text: "P", expected: &sim.PauseMsg{}},
		{name: "reset", text: "R", expected: &sim.ResetMsg{}},
		{
			name: "set pose",
			text: "s Stella 1.5 2 0",
			expected: &sim.SetPoseMsg{
				Robot: "Stella",
				Pose:  sim.Pose2D{Pos2D: sim.Pos2D{X: 1.5, Y: 2}},
			},
		},
		{name: "pose missing fields", text: "s Stella 1", err: true},
		{name: "pose not a number", text: "s Stella a b c", err: true},
		{name: "empty", text: " ", err: true},
		{name: "unknown", text: "w", err: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseCommand(tc.text)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, msg)
		})
	}
}

func receiveUpdate(t *testing.T, ws *websocket.Conn) []Message {
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var text string
	require.NoError(t, websocket.Message.Receive(ws, &text))
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(text), &msgs))
	return msgs
}

func TestServer(t *testing.T) {
	world := sim.NewWorld(sim.DefaultBounds)
	body := sim.NewRobot(names.Stella, sim.DefaultStart)
	world.Add(body)

	loop := fx.NewLoop()
	loop.Interval = 5 * time.Millisecond
	srv := NewServer("", loop).Subscribe(world)
	loop.Add(world)
	loop.AddController(fx.PrLvPostProc, fx.ControlFunc(srv.ReportChanges))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), "", hs.URL)
	require.NoError(t, err)
	defer ws.Close()

	var token []byte
	require.NoError(t, websocket.Message.Receive(ws, &token))
	require.Equal(t, Token, token)

	msgs := receiveUpdate(t, ws)
	require.Equal(t, ActionReset, msgs[0].Action)
	require.Equal(t, ActionState, msgs[1].Action)
	require.False(t, *msgs[1].Paused)
	robotObject := waitFor(t, ws, msgs, func(m Message) bool {
		return m.Action == ActionObject
	})
	require.Equal(t, "stella", robotObject.Object[PropID])
	require.Equal(t, "robot", robotObject.Object[PropType])

	require.NoError(t, websocket.Message.Send(ws, "p"))
	require.Eventually(t, world.Paused, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, websocket.Message.Send(ws, "s Stella 4 5 0"))
	require.Eventually(t, func() bool {
		return body.Position2D().Pos2D == sim.Pos2D{X: 4, Y: 5}
	}, 2*time.Second, 5*time.Millisecond)

	world.Remove("Stella")
	waitFor(t, ws, nil, func(m Message) bool {
		return m.Action == ActionRemove && m.RemoveID == "stella"
	})
}

// waitFor returns the first message matching fn, looking at msgs first.
func waitFor(t *testing.T, ws *websocket.Conn, msgs []Message, fn func(Message) bool) Message {
	for i := 0; i < 100; i++ {
		for _, m := range msgs {
			if fn(m) {
				return m
			}
		}
		msgs = receiveUpdate(t, ws)
	}
	require.FailNow(t, "update not received")
	return Message{}
}
