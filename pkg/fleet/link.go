// Package fleet connects the coordinator to every robot and drives firmware
// updates and operator commands.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
	"github.com/robotalks/robofleet/pkg/wire"
)

// Defaults
const (
	DefaultDialTimeout  = 2 * time.Second
	DefaultWriteTimeout = time.Second
)

// ErrNotConnected indicates the robot link is down.
var ErrNotConnected = errors.New("robot not connected")

// MessagePoster receives messages from links, usually a *fx.Loop.
type MessagePoster interface {
	PostMessage(fx.Message)
}

// RobotMessage is a message received from a robot.
type RobotMessage struct {
	Robot names.RobotName
	Msg   fx.Message
}

// NewMessage implements Message.
func (m *RobotMessage) NewMessage() fx.Message { return &RobotMessage{} }

// LinkState is posted when a link connects or disconnects.
type LinkState struct {
	Robot     names.RobotName
	Connected bool
}

// NewMessage implements Message.
func (m *LinkState) NewMessage() fx.Message { return &LinkState{} }

// Link keeps a connection to one robot, reconnecting with backoff.
type Link struct {
	Robot        names.RobotName
	Addr         string
	Backoff      BackoffConfig
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Poster       MessagePoster
	Dial         func(ctx context.Context, addr string) (net.Conn, error)

	lock   sync.Mutex
	conn   net.Conn
	writer *wire.Writer

	// rng jitters reconnects so links to restarted robots spread out.
	rng *rand.Rand
}

// NewLink creates a Link. An empty addr uses the robot's default address.
func NewLink(robot names.RobotName, addr string, poster MessagePoster) *Link {
	if addr == "" {
		addr = robot.Addr()
	}
	return &Link{
		Robot:        robot,
		Addr:         addr,
		Backoff:      DefaultBackoff,
		DialTimeout:  DefaultDialTimeout,
		WriteTimeout: DefaultWriteTimeout,
		Poster:       poster,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano() + int64(robot))),
	}
}

// Name implements Named.
func (l *Link) Name() string {
	return l.Robot.String()
}

// Connected tells if the link is up.
func (l *Link) Connected() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.writer != nil
}

// Send writes payloads in order as consecutive frames.
func (l *Link) Send(payloads ...wire.Payload) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.writer == nil {
		return ErrNotConnected
	}
	l.conn.SetWriteDeadline(time.Now().Add(l.WriteTimeout))
	for _, p := range payloads {
		if err := l.writer.WriteFrame(p); err != nil {
			return err
		}
	}
	return nil
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		conn, err := l.dial(ctx)
		if err == nil {
			glog.Infof("%s connected %s", l.Robot, l.Addr)
			attempt = 1
			err = l.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delay := l.Backoff.Delay(attempt, l.rng)
		glog.Warningf("%s link: %v, retry in %s", l.Robot, err, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Link) dial(ctx context.Context) (net.Conn, error) {
	if l.Dial != nil {
		return l.Dial(ctx, l.Addr)
	}
	d := net.Dialer{Timeout: l.DialTimeout}
	return d.DialContext(ctx, "tcp", l.Addr)
}

func (l *Link) serve(ctx context.Context, conn net.Conn) error {
	l.lock.Lock()
	l.conn, l.writer = conn, wire.NewWriter(conn)
	l.lock.Unlock()
	l.post(&LinkState{Robot: l.Robot, Connected: true})
	defer func() {
		l.lock.Lock()
		l.conn, l.writer = nil, nil
		l.lock.Unlock()
		l.post(&LinkState{Robot: l.Robot})
	}()

	r := wire.NewReader(wire.DefaultCapacity)
	return fx.RunWithContextCloser(ctx, conn, func() error {
		for {
			f, err := r.ReadFrame(conn)
			if err != nil {
				var decErr *wire.DecodeError
				if errors.As(err, &decErr) {
					glog.Errorf("%s dropped message: %v", l.Robot, err)
					continue
				}
				return err
			}
			if f.Payload.Kind == wire.KindRaw {
				glog.V(2).Infof("%s ignored %d raw bytes", l.Robot, len(f.Payload.Raw))
				continue
			}
			if id, ok := f.Payload.Msg.(*msgs.RobotIdentity); ok {
				if name, err := names.Parse(id.Name); err != nil || name != l.Robot {
					return fmt.Errorf("%s answered as %q", l.Addr, id.Name)
				}
			}
			l.post(&RobotMessage{Robot: l.Robot, Msg: f.Payload.Msg})
		}
	})
}

func (l *Link) post(msg fx.Message) {
	if l.Poster == nil {
		return
	}
	l.Poster.PostMessage(msg)
	if t, ok := l.Poster.(interface{ TriggerNext() }); ok {
		t.TriggerNext()
	}
}
