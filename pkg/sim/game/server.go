// Package game serves the simulation to game clients over websocket.
package game

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/sim"
)

// DefaultAddr is where the game endpoint listens.
const DefaultAddr = ":3002"

// DefaultFPS is how often updates are sent to clients.
const DefaultFPS = 24

// Token is sent to every client on accept, telling it the server takes
// the extended commands.
var Token = []byte{0xAA, 0x73, 0x1A, 0x99}

const clientQueueSize = 16

// MessagePoster accepts world messages.
type MessagePoster interface {
	PostMessage(fx.Message)
}

// Server is the websocket game endpoint. It is also a LoopAdder
// reporting world changes to clients.
type Server struct {
	Addr   string
	FPS    int
	Poster MessagePoster

	lock       sync.Mutex
	clients    map[*client]struct{}
	known      map[string]sim.Object
	updated    map[string]sim.Object
	removedIDs map[string]bool
	resync     bool
	paused     bool
	lastReport time.Time
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// NewServer creates a Server posting commands to poster.
func NewServer(addr string, poster MessagePoster) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		Addr:    addr,
		FPS:     DefaultFPS,
		Poster:  poster,
		clients: make(map[*client]struct{}),
		known:   make(map[string]sim.Object),
	}
}

// Subscribe is a helper to subscribe object changes.
func (s *Server) Subscribe(sub sim.ObjectsChangeSubscriber) *Server {
	sub.SubscribeObjectsChange(s)
	return s
}

// Handler returns the websocket handler.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serve)
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	glog.Infof("game endpoint listening on %s", ln.Addr())
	srv := &http.Server{Handler: s.Handler()}
	return fx.RunWithContextCloser(ctx, srv, func() error {
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func (s *Server) serve(conn *websocket.Conn) {
	addr := conn.Request().RemoteAddr
	if err := websocket.Message.Send(conn, Token); err != nil {
		glog.Warningf("game client %s: send token: %v", addr, err)
		return
	}
	c := &client{conn: conn, out: make(chan []byte, clientQueueSize)}
	s.lock.Lock()
	s.clients[c] = struct{}{}
	s.resync = true
	s.lock.Unlock()
	glog.Infof("game client connected from %s", addr)

	go c.writeLoop()
	defer func() {
		s.lock.Lock()
		delete(s.clients, c)
		s.lock.Unlock()
		close(c.out)
		glog.Infof("game client %s disconnected", addr)
	}()

	for {
		var text string
		if err := websocket.Message.Receive(conn, &text); err != nil {
			return
		}
		msg, err := ParseCommand(text)
		if err != nil {
			glog.Warningf("game client %s: %v", addr, err)
			continue
		}
		glog.V(2).Infof("game client %s: %q", addr, text)
		if p, ok := msg.(*sim.PauseMsg); ok {
			s.lock.Lock()
			s.paused = p.Paused
			s.resync = true
			s.lock.Unlock()
		}
		if s.Poster != nil {
			s.Poster.PostMessage(msg)
		}
	}
}

func (c *client) writeLoop() {
	for data := range c.out {
		if err := websocket.Message.Send(c.conn, string(data)); err != nil {
			c.conn.Close()
			for range c.out {
			}
			return
		}
	}
}

// ObjectsChanged implements ObjectsChangeListener.
func (s *Server) ObjectsChanged(cc fx.ControlContext, objs ...sim.Object) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.updated == nil {
		s.updated = make(map[string]sim.Object)
	}
	for _, obj := range objs {
		s.known[obj.Name()] = obj
		s.updated[obj.Name()] = obj
		if s.removedIDs != nil {
			delete(s.removedIDs, obj.Name())
		}
	}
}

// ObjectsRemoved implements ObjectsChangeListener.
func (s *Server) ObjectsRemoved(cc fx.ControlContext, objs ...sim.Object) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.removedIDs == nil {
		s.removedIDs = make(map[string]bool)
	}
	for _, obj := range objs {
		delete(s.known, obj.Name())
		s.removedIDs[obj.Name()] = true
		if s.updated != nil {
			delete(s.updated, obj.Name())
		}
	}
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, fx.ControlFunc(s.ReportChanges))
	l.AddRunnable(s)
}

// ReportChanges is a controller sending changes to clients.
func (s *Server) ReportChanges(cc fx.ControlContext) error {
	now := cc.Time()
	s.lock.Lock()
	if s.FPS > 0 && now.Sub(s.lastReport) < time.Second/time.Duration(s.FPS) && !s.resync {
		s.lock.Unlock()
		return nil
	}
	defer s.lock.Unlock()
	s.lastReport = now
	msgs := s.pendingMessages()
	if len(msgs) == 0 || len(s.clients) == 0 {
		return nil
	}
	encoded, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	for c := range s.clients {
		select {
		case c.out <- encoded:
		default:
			glog.V(2).Infof("game client %s lagging, update dropped", c.conn.Request().RemoteAddr)
		}
	}
	return nil
}

// pendingMessages must be called with s.lock held.
func (s *Server) pendingMessages() []Message {
	var msgs []Message
	if s.resync {
		paused := s.paused
		msgs = append(msgs, Message{Action: ActionReset}, Message{Action: ActionState, Paused: &paused})
		s.updated = s.known
		s.removedIDs = nil
		s.resync = false
	}
	for _, obj := range s.updated {
		msgs = append(msgs, Message{Action: ActionObject, Object: ObjectFrom(obj)})
	}
	for name := range s.removedIDs {
		msgs = append(msgs, Message{Action: ActionRemove, RemoveID: ObjectID(name)})
	}
	s.updated, s.removedIDs = nil, nil
	return msgs
}
