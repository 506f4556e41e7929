package framework

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultRestartDelay is the pause before a failed Runnable is restarted.
const DefaultRestartDelay = time.Second

// Supervisor restarts a Runnable whenever it returns before the context
// is cancelled.
type Supervisor struct {
	Runnable     Runnable
	RestartDelay time.Duration

	name     string
	restarts int32
}

// Supervise wraps a Runnable with a Supervisor.
func Supervise(name string, runnable Runnable) *Supervisor {
	return &Supervisor{Runnable: runnable, RestartDelay: DefaultRestartDelay, name: name}
}

// WithRestartDelay changes the restart delay.
func (s *Supervisor) WithRestartDelay(d time.Duration) *Supervisor {
	s.RestartDelay = d
	return s
}

// Name implements Named.
func (s *Supervisor) Name() string {
	return s.name
}

// Restarts returns how many times the Runnable was restarted.
func (s *Supervisor) Restarts() int {
	return int(atomic.LoadInt32(&s.restarts))
}

// Run implements Runnable.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.Runnable.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			glog.Errorf("task %s terminated: %v", s.name, err)
		} else {
			glog.Warningf("task %s exited", s.name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.RestartDelay):
		}
		atomic.AddInt32(&s.restarts, 1)
		glog.V(2).Infof("task %s restarting", s.name)
	}
}

// RunnableFunc is the func form of Runnable.
type RunnableFunc func(context.Context) error

// Run implements Runnable.
func (f RunnableFunc) Run(ctx context.Context) error {
	return f(ctx)
}
