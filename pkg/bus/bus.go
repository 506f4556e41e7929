// Package bus routes messages between the tasks of one robot.
package bus

import (
	"context"
	"time"
)

// Task identifies one of the robot subsystems owning an inbound queue.
type Task int

// Tasks.
const (
	TaskWifi Task = iota
	TaskMotors
	TaskPeripherals

	NumTasks = 3
)

func (t Task) String() string {
	switch t {
	case TaskWifi:
		return "wifi"
	case TaskMotors:
		return "motors"
	case TaskPeripherals:
		return "peripherals"
	}
	return "unknown"
}

// DefaultCapacity is the default queue depth per task.
const DefaultCapacity = 64

// Bus owns one bounded queue per task.
// Any goroutine may send; each queue must have exactly one receiver.
type Bus struct {
	queues [NumTasks]chan Message
}

// New creates a Bus with the given per-queue capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{}
	for n := range b.queues {
		b.queues[n] = make(chan Message, capacity)
	}
	return b
}

// Send enqueues msg for task to, suspending while the queue is full.
func (b *Bus) Send(ctx context.Context, to Task, msg Message) error {
	select {
	case b.queues[to] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues msg without suspending and reports whether it was queued.
func (b *Bus) TrySend(to Task, msg Message) bool {
	select {
	case b.queues[to] <- msg:
		return true
	default:
		return false
	}
}

// Endpoint returns the receiving side of a task queue.
func (b *Bus) Endpoint(t Task) *Endpoint {
	return &Endpoint{Task: t, ch: b.queues[t]}
}

// Pending returns the number of queued messages for a task.
func (b *Bus) Pending(t Task) int {
	return len(b.queues[t])
}

// Endpoint receives the messages of one task.
type Endpoint struct {
	Task Task
	ch   <-chan Message
}

// Receive suspends until a message is available.
func (e *Endpoint) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-e.ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReceiveTimeout waits at most d for a message.
// It returns nil with no error when nothing arrived in time.
func (e *Endpoint) ReceiveTimeout(ctx context.Context, d time.Duration) (Message, error) {
	if d <= 0 {
		select {
		case msg := <-e.ch:
			return msg, nil
		default:
			return nil, ctx.Err()
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case msg := <-e.ch:
		return msg, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Chan exposes the queue for use in select statements.
func (e *Endpoint) Chan() <-chan Message {
	return e.ch
}
