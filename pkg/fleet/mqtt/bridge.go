package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/robofleet/pkg/framework"
	"github.com/robotalks/robofleet/pkg/msgs"
)

// Topic names under the root.
const (
	CommandTopic  = "cmd"
	StatusTopic   = "status"
	PresenceTopic = "coordinator/online"

	publishTimeout = 2 * time.Second
)

// Bridge connects operator consoles and the coordinator. Commands are
// published to <root>/<robot>/cmd and status to <root>/<robot>/status.
type Bridge struct {
	Queue *Queue
	Root  string

	presence bool
}

// NewBridge creates a Bridge to the broker at brokerURL for an operator
// console. clientID is used when the URL does not carry one.
func NewBridge(brokerURL, clientID, root string) (*Bridge, error) {
	return newBridge(brokerURL, clientID, root, false)
}

// NewCoordinatorBridge creates a Bridge which also maintains the retained
// coordinator presence, cleared by the broker if the coordinator vanishes.
func NewCoordinatorBridge(brokerURL, clientID, root string) (*Bridge, error) {
	return newBridge(brokerURL, clientID, root, true)
}

func newBridge(brokerURL, clientID, root string, presence bool) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID(clientID)
	}
	b := &Bridge{Root: strings.Trim(root, "/"), presence: presence}
	if presence {
		opts.SetBinaryWill(topicPrefix+b.topic(PresenceTopic), []byte("0"), 1, true)
	}
	b.Queue = NewQueue(opts, topicPrefix)
	if presence {
		b.Queue.OnConnect = func(q *Queue) {
			q.PubWith(b.topic(PresenceTopic), []byte("1"), 1, true)
		}
	}
	return b, nil
}

func (b *Bridge) topic(parts ...string) string {
	if b.Root == "" {
		return strings.Join(parts, "/")
	}
	return b.Root + "/" + strings.Join(parts, "/")
}

// Connect connects to the broker and waits for the result.
func (b *Bridge) Connect() error {
	token := b.Queue.Connect()
	token.Wait()
	return token.Error()
}

// Close disconnects.
func (b *Bridge) Close() error {
	return b.Queue.Close()
}

// SendCommand publishes an operator command.
func (b *Bridge) SendCommand(cmd *msgs.OperatorCommand) error {
	data, err := msgs.Marshal(cmd)
	if err != nil {
		return err
	}
	token := b.Queue.PubWith(b.topic(cmd.Robot, CommandTopic), data, 1, false)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish command to %s timed out", cmd.Robot)
	}
	return token.Error()
}

// PublishStatus publishes the retained status of a robot without waiting
// for delivery.
func (b *Bridge) PublishStatus(status *msgs.RobotStatus) error {
	data, err := msgs.Marshal(status)
	if err != nil {
		return err
	}
	b.Queue.PubWith(b.topic(status.Robot, StatusTopic), data, 0, true)
	return nil
}

// HandleCommands subscribes to commands for every robot.
func (b *Bridge) HandleCommands(fn func(*msgs.OperatorCommand)) *Subscription {
	return b.Queue.Sub(b.topic("+", CommandTopic), func(topic string, payload []byte) {
		cmd, err := b.decodeCommand(topic, payload)
		if err != nil {
			glog.Warningf("command on %s: %v", topic, err)
			return
		}
		fn(cmd)
	})
}

// WatchStatus subscribes to status of every robot.
func (b *Bridge) WatchStatus(fn func(*msgs.RobotStatus)) *Subscription {
	return b.Queue.Sub(b.topic("+", StatusTopic), func(topic string, payload []byte) {
		msg, err := msgs.Unmarshal(payload)
		if err != nil {
			glog.Warningf("status on %s: %v", topic, err)
			return
		}
		if status, ok := msg.(*msgs.RobotStatus); ok {
			fn(status)
		}
	})
}

// decodeCommand decodes a command published on <root>/<robot>/cmd. The
// robot in the topic wins over the one in the payload.
func (b *Bridge) decodeCommand(topic string, payload []byte) (*msgs.OperatorCommand, error) {
	rel := topic
	if b.Root != "" {
		rel = strings.TrimPrefix(topic, b.Root+"/")
	}
	parts := strings.Split(rel, "/")
	if len(parts) != 2 || parts[1] != CommandTopic {
		return nil, fmt.Errorf("unexpected topic")
	}
	msg, err := msgs.Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	cmd, ok := msg.(*msgs.OperatorCommand)
	if !ok {
		return nil, fmt.Errorf("unexpected message %T", msg)
	}
	cmd.Robot = parts[0]
	return cmd, nil
}

// AddToLoop implements LoopAdder. Commands are posted to the loop.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	b.HandleCommands(func(cmd *msgs.OperatorCommand) {
		l.PostMessage(cmd)
	})
	l.AddRunnable(b)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Connect(); err != nil {
		return err
	}
	<-ctx.Done()
	if b.presence {
		b.Queue.PubWith(b.topic(PresenceTopic), []byte("0"), 1, true).WaitTimeout(publishTimeout)
	}
	b.Close()
	return ctx.Err()
}
