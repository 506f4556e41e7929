// Package sh is the interactive operator shell.
package sh

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/robofleet/pkg/fleet/mqtt"
	"github.com/robotalks/robofleet/pkg/msgs"
	"github.com/robotalks/robofleet/pkg/names"
)

// CommandSender delivers operator commands, usually an *mqtt.Bridge.
type CommandSender interface {
	SendCommand(*msgs.OperatorCommand) error
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Bridge *mqtt.Bridge
	Sender CommandSender
	Robot  names.RobotName

	selected bool
	lock     sync.Mutex
	statuses map[string]*msgs.RobotStatus
}

const (
	shellKey         = "$shell"
	unselectedPrompt = "[none] > "

	// statusSettle is how long one-shot commands wait for retained status.
	statusSettle = 300 * time.Millisecond
)

// ErrNoRobot indicates a command needs a selected robot.
var ErrNoRobot = errors.New("no robot selected, try use ROBOT")

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&RobotsCmd,
		&UseCmd,
		&StatusCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell watching robot status through bridge.
func New(bridge *mqtt.Bridge) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:    ishell.New(),
		Bridge:   bridge,
		statuses: make(map[string]*msgs.RobotStatus),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unselectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	if bridge != nil {
		s.Sender = bridge
		bridge.WatchStatus(s.UpdateStatus)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustSelectRobot wraps command func requires a selected robot.
func MustSelectRobot(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if !ShellFrom(c).selected {
			c.Err(ErrNoRobot)
			return
		}
		fn(c)
	}
}

// SendCommand sends an operator command for the selected robot.
func SendCommand(c *ishell.Context, cmd *msgs.OperatorCommand) error {
	s := ShellFrom(c)
	if err := s.Send(cmd); err != nil {
		c.Err(err)
		return err
	}
	if !s.OutputJSON {
		c.Println("OK")
	}
	return nil
}

// Send sends cmd for the selected robot.
func (s *Shell) Send(cmd *msgs.OperatorCommand) error {
	if !s.selected {
		return ErrNoRobot
	}
	cmd.Robot = s.Robot.String()
	return s.Sender.SendCommand(cmd)
}

// UpdateStatus keeps the latest status of a robot.
func (s *Shell) UpdateStatus(status *msgs.RobotStatus) {
	s.lock.Lock()
	s.statuses[status.Robot] = status
	s.lock.Unlock()
}

// Statuses returns the latest status of every robot, sorted by name.
func (s *Shell) Statuses() []*msgs.RobotStatus {
	s.lock.Lock()
	list := make([]*msgs.RobotStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		list = append(list, st)
	}
	s.lock.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Robot < list[j].Robot })
	return list
}

// Status returns the latest status of a robot.
func (s *Shell) Status(name names.RobotName) *msgs.RobotStatus {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.statuses[name.String()]
}

// Use selects the robot subsequent commands apply to.
func (s *Shell) Use(robot string) error {
	name, err := names.Parse(robot)
	if err != nil {
		return err
	}
	s.Robot, s.selected = name, true
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
	}
	return nil
}

// FormatStatus prints RobotStatus into friendly string for display.
func FormatStatus(status *msgs.RobotStatus) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s", status.Robot)
	if status.Connected {
		fmt.Fprint(&w, " connected")
	} else {
		fmt.Fprint(&w, " disconnected")
	}
	if cur := status.OtaCurrent; cur != nil {
		fmt.Fprintf(&w, " ota=%s", FormatStep(cur))
	}
	if sensors := status.Sensors; sensors != nil {
		fmt.Fprintf(&w, " battery=%.2fV", sensors.Battery)
	}
	return w.String()
}

// FormatStep prints one update step.
func FormatStep(rec *msgs.OtaStepRecord) string {
	var w bytes.Buffer
	fmt.Fprint(&w, rec.Name)
	if rec.Total > 0 {
		fmt.Fprintf(&w, " %d/%d", rec.Received, rec.Total)
	}
	fmt.Fprintf(&w, " (%s, %s)", outcomeNames[rec.Outcome%3], time.Duration(rec.ElapsedMs)*time.Millisecond)
	return w.String()
}

var outcomeNames = [...]string{"pending", "success", "failure"}

// PrintJSON prints v in JSON.
func PrintJSON(c *ishell.Context, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// RobotsCmd lists robots reported by the coordinator.
	RobotsCmd = ishell.Cmd{
		Name:    "robots",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			statuses := s.Statuses()
			if s.OutputJSON {
				PrintJSON(c, statuses)
				return
			}
			if len(statuses) == 0 {
				c.Println("No robots reported")
				return
			}
			for _, st := range statuses {
				c.Println(FormatStatus(st))
			}
		},
	}

	// UseCmd selects a robot.
	UseCmd = ishell.Cmd{
		Name:    "use",
		Aliases: []string{"u"},
		Help:    "ROBOT",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			robot := ""
			if len(c.Args) > 0 {
				robot = c.Args[0]
			} else {
				statuses := s.Statuses()
				if len(statuses) == 0 || !s.Interactive {
					c.Err(fmt.Errorf("ROBOT required"))
					return
				}
				items := make([]string, len(statuses))
				for n, st := range statuses {
					items[n] = FormatStatus(st)
				}
				robot = statuses[s.Shell.MultiChoice(items, "Which robot?")].Robot
			}
			if err := s.Use(robot); err != nil {
				c.Err(err)
			}
		},
	}

	// StatusCmd prints the status and update history of the selected robot.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustSelectRobot(func(c *ishell.Context) {
			s := ShellFrom(c)
			status := s.Status(s.Robot)
			if s.OutputJSON {
				PrintJSON(c, status)
				return
			}
			if status == nil {
				c.Println("No status reported")
				return
			}
			c.Println(FormatStatus(status))
			for _, rec := range status.OtaHistory {
				c.Println("  " + FormatStep(rec))
			}
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main(bridge *mqtt.Bridge, robot string) {
	if err := bridge.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer bridge.Close()
	s := New(bridge)
	if robot != "" {
		if err := s.Use(robot); err != nil {
			log.Fatalln(err)
		}
	}
	if len(flag.Args()) > 0 {
		time.Sleep(statusSettle)
	}
	s.Run(flag.Args()...)
}
