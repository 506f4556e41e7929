package ota

import (
	"github.com/abiosoft/ishell"

	"github.com/robotalks/robofleet/pkg/cli/sh"
	"github.com/robotalks/robofleet/pkg/msgs"
)

// Ops maps each command name to the action it requests.
var Ops = map[string]msgs.OperatorOp{
	"ota.start":   msgs.OperatorOpStartOta,
	"ota.confirm": msgs.OperatorOpConfirmOta,
	"ota.cancel":  msgs.OperatorOpCancelOta,
	"ota.clear":   msgs.OperatorOpClearOtaHistory,
}

// Command creates the operator command sent by the named command.
func Command(name string) *msgs.OperatorCommand {
	return &msgs.OperatorCommand{Op: Ops[name]}
}

func opCmd(name, alias, help string) ishell.Cmd {
	return ishell.Cmd{
		Name:    name,
		Aliases: []string{alias},
		Help:    help,
		Func: sh.MustSelectRobot(func(c *ishell.Context) {
			sh.SendCommand(c, Command(name))
		}),
	}
}

var (
	// StartCmd starts a firmware update.
	StartCmd = opCmd("ota.start", "os", "start firmware update")
	// ConfirmCmd passes the current confirmation gate.
	ConfirmCmd = opCmd("ota.confirm", "oc", "confirm the waiting step")
	// CancelCmd cancels the update in progress.
	CancelCmd = opCmd("ota.cancel", "ox", "cancel firmware update")
	// ClearCmd clears the update history.
	ClearCmd = opCmd("ota.clear", "oz", "clear update history")
)

func init() {
	sh.AddCmds(
		&StartCmd,
		&ConfirmCmd,
		&CancelCmd,
		&ClearCmd,
	)
}
