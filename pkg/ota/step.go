package ota

import (
	"fmt"
	"time"
)

// Step is one stage of a firmware update, in handshake order.
type Step int

// Update steps.
const (
	GuiRequest Step = iota
	RobotReadyConfirmation
	FetchBinary
	DataTransfer
	HashConfirmation
	GuiConfirmation
	MarkUpdateReady
	Reboot
	CheckFirmwareSwapped
	FinalGuiConfirmation
	MarkUpdateBooted
	Finished
	Failed
)

var stepNames = [...]string{
	GuiRequest:             "GuiRequest",
	RobotReadyConfirmation: "RobotReadyConfirmation",
	FetchBinary:            "FetchBinary",
	DataTransfer:           "DataTransfer",
	HashConfirmation:       "HashConfirmation",
	GuiConfirmation:        "GuiConfirmation",
	MarkUpdateReady:        "MarkUpdateReady",
	Reboot:                 "Reboot",
	CheckFirmwareSwapped:   "CheckFirmwareSwapped",
	FinalGuiConfirmation:   "FinalGuiConfirmation",
	MarkUpdateBooted:       "MarkUpdateBooted",
	Finished:               "Finished",
	Failed:                 "Failed",
}

func (s Step) String() string {
	if s >= 0 && int(s) < len(stepNames) {
		return stepNames[s]
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// IsTerminal tells if no further transition happens from s.
func (s Step) IsTerminal() bool {
	return s == Finished || s == Failed
}

// IsGate tells if s only advances on an operator confirmation.
func (s Step) IsGate() bool {
	return s == GuiConfirmation || s == FinalGuiConfirmation
}

// Outcome is the result of a recorded step.
type Outcome int

// Outcomes.
const (
	Pending Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// Progress is the state carried by DataTransfer.
type Progress struct {
	Received int
	Total    int
}

// Record is one entry of the update history.
type Record struct {
	Step     Step
	Progress Progress
	Outcome  Outcome
	// Elapsed is the time since the update started.
	Elapsed time.Duration
}
