package phase

import (
	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/svc"
)

// procCmdState steps the reusable Clear->Set->PollStatus->Clear shape every
// procedure command follows.
type procCmdState uint8

const (
	procCmdClearFirst procCmdState = iota
	procCmdSet
	procCmdPoll
	procCmdClearFinal
	procCmdDone
)

// ProcCommand drives one IDN-parameterised procedure command
// (e.g. S-0-1024 "activate network settings", S-0-0127/S-0-0128 transition
// checks) through its fixed protocol shape, factored once and reused by
// TransmitTiming's NRTPC step and the Hot-Plug condensed parameter push.
type ProcCommand struct {
	macro *svc.Macro
	idn   uint32
	state procCmdState
}

func NewProcCommand(macro *svc.Macro, idn uint32) *ProcCommand {
	return &ProcCommand{macro: macro, idn: idn}
}

// Advance runs one cycle of the combinator. Returns StepWait while
// in-progress, StepDone once the command has been observed finished and
// cleared, StepFail if the command reports CmdError or the underlying SVC
// transaction fails.
func (p *ProcCommand) Advance() sercos3.Step {
	switch p.state {
	case procCmdClearFirst:
		if err := p.macro.Open(p.idn); err != nil {
			return sercos3.StepFail(err)
		}
		if err := p.macro.ClearCommand(); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = procCmdSet
		return sercos3.StepWait(0)

	case procCmdSet:
		step := p.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		if err := p.macro.SetCommand(); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = procCmdPoll
		return sercos3.StepWait(0)

	case procCmdPoll:
		step := p.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		status, err := p.macro.ReadCmdStatus()
		if err != nil {
			return sercos3.StepFail(err)
		}
		switch status {
		case svc.CmdFinished:
			p.state = procCmdClearFinal
			return sercos3.StepWait(0)
		case svc.CmdError:
			return sercos3.StepFail(sercos3.ErrIllegalCase)
		default:
			return sercos3.StepWait(0)
		}

	case procCmdClearFinal:
		if err := p.macro.ClearCommand(); err != nil {
			return sercos3.StepFail(err)
		}
		p.state = procCmdDone
		return sercos3.StepWait(0)

	default:
		return sercos3.StepDone()
	}
}
