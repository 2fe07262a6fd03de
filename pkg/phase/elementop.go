package phase

import (
	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/svc"
)

type accessState uint8

const (
	accessOpening accessState = iota
	accessTransferring
	accessDone
)

// elementAccess is the common "Open(idn) then read/write element 7" shape
// used throughout TransmitTiming and the Hot-Plug condensed parameter
// push: long sequences of single-element writes, each of which is just an
// Open followed by one WriteData or ReadData.
type elementAccess struct {
	macro   *svc.Macro
	idn     uint32
	write   bool
	data    []byte
	state   accessState
}

func writeElement(macro *svc.Macro, idn uint32, data []byte) *elementAccess {
	return &elementAccess{macro: macro, idn: idn, write: true, data: data}
}

func readElement(macro *svc.Macro, idn uint32, length int) *elementAccess {
	return &elementAccess{macro: macro, idn: idn, write: false, data: make([]byte, length)}
}

func (a *elementAccess) Advance() sercos3.Step {
	switch a.state {
	case accessOpening:
		if err := a.macro.Open(a.idn); err != nil {
			return sercos3.StepFail(err)
		}
		a.state = accessTransferring
		return sercos3.StepWait(0)

	case accessTransferring:
		step := a.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		var err error
		if a.write {
			err = a.macro.WriteData(a.data)
		} else {
			err = a.macro.ReadData(len(a.data))
		}
		if err != nil {
			return sercos3.StepFail(err)
		}
		a.state = accessDone
		return sercos3.StepWait(0)

	default:
		step := a.macro.Advance()
		if step.Done() && !a.write {
			copy(a.data, a.macro.LastData())
		}
		return step
	}
}

// Result returns the transferred bytes once Advance reports Done (for a
// read, the data received from the slave).
func (a *elementAccess) Result() []byte { return a.data }
