package svc

import (
	"fmt"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/slave"
)

// AtomicState is the 3(+1)-state FSM: InitRequest -> RequestInProgress ->
// [LastStep] -> FinishedRequest. The Sercos SVC has a single
// segmented-transfer shape, so one state machine covers every element
// transaction regardless of length.
type AtomicState uint8

const (
	StateInitRequest AtomicState = iota
	StateRequestInProgress
	StateLastStep
	StateFinishedRequest
)

// Request is one in-flight element-level SVC transaction (
// SvcMacroRequest, atomic-engine-visible subset).
type Request struct {
	SlaveIdx slave.Idx
	IDN      uint32
	Element  uint8 // 1..7
	Write    bool
	IsList   bool

	// Data is the destination buffer for a read, or the source buffer for
	// a write. Len(Data) bounds the transfer; for list reads the caller
	// grows Data as the current/max length header becomes known.
	Data []byte

	CancelActTrans bool
	Priority       uint8

	state        AtomicState
	actPosition  uint32 // words already transferred
	numWords     uint32 // words remaining
	lastAckSeen  bool
	busyCycles   uint32
	handshakeCycles uint32

	Err      error
	Finished bool

	// Callback fires once, from FinishedRequest, with the final error (nil
	// on success). Optional.
	Callback func(err error)
}

// NewRequest prepares a Request for Element against the given IDN. data is
// the source buffer for a write or the destination buffer for a read,
// supplied by the caller; its length in bytes sets the transfer size.
func NewRequest(slaveIdx slave.Idx, idn uint32, element uint8, write bool, data []byte) (*Request, error) {
	if element < 1 || element > 7 {
		return nil, fmt.Errorf("svc: %w: %d", sercos3.ErrWrongElementNbr, element)
	}
	r := &Request{
		SlaveIdx: slaveIdx,
		IDN:      idn,
		Element:  element,
		Write:    write,
		Data:     data,
		state:    StateInitRequest,
	}
	r.numWords = uint32((len(data) + 1) / 2)
	return r, nil
}

// Engine drives one slave's SVC Container through the atomic FSM, one
// Sercos cycle per Advance call. One Engine per slave; the Phase Sequencer
// holds them indexed by slave.Idx, and the Hot-Plug Coordinator registers
// engines for newly scanned slaves with it.
type Engine struct {
	Container *Container
	Order     HostOrder

	BusyTimeoutCycles      uint32
	HandshakeTimeoutCycles uint32
}

func NewEngine(container *Container, order HostOrder) *Engine {
	return &Engine{
		Container:              container,
		Order:                  order,
		BusyTimeoutCycles:      50,
		HandshakeTimeoutCycles: 50,
	}
}

// Advance runs exactly one cycle of the atomic FSM for req and returns the
// suspension/outcome for this cycle.
func (e *Engine) Advance(req *Request) sercos3.Step {
	if req.CancelActTrans {
		req.state = StateFinishedRequest
		req.Finished = true
		req.Err = sercos3.ErrRequestCanceled
		e.fireCallback(req)
		return sercos3.StepFail(sercos3.ErrRequestCanceled)
	}

	switch req.state {
	case StateInitRequest:
		return e.stepInit(req)
	case StateRequestInProgress:
		return e.stepInProgress(req)
	case StateLastStep:
		return e.stepLastStep(req)
	case StateFinishedRequest:
		return sercos3.StepDone()
	default:
		return sercos3.StepFail(sercos3.ErrIllegalCase)
	}
}

func (e *Engine) stepInit(req *Request) sercos3.Step {
	ctrl := e.Container.Control()
	if !ctrl.MBusy() {
		req.busyCycles++
		if req.busyCycles > e.BusyTimeoutCycles {
			return sercos3.StepFail(sercos3.ErrBusyTimeout)
		}
		return sercos3.StepWait(0)
	}

	newCtrl := ControlWord(req.Element) << 8 & CtrlElemMask
	if req.Write {
		newCtrl |= CtrlWrite
	}
	newCtrl |= CtrlMBusy
	e.Container.WriteControl(newCtrl)

	req.lastAckSeen = e.Container.Status().ABusy()
	req.busyCycles = 0
	req.handshakeCycles = 0
	req.state = StateRequestInProgress
	return sercos3.StepWait(0)
}

func (e *Engine) stepInProgress(req *Request) sercos3.Step {
	status := e.Container.Status()
	if status.Error() {
		req.state = StateFinishedRequest
		req.Finished = true
		req.Err = sercos3.NewSvcError(int(req.SlaveIdx), req.IDN, e.Container.InfoErrorCode)
		e.fireCallback(req)
		return sercos3.StepFail(req.Err)
	}

	if status.ABusy() == req.lastAckSeen {
		req.handshakeCycles++
		if req.handshakeCycles > e.HandshakeTimeoutCycles {
			return sercos3.StepFail(sercos3.ErrHandshakeTimeout)
		}
		return sercos3.StepWait(0)
	}
	req.lastAckSeen = status.ABusy()
	req.handshakeCycles = 0

	e.transferChunk(req)

	if req.numWords <= SC_WRBUF_LENGTH {
		req.state = StateLastStep
		return sercos3.StepWait(0)
	}

	ctrl := e.Container.Control()
	e.Container.WriteControl(ctrl ^ CtrlMBusy) // toggle to request next chunk
	return sercos3.StepWait(0)
}

func (e *Engine) stepLastStep(req *Request) sercos3.Step {
	ctrl := e.Container.Control()
	e.Container.WriteControl(ctrl | CtrlLastStep | CtrlSetEnd)

	status := e.Container.Status()
	if status.Error() {
		req.state = StateFinishedRequest
		req.Finished = true
		req.Err = sercos3.NewSvcError(int(req.SlaveIdx), req.IDN, e.Container.InfoErrorCode)
		e.fireCallback(req)
		return sercos3.StepFail(req.Err)
	}
	if status.ABusy() == req.lastAckSeen {
		req.handshakeCycles++
		if req.handshakeCycles > e.HandshakeTimeoutCycles {
			return sercos3.StepFail(sercos3.ErrHandshakeTimeout)
		}
		return sercos3.StepWait(0)
	}

	e.transferChunk(req)
	req.state = StateFinishedRequest
	req.Finished = true
	e.fireCallback(req)
	return sercos3.StepDone()
}

// transferChunk moves up to SC_WRBUF_LENGTH words between req.Data and the
// container buffer, honoring host byte order, and advances the segmentation
// cursor.
func (e *Engine) transferChunk(req *Request) {
	chunk := req.numWords
	if chunk > SC_WRBUF_LENGTH {
		chunk = SC_WRBUF_LENGTH
	}
	byteOff := int(req.actPosition) * 2
	byteLen := int(chunk) * 2
	if byteOff+byteLen > len(req.Data) {
		byteLen = len(req.Data) - byteOff
	}
	if byteLen < 0 {
		byteLen = 0
	}

	if req.Write {
		for w := 0; w < int(chunk) && byteOff+w*2 < len(req.Data); w++ {
			lo := req.Data[byteOff+w*2]
			var hi byte
			if byteOff+w*2+1 < len(req.Data) {
				hi = req.Data[byteOff+w*2+1]
			}
			e.Container.WriteBuf[w] = uint16(lo) | uint16(hi)<<8
		}
	} else {
		for w := 0; w < int(chunk); w++ {
			v := e.Container.ReadBuf[w]
			if byteOff+w*2 < len(req.Data) {
				req.Data[byteOff+w*2] = byte(v)
			}
			if byteOff+w*2+1 < len(req.Data) {
				req.Data[byteOff+w*2+1] = byte(v >> 8)
			}
		}
	}

	req.actPosition += chunk
	req.numWords -= chunk
}

func (e *Engine) fireCallback(req *Request) {
	if req.Callback != nil {
		req.Callback(req.Err)
	}
}
