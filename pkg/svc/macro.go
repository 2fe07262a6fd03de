package svc

import (
	"encoding/binary"
	"fmt"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/slave"
)

// Element numbers fixed by Sercos.
const (
	ElementIDN       uint8 = 1
	ElementName      uint8 = 2
	ElementAttribute uint8 = 3
	ElementUnit      uint8 = 4
	ElementMin       uint8 = 5
	ElementMax       uint8 = 6
	ElementData      uint8 = 7
)

// Attribute decodes element 3's 4-byte bit-packed attribute word.
type Attribute struct {
	DataType        uint8
	LengthCode      uint8
	IsList          bool
	IsProcCommand   bool
	DataBlockElems  uint8
	ParameterAttr   uint16
}

func DecodeAttribute(raw uint32) Attribute {
	return Attribute{
		DataType:       uint8(raw & 0x7),
		LengthCode:     uint8((raw >> 3) & 0x7),
		IsList:         raw&(1<<6) != 0,
		IsProcCommand:  raw&(1<<31) != 0,
		DataBlockElems: uint8((raw >> 16) & 0xFF),
		ParameterAttr:  uint16((raw >> 8) & 0xFF),
	}
}

// LengthFromCode maps the attribute's 3-bit length code to an element byte
// length (Sercos attribute encoding, fixed sizes for scalar elements).
func (a Attribute) LengthFromCode() int {
	switch a.LengthCode {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	case 3:
		return 8
	default:
		return 4
	}
}

// MacroState is the macro-level transaction state of:
// START_REQUEST -> REQUEST_IN_PROGRESS -> one of the terminal states.
type MacroState uint8

const (
	MacroStartRequest MacroState = iota
	MacroRequestInProgress
	MacroDataValid
	MacroAttributeValid
	MacroCmdActive
	MacroCmdCleared
	MacroCmdStatusValid
	MacroRequestError
)

// CmdStatus decodes the procedure-command status word returned by
// ReadCmdStatus.
type CmdStatus uint16

const (
	CmdFinished   CmdStatus = 0x3
	CmdInterrupted CmdStatus = 0x5
	CmdRunning    CmdStatus = 0x7
	CmdError      CmdStatus = 0xF
)

// Macro binds an Engine to a target IDN and exposes the per-slave
// element-access operations, guaranteeing at most one active transaction
// per slave at a time. It wraps the atomic handshake in a
// single-active-transaction-per-slave object with its own macro-visible
// state distinct from the transport's.
type Macro struct {
	engine   *Engine
	order    HostOrder
	slaveIdx slave.Idx

	idn   uint32
	attr  Attribute
	state MacroState

	internalReq bool
	activeReq   *Request
	lastData    []byte
}

func NewMacro(engine *Engine, order HostOrder, slaveIdx slave.Idx) *Macro {
	return &Macro{engine: engine, order: order, slaveIdx: slaveIdx, state: MacroStartRequest}
}

func (m *Macro) State() MacroState { return m.state }

// Open starts the logical session for subsequent element reads/writes by
// writing element 1 (IDN) with the 4-byte IDN.
func (m *Macro) Open(idn uint32) error {
	if m.internalReq {
		return sercos3.ErrSvchInUse
	}
	m.idn = idn
	m.state = MacroStartRequest
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, idn)
	req, err := NewRequest(m.slaveIdx, idn, ElementIDN, true, buf)
	if err != nil {
		return err
	}
	m.activeReq = req
	m.state = MacroRequestInProgress
	return nil
}

// Advance runs one cycle of whatever element transaction is currently
// active and returns the batch-level Step, the way the Phase Sequencer's
// inner per-slave FSM expects.
func (m *Macro) Advance() sercos3.Step {
	if m.activeReq == nil {
		return sercos3.StepDone()
	}
	step := m.engine.Advance(m.activeReq)
	if step.Failed() {
		m.state = MacroRequestError
		return step
	}
	if step.Done() {
		m.onRequestFinished()
	}
	return step
}

func (m *Macro) onRequestFinished() {
	m.lastData = m.activeReq.Data
	switch m.activeReq.Element {
	case ElementAttribute:
		raw := m.order.Uint32(m.activeReq.Data)
		m.attr = DecodeAttribute(raw)
		m.state = MacroAttributeValid
	default:
		m.state = MacroDataValid
	}
	m.activeReq = nil
	m.internalReq = false
}

// LastData returns the data buffer of the most recently finished element
// transaction (read result, or the bytes that were written).
func (m *Macro) LastData() []byte { return m.lastData }

// ReadAttribute reads element 3.
func (m *Macro) ReadAttribute() error {
	return m.start(ElementAttribute, false, make([]byte, 4), false)
}

// ReadName reads list element 2, prepending the 4-byte current/max length
// header.
func (m *Macro) ReadName(maxLen int) error {
	return m.start(ElementName, false, make([]byte, maxLen+4), true)
}

// ReadUnit reads list element 4.
func (m *Macro) ReadUnit(maxLen int) error {
	return m.start(ElementUnit, false, make([]byte, maxLen+4), true)
}

// ReadMin reads element 5 using the length implied by a prior attribute
// read.
func (m *Macro) ReadMin() error {
	return m.start(ElementMin, false, make([]byte, m.attr.LengthFromCode()), false)
}

// ReadMax reads element 6.
func (m *Macro) ReadMax() error {
	return m.start(ElementMax, false, make([]byte, m.attr.LengthFromCode()), false)
}

// ReadData reads element 7, scalar or list.
func (m *Macro) ReadData(length int) error {
	return m.start(ElementData, false, make([]byte, length), m.attr.IsList)
}

// WriteData writes element 7.
func (m *Macro) WriteData(data []byte) error {
	return m.start(ElementData, true, data, m.attr.IsList)
}

// GetListLength reads the 4-byte current+max length header for a list
// element before the bulk data.
func (m *Macro) GetListLength() (current, max uint16, err error) {
	var data []byte
	switch {
	case m.activeReq == nil:
		data = m.lastData
	case m.activeReq.Finished:
		data = m.activeReq.Data
	default:
		return 0, 0, fmt.Errorf("svc: GetListLength called before transfer finished")
	}
	if len(data) >= 4 {
		current = binary.LittleEndian.Uint16(data[0:2])
		max = binary.LittleEndian.Uint16(data[2:4])
	}
	return current, max, nil
}

// SetCommand writes the procedure-command IDN's command word to "set".
func (m *Macro) SetCommand() error {
	buf := []byte{0x01, 0x00, 0x00, 0x00}
	if err := m.start(ElementData, true, buf, false); err != nil {
		return err
	}
	m.state = MacroCmdActive
	return nil
}

// ClearCommand clears a procedure command.
func (m *Macro) ClearCommand() error {
	buf := []byte{0x00, 0x00, 0x00, 0x00}
	if err := m.start(ElementData, true, buf, false); err != nil {
		return err
	}
	m.state = MacroCmdCleared
	return nil
}

// ReadCmdStatus reads the current procedure-command status word.
func (m *Macro) ReadCmdStatus() (CmdStatus, error) {
	if err := m.start(ElementData, false, make([]byte, 2), false); err != nil {
		return 0, err
	}
	m.state = MacroCmdStatusValid
	return 0, nil
}

// ResetSVCH force-cancels a stuck transaction.
func (m *Macro) ResetSVCH() {
	if m.activeReq != nil {
		m.activeReq.CancelActTrans = true
	}
	m.activeReq = nil
	m.internalReq = false
	m.state = MacroStartRequest
}

// start begins an element transaction, honoring the "at most one active
// transaction per slave" contract.
func (m *Macro) start(element uint8, write bool, data []byte, isList bool) error {
	if m.activeReq != nil && !m.activeReq.Finished {
		return sercos3.ErrSvchInUse
	}
	req, err := NewRequest(m.slaveIdx, m.idn, element, write, data)
	if err != nil {
		return err
	}
	req.IsList = isList
	m.activeReq = req
	m.state = MacroRequestInProgress
	return nil
}
