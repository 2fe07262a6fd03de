// Package svc implements the Sercos Service Channel: the element-oriented,
// handshake-driven, possibly-segmented parameter transport overlayed on
// every cyclic MDT/AT pair. One SvcContainer exists per slave; atomic.go
// drives its 3-state FSM one Sercos cycle per step, macro.go binds a full
// parameter-element access on top of it. The handshake bit pair
// (M_BUSY/A_BUSY) enforces that only one party advances the handshake at
// a time, the same role a toggle bit plays in a segmented transfer.
package svc

import "sync"

// SC_WRBUF_LENGTH is the per-cycle SVC buffer window size in 16-bit
// words. Kept in the wire protocol's own SCREAMING_CASE rather than
// translated to idiomatic Go casing, since it is vocabulary a maintainer
// will grep for against the Sercos standard text.
const SC_WRBUF_LENGTH = 8

// ControlWord is the master-to-slave half of the SVC handshake pair.
type ControlWord uint16

const (
	CtrlMBusy    ControlWord = 1 << 15 // master-busy handshake gate
	CtrlElemMask ControlWord = 0x0F00  // element selector, bits 11:8
	CtrlLastStep ControlWord = 1 << 7
	CtrlWrite    ControlWord = 1 << 6 // 1 = write, 0 = read
	CtrlSetEnd   ControlWord = 1 << 5
)

func (c ControlWord) Element() uint8   { return uint8((c & CtrlElemMask) >> 8) }
func (c ControlWord) IsWrite() bool    { return c&CtrlWrite != 0 }
func (c ControlWord) MBusy() bool      { return c&CtrlMBusy != 0 }

// StatusWord is the slave-to-master half of the SVC handshake pair.
type StatusWord uint16

const (
	StatusABusy     StatusWord = 1 << 15 // slave-ack handshake bit
	StatusError     StatusWord = 1 << 14
	StatusValid     StatusWord = 1 << 13
)

func (s StatusWord) ABusy() bool { return s&StatusABusy != 0 }
func (s StatusWord) Error() bool { return s&StatusError != 0 }

// Container is the hardware (or simulated) SVC realisation for one slave:
// the control/status word pair, the RX/TX pointers into frame RAM, and the
// read/write data buffers exchanged across MDT/AT (
// SvcContainer). Access discipline: only one party (master vs slave-side
// simulation) advances the handshake at a time, enforced here with a mutex
// standing in for the IP-core's 16-bit write atomicity.
type Container struct {
	mu sync.Mutex

	control ControlWord
	status  StatusWord

	// WriteBuf / ReadBuf are the SC_WRBUF_LENGTH-word windows exchanged
	// each cycle: WriteBuf carries master->slave data (MDT), ReadBuf
	// carries slave->master data (AT).
	WriteBuf [SC_WRBUF_LENGTH]uint16
	ReadBuf  [SC_WRBUF_LENGTH]uint16

	// InfoErrorCode is the 2-byte Sercos error code the slave places in
	// the SVC info field when StatusError is set.
	InfoErrorCode uint16
}

func NewContainer() *Container { return &Container{} }

// WriteControl is called once per cycle by the atomic engine to place the
// master's half of the handshake into the outgoing MDT.
func (c *Container) WriteControl(ctrl ControlWord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.control = ctrl
}

func (c *Container) Control() ControlWord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.control
}

// ObserveStatus is called once per cycle when the AT for this slave is
// decoded, handing the slave's half of the handshake to the atomic engine.
func (c *Container) ObserveStatus(status StatusWord, errCode uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.InfoErrorCode = errCode
}

func (c *Container) Status() StatusWord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}
