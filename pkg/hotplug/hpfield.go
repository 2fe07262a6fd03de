// Package hotplug implements the Hot-Plug Coordinator: the procedure that
// admits a new slave onto an already-cyclic ring without retriggering the
// phase sequencer's CP0->CP4 bring-up for the rest of the fleet. It runs
// strictly outside the sequencer's phase transitions, driving its own HP0
// broadcast, HP1 scan and condensed parameter push through MDT0/AT0's HP
// field and the already-active slaves' service channels.
package hotplug

import (
	"encoding/binary"
	"fmt"

	sercos3 "github.com/sercos3/master"
)

// HPCode is the operation code carried in the low byte of the HP
// control/status word, one per Hot-Plug sub-phase.
type HPCode uint8

const (
	HPCodeIdle HPCode = iota
	HPCodeParamBroadcast
	HPCodeFastForward
	HPCodeSlaveScan
	HPCodeParamDispatch
	HPCodeSwitchToSVC
)

// HPControl is the master-to-slave half of the HP field, carried once per
// cycle in MDT0.
type HPControl uint16

const (
	hpControlSupported HPControl = 1 << 15
	hpControlEnabled    HPControl = 1 << 14
	hpControlCodeMask   HPControl = 0x00FF
)

func NewHPControl(code HPCode, supported, enabled bool) HPControl {
	c := HPControl(code) & hpControlCodeMask
	if supported {
		c |= hpControlSupported
	}
	if enabled {
		c |= hpControlEnabled
	}
	return c
}

func (c HPControl) Code() HPCode    { return HPCode(c & hpControlCodeMask) }
func (c HPControl) Supported() bool { return c&hpControlSupported != 0 }
func (c HPControl) Enabled() bool   { return c&hpControlEnabled != 0 }

// HPStatus is the slave-to-master half of the HP field, carried once per
// cycle in AT0.
type HPStatus uint16

const (
	hpStatusActive   HPStatus = 1 << 15
	hpStatusCodeMask HPStatus = 0x00FF
)

func (s HPStatus) Code() HPCode  { return HPCode(s & hpStatusCodeMask) }
func (s HPStatus) Active() bool  { return s&hpStatusActive != 0 }

// FieldLength is the wire width of the HP field in bytes: a 2-byte
// control/status word, a 2-byte selection (slave index or Sercos address)
// and a 4-byte operation-specific info word.
const FieldLength = 8

// HPField is the decoded HP field exchanged once per cycle in MDT0/AT0.
type HPField struct {
	Control   HPControl
	Status    HPStatus
	Selection uint16
	Info      uint32
}

var errHPFieldBounds = fmt.Errorf("hotplug: %w: telegram too short for HP field", sercos3.ErrIllegalCase)

// EncodeMDT0 writes the master's half of an HP field into an MDT0 telegram
// at the given byte offset (S-0-1025's configured HP field position).
func EncodeMDT0(t sercos3.Telegram, offset int, f HPField) error {
	if offset < 0 || offset+FieldLength > len(t.Data) {
		return errHPFieldBounds
	}
	binary.LittleEndian.PutUint16(t.Data[offset:], uint16(f.Control))
	binary.LittleEndian.PutUint16(t.Data[offset+2:], f.Selection)
	binary.LittleEndian.PutUint32(t.Data[offset+4:], f.Info)
	return nil
}

// DecodeAT0 reads the slave's half of an HP field from an AT0 telegram at
// the given byte offset.
func DecodeAT0(t sercos3.Telegram, offset int) (HPField, error) {
	if offset < 0 || offset+FieldLength > len(t.Data) {
		return HPField{}, errHPFieldBounds
	}
	return HPField{
		Status:    HPStatus(binary.LittleEndian.Uint16(t.Data[offset:])),
		Selection: binary.LittleEndian.Uint16(t.Data[offset+2:]),
		Info:      binary.LittleEndian.Uint32(t.Data[offset+4:]),
	}, nil
}
