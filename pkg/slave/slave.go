// Package slave owns the per-slave and per-connection data model shared by
// the phase sequencer, the SCP class reasoner and the Hot-Plug coordinator:
// one owning value holds parallel slices indexed by slave/connection
// index, never bare pointers threaded between structures.
package slave

import "fmt"

// Activity is the lifecycle state of a projected slave.
type Activity uint8

const (
	Inactive Activity = iota
	Active
	HotPlugInProgress
)

func (a Activity) String() string {
	switch a {
	case Active:
		return "ACTIVE"
	case HotPlugInProgress:
		return "HOTPLUG_IN_PROGRESS"
	default:
		return "INACTIVE"
	}
}

// Idx is a slave index into Fleet.slaves, 0..N-1 (configuration position).
// A distinct type keeps it from being confused with a Sercos wire address
// (1..511).
type Idx int

// None is the index sentinel replacing the source's 0xFFFF "no index"
// convention.
const None Idx = -1

// DevControl is the 16-bit C-DEV word shadowed by the master for one slave.
type DevControl uint16

const (
	CDevIdentification     DevControl = 1 << 15
	CDevTopologyHandshake  DevControl = 1 << 14
	CDevTopologyCtrlMask   DevControl = 0b11 << 12
	CDevTopologyFFBoth     DevControl = 0b00 << 12
	CDevTopologyLoopbFwdP  DevControl = 0b01 << 12
	CDevTopologyLoopbFwdS  DevControl = 0b10 << 12
	CDevControlPhysTopo    DevControl = 1 << 11
	CDevMasterValid        DevControl = 1 << 8
)

// DevStatus is the 16-bit S-DEV word observed from a slave.
type DevStatus uint16

const (
	SDevSlaveValid       DevStatus = 1 << 15
	SDevTopologyHS       DevStatus = 1 << 14
	SDevTopologyStatus   DevStatus = 1 << 13
	SDevInactiveMask     DevStatus = 0b11 << 0
)

// InactiveLinkStatus decodes S-DEV bits 1:0.
type InactiveLinkStatus uint8

const (
	InactiveNoLink InactiveLinkStatus = iota
	InactiveLinkNoSercos
	InactivePTelegram
	InactiveSTelegram
)

func (s DevStatus) Inactive() InactiveLinkStatus {
	return InactiveLinkStatus(s & SDevInactiveMask)
}

func (s DevStatus) Valid() bool { return s&SDevSlaveValid != 0 }

// Connection describes one active producer/consumer relationship.
type Connection struct {
	ConfigIdx          int
	ConnectionNbr       uint16
	LengthBytes         uint16
	ProducerCycleTimeUs uint32
	TelegramAssignment  uint8 // which of MDT[0..3]/AT[0..3]
	AllowedDataLosses   uint8
	RTBitAllocation     []uint16
}

// Slave is one projected (configured) Sercos slave, indexed 0..N-1.
type Slave struct {
	Idx      Idx
	Address  uint16 // Sercos address, 1..511
	Activity Activity

	SupportedClasses []ClassVersion
	ActiveClasses    []ClassVersion
	ClassMask        uint32

	MaxConnections int
	Connections    []Connection
	MdtOffset      uint16
	AtOffset       uint16
	SvcOffsetMDT   uint16
	SvcOffsetAT    uint16
	Jitter         uint32

	DevControl DevControl
	DevStatus  DevStatus
}

func NewSlave(idx Idx, address uint16) *Slave {
	return &Slave{Idx: idx, Address: address, Activity: Inactive}
}

// ClassVersion is one SCP class/version word as read from S-0-1000.
type ClassVersion struct {
	Class   uint16
	Version uint8
}

func (cv ClassVersion) String() string {
	return fmt.Sprintf("%s v%d", ClassName(cv.Class), cv.Version)
}

// Fleet owns every projected slave, array-indexed rather than map-indexed
// since slave indices are dense 0..N-1.
type Fleet struct {
	slaves []*Slave
}

func NewFleet(addresses []uint16) *Fleet {
	f := &Fleet{slaves: make([]*Slave, len(addresses))}
	for i, addr := range addresses {
		f.slaves[i] = NewSlave(Idx(i), addr)
	}
	return f
}

func (f *Fleet) Len() int { return len(f.slaves) }

func (f *Fleet) At(idx Idx) (*Slave, error) {
	if idx < 0 || int(idx) >= len(f.slaves) {
		return nil, fmt.Errorf("slave: index %d out of range [0,%d)", idx, len(f.slaves))
	}
	return f.slaves[idx], nil
}

// Active returns the indices of every slave currently Active or
// HotPlugInProgress, the population a phase-transition batch iterates.
func (f *Fleet) Active() []Idx {
	out := make([]Idx, 0, len(f.slaves))
	for _, s := range f.slaves {
		if s.Activity != Inactive {
			out = append(out, s.Idx)
		}
	}
	return out
}

// All returns every projected slave index regardless of activity.
func (f *Fleet) All() []Idx {
	out := make([]Idx, len(f.slaves))
	for i, s := range f.slaves {
		out[i] = s.Idx
	}
	return out
}

// Append adds a newly scanned Hot-Plug slave to the fleet and returns its
// new index, growing the arena.
func (f *Fleet) Append(address uint16) Idx {
	idx := Idx(len(f.slaves))
	f.slaves = append(f.slaves, NewSlave(idx, address))
	return idx
}

// IndexOf finds the slave index for a given Sercos wire address, or None.
func (f *Fleet) IndexOf(address uint16) Idx {
	for _, s := range f.slaves {
		if s.Address == address {
			return s.Idx
		}
	}
	return None
}
