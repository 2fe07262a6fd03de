package sercos3

import "time"

// The interfaces below are the master's external collaborators: hardware
// register access, timer-event configuration, and the watchdog. They are
// consumed, not implemented here; production code backs them with the
// IP-core register file, the way a transport backend sits behind a small
// interface so concrete drivers can implement it without touching the
// logic that calls it.

// RegisterFile is the memory-mapped IP-core register accessor.
type RegisterFile interface {
	ReadShort(offset uint32) (uint16, error)
	WriteShort(offset uint32, value uint16) error
}

// CycleClock configures the CYC_CLK/CON_CLK/DIV_CLK timer events that pace
// the Sercos cycle.
type CycleClock interface {
	PrepareCYCCLK(cycleTime time.Duration) error
	PrepareCYCCLK2(cycleTime time.Duration) error
	EnableCYCCLKInput(enable bool) error
	SetCONCLK(offset time.Duration) error
	ConfigDIVCLK(divisor uint32) error
	EventControl(event uint8, enable bool) error
	GetEventTime(event uint8) (time.Duration, error)
	IntControl(mask uint32, enable bool) error
	GetTCNT() (uint32, error)
	GetTCNTRelative() (uint32, error)
	GetTSref() (time.Duration, error)
}

// Watchdog is the optional register-level watchdog poke.
type Watchdog interface {
	Trigger() error
	Control(enable bool) error
	Configure(timeout time.Duration) error
	Status() (bool, error)
}

// Diagnostics surfaces the version-reporting and low-level diagnostic
// string formatting explicitly out of scope for this core.
type Diagnostics interface {
	Version() (string, error)
	IdentifySlave(slaveIdx int) error
}
