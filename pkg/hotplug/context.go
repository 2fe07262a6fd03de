package hotplug

import (
	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/slave"
)

// subPhase is the Coordinator's own internal step sequence. It is never
// interleaved with the phase sequencer's CP0->CP4 transitions: a Hot-Plug
// attempt runs to completion (or to rollback) before the next one starts.
type subPhase uint8

const (
	subIdle subPhase = iota
	subHP0Broadcast
	subFastForward
	subHP1Scan
	subHP1Dispatch
	subSwitchToSVC
	subTopologyCommit
	subDone
	subRollback
)

// maxScannedAddresses bounds one HP1 scan round the way the wire field's
// selection window does: only this many candidate addresses are held
// before the scan is considered saturated.
const maxScannedAddresses = 16

// Context carries the Hot-Plug Coordinator's working state across
// HotPlug/TransHP2Para calls. A Coordinator owns exactly one of these,
// reinitialised at the start of every fresh Hot-Plug attempt.
type Context struct {
	Sub subPhase

	ActivePort     sercos3.Port
	TimeoutCounter uint32
	ScanCursor     uint16
	HP0ParamIndex  int
	RepeatCounter  uint32

	ScannedAddresses []uint16
	LastSlaveInLine  slave.Idx // slave.None = master port

	FuncReturnCode error

	// pendingSlaves holds the fleet indices dispatched during HP1 and
	// carried through SVC activation, topology commit and the condensed
	// parameter push that follows.
	pendingSlaves []slave.Idx
	// cursor is an internal loop position reused across whichever
	// per-slave sub-step is currently running (HP1 dispatch, SVC
	// activation, topology commit, or TransHP2Para's per-slave stages);
	// enterPhase/enterPush reset it whenever the sub-step changes.
	cursor int

	backupLoopbFwdP bool
	backupLoopbFwdS bool
	backupValid     bool
}

func newContext() *Context {
	return &Context{LastSlaveInLine: slave.None}
}

func (c *Context) reset() {
	*c = Context{LastSlaveInLine: slave.None}
}

// addScanned records a newly scanned address. It reports false once the
// scan window is already full, letting the caller stop the scan round
// without treating "enough slaves found" as a failure. Duplicates are
// silently absorbed; the caller separately rejects them against the
// already-scanned addresses via sercos3.ErrHpDoubleSlaveAddresses before
// ever reaching here.
func (c *Context) addScanned(addr uint16) (accepted bool) {
	if len(c.ScannedAddresses) >= maxScannedAddresses {
		return false
	}
	for _, a := range c.ScannedAddresses {
		if a == addr {
			return true
		}
	}
	c.ScannedAddresses = append(c.ScannedAddresses, addr)
	return true
}
