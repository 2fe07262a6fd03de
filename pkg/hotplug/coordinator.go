package hotplug

import (
	"log/slog"
	"sync"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/phase"
	"github.com/sercos3/master/pkg/slave"
	"github.com/sercos3/master/pkg/svc"
)

const (
	maxSercosAddress   uint16 = 511
	broadcastSelection uint16 = 0xFFFF

	hp0RepeatCount           = 16
	hp0TimeoutCycles         = 2000
	hp1ScanTimeoutCycles     = 4000
	hp1DispatchTimeoutCycles = 2000
	svcSwitchTimeoutCycles   = 1000
	awaitValidTimeoutCycles  = 200 // one cycle ~= 1ms, matching the 200ms commit budget

	svcOffsetBase   uint16 = 64
	svcOffsetStride uint16 = 16
)

// pushSub is TransHP2Para's own step sequence, distinct from the Sub field
// HotPlug drives: the two entry points never run concurrently (a Hot-Plug
// attempt completes topology commit before the condensed push begins) but
// keeping separate state avoids coupling their step numbering.
type pushSub uint8

const (
	pushIdle pushSub = iota
	pushCheckVersion
	pushTiming
	pushReadConfig
	pushActivate
	pushTransitionCP3
	pushTransitionCP4
	pushAwaitValid
	pushDone
)

// Coordinator drives the Hot-Plug procedure: admitting a new slave onto an
// already-cyclic ring through its own HP0/HP1 exchange over MDT0/AT0's HP
// field, then bringing it up to the rest of the fleet's configuration state
// through the condensed parameter push, all without retriggering the phase
// sequencer's CP0->CP4 bring-up for slaves already running.
type Coordinator struct {
	Fleet     *slave.Fleet
	Sequencer *phase.Sequencer
	Ring      *sercos3.RingManager
	Order     svc.HostOrder

	// MDT0HPOffset/AT0HPOffset are the configured byte offsets of the HP
	// field within MDT0/AT0 (the Hot-Plug counterpart of S-1013/S-1014).
	MDT0HPOffset int
	AT0HPOffset  int
	HPSupported  bool
	// RingClosed reports whether the ring topology has already been
	// closed into a loop; Hot-Plug requires an open line to attach to.
	RingClosed bool

	logger *slog.Logger

	ctx  *Context
	push pushSub

	mu      sync.Mutex
	lastAT0 map[sercos3.Port]HPField

	dispatchWriter *hp1ParamWrite
	procCmd        *phase.ProcCommand
}

func NewCoordinator(fleet *slave.Fleet, seq *phase.Sequencer, ring *sercos3.RingManager, order svc.HostOrder, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		Fleet:       fleet,
		Sequencer:   seq,
		Ring:        ring,
		Order:       order,
		HPSupported: true,
		logger:      logger.With("service", "[HOTPLUG]"),
		ctx:         newContext(),
		lastAT0:     make(map[sercos3.Port]HPField),
	}
}

// Prepare points the coordinator at the ring port a Hot-Plug attempt should
// run on and the last active slave in that line (slave.None for the master
// port itself), before the next HotPlug(false) call starts a fresh attempt.
func (co *Coordinator) Prepare(port sercos3.Port, lastSlaveInLine slave.Idx) {
	co.ctx = newContext()
	co.ctx.ActivePort = port
	co.ctx.LastSlaveInLine = lastSlaveInLine
}

// Handle implements sercos3.TelegramListener, capturing the most recently
// observed AT0 HP field per port for the scan/dispatch/activation steps to
// consult.
func (co *Coordinator) Handle(t sercos3.Telegram) {
	if t.Kind != sercos3.KindAT || t.Number != 0 {
		return
	}
	field, err := DecodeAT0(t, co.AT0HPOffset)
	if err != nil {
		return
	}
	co.mu.Lock()
	co.lastAT0[t.Port] = field
	co.mu.Unlock()
}

func (co *Coordinator) readAT0(port sercos3.Port) (HPField, bool) {
	co.mu.Lock()
	defer co.mu.Unlock()
	f, ok := co.lastAT0[port]
	return f, ok
}

// HotPlug runs one cycle of the Hot-Plug sub-phase sequence: HP0 parameter
// broadcast, fast-forward propagation, HP1 slave scan, HP1 parameter
// dispatch, SVC activation and topology commit. Call Prepare once before
// the first call of a fresh attempt. Passing cancel true aborts whatever
// sub-phase is running and drives the rollback path instead.
func (co *Coordinator) HotPlug(cancel bool) sercos3.Step {
	if cancel && co.ctx.Sub != subIdle && co.ctx.Sub != subDone {
		co.beginRollback(sercos3.ErrHpOperationAborted)
	}

	switch co.ctx.Sub {
	case subIdle:
		return co.startHotPlug()
	case subHP0Broadcast:
		return co.stepHP0Broadcast()
	case subFastForward:
		return co.stepFastForward()
	case subHP1Scan:
		return co.stepHP1Scan()
	case subHP1Dispatch:
		return co.stepHP1Dispatch()
	case subSwitchToSVC:
		return co.stepSwitchToSVC()
	case subTopologyCommit:
		return co.stepTopologyCommit()
	case subRollback:
		return co.stepRollback()
	case subDone:
		return sercos3.StepDone()
	default:
		return sercos3.StepFail(sercos3.ErrIllegalCase)
	}
}

func (co *Coordinator) startHotPlug() sercos3.Step {
	if !co.HPSupported {
		return co.fail(sercos3.ErrHpNotSupported)
	}
	if co.Ring.Ring() == nil {
		return co.fail(sercos3.ErrNotConnected)
	}
	if co.RingClosed {
		return co.fail(sercos3.ErrHpNotWithClosedRing)
	}
	if !co.hasHotPlugCandidate() {
		return co.fail(sercos3.ErrHpNoHotplugSlave)
	}
	if co.ctx.LastSlaveInLine != slave.None {
		sl, err := co.Fleet.At(co.ctx.LastSlaveInLine)
		if err != nil {
			return co.fail(err)
		}
		if sl.Activity != slave.Active {
			return co.fail(sercos3.ErrHpWrongTopology)
		}
	}
	return co.enterPhase(subHP0Broadcast)
}

// hasHotPlugCandidate reports whether the fleet still carries at least one
// projected-but-inactive slave for the scan to find.
func (co *Coordinator) hasHotPlugCandidate() bool {
	for _, idx := range co.Fleet.All() {
		if sl, err := co.Fleet.At(idx); err == nil && sl.Activity == slave.Inactive {
			return true
		}
	}
	return false
}

func (co *Coordinator) enterPhase(sub subPhase) sercos3.Step {
	co.ctx.Sub = sub
	co.ctx.TimeoutCounter = 0
	co.ctx.cursor = 0
	return sercos3.StepWait(0)
}

// fail records the cause and runs the ordered rollback immediately: emit
// "no HP parameter" on both ports, revert the last slave's loopback
// topology, mark any newly dispatched slaves Inactive.
func (co *Coordinator) fail(err error) sercos3.Step {
	co.beginRollback(err)
	return co.stepRollback()
}

func (co *Coordinator) beginRollback(cause error) {
	co.ctx.FuncReturnCode = cause
	co.ctx.Sub = subRollback
}

func (co *Coordinator) stepRollback() sercos3.Step {
	co.sendHPOnBothPorts(HPCodeIdle, 0, 0)
	for _, idx := range co.ctx.pendingSlaves {
		if sl, err := co.Fleet.At(idx); err == nil {
			sl.Activity = slave.Inactive
		}
	}
	co.restoreLoopback()
	co.dispatchWriter = nil
	co.procCmd = nil
	co.ctx.Sub = subDone
	return sercos3.StepFail(co.ctx.FuncReturnCode)
}

func (co *Coordinator) sendHP(code HPCode, selection uint16, info uint32) {
	t := sercos3.NewTelegram(sercos3.KindMDT, 0, co.ctx.ActivePort, co.mdt0Length())
	field := HPField{Control: NewHPControl(code, co.HPSupported, true), Selection: selection, Info: info}
	if err := EncodeMDT0(t, co.MDT0HPOffset, field); err != nil {
		co.logger.Warn("failed to encode HP field", "err", err)
		return
	}
	if err := co.Ring.Send(t); err != nil {
		co.logger.Warn("failed to send HP telegram", "err", err)
	}
}

func (co *Coordinator) sendHPOnBothPorts(code HPCode, selection uint16, info uint32) {
	saved := co.ctx.ActivePort
	for _, p := range []sercos3.Port{sercos3.Port1, sercos3.Port2} {
		co.ctx.ActivePort = p
		co.sendHP(code, selection, info)
	}
	co.ctx.ActivePort = saved
}

func (co *Coordinator) mdt0Length() int {
	n := int(co.Sequencer.Timing.Snapshot().MdtLengths[0])
	if n < co.MDT0HPOffset+FieldLength {
		n = co.MDT0HPOffset + FieldLength
	}
	return n
}

// hp0Info rotates the fixed set of HP0 broadcast parameters (cycle time,
// MDT/AT lengths, UC channel bounds) one per repeat, matching the wire
// field's single 4-byte info word.
func (co *Coordinator) hp0Info() uint32 {
	t := co.Sequencer.Timing.Snapshot()
	params := [4]uint32{
		uint32(t.CommCycleTime.Nanoseconds()),
		uint32(t.MdtLengths[0]) | uint32(t.AtLengths[0])<<16,
		uint32(t.UCChannelBegin.Nanoseconds()),
		uint32(t.UCChannelEnd.Nanoseconds()),
	}
	v := params[co.ctx.HP0ParamIndex%len(params)]
	co.ctx.HP0ParamIndex++
	return v
}

func (co *Coordinator) stepHP0Broadcast() sercos3.Step {
	co.sendHP(HPCodeParamBroadcast, broadcastSelection, co.hp0Info())
	co.ctx.RepeatCounter++
	co.ctx.TimeoutCounter++
	if co.ctx.RepeatCounter < hp0RepeatCount {
		return sercos3.StepWait(0)
	}
	if co.ctx.TimeoutCounter > hp0TimeoutCycles {
		return co.fail(sercos3.ErrHpPhase0Timeout)
	}
	if field, ok := co.readAT0(co.ctx.ActivePort); ok && !field.Status.Active() {
		return co.fail(sercos3.ErrHpPhase0Failed)
	}
	co.backupLoopback()
	return co.enterPhase(subFastForward)
}

func (co *Coordinator) backupLoopback() {
	if co.ctx.LastSlaveInLine == slave.None {
		return
	}
	sl, err := co.Fleet.At(co.ctx.LastSlaveInLine)
	if err != nil {
		return
	}
	co.ctx.backupLoopbFwdP = sl.DevControl&slave.CDevTopologyLoopbFwdP != 0
	co.ctx.backupLoopbFwdS = sl.DevControl&slave.CDevTopologyLoopbFwdS != 0
	co.ctx.backupValid = true
}

func (co *Coordinator) restoreLoopback() {
	if !co.ctx.backupValid || co.ctx.LastSlaveInLine == slave.None {
		return
	}
	sl, err := co.Fleet.At(co.ctx.LastSlaveInLine)
	if err != nil {
		return
	}
	sl.DevControl &^= slave.CDevTopologyCtrlMask
	if co.ctx.backupLoopbFwdP {
		sl.DevControl |= slave.CDevTopologyLoopbFwdP
	}
	if co.ctx.backupLoopbFwdS {
		sl.DevControl |= slave.CDevTopologyLoopbFwdS
	}
}

// stepFastForward commands fast-forward on both ports through C-DEV.Topology
// on the last active slave in the hot-plug line, with the Topology-HS bit
// set, so its inactive port starts forwarding, then waits for S-DEV's
// Topology-HS bit before the scan begins. The S-DEV Topology-status bit is
// not checked. An unset LastSlaveInLine means the hot-plug line attaches
// directly to the master port, which is always ready.
func (co *Coordinator) stepFastForward() sercos3.Step {
	if co.ctx.LastSlaveInLine == slave.None {
		return co.enterPhase(subHP1Scan)
	}
	sl, err := co.Fleet.At(co.ctx.LastSlaveInLine)
	if err != nil {
		return co.fail(err)
	}
	sl.DevControl = sl.DevControl&^slave.CDevTopologyCtrlMask | slave.CDevTopologyFFBoth
	sl.DevControl |= slave.CDevTopologyHandshake
	if sl.DevStatus&slave.SDevTopologyHS != 0 {
		return co.enterPhase(subHP1Scan)
	}
	co.ctx.TimeoutCounter++
	if co.ctx.TimeoutCounter > hp0TimeoutCycles {
		return co.fail(sercos3.ErrHpTopologyChange)
	}
	return sercos3.StepWait(0)
}

// stepHP1Scan probes one Sercos address per cycle, rotating ScanCursor
// across the legal address range, and accepts an address once AT0's HP
// field acknowledges the same selection as active.
func (co *Coordinator) stepHP1Scan() sercos3.Step {
	if co.ctx.ScanCursor == 0 {
		co.ctx.ScanCursor = 1
	}

	addr := co.ctx.ScanCursor
	co.sendHP(HPCodeSlaveScan, addr, 0)

	if field, ok := co.readAT0(co.ctx.ActivePort); ok && field.Status.Code() == HPCodeSlaveScan &&
		field.Selection == addr && field.Status.Active() {
		if err := co.validateScanned(addr); err != nil {
			return co.fail(err)
		}
		co.ctx.addScanned(addr)
		co.ctx.TimeoutCounter = 0
		if len(co.ctx.ScannedAddresses) >= maxScannedAddresses {
			return co.enterPhase(subHP1Dispatch)
		}
	} else {
		co.ctx.TimeoutCounter++
	}

	co.ctx.ScanCursor++
	if co.ctx.ScanCursor > maxSercosAddress {
		co.ctx.ScanCursor = 1
	}

	if co.ctx.TimeoutCounter > hp1ScanTimeoutCycles {
		if len(co.ctx.ScannedAddresses) == 0 {
			return co.fail(sercos3.ErrHpSlaveScanTimeout)
		}
		return co.enterPhase(subHP1Dispatch)
	}
	return sercos3.StepWait(0)
}

func (co *Coordinator) validateScanned(addr uint16) error {
	if addr == 0 || addr > maxSercosAddress {
		return sercos3.ErrHpIllegalSlaveAddress
	}
	idx := co.Fleet.IndexOf(addr)
	if idx == slave.None {
		return sercos3.ErrHpSlaveIsNotProjected
	}
	sl, err := co.Fleet.At(idx)
	if err != nil {
		return err
	}
	if sl.Activity != slave.Inactive {
		return sercos3.ErrHpSlaveRecognizedInCp0
	}
	for _, a := range co.ctx.ScannedAddresses {
		if a == addr {
			return sercos3.ErrHpDoubleSlaveAddresses
		}
	}
	return nil
}

// hp1ParamWrite drives the S-0-1013/S-0-1014 writes HP1 dispatch sends to a
// newly scanned slave, mirroring the open-then-transfer shape of the phase
// sequencer's element access but looped over more than one IDN.
type hp1ParamWrite struct {
	macro *svc.Macro
	pairs []idnData
	i     int
	state writeState
}

type idnData struct {
	idn  uint32
	data []byte
}

type writeState uint8

const (
	writeOpening writeState = iota
	writeTransferring
	writeWaitDone
)

func (w *hp1ParamWrite) Advance() sercos3.Step {
	if w.i >= len(w.pairs) {
		return sercos3.StepDone()
	}
	cur := w.pairs[w.i]
	switch w.state {
	case writeOpening:
		if err := w.macro.Open(cur.idn); err != nil {
			return sercos3.StepFail(err)
		}
		w.state = writeTransferring
		return sercos3.StepWait(0)
	case writeTransferring:
		step := w.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		if err := w.macro.WriteData(cur.data); err != nil {
			return sercos3.StepFail(err)
		}
		w.state = writeWaitDone
		return sercos3.StepWait(0)
	default:
		step := w.macro.Advance()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return step
		}
		w.i++
		w.state = writeOpening
		return sercos3.StepWait(0)
	}
}

func u16le(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func (co *Coordinator) nextSvcOffsets() (mdt, at uint16) {
	n := uint16(co.Fleet.Len() + len(co.ctx.pendingSlaves))
	return svcOffsetBase + n*svcOffsetStride, svcOffsetBase + n*svcOffsetStride
}

// stepHP1Dispatch looks up the projected fleet slave for each scanned
// address, registers a fresh SVC engine for it with the phase sequencer,
// and writes its assigned S-0-1013/S-0-1014 MDT/AT offsets.
func (co *Coordinator) stepHP1Dispatch() sercos3.Step {
	if co.ctx.cursor >= len(co.ctx.ScannedAddresses) {
		return co.enterPhase(subSwitchToSVC)
	}
	addr := co.ctx.ScannedAddresses[co.ctx.cursor]

	if co.dispatchWriter == nil {
		idx := co.Fleet.IndexOf(addr)
		if idx == slave.None {
			return co.fail(sercos3.ErrHpSlaveIsNotProjected)
		}
		sl, err := co.Fleet.At(idx)
		if err != nil {
			return co.fail(err)
		}
		engine := svc.NewEngine(svc.NewContainer(), co.Order)
		co.Sequencer.RegisterEngine(idx, engine)
		macro, err := co.Sequencer.Macro(idx)
		if err != nil {
			return co.fail(err)
		}
		mdtOff, atOff := co.nextSvcOffsets()
		sl.SvcOffsetMDT, sl.SvcOffsetAT = mdtOff, atOff
		co.dispatchWriter = &hp1ParamWrite{macro: macro, pairs: []idnData{
			{idn: idnS1013, data: u16le(mdtOff)},
			{idn: idnS1014, data: u16le(atOff)},
		}}
		co.ctx.pendingSlaves = append(co.ctx.pendingSlaves, idx)
		co.ctx.LastSlaveInLine = idx
	}

	step := co.dispatchWriter.Advance()
	if step.InProcess() {
		co.ctx.TimeoutCounter++
		if co.ctx.TimeoutCounter > hp1DispatchTimeoutCycles {
			return co.fail(sercos3.ErrHpPhase1Timeout)
		}
		return step
	}
	if step.Failed() {
		return co.fail(step.Err)
	}
	co.dispatchWriter = nil
	co.ctx.cursor++
	co.ctx.TimeoutCounter = 0
	return sercos3.StepWait(0)
}

// stepSwitchToSVC sets C-DEV.Master_valid (MHS) for every dispatched slave
// and waits for S-DEV.Slave_valid (AHS) to mirror it back.
func (co *Coordinator) stepSwitchToSVC() sercos3.Step {
	if co.ctx.cursor >= len(co.ctx.pendingSlaves) {
		return co.enterPhase(subTopologyCommit)
	}
	idx := co.ctx.pendingSlaves[co.ctx.cursor]
	sl, err := co.Fleet.At(idx)
	if err != nil {
		return co.fail(err)
	}
	sl.DevControl |= slave.CDevMasterValid
	if sl.DevStatus.Valid() {
		co.ctx.cursor++
		co.ctx.TimeoutCounter = 0
		return sercos3.StepWait(0)
	}
	co.ctx.TimeoutCounter++
	if co.ctx.TimeoutCounter > svcSwitchTimeoutCycles {
		return co.fail(sercos3.ErrHpSwitchToSvcTimeout)
	}
	return sercos3.StepWait(0)
}

// stepTopologyCommit marks every dispatched slave HotPlugInProgress and
// raises C-DEV.Identification, folding it into the population the phase
// sequencer's Fleet.Active() already iterates.
func (co *Coordinator) stepTopologyCommit() sercos3.Step {
	if co.ctx.cursor >= len(co.ctx.pendingSlaves) {
		co.ctx.Sub = subDone
		return sercos3.StepDone()
	}
	idx := co.ctx.pendingSlaves[co.ctx.cursor]
	sl, err := co.Fleet.At(idx)
	if err != nil {
		return co.fail(err)
	}
	sl.Activity = slave.HotPlugInProgress
	sl.DevControl |= slave.CDevIdentification
	co.ctx.cursor++
	return sercos3.StepWait(0)
}

// TransHP2Para runs the condensed CP2->CP4 parameter push against every
// slave HotPlug committed: it reuses the phase sequencer's own
// CheckVersion/TransmitTiming/ReadConfig batches (which already fold
// HotPlugInProgress slaves into Fleet.Active()), then drives the
// activate-network-settings and transition-check procedure commands and
// the final Slave_valid observation per dispatched slave. Call it once
// HotPlug(false) has returned a successful Step. Passing cancel true rolls
// the push back the same way a HotPlug failure does.
func (co *Coordinator) TransHP2Para(cancel bool) sercos3.Step {
	if cancel && co.push != pushIdle && co.push != pushDone {
		return co.rollbackCondensedPush(sercos3.ErrHpOperationAborted)
	}
	if co.push == pushIdle {
		co.push = pushCheckVersion
	}

	switch co.push {
	case pushCheckVersion:
		step := co.Sequencer.CheckVersion()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return co.rollbackCondensedPush(step.Err)
		}
		return co.enterPush(pushTiming)

	case pushTiming:
		step := co.Sequencer.TransmitTiming()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return co.rollbackCondensedPush(step.Err)
		}
		return co.enterPush(pushReadConfig)

	case pushReadConfig:
		step := co.Sequencer.ReadConfig()
		if step.InProcess() {
			return step
		}
		if step.Failed() {
			return co.rollbackCondensedPush(step.Err)
		}
		return co.enterPush(pushActivate)

	case pushActivate:
		return co.runProcPerSlave(idnS1024, pushTransitionCP3)

	case pushTransitionCP3:
		return co.runProcPerSlave(idnS0127, pushTransitionCP4)

	case pushTransitionCP4:
		return co.runProcPerSlave(idnS0128, pushAwaitValid)

	case pushAwaitValid:
		return co.stepAwaitValid()

	default:
		return sercos3.StepDone()
	}
}

func (co *Coordinator) enterPush(sub pushSub) sercos3.Step {
	co.push = sub
	co.ctx.cursor = 0
	co.ctx.TimeoutCounter = 0
	co.procCmd = nil
	return sercos3.StepWait(0)
}

func (co *Coordinator) runProcPerSlave(idn uint32, next pushSub) sercos3.Step {
	if co.ctx.cursor >= len(co.ctx.pendingSlaves) {
		return co.enterPush(next)
	}
	idx := co.ctx.pendingSlaves[co.ctx.cursor]
	if co.procCmd == nil {
		m, err := co.Sequencer.Macro(idx)
		if err != nil {
			return co.rollbackCondensedPush(err)
		}
		co.procCmd = phase.NewProcCommand(m, idn)
	}
	step := co.procCmd.Advance()
	if step.InProcess() {
		return step
	}
	if step.Failed() {
		return co.rollbackCondensedPush(step.Err)
	}
	co.procCmd = nil
	co.ctx.cursor++
	return sercos3.StepWait(0)
}

func (co *Coordinator) stepAwaitValid() sercos3.Step {
	if co.ctx.cursor >= len(co.ctx.pendingSlaves) {
		co.push = pushDone
		return sercos3.StepDone()
	}
	idx := co.ctx.pendingSlaves[co.ctx.cursor]
	sl, err := co.Fleet.At(idx)
	if err != nil {
		return co.rollbackCondensedPush(err)
	}
	if sl.DevStatus.Valid() {
		sl.Activity = slave.Active
		co.ctx.cursor++
		co.ctx.TimeoutCounter = 0
		return sercos3.StepWait(0)
	}
	co.ctx.TimeoutCounter++
	if co.ctx.TimeoutCounter > awaitValidTimeoutCycles {
		return co.rollbackCondensedPush(sercos3.ErrHpPhase1Timeout)
	}
	return sercos3.StepWait(0)
}

func (co *Coordinator) rollbackCondensedPush(cause error) sercos3.Step {
	co.ctx.FuncReturnCode = cause
	co.sendHPOnBothPorts(HPCodeIdle, 0, 0)
	for _, idx := range co.ctx.pendingSlaves {
		if sl, err := co.Fleet.At(idx); err == nil {
			sl.Activity = slave.Inactive
		}
	}
	co.restoreLoopback()
	co.procCmd = nil
	co.push = pushDone
	return sercos3.StepFail(cause)
}
