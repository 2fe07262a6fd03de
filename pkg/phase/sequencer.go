package phase

import (
	"fmt"
	"log/slog"
	"time"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/diag"
	"github.com/sercos3/master/pkg/scp"
	"github.com/sercos3/master/pkg/slave"
	"github.com/sercos3/master/pkg/svc"
	"github.com/sercos3/master/pkg/timing"
)

// Phase is one of the five communication phases a Sercos ring moves through
// on its way from power-up to cyclic real-time operation.
type Phase uint8

const (
	CP0 Phase = iota
	CP1
	CP2
	CP3
	CP4
)

func (p Phase) String() string {
	switch p {
	case CP0:
		return "CP0"
	case CP1:
		return "CP1"
	case CP2:
		return "CP2"
	case CP3:
		return "CP3"
	case CP4:
		return "CP4"
	default:
		return "CP?"
	}
}

type opKind uint8

const (
	opNone opKind = iota
	opCheckVersion
	opGetTimingData
	opTransmitTiming
	opReadConfig
)

// Sequencer carries a fleet of slaves through the communication phases by
// issuing coordinated batches of SVC element accesses, one outer Advance
// per call driving the whole ring's bring-up one tick at a time rather
// than one peer at a time.
type Sequencer struct {
	Fleet     *slave.Fleet
	Reasoner  *scp.Reasoner
	Timing    *timing.Configuration
	RingMeter *timing.RingDelayMeter
	Diag      *diag.Aggregate
	Phase     Phase
	logger    *slog.Logger

	order   svc.HostOrder
	engines []*svc.Engine
	macros  []*svc.Macro

	op            opKind
	batch         *Batch
	probes        map[slave.Idx]*classProbe
	transmitStep  int
	transmitBatch *Batch
}

// NewSequencer builds a sequencer over one macro/engine pair per slave
// slot. Engines must already be wired to their slave's service channel
// container and kept in fleet index order.
func NewSequencer(fleet *slave.Fleet, engines []*svc.Engine, order svc.HostOrder, reasoner *scp.Reasoner, cfg *timing.Configuration, ringMeter *timing.RingDelayMeter, agg *diag.Aggregate, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	macros := make([]*svc.Macro, len(engines))
	for i, e := range engines {
		macros[i] = svc.NewMacro(e, order, slave.Idx(i))
	}
	return &Sequencer{
		Fleet:     fleet,
		Reasoner:  reasoner,
		Timing:    cfg,
		RingMeter: ringMeter,
		Diag:      agg,
		Phase:     CP0,
		logger:    logger.With("service", "[PHASE]"),
		order:     order,
		engines:   engines,
		macros:    macros,
	}
}

// Macro returns the per-slave SVC macro for idx, for callers outside this
// package (the Hot-Plug Coordinator's condensed parameter push) that need a
// single-element access against a slave the sequencer already carries.
func (s *Sequencer) Macro(idx slave.Idx) (*svc.Macro, error) {
	if int(idx) < 0 || int(idx) >= len(s.macros) {
		return nil, fmt.Errorf("phase: slave index %d has no registered macro", idx)
	}
	return s.macros[idx], nil
}

// RegisterEngine wires a newly scanned slave's SVC engine into the
// sequencer so its parameters can be read and written the same way as any
// slave projected at startup. The Hot-Plug Coordinator calls this once a
// scanned slave's engine has been constructed, before running the condensed
// parameter push against it.
func (s *Sequencer) RegisterEngine(idx slave.Idx, engine *svc.Engine) {
	for len(s.engines) <= int(idx) {
		s.engines = append(s.engines, nil)
		s.macros = append(s.macros, nil)
	}
	s.engines[idx] = engine
	s.macros[idx] = svc.NewMacro(engine, s.order, idx)
}

func (s *Sequencer) activeSlaves() []*slave.Slave {
	out := make([]*slave.Slave, 0, s.Fleet.Len())
	for _, idx := range s.Fleet.Active() {
		sl, err := s.Fleet.At(idx)
		if err != nil {
			continue
		}
		out = append(out, sl)
	}
	return out
}

// CheckVersion reads each active slave's supported SCP class list and the
// optional basic-class marker, then hands the result to the class
// reasoner. Call repeatedly until the returned Step is no longer
// InProcess.
func (s *Sequencer) CheckVersion() sercos3.Step {
	if s.op != opCheckVersion {
		s.startCheckVersion()
	}
	step := s.batch.Advance()
	if step.InProcess() {
		return step
	}
	for idx, p := range s.probes {
		sl, err := s.Fleet.At(idx)
		if err != nil {
			continue
		}
		if rerr := s.Reasoner.Reconcile(sl, p.has1000_0_1); rerr != nil {
			s.Diag.Record(idx, idnS1000, rerr)
		}
	}
	s.op = opNone
	s.probes = nil
	s.batch = nil
	if step.Failed() {
		return step
	}
	return sercos3.StepDone()
}

func (s *Sequencer) startCheckVersion() {
	batch := NewBatch(s.Diag)
	probes := make(map[slave.Idx]*classProbe)
	for _, sl := range s.activeSlaves() {
		m := s.macros[sl.Idx]
		p := newClassProbe(m, sl)
		probes[sl.Idx] = p
		batch.Add(sl.Idx, idnS1000, p)
	}
	s.probes = probes
	s.batch = batch
	s.op = opCheckVersion
}

// ringDelayReadback folds a finished S-0-1011/S-0-1012 element read into
// the shared timing configuration under its own mutex.
type ringDelayReadback struct {
	access *elementAccess
	cfg    *timing.Configuration
	port   int
}

func (t *ringDelayReadback) Advance() sercos3.Step {
	step := t.access.Advance()
	if step.Done() {
		raw := t.access.Result()
		if len(raw) == 4 {
			ns := uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24
			t.cfg.Set(func(c *timing.Configuration) {
				c.RingDelay[t.port] = time.Duration(ns)
			})
		}
	}
	return step
}

// GetTimingData reads S-0-1011 (port 1 ring delay) from every active slave
// and stores it in the shared timing configuration's RingDelay[0]. S-0-1012
// (port 2) is not read, and the RingDelayMeter is not consulted.
func (s *Sequencer) GetTimingData() sercos3.Step {
	if s.op != opGetTimingData {
		s.startGetTimingData()
	}
	step := s.batch.Advance()
	if step.InProcess() {
		return step
	}
	s.op = opNone
	s.batch = nil
	if step.Failed() {
		return step
	}
	return sercos3.StepDone()
}

func (s *Sequencer) startGetTimingData() {
	batch := NewBatch(s.Diag)
	for _, sl := range s.activeSlaves() {
		m := s.macros[sl.Idx]
		batch.Add(sl.Idx, idnS1011, &ringDelayReadback{access: readElement(m, idnS1011, 4), cfg: s.Timing, port: 0})
	}
	s.batch = batch
	s.op = opGetTimingData
}

// transmitStage is one of TransmitTiming's seven outer steps: a gating
// SCP-class-family mask (0 means "every active slave participates") and a
// builder returning one Stepper per participating slave.
type transmitStage struct {
	name  string
	mask  uint32
	build func(s *Sequencer, sl *slave.Slave) Stepper
}

func (s *Sequencer) transmitStages() []transmitStage {
	return []transmitStage{
		{"basic-comm", 0, func(s *Sequencer, sl *slave.Slave) Stepper {
			return writeElement(s.macros[sl.Idx], idnS1005, []byte{0, 0})
		}},
		{"varcfg-connections", slave.MaskVarCFGFamily, func(s *Sequencer, sl *slave.Slave) Stepper {
			return writeElement(s.macros[sl.Idx], idnS1051, []byte{1, 0})
		}},
		{"sync-at0-start", slave.MaskSyncFamily, func(s *Sequencer, sl *slave.Slave) Stepper {
			t := s.Timing.Snapshot()
			return writeElement(s.macros[sl.Idx], idnS1007, u32le(uint32(t.AT0StartTime.Nanoseconds())))
		}},
		{"sync-producer-cycle", slave.MaskSyncFamily, func(s *Sequencer, sl *slave.Slave) Stepper {
			t := s.Timing.Snapshot()
			return writeElement(s.macros[sl.Idx], idnS1048, u32le(uint32(t.CommCycleTime.Nanoseconds())))
		}},
		{"nrt-activate", slave.MaskNRTPC, func(s *Sequencer, sl *slave.Slave) Stepper {
			return NewProcCommand(s.macros[sl.Idx], idnS1024)
		}},
		{"rtb-allocation", slave.MaskRTB, func(s *Sequencer, sl *slave.Slave) Stepper {
			return writeElement(s.macros[sl.Idx], idnS1060, []byte{0xFF, 0xFF})
		}},
		{"nrt-mtu-readback", slave.MaskNRTFamily, func(s *Sequencer, sl *slave.Slave) Stepper {
			return readElement(s.macros[sl.Idx], idnS1051, 2)
		}},
	}
}

// TransmitTiming drives the seven ordered sub-batches of timing and
// connection parameters down to every slave whose SCP class membership
// requires that particular stage, skipping slaves for which the stage
// does not apply rather than failing the batch for them.
func (s *Sequencer) TransmitTiming() sercos3.Step {
	if s.op != opTransmitTiming {
		s.startTransmitStage(0)
	}
	step := s.transmitBatch.Advance()
	if step.InProcess() {
		return step
	}
	if step.Failed() {
		s.op = opNone
		s.transmitBatch = nil
		return step
	}
	s.transmitStep++
	stages := s.transmitStages()
	if s.transmitStep >= len(stages) {
		s.op = opNone
		s.transmitBatch = nil
		s.transmitStep = 0
		return sercos3.StepDone()
	}
	s.startTransmitStage(s.transmitStep)
	return sercos3.StepWait(0)
}

func (s *Sequencer) startTransmitStage(i int) {
	stages := s.transmitStages()
	stage := stages[i]
	batch := NewBatch(s.Diag)
	for _, sl := range s.activeSlaves() {
		if stage.mask != 0 && sl.ClassMask&stage.mask == 0 {
			continue
		}
		batch.Add(sl.Idx, 0, stage.build(s, sl))
	}
	s.transmitBatch = batch
	s.transmitStep = i
	s.op = opTransmitTiming
	s.logger.Debug("transmit timing stage", "stage", stage.name, "slaves", batch.Len())
}

// ReadConfig reads back up to 64 bytes of each active slave's connection
// descriptor list (S-0-1050). The data read is not compared against what
// TransmitTiming wrote; only a failed read is recorded in the diagnostics.
func (s *Sequencer) ReadConfig() sercos3.Step {
	if s.op != opReadConfig {
		s.startReadConfig()
	}
	step := s.batch.Advance()
	if step.InProcess() {
		return step
	}
	s.op = opNone
	s.batch = nil
	if step.Failed() {
		return step
	}
	return sercos3.StepDone()
}

func (s *Sequencer) startReadConfig() {
	batch := NewBatch(s.Diag)
	for _, sl := range s.activeSlaves() {
		batch.Add(sl.Idx, idnS1050, readElement(s.macros[sl.Idx], idnS1050, 64))
	}
	s.batch = batch
	s.op = opReadConfig
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
