// Package phase implements the Phase Sequencer: it carries every active
// slave through CP0->CP1->CP2->CP3->CP4 by issuing coordinated batches of
// SVC writes/reads/commands. Every phase transition is an outer FSM whose
// every step is itself an inner FSM iterating every projected slave; the
// outer step completes only when all slaves of interest converge to
// DATA_VALID or REQUEST_ERROR.
package phase

import (
	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/diag"
	"github.com/sercos3/master/pkg/slave"
)

// Stepper is anything advanceable one cycle at a time and reporting a
// sercos3.Step outcome: a bare *svc.Macro for a single element access, or a
// richer per-slave sub-FSM (e.g. classProbe, ProcCommand) composing several
// macro operations behind one Advance() call.
type Stepper interface {
	Advance() sercos3.Step
}

// item is one slave's participation in a Batch.
type item struct {
	idx  slave.Idx
	idn  uint32
	mac  Stepper
	done bool
}

// Batch is the inner FSM: a set of per-slave macro transactions advanced
// in lock-step, one cycle at a time, fanning out across the whole fleet
// so wall-clock stays independent of fleet size.
type Batch struct {
	items []*item
	diag  *diag.Aggregate
}

// NewBatch starts a new inner-FSM batch. agg receives per-slave failures
// without aborting the rest of the fleet.
func NewBatch(agg *diag.Aggregate) *Batch {
	return &Batch{diag: agg}
}

// Add enrolls one slave's transaction into the batch. The Stepper starts
// its own operation (Open + a read/write call) on its first Advance, so it
// is added unstarted.
func (b *Batch) Add(idx slave.Idx, idn uint32, m Stepper) {
	b.items = append(b.items, &item{idx: idx, idn: idn, mac: m})
}

// Advance runs one cycle for every not-yet-converged slave. Returns
// StepWait until every slave has reached a terminal macro state
// (DATA_VALID/ATTRIBUTE_VALID/... or REQUEST_ERROR); returns StepDone once
// converged, regardless of whether individual slaves errored — those
// errors are in b.diag, not in the returned Step, matching
// "never aborting other slaves".
func (b *Batch) Advance() sercos3.Step {
	allDone := true
	for _, it := range b.items {
		if it.done {
			continue
		}
		step := it.mac.Advance()
		switch {
		case step.Failed():
			b.diag.Record(it.idx, it.idn, step.Err)
			it.done = true
		case step.Done():
			it.done = true
		default:
			allDone = false
		}
	}
	if !allDone {
		return sercos3.StepWait(0)
	}
	return sercos3.StepDone()
}

// Len reports how many slaves are enrolled.
func (b *Batch) Len() int { return len(b.items) }
