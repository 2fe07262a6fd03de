// Package diag implements the extended-diagnostic aggregate: per-slave
// errors recorded during a fan-out batch are accumulated behind a mutex
// and reported to the caller only once the whole batch finishes, never
// letting one slave's error stop the rest of the fleet from being
// processed.
package diag

import (
	"fmt"
	"sync"

	"github.com/sercos3/master/pkg/slave"
)

// Entry is one recorded per-slave fault.
type Entry struct {
	SlaveIdx slave.Idx
	IDN      uint32
	Err      error
}

func (e Entry) String() string {
	return fmt.Sprintf("slave[%d] idn=0x%08X: %v", e.SlaveIdx, e.IDN, e.Err)
}

// Aggregate accumulates Entries across one fan-out batch, one slave's
// fault never blocking the rest of the batch from recording its own.
type Aggregate struct {
	mu      sync.Mutex
	entries []Entry
}

func NewAggregate() *Aggregate { return &Aggregate{} }

// Record appends a per-slave fault; it never stops the caller from
// continuing with the remaining slaves.
func (a *Aggregate) Record(slaveIdx slave.Idx, idn uint32, err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, Entry{SlaveIdx: slaveIdx, IDN: idn, Err: err})
}

// Count returns the number of recorded entries.
func (a *Aggregate) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Entries returns a copy of every recorded fault, in recording order.
func (a *Aggregate) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// First returns the first recorded fault, if any.
func (a *Aggregate) First() (Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.entries) == 0 {
		return Entry{}, false
	}
	return a.entries[0], true
}

// Reset clears the aggregate for the next batch.
func (a *Aggregate) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = a.entries[:0]
}
