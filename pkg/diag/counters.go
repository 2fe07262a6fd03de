package diag

import "sync"

// Counters implements the communication/error counter surface a master
// exposes for field diagnostics: cumulative cycle and timeout counts, and
// the methods that read and reset them.
type Counters struct {
	mu sync.Mutex

	CommCycleCount   uint64
	SvcTimeoutCount  uint64
	HpRetryCount     uint64
	SercosErrorCount uint64
}

func NewCounters() *Counters { return &Counters{} }

func (c *Counters) IncCommCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CommCycleCount++
}

func (c *Counters) IncSvcTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SvcTimeoutCount++
	c.SercosErrorCount++
}

func (c *Counters) IncHpRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HpRetryCount++
}

// GetCommCounter returns the communication cycle counter.
func (c *Counters) GetCommCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CommCycleCount
}

// ResetSercosErrorCounter zeroes the aggregate Sercos error counter
//, leaving the cycle counter untouched.
func (c *Counters) ResetSercosErrorCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SercosErrorCount = 0
}
