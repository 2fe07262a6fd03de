package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationSetIsVisibleInSnapshot(t *testing.T) {
	cfg := NewConfiguration()
	cfg.Set(func(c *Configuration) {
		c.CommCycleTime = 2 * time.Millisecond
		c.AT0StartTime = 100 * time.Microsecond
	})

	snap := cfg.Snapshot()
	assert.Equal(t, 2*time.Millisecond, snap.CommCycleTime)
	assert.Equal(t, 100*time.Microsecond, snap.AT0StartTime)
}

func TestTSrefUsesLargerPortDelay(t *testing.T) {
	cfg := NewConfiguration()
	cfg.Set(func(c *Configuration) {
		c.AT0StartTime = 10 * time.Microsecond
		c.RingDelay[0] = 4 * time.Microsecond
		c.RingDelay[1] = 8 * time.Microsecond
	})

	assert.Equal(t, 10*time.Microsecond+4*time.Microsecond, cfg.TSref())
}
