package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const sampleConfig = `
[master]
CommCycleTimeMs = 2
RingInterface = eth0

[slave:5]
ActiveClasses = 1,3

[slave:12]
ActiveClasses = 1
`

func TestLoadParsesMasterAndSlaveSections(t *testing.T) {
	cfg, err := Load([]byte(sampleConfig))
	assert.Nil(t, err)
	assert.Equal(t, 2*time.Millisecond, cfg.CommCycleTime)
	assert.Equal(t, "eth0", cfg.RingInterface)
	assert.Len(t, cfg.Slaves, 2)
	assert.Equal(t, uint16(5), cfg.Slaves[0].Address)
	assert.Equal(t, []uint16{1, 3}, cfg.Slaves[0].ActiveClasses)
	assert.Equal(t, []uint16{5, 12}, cfg.Addresses())
}

func TestLoadDefaultsWhenCycleTimeMissing(t *testing.T) {
	cfg, err := Load([]byte("[master]\nRingInterface = eth1\n"))
	assert.Nil(t, err)
	assert.Equal(t, time.Millisecond, cfg.CommCycleTime)
}

func TestLoadRejectsMalformedActiveClass(t *testing.T) {
	_, err := Load([]byte("[slave:1]\nActiveClasses = notanumber\n"))
	assert.NotNil(t, err)
}
