package hotplug

import (
	"errors"
	"testing"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/hal/simhal"
	"github.com/sercos3/master/pkg/diag"
	"github.com/sercos3/master/pkg/phase"
	"github.com/sercos3/master/pkg/scp"
	"github.com/sercos3/master/pkg/slave"
	"github.com/sercos3/master/pkg/svc"
	"github.com/sercos3/master/pkg/timing"
	"github.com/stretchr/testify/assert"
)

func newTestCoordinator(t *testing.T, addresses []uint16) *Coordinator {
	t.Helper()
	fleet := slave.NewFleet(addresses)
	order := svc.HostOrder{}
	engines := make([]*svc.Engine, fleet.Len())
	for i := range engines {
		engines[i] = svc.NewEngine(svc.NewContainer(), order)
	}
	seq := phase.NewSequencer(fleet, engines, order, scp.NewReasoner(16), timing.NewConfiguration(), nil, diag.NewAggregate(), nil)

	ring, err := simhal.NewRing("")
	assert.Nil(t, err)
	assert.Nil(t, ring.Connect())
	ringManager := sercos3.NewRingManager(ring)

	return NewCoordinator(fleet, seq, ringManager, order, nil)
}

func TestStartHotPlugFailsWhenNotSupported(t *testing.T) {
	co := newTestCoordinator(t, []uint16{1})
	co.HPSupported = false
	step := co.HotPlug(false)
	assert.True(t, step.Failed())
	assert.True(t, errors.Is(step.Err, sercos3.ErrHpNotSupported))
}

func TestStartHotPlugFailsOnClosedRing(t *testing.T) {
	co := newTestCoordinator(t, []uint16{1})
	co.RingClosed = true
	step := co.HotPlug(false)
	assert.True(t, step.Failed())
	assert.True(t, errors.Is(step.Err, sercos3.ErrHpNotWithClosedRing))
}

func TestStartHotPlugFailsWithoutCandidate(t *testing.T) {
	co := newTestCoordinator(t, []uint16{1})
	sl, err := co.Fleet.At(0)
	assert.Nil(t, err)
	sl.Activity = slave.Active

	step := co.HotPlug(false)
	assert.True(t, step.Failed())
	assert.True(t, errors.Is(step.Err, sercos3.ErrHpNoHotplugSlave))
}

func TestStartHotPlugEntersHP0Broadcast(t *testing.T) {
	co := newTestCoordinator(t, []uint16{1})
	co.Prepare(sercos3.Port1, slave.None)

	step := co.HotPlug(false)
	assert.True(t, step.InProcess())
	assert.Equal(t, subHP0Broadcast, co.ctx.Sub)
}

func TestHotPlugCancelMidAttemptRollsBack(t *testing.T) {
	co := newTestCoordinator(t, []uint16{1})
	co.Prepare(sercos3.Port1, slave.None)
	co.HotPlug(false)

	step := co.HotPlug(true)
	assert.True(t, step.Failed())
	assert.True(t, errors.Is(step.Err, sercos3.ErrHpOperationAborted))
	assert.Equal(t, subDone, co.ctx.Sub)
}
