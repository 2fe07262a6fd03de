package slave

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFleetActiveExcludesInactive(t *testing.T) {
	f := NewFleet([]uint16{1, 2, 3})
	active, err := f.At(0)
	assert.Nil(t, err)
	active.Activity = Active
	hp, err := f.At(1)
	assert.Nil(t, err)
	hp.Activity = HotPlugInProgress

	got := f.Active()
	assert.ElementsMatch(t, []Idx{0, 1}, got)
}

func TestFleetAppendGrowsArena(t *testing.T) {
	f := NewFleet([]uint16{1, 2})
	idx := f.Append(99)
	assert.Equal(t, Idx(2), idx)
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, idx, f.IndexOf(99))
}

func TestFleetIndexOfMissingReturnsNone(t *testing.T) {
	f := NewFleet([]uint16{1, 2})
	assert.Equal(t, None, f.IndexOf(77))
}

func TestFleetAtOutOfRange(t *testing.T) {
	f := NewFleet([]uint16{1})
	_, err := f.At(5)
	assert.NotNil(t, err)
}

func TestDevStatusValidAndInactive(t *testing.T) {
	s := SDevSlaveValid
	assert.True(t, s.Valid())

	inactive := DevStatus(InactiveSTelegram)
	assert.False(t, inactive.Valid())
	assert.Equal(t, InactiveSTelegram, inactive.Inactive())
}
