package diag

import (
	"errors"
	"testing"

	"github.com/sercos3/master/pkg/slave"
	"github.com/stretchr/testify/assert"
)

func TestAggregateRecordIgnoresNilError(t *testing.T) {
	a := NewAggregate()
	a.Record(0, 1000, nil)
	assert.Equal(t, 0, a.Count())
}

func TestAggregateRecordOrderPreserved(t *testing.T) {
	a := NewAggregate()
	errA := errors.New("fault A")
	errB := errors.New("fault B")
	a.Record(2, 1000, errA)
	a.Record(5, 1013, errB)

	entries := a.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, slave.Idx(2), entries[0].SlaveIdx)
	assert.Equal(t, slave.Idx(5), entries[1].SlaveIdx)

	first, ok := a.First()
	assert.True(t, ok)
	assert.Equal(t, errA, first.Err)
}

func TestAggregateResetClears(t *testing.T) {
	a := NewAggregate()
	a.Record(0, 1000, errors.New("fault"))
	a.Reset()
	assert.Equal(t, 0, a.Count())
	_, ok := a.First()
	assert.False(t, ok)
}
