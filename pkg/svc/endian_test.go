package svc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostOrderLittleEndianPassesThrough(t *testing.T) {
	order := HostOrder{BigEndian: false}
	buf := make([]byte, 4)
	order.PutUint32(buf, 0x01020304)
	assert.Equal(t, uint32(0x01020304), order.Uint32(buf))
}

func TestHostOrderBigEndianSwapsWordPairs(t *testing.T) {
	le := HostOrder{BigEndian: false}
	be := HostOrder{BigEndian: true}

	buf := make([]byte, 4)
	le.PutUint32(buf, 0x01020304)
	leValue := le.Uint32(buf)

	buf2 := make([]byte, 4)
	be.PutUint32(buf2, 0x01020304)
	assert.NotEqual(t, buf, buf2)
	assert.Equal(t, leValue, be.Uint32(buf2))
}

func TestHostOrderSwapWordsReversesFourWordOperand(t *testing.T) {
	order := HostOrder{BigEndian: true}
	words := []uint16{1, 2, 3, 4}
	order.SwapWords(words)
	assert.Equal(t, []uint16{4, 3, 2, 1}, words)
}

func TestHostOrderUint64LittleEndian(t *testing.T) {
	order := HostOrder{BigEndian: false}
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	got := order.Uint64(buf)
	assert.Equal(t, uint64(0x0807060504030201), got)
}
