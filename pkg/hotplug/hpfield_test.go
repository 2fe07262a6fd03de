package hotplug

import (
	"testing"

	sercos3 "github.com/sercos3/master"
	"github.com/stretchr/testify/assert"
)

func TestHPControlCodeRoundTrip(t *testing.T) {
	c := NewHPControl(HPCodeSlaveScan, true, true)
	assert.Equal(t, HPCodeSlaveScan, c.Code())
	assert.True(t, c.Supported())
	assert.True(t, c.Enabled())
}

func TestHPControlDisabledNotSupported(t *testing.T) {
	c := NewHPControl(HPCodeIdle, false, false)
	assert.False(t, c.Supported())
	assert.False(t, c.Enabled())
	assert.Equal(t, HPCodeIdle, c.Code())
}

func TestEncodeDecodeHPFieldRoundTrip(t *testing.T) {
	mdt := sercos3.NewTelegram(sercos3.KindMDT, 0, sercos3.Port1, 32)
	field := HPField{
		Control:   NewHPControl(HPCodeSlaveScan, true, true),
		Selection: 17,
		Info:      0xAABBCCDD,
	}
	err := EncodeMDT0(mdt, 8, field)
	assert.Nil(t, err)

	// Simulate a slave echoing back its AT0 status with the same
	// selection/info words a master would expect to read back.
	at := sercos3.NewTelegram(sercos3.KindAT, 0, sercos3.Port1, 32)
	copy(at.Data[8:], mdt.Data[8:])

	decoded, err := DecodeAT0(at, 8)
	assert.Nil(t, err)
	assert.Equal(t, uint16(17), decoded.Selection)
	assert.Equal(t, uint32(0xAABBCCDD), decoded.Info)
}

func TestEncodeMDT0RejectsShortTelegram(t *testing.T) {
	mdt := sercos3.NewTelegram(sercos3.KindMDT, 0, sercos3.Port1, 4)
	err := EncodeMDT0(mdt, 0, HPField{})
	assert.NotNil(t, err)
}

func TestDecodeAT0RejectsNegativeOffset(t *testing.T) {
	at := sercos3.NewTelegram(sercos3.KindAT, 0, sercos3.Port1, 16)
	_, err := DecodeAT0(at, -1)
	assert.NotNil(t, err)
}
