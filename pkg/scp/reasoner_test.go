package scp

import (
	"errors"
	"testing"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/slave"
	"github.com/stretchr/testify/assert"
)

func TestReconcileDefaultsActiveClasses(t *testing.T) {
	r := NewReasoner(16)
	s := slave.NewSlave(0, 1)
	s.SupportedClasses = []slave.ClassVersion{
		{Class: slave.ClassFixCFG, Version: 1},
		{Class: slave.ClassSync, Version: 2},
	}

	err := r.Reconcile(s, true)
	assert.Nil(t, err)
	assert.Len(t, s.ActiveClasses, 1)
	assert.Equal(t, slave.ClassFixCFG, s.ActiveClasses[0].Class)
	assert.Equal(t, slave.MaskFixCFG, s.ClassMask)
}

func TestReconcileRejectsDualBasicClass(t *testing.T) {
	r := NewReasoner(16)
	s := slave.NewSlave(0, 1)
	s.SupportedClasses = []slave.ClassVersion{
		{Class: slave.ClassFixCFG, Version: 1},
		{Class: slave.ClassVarCFG, Version: 1},
	}
	s.ActiveClasses = s.SupportedClasses

	err := r.Reconcile(s, true)
	assert.True(t, errors.Is(err, sercos3.ErrBasicScpTypeMismatch))
}

func TestReconcileMissing1000_0_1IsInformational(t *testing.T) {
	r := NewReasoner(16)
	s := slave.NewSlave(0, 1)
	s.SupportedClasses = []slave.ClassVersion{{Class: slave.ClassFixCFG, Version: 1}}
	s.ActiveClasses = s.SupportedClasses

	err := r.Reconcile(s, false)
	assert.True(t, errors.Is(err, sercos3.ErrS00001000_0_1NotSupported))
	assert.Equal(t, slave.MaskFixCFG, s.ClassMask)
}

func TestBuildMaskVersionsSyncFamily(t *testing.T) {
	mask := BuildMask([]slave.ClassVersion{{Class: slave.ClassSync, Version: 3}})
	assert.Equal(t, slave.MaskSyncV3, mask)
}

func TestDecodeClassListDecodesEntries(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x01, 0x00, 0x03, 0x00, 0x02, 0x00}
	got := DecodeClassList(raw)
	assert.Equal(t, []slave.ClassVersion{
		{Class: 1, Version: 1},
		{Class: 3, Version: 2},
	}, got)
}
