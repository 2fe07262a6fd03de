// Package scp implements the SCP Class Reasoner: it reconciles a slave's
// supported SCP classes (as read from S-0-1000) with the
// application-selected active classes, builds a per-slave bitmask, and
// decides what the Phase Sequencer must transmit to that slave.
package scp

import (
	"encoding/binary"
	"fmt"

	sercos3 "github.com/sercos3/master"
	"github.com/sercos3/master/pkg/slave"
)

// wireEntrySize is the per-entry width of the S-0-1000 class list: a
// 16-bit class number and an 8-bit version, padded to a word boundary.
const wireEntrySize = 4

// DecodeClassList decodes the raw S-0-1000 list payload into class/version
// entries.
func DecodeClassList(raw []byte) []slave.ClassVersion {
	n := len(raw) / wireEntrySize
	out := make([]slave.ClassVersion, 0, n)
	for i := 0; i < n; i++ {
		off := i * wireEntrySize
		class := binary.LittleEndian.Uint16(raw[off : off+2])
		version := raw[off+2]
		out = append(out, slave.ClassVersion{Class: class, Version: version})
	}
	return out
}

// Reasoner reconciles supported vs. active SCP classes for the fleet.
type Reasoner struct {
	MaxEntries int
}

func NewReasoner(maxEntries int) *Reasoner {
	return &Reasoner{MaxEntries: maxEntries}
}

// Reconcile runs the full class-reconciliation algorithm against one
// slave, given its decoded supportedClasses and whether S-0-1000.0.1
// exists (probed separately via a macro attribute read). It mutates
// s.ActiveClasses and s.ClassMask in place.
func (r *Reasoner) Reconcile(s *slave.Slave, has1000_0_1 bool) error {
	if len(s.SupportedClasses) > r.MaxEntries {
		return fmt.Errorf("scp: slave %d: supported class list exceeds %d entries", s.Idx, r.MaxEntries)
	}

	// Step 4: default active classes to all v1-tagged supported classes
	// when the application hasn't supplied any.
	if len(s.ActiveClasses) == 0 {
		for _, cv := range s.SupportedClasses {
			if cv.Version == 1 {
				s.ActiveClasses = append(s.ActiveClasses, cv)
			}
		}
	}

	if err := r.checkPlausibility(s); err != nil {
		return err
	}

	if !has1000_0_1 && len(s.ActiveClasses) > 0 {
		// Step 6: absent but non-empty active-classes is informational,
		// not fatal — recorded by the caller as
		// ErrS00001000_0_1NotSupported via diag.Aggregate.
		s.ClassMask = BuildMask(s.ActiveClasses)
		return sercos3.ErrS00001000_0_1NotSupported
	}

	s.ClassMask = BuildMask(s.ActiveClasses)
	return r.checkMask(s)
}

// checkPlausibility rejects an active-class list that contradicts the
// slave's own supported-class list or names the same class twice with
// different versions.
func (r *Reasoner) checkPlausibility(s *slave.Slave) error {
	if len(s.ActiveClasses) > r.MaxEntries {
		return fmt.Errorf("scp: slave %d: %w", s.Idx, sercos3.ErrIllegalCase)
	}
	seenVersion := map[uint16]uint8{}
	for _, ac := range s.ActiveClasses {
		if v, ok := seenVersion[ac.Class]; ok && v != ac.Version {
			return fmt.Errorf("scp: slave %d: class %s appears with two versions", s.Idx, slave.ClassName(ac.Class))
		}
		seenVersion[ac.Class] = ac.Version

		found := false
		for _, sc := range s.SupportedClasses {
			if sc.Class == ac.Class && sc.Version == ac.Version {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("scp: slave %d: active class %s not in supported classes", s.Idx, ac)
		}
	}
	return nil
}

// BuildMask translates a class list into the 32-bit dispatch mask the
// phase sequencer gates each TransmitTiming stage on.
func BuildMask(classes []slave.ClassVersion) uint32 {
	var mask uint32
	for _, cv := range classes {
		switch cv.Class {
		case slave.ClassFixCFG:
			mask |= slave.MaskFixCFG
		case slave.ClassVarCFG:
			if cv.Version >= 2 {
				mask |= slave.MaskVarCFGv2
			} else {
				mask |= slave.MaskVarCFG
			}
		case slave.ClassSync:
			switch {
			case cv.Version >= 3:
				mask |= slave.MaskSyncV3
			case cv.Version == 2:
				mask |= slave.MaskSyncV2
			default:
				mask |= slave.MaskSync
			}
		case slave.ClassWD:
			mask |= slave.MaskWD
		case slave.ClassRTB:
			mask |= slave.MaskRTB
		case slave.ClassNRT:
			mask |= slave.MaskNRT
		case slave.ClassCap:
			mask |= slave.MaskCap
		case slave.ClassSysTime:
			mask |= slave.MaskSysTime
		case slave.ClassNRTPC:
			mask |= slave.MaskNRTPC
		case slave.ClassCyc:
			mask |= slave.MaskCyc
		case slave.ClassWDCon:
			mask |= slave.MaskWDCon
		case slave.ClassSWC:
			mask |= slave.MaskSWC
		}
	}
	return mask
}

// checkMask implements: exactly one basic class.
func (r *Reasoner) checkMask(s *slave.Slave) error {
	fix := s.ClassMask & slave.MaskFixCFGFamily
	varCfg := s.ClassMask & slave.MaskVarCFGFamily
	if (fix != 0) == (varCfg != 0) {
		return fmt.Errorf("scp: slave %d: %w", s.Idx, sercos3.ErrBasicScpTypeMismatch)
	}
	return nil
}

// RequiresInterFrameGapCheck reports whether s is SCP_Sync and must be
// probed for S-0-1036 support.
func RequiresInterFrameGapCheck(s *slave.Slave) bool {
	return s.ClassMask&slave.MaskSyncFamily != 0
}
