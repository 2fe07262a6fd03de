package slave

// SCP class identifiers as carried in S-0-1000. The numeric values are an
// internal convention of this master (the wire carries class/version
// words per the Sercos profile, not these Go constants); they exist only
// to index ClassMask bits.
const (
	ClassFixCFG uint16 = iota + 1
	ClassVarCFG
	ClassSync
	ClassWD
	ClassRTB
	ClassNRT
	ClassCap
	ClassSysTime
	ClassNRTPC
	ClassCyc
	ClassWDCon
	ClassSWC
)

var classNames = map[uint16]string{
	ClassFixCFG:  "SCP_FixCFG",
	ClassVarCFG:  "SCP_VarCFG",
	ClassSync:    "SCP_Sync",
	ClassWD:      "SCP_WD",
	ClassRTB:     "SCP_RTB",
	ClassNRT:     "SCP_NRT",
	ClassCap:     "SCP_Cap",
	ClassSysTime: "SCP_SysTime",
	ClassNRTPC:   "SCP_NRTPC",
	ClassCyc:     "SCP_Cyc",
	ClassWDCon:   "SCP_WDCon",
	ClassSWC:     "SCP_SWC",
}

func ClassName(class uint16) string {
	if n, ok := classNames[class]; ok {
		return n
	}
	return "SCP_Unknown"
}

// ClassMask bits, one (or more, for versioned families) per SCP class.
const (
	MaskFixCFG uint32 = 1 << iota
	MaskVarCFG
	MaskVarCFGv2
	MaskSync
	MaskSyncV2
	MaskSyncV3
	MaskWD
	MaskRTB
	MaskNRT
	MaskCap
	MaskSysTime
	MaskNRTPC
	MaskCyc
	MaskWDCon
	MaskSWC
)

// MaskFixCFGFamily / MaskVarCFGFamily group the basic-class bits so the
// reasoner can check "exactly one basic class" with a single bitwise AND.
const (
	MaskFixCFGFamily = MaskFixCFG
	MaskVarCFGFamily = MaskVarCFG | MaskVarCFGv2
	MaskSyncFamily   = MaskSync | MaskSyncV2 | MaskSyncV3
	MaskNRTFamily    = MaskNRT | MaskNRTPC
)
