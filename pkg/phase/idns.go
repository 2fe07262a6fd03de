package phase

// IDN catalogue used by the phase sequencer's operations (CheckVersion,
// GetTimingData, TransmitTiming, ReadConfig); the Hot-Plug package keeps
// its own. Named idnSNNNN = S-0-NNNN so the parameter number stays
// grep-able from the field name.
const (
	idnS1000 uint32 = 1000      // list of supported SCP classes
	idnS1000_0_1 uint32 = 0x03E80001 // optional SCP basic class marker

	idnS1005     uint32 = 1005 // MDT0 C-DEV offset
	idnS1006     uint32 = 1006 // communication cycle time tScyc
	idnS1007     uint32 = 1007 // AT0 start time t1
	idnS1008     uint32 = 1008 // comm control
	idnS1009     uint32 = 1009 // tSync
	idnS1010     uint32 = 1010 // command-valid time t3
	idnS1011     uint32 = 1011 // ring delay port 1
	idnS1012     uint32 = 1012 // ring delay port 2
	idnS1013     uint32 = 1013 // SVC offset in MDT
	idnS1014     uint32 = 1014 // SVC offset in AT
	idnS1015     uint32 = 1015 // MDT lengths
	idnS1017     uint32 = 1017 // AT lengths
	idnS1023     uint32 = 1023 // S-DEV offset in AT
	idnS1027_0_1 uint32 = 0x0403_0001 // UC channel t6
	idnS1027_0_2 uint32 = 0x0403_0002 // UC channel t7
	idnS1032     uint32 = 1032 // sync jitter
	idnS1036     uint32 = 1036 // inter frame gap
	idnS1037     uint32 = 1037 // max TSref counter
	idnS1047     uint32 = 1047 // allowed MST losses
	idnS1048     uint32 = 1048 // producer cycle time per connection
	idnS1050     uint32 = 1050 // connection descriptor base
	idnS1051     uint32 = 1051 // max connections list
	idnS1060     uint32 = 1060 // RT bit allocation
	idnS1061     uint32 = 1061 // allowed data losses per connection

	idnS1024 uint32 = 1024 // activate network settings procedure command
	idnS0127 uint32 = 127  // CP3 transition check command
	idnS0128 uint32 = 128  // CP4 transition check command
)
