package hotplug

// IDN catalogue for the HP1 parameter dispatch and the condensed CP2->CP4
// parameter push, named idnSNNNN = S-0-NNNN.
const (
	idnS1013 uint32 = 1013 // SVC offset in MDT, assigned to a newly scanned slave
	idnS1014 uint32 = 1014 // SVC offset in AT, assigned to a newly scanned slave

	idnS1024 uint32 = 1024 // activate network settings procedure command
	idnS0127 uint32 = 127  // CP3 transition check command
	idnS0128 uint32 = 128  // CP4 transition check command
)
