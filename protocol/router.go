package protocol

// NumPartitions is the number of independent matching pipelines in
// dual-processor mode. Partition 0 owns symbols A-M, partition 1 owns
// N-Z; everything else (digits, punctuation, empty) defaults to 0.
const NumPartitions = 2

// PartitionFor maps a symbol to its partition. It is branchless: the
// first byte is folded to uppercase and range-checked with unsigned
// arithmetic so the router costs the same on every input.
func PartitionFor(sym Symbol) int {
	c := uint32(sym[0] &^ 0x20) // fold ASCII lowercase to uppercase
	geN := ('N' - 1 - c) >> 31  // 1 iff c >= 'N'
	leZ := (c - ('Z' + 1)) >> 31
	return int(geN & leZ)
}
