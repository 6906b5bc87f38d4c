package lz4

const (
	hashLog   = MemoryUsage - 2
	tableSize = 1 << hashLog
)

// tableType records how the entries of a hashTable are laid out.
type tableType uint8

const (
	// clearedTable is a zeroed table that can be used as either of the
	// others.
	clearedTable tableType = iota

	// byU32 tables hold one 32-bit position per entry. Positions are
	// virtual: they count from the start of the stream, so they stay valid
	// across calls as long as base is advanced by the size of each input.
	byU32

	// byU16 tables hold two 16-bit positions per entry, giving twice as many
	// hash buckets. They are only used for a single input shorter than
	// limit64k, whose positions all fit in 16 bits.
	byU16
)

// A hashTable maps the hash of 4 bytes to the last position where they were
// seen.
type hashTable struct {
	entries [tableSize]uint32
	typ     tableType
}

// hash returns the table index for the 4 bytes in seq.
func (t *hashTable) hash(seq uint32) uint32 {
	if t.typ == byU16 {
		return (seq * 2654435761) >> (32 - (hashLog + 1))
	}
	return (seq * 2654435761) >> (32 - hashLog)
}

func (t *hashTable) get(h uint32) uint32 {
	if t.typ == byU16 {
		return t.entries[h>>1] >> ((h & 1) * 16) & 0xffff
	}
	return t.entries[h&(tableSize-1)]
}

func (t *hashTable) put(h, pos uint32) {
	if t.typ == byU16 {
		shift := (h & 1) * 16
		e := &t.entries[h>>1]
		*e = *e&^(0xffff<<shift) | (pos&0xffff)<<shift
		return
	}
	t.entries[h&(tableSize-1)] = pos
}

func (t *hashTable) clear() {
	t.entries = [tableSize]uint32{}
	t.typ = clearedTable
}

// use switches the table to typ. A table holding entries of another type is
// cleared first, since its entries would be meaningless.
func (t *hashTable) use(typ tableType) {
	if t.typ != typ && t.typ != clearedTable {
		println("lz4: hash table type changed; clearing")
		t.clear()
	}
	t.typ = typ
}

// rebase subtracts delta from every entry of a byU32 table. Entries that
// would go negative are set to 0, which is far enough back to never be used
// as a match.
func (t *hashTable) rebase(delta uint32) {
	for i, v := range t.entries {
		if v < delta {
			v = 0
		} else {
			v -= delta
		}
		t.entries[i] = v
	}
}

// tableFor returns the table type used for a single input of n bytes.
func tableFor(n int) tableType {
	if n < limit64k {
		return byU16
	}
	return byU32
}
