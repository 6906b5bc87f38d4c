package lz4

import (
	"sync"

	"github.com/andybalholm/lz4pack"
)

// A Compressor holds the scratch state for compressing independent blocks.
// Reusing one Compressor avoids allocating a hash table for every block. The
// zero value is ready to use.
//
// A Compressor must not be used by more than one goroutine at a time.
type Compressor struct {
	table hashTable

	// base is the position of the next input in a byU32 table. Advancing
	// it moves the entries of earlier inputs out of range without clearing
	// the table.
	base uint32

	matches []lz4pack.Match
}

var compressorPool = sync.Pool{
	New: func() interface{} { return new(Compressor) },
}

// CompressBlock compresses src into dst with the default acceleration, and
// returns the number of bytes written. It returns ErrShortBuffer if the
// block does not fit in dst; a dst of CompressBlockBound(len(src)) bytes is
// always large enough.
func CompressBlock(src, dst []byte) (int, error) {
	return CompressBlockFast(src, dst, AccelerationDefault)
}

// CompressBlockFast is like CompressBlock, but with an acceleration factor.
// Higher values are faster and compress less; values below 1 mean
// AccelerationDefault, and values above AccelerationMax are treated as
// AccelerationMax.
func CompressBlockFast(src, dst []byte, acceleration int) (int, error) {
	c := compressorPool.Get().(*Compressor)
	defer compressorPool.Put(c)
	return c.CompressBlockFastReset(src, dst, acceleration)
}

// CompressBlockDestSize compresses as much of src as fits in dst. It returns
// the number of bytes of src that were compressed and the size of the block.
// Decompressing the block gives back exactly src[:consumed].
func CompressBlockDestSize(src, dst []byte) (consumed, n int, err error) {
	c := compressorPool.Get().(*Compressor)
	defer compressorPool.Put(c)
	return c.CompressBlockDestSize(src, dst)
}

// CompressBlock compresses src into dst, starting from a cleared hash table.
func (c *Compressor) CompressBlock(src, dst []byte, acceleration int) (int, error) {
	c.table.clear()
	c.base = 0
	return c.compress(src, dst, acceleration)
}

// CompressBlockFastReset is like CompressBlock, but it only clears the hash
// table when the entries left from the previous block could be mistaken for
// positions in src. The Compressor must have been used only through its
// methods since it was created, so that its table is consistent.
func (c *Compressor) CompressBlockFastReset(src, dst []byte, acceleration int) (int, error) {
	c.prepare(len(src))
	return c.compress(src, dst, acceleration)
}

// CompressBlockDestSize compresses as much of src as fits in dst, like the
// package-level function of the same name.
func (c *Compressor) CompressBlockDestSize(src, dst []byte) (consumed, n int, err error) {
	if len(src) > MaxInputSize {
		return 0, 0, ErrInputTooLarge
	}
	if len(dst) < 1 {
		return 0, 0, ErrShortBuffer
	}
	c.prepare(len(src))
	c.matches = c.find(src, AccelerationDefault)
	consumed, n = encodeBlockDestSize(dst, src, c.matches)
	return consumed, n, nil
}

func (c *Compressor) compress(src, dst []byte, acceleration int) (int, error) {
	if len(src) > MaxInputSize {
		return 0, ErrInputTooLarge
	}
	c.matches = c.find(src, normalizeAcceleration(acceleration))
	return encodeBlock(dst, src, c.matches)
}

func (c *Compressor) find(src []byte, acceleration int) []lz4pack.Match {
	typ := tableFor(len(src))
	c.table.use(typ)
	if typ == byU16 {
		// 16-bit entries have no room for an epoch.
		c.base = 0
	}
	m := matcher{table: &c.table, base: c.base}
	matches := m.find(c.matches[:0], src, acceleration)
	if typ == byU32 {
		c.base += uint32(len(src))
	}
	return matches
}

// prepare gets the table ready for an input of n bytes, clearing it only
// when needed. In a byU32 table, entries from earlier inputs are below base
// and never used. A byU16 table starts every input at position 0, so entries
// left from a small earlier block are still positions in src; each candidate
// is checked against src before use.
func (c *Compressor) prepare(n int) {
	if c.table.typ == clearedTable {
		return
	}
	typ := tableFor(n)
	if c.table.typ != typ ||
		typ == byU16 && n >= 4<<10 ||
		typ == byU32 && uint64(c.base)+uint64(n) > 1<<30 {
		c.table.clear()
		c.base = 0
	}
}
