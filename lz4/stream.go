package lz4

import "github.com/andybalholm/lz4pack"

// A Stream compresses a sequence of dependent blocks: each block may refer
// to the HistorySize bytes that came before it. The blocks must be
// decompressed in order by a StreamDecoder (or with UncompressBlockWithDict,
// passing the preceding data).
//
// The Stream does not copy its input. After Compress returns, the last
// HistorySize bytes of input must stay where they are, unmodified, until the
// next call, unless SaveDict has been called to move them. Input buffers may
// be consecutive parts of one larger buffer, or a ring buffer that is reused.
//
// The zero value is ready to use. A Stream must not be used by more than one
// goroutine at a time.
type Stream struct {
	table hashTable

	// base is the virtual position of the next input, and dict is the
	// history preceding it: the end of earlier input, or a dictionary.
	base uint32
	dict []byte

	// dictCtx is a Stream whose dictionary is attached for the next call.
	dictCtx *Stream

	matches []lz4pack.Match
	failed  bool
}

// NewStream returns a Stream ready to compress the first block of a new
// stream.
func NewStream() *Stream {
	return new(Stream)
}

// Reset prepares s to start a new stream, clearing its hash table and
// forgetting any history or attached dictionary.
func (s *Stream) Reset() {
	s.table.clear()
	s.base = 0
	s.dict = nil
	s.dictCtx = nil
	s.failed = false
	println("lz4: stream reset")
}

// ResetFast prepares s to start a new stream without clearing its hash
// table. Entries from the previous stream are moved out of reach by
// advancing the stream position instead.
//
// ResetFast may only be used on a Stream that was set up by NewStream,
// Reset or LoadDict and has been used only through its methods since then.
func (s *Stream) ResetFast() {
	if s.table.typ != byU32 || s.base > 1<<30 {
		s.table.clear()
		s.base = 0
	} else if s.base != 0 {
		s.base += HistorySize
	}
	s.dict = nil
	s.dictCtx = nil
	s.failed = false
}

// LoadDict resets s and uses dict as the history for the first block. Only
// the last HistorySize bytes of dict are used. dict must stay unmodified
// while s refers to it. LoadDict returns the number of bytes of dict that
// were loaded.
func (s *Stream) LoadDict(dict []byte) int {
	s.Reset()
	dict = lastHistory(dict)

	// Dictionary positions start at HistorySize, so that the zero entries
	// of a cleared table are out of range.
	s.base = HistorySize
	s.table.typ = byU32
	if len(dict) < MinMatch {
		return 0
	}
	for p := 0; p+MinMatch <= len(dict); p += 3 {
		h := s.table.hash(load32(dict, p))
		s.table.put(h, s.base+uint32(p))
	}
	s.base += uint32(len(dict))
	s.dict = dict
	printf("lz4: loaded %d byte dictionary", len(dict))
	return len(dict)
}

// AttachDictionary makes the dictionary loaded into ds (with LoadDict)
// available to the next call to Compress, without copying its hash table.
// ds must not be modified or used until that call returns. The attachment
// only lasts for that one call; it replaces any history s already has.
//
// Passing nil, or a Stream with no dictionary, removes any attachment.
func (s *Stream) AttachDictionary(ds *Stream) {
	if ds == nil || len(ds.dict) == 0 || ds.table.typ != byU32 {
		s.dictCtx = nil
		return
	}
	if s.base < HistorySize {
		// Keep room below base for the attached dictionary's positions.
		s.base = HistorySize
	}
	s.dictCtx = ds
	printf("lz4: attached %d byte dictionary", len(ds.dict))
}

// Compress compresses src as the next block of the stream, and returns the
// number of bytes written to dst. It returns ErrShortBuffer if the block does
// not fit in dst; a dst of CompressBlockBound(len(src)) bytes is always large
// enough.
//
// After an error, s must be reset before it is used again; until then
// Compress returns ErrStreamFailed.
func (s *Stream) Compress(src, dst []byte, acceleration int) (int, error) {
	if s.failed {
		return 0, ErrStreamFailed
	}
	if len(src) > MaxInputSize {
		return 0, ErrInputTooLarge
	}

	s.table.use(byU32)
	s.renormalize(len(src))
	s.fitHistory(src)

	m := matcher{table: &s.table, base: s.base, dict: s.dict}
	if ds := s.dictCtx; ds != nil {
		m.dict = ds.dict
		m.ext = &ds.table
		m.extEnd = ds.base
	}
	s.matches = m.find(s.matches[:0], src, normalizeAcceleration(acceleration))

	n, err := encodeBlock(dst, src, s.matches)
	if err != nil {
		s.failed = true
		return 0, err
	}
	if len(src) == 0 {
		// An empty block leaves the history where it was.
		s.dictCtx = nil
		return n, nil
	}

	// The input becomes the history for the next block, extending the
	// previous history when it directly follows it.
	if s.dictCtx == nil && contiguous(s.dict, src) {
		s.dict = s.dict[:len(s.dict)+len(src)]
	} else {
		s.dict = src
	}
	s.dict = lastHistory(s.dict)
	s.base += uint32(len(src))
	s.dictCtx = nil
	return n, nil
}

// SaveDict copies the last (up to HistorySize) bytes of history into buf, and
// makes s use the copy, so that the buffer holding the earlier input can be
// reused. It returns the number of bytes saved.
func (s *Stream) SaveDict(buf []byte) int {
	n := len(s.dict)
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, s.dict[len(s.dict)-n:])
	s.dict = buf[:n]
	return n
}

// fitHistory adjusts the history before compressing src. If src overwrites
// part of it (as with a ring buffer), only the part after src is kept. A few
// bytes of history that src does not follow are not worth keeping.
func (s *Stream) fitHistory(src []byte) {
	if len(s.dict) == 0 {
		return
	}
	if len(s.dict) < MinMatch && !contiguous(s.dict, src) {
		s.dict = nil
		return
	}
	if rest, ok := overlap(s.dict, src); ok {
		s.dict = rest
		if len(s.dict) < MinMatch {
			s.dict = nil
		}
	}
}

// renormalize rebases the stream's positions when they would go past 2 GiB,
// keeping the current history at the same distance from the next input.
func (s *Stream) renormalize(n int) {
	if uint64(s.base)+uint64(n) <= 0x80000000 {
		return
	}
	delta := s.base - HistorySize
	s.table.rebase(delta)
	s.base = HistorySize
	printf("lz4: stream positions rebased by %d", delta)
}

// contiguous reports whether b starts right where a ends, in the same
// underlying array.
func contiguous(a, b []byte) bool {
	return len(b) > 0 && sameArray(a, b) && cap(a)-len(a) == cap(b)
}

// overlap reports whether b overlaps a in memory. If it does, rest is the
// part of a that comes after b.
func overlap(a, b []byte) (rest []byte, ok bool) {
	if len(a) == 0 || len(b) == 0 || !sameArray(a, b) {
		return a, false
	}
	// Both slices end at the same place, so their positions can be compared
	// by capacity.
	aStart, bStart := -cap(a), -cap(b)
	aEnd, bEnd := aStart+len(a), bStart+len(b)
	if bStart >= aEnd || aStart >= bEnd {
		return a, false
	}
	if bEnd >= aEnd {
		return nil, true
	}
	return a[bEnd-aStart:], true
}

// sameArray reports whether a and b are slices of the same array, extending
// to the same end.
func sameArray(a, b []byte) bool {
	if cap(a) == 0 || cap(b) == 0 {
		return false
	}
	return &a[:cap(a)][cap(a)-1] == &b[:cap(b)][cap(b)-1]
}
