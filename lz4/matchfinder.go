package lz4

import (
	"encoding/binary"
	"math/bits"
	"runtime"

	"github.com/andybalholm/lz4pack"
)

// This file is based on code from github.com/golang/snappy.

//Copyright (c) 2011 The Snappy-Go Authors. All rights reserved.
//
//Redistribution and use in source and binary forms, with or without
//modification, are permitted provided that the following conditions are
//met:
//
//   * Redistributions of source code must retain the above copyright
//notice, this list of conditions and the following disclaimer.
//   * Redistributions in binary form must reproduce the above
//copyright notice, this list of conditions and the following disclaimer
//in the documentation and/or other materials provided with the
//distribution.
//   * Neither the name of Google Inc. nor the names of its
//contributors may be used to endorse or promote products derived from
//this software without specific prior written permission.
//
//THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
//"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
//LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
//A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
//OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
//SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
//LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
//DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
//THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
//(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
//OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

// A MatchFinder implements the lz4pack.MatchFinder interface with the match
// finder used by CompressBlock. Each call to FindMatches treats src as an
// independent block, and the matches it returns can be passed to
// BlockEncoder.Encode.
type MatchFinder struct {
	// Acceleration trades compression for speed. 0 means
	// AccelerationDefault.
	Acceleration int

	table hashTable
}

func (f *MatchFinder) Reset() {
	f.table.clear()
}

// FindMatches looks for matches in src, appends them to dst, and returns dst.
func (f *MatchFinder) FindMatches(dst []lz4pack.Match, src []byte) []lz4pack.Match {
	// Every block starts at position 0, and every candidate is checked
	// against src, so entries from earlier blocks can stay.
	f.table.use(tableFor(len(src)))
	m := matcher{table: &f.table}
	return m.find(dst, src, normalizeAcceleration(f.Acceleration))
}

// A matcher finds matches for one block, using a hash table that may hold
// positions from earlier blocks.
//
// Positions in the table are virtual: src[i] is at base+i, and dict, the
// history immediately preceding src, occupies [base-len(dict), base). base
// must be at least len(dict).
type matcher struct {
	table *hashTable
	base  uint32
	dict  []byte

	// ext, if not nil, is the table of an attached dictionary. Its entries
	// are positions in a stream where dict ended at extEnd. The matcher's
	// own table is only used for positions in src.
	ext    *hashTable
	extEnd uint32
}

// find looks for matches in src, appends them to dst, and returns dst. The
// matches follow the end-of-block rules, and the last element covers the
// trailing literals.
func (m *matcher) find(dst []lz4pack.Match, src []byte, acceleration int) []lz4pack.Match {
	if len(src) < minLength {
		if len(src) > 0 {
			dst = append(dst, lz4pack.Match{Unmatched: len(src)})
		}
		return dst
	}

	// sLimit is the last position where a match can start.
	sLimit := len(src) - mfLimit
	// Matches must end at least lastLiterals before the end of src.
	matchLimit := len(src) - lastLiterals

	// nextEmit is where in src the next literal run starts.
	nextEmit := 0

	m.insert(src, 0)
	s := 1

	for {
		// Heuristic match skipping: after each 1<<skipTrigger misses the
		// step between lookups grows by one, so incompressible data is
		// skipped over quickly. Higher acceleration starts with bigger steps.
		step := 1
		searchMatchNb := acceleration << skipTrigger
		var candidate uint32
		var inDict bool
		for {
			if s > sLimit {
				goto emitRemainder
			}
			var ok bool
			if candidate, inDict, ok = m.lookup(src, s); ok {
				break
			}
			s += step
			step = searchMatchNb >> skipTrigger
			searchMatchNb++
		}

		for {
			// A 4-byte match has been found at s. Extend it as far as it
			// goes, forward and then backward.
			start, end := m.extend(src, s, candidate, inDict, nextEmit, matchLimit)
			dst = append(dst, lz4pack.Match{
				Unmatched: start - nextEmit,
				Length:    end - start,
				Distance:  int(m.base + uint32(s) - candidate),
			})
			s = end
			nextEmit = s
			if s > sLimit {
				goto emitRemainder
			}

			// Fill the table at s-2, then test s directly: a match there
			// needs no literals.
			m.insert(src, s-2)
			var ok bool
			if candidate, inDict, ok = m.lookup(src, s); !ok {
				s++
				break
			}
		}
	}

emitRemainder:
	if nextEmit < len(src) {
		dst = append(dst, lz4pack.Match{
			Unmatched: len(src) - nextEmit,
		})
	}
	return dst
}

// insert records position s of src in the table.
func (m *matcher) insert(src []byte, s int) {
	h := m.table.hash(binary.LittleEndian.Uint32(src[s:]))
	m.table.put(h, m.base+uint32(s))
}

// lookup records position s in the table, and returns the position it held
// for the same hash if that is a usable match for s: in range, no more than
// DistanceMax back, and with the same first 4 bytes. inDict reports whether
// the candidate is in the dictionary rather than in src.
func (m *matcher) lookup(src []byte, s int) (candidate uint32, inDict bool, ok bool) {
	seq := binary.LittleEndian.Uint32(src[s:])
	pos := m.base + uint32(s)
	h := m.table.hash(seq)
	v := m.table.get(h)
	m.table.put(h, pos)

	switch {
	case v >= m.base && v < pos:
		if pos-v > DistanceMax || binary.LittleEndian.Uint32(src[v-m.base:]) != seq {
			return 0, false, false
		}
		return v, false, true

	case m.ext != nil:
		// Translate from the attached dictionary's positions to ours.
		v = m.ext.get(m.ext.hash(seq))
		if v >= m.extEnd || m.extEnd-v > uint32(len(m.dict)) {
			return 0, false, false
		}
		v = m.base - (m.extEnd - v)

	case v >= pos:
		return 0, false, false
	}

	dictStart := m.base - uint32(len(m.dict))
	if v < dictStart || pos-v > DistanceMax {
		return 0, false, false
	}
	i := v - dictStart
	if int(i)+4 > len(m.dict) || binary.LittleEndian.Uint32(m.dict[i:]) != seq {
		return 0, false, false
	}
	return v, true, true
}

// extend returns the start and end in src of the longest match at s against
// candidate. The match is extended backward no further than nextEmit, and
// forward no further than limit.
func (m *matcher) extend(src []byte, s int, candidate uint32, inDict bool, nextEmit, limit int) (start, end int) {
	start = s
	if !inDict {
		i := int(candidate - m.base)
		end = extendMatch(src[:limit], i+4, s+4)
		for start > nextEmit && i > 0 && src[i-1] == src[start-1] {
			start--
			i--
		}
		return start, end
	}

	i := int(candidate - (m.base - uint32(len(m.dict))))
	end = extendMatch2(m.dict, i+4, src[:limit], s+4)
	if i+end-s == len(m.dict) {
		// The match runs to the end of the dictionary, so it can continue
		// from the start of src.
		end = extendMatch(src[:limit], 0, end)
	}
	for start > nextEmit && i > 0 && m.dict[i-1] == src[start-1] {
		start--
		i--
	}
	return start, end
}

func load32(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i:])
}

// extendMatch returns the largest k such that k <= len(src) and that
// src[i:i+k-j] and src[j:k] have the same contents.
//
// It assumes that:
//
//	0 <= i && i < j && j <= len(src)
func extendMatch(src []byte, i, j int) int {
	switch runtime.GOARCH {
	case "amd64", "arm64", "ppc64le", "riscv64":
		// As long as we are 8 or more bytes before the end of src, we can load and
		// compare 8 bytes at a time. If those 8 bytes are equal, repeat.
		for j+8 < len(src) {
			iBytes := binary.LittleEndian.Uint64(src[i:])
			jBytes := binary.LittleEndian.Uint64(src[j:])
			if iBytes != jBytes {
				// If those 8 bytes were not equal, XOR the two 8 byte values, and return
				// the index of the first byte that differs. The loads are little-endian,
				// so the lowest set bit belongs to the first differing byte, and the
				// shift by 3 converts a bit index to a byte index.
				return j + bits.TrailingZeros64(iBytes^jBytes)>>3
			}
			i, j = i+8, j+8
		}
	case "386", "arm", "mipsle":
		// On a 32-bit CPU, we do it 4 bytes at a time.
		for j+4 < len(src) {
			iBytes := binary.LittleEndian.Uint32(src[i:])
			jBytes := binary.LittleEndian.Uint32(src[j:])
			if iBytes != jBytes {
				return j + bits.TrailingZeros32(iBytes^jBytes)>>3
			}
			i, j = i+4, j+4
		}
	}
	for ; j < len(src) && src[i] == src[j]; i, j = i+1, j+1 {
	}
	return j
}

// extendMatch2 returns the largest k such that src1[i:i+k-j] and src2[j:k]
// have the same contents (and all these indexes are valid).
func extendMatch2(src1 []byte, i int, src2 []byte, j int) int {
	switch runtime.GOARCH {
	case "amd64", "arm64", "ppc64le", "riscv64":
		for i+8 < len(src1) && j+8 < len(src2) {
			iBytes := binary.LittleEndian.Uint64(src1[i:])
			jBytes := binary.LittleEndian.Uint64(src2[j:])
			if iBytes != jBytes {
				return j + bits.TrailingZeros64(iBytes^jBytes)>>3
			}
			i, j = i+8, j+8
		}
	case "386", "arm", "mipsle":
		for i+4 < len(src1) && j+4 < len(src2) {
			iBytes := binary.LittleEndian.Uint32(src1[i:])
			jBytes := binary.LittleEndian.Uint32(src2[j:])
			if iBytes != jBytes {
				return j + bits.TrailingZeros32(iBytes^jBytes)>>3
			}
			i, j = i+4, j+4
		}
	}
	for ; i < len(src1) && j < len(src2) && src1[i] == src2[j]; i, j = i+1, j+1 {
	}
	return j
}
