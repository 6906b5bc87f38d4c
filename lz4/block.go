package lz4

import (
	"encoding/binary"

	"github.com/andybalholm/lz4pack"
)

// A block is a series of sequences. Each sequence is a token byte, whose high
// nibble is the literal length and whose low nibble is the match length minus
// MinMatch, followed by the extra literal length bytes, the literals, a 2-byte
// little-endian offset, and the extra match length bytes. A nibble of 15 means
// that more length follows, in bytes of 255 terminated by a byte < 255. The
// last sequence has literals only.

// A BlockEncoder implements the lz4pack.Encoder interface, writing in the LZ4
// block format.
type BlockEncoder struct{}

func (BlockEncoder) Reset() {}

// Encode appends the LZ4 block for src to dst. Matches that would break the
// end-of-block rules are turned back into literals, so any list of valid
// matches can be used.
func (BlockEncoder) Encode(dst []byte, src []byte, matches []lz4pack.Match, lastBlock bool) []byte {
	// Ensure that the block ends with at least 5 literal bytes,
	// and the last match is at least 12 bytes before the end of the block.
	trailingLiterals := 0
	for len(matches) > 0 {
		lastMatch := matches[len(matches)-1]
		if lastMatch.Length > 0 && trailingLiterals >= lastLiterals && trailingLiterals+lastMatch.Length >= mfLimit {
			break
		}
		matches = matches[:len(matches)-1]
		trailingLiterals += lastMatch.Unmatched + lastMatch.Length
	}

	start := len(dst)
	size := encodedSize(len(src), matches)
	if cap(dst)-start < size {
		grown := make([]byte, start, start+size)
		copy(grown, dst)
		dst = grown
	}
	n, err := encodeBlock(dst[start:start+size], src, matches)
	if err != nil {
		panic(err)
	}
	return dst[:start+n]
}

// lengthBytes returns how many extra bytes it takes to encode n after a token
// nibble.
func lengthBytes(n int) int {
	if n < 15 {
		return 0
	}
	return 1 + (n-15)/255
}

// sequenceSize returns the encoded size of a sequence with the given literal
// run and match length.
func sequenceSize(literals, length int) int {
	return 1 + lengthBytes(literals) + literals + 2 + lengthBytes(length-MinMatch)
}

// lastSequenceSize returns the encoded size of the literals-only sequence.
func lastSequenceSize(literals int) int {
	return 1 + lengthBytes(literals) + literals
}

// encodedSize returns the size of the block encodeBlock would produce.
func encodedSize(srcLen int, matches []lz4pack.Match) int {
	size, pos := 0, 0
	for _, m := range matches {
		if m.Length == 0 {
			break
		}
		size += sequenceSize(m.Unmatched, m.Length)
		pos += m.Unmatched + m.Length
	}
	return size + lastSequenceSize(srcLen-pos)
}

// putLength writes the extra length bytes for n (which must be >= 15) at
// dst[d:], and returns the new value of d.
func putLength(dst []byte, d, n int) int {
	for n -= 15; n >= 255; n -= 255 {
		dst[d] = 255
		d++
	}
	dst[d] = byte(n)
	return d + 1
}

func tokenNibble(n int) byte {
	if n >= 15 {
		return 15
	}
	return byte(n)
}

// encodeBlock writes the block for src to dst, using every match with a
// non-zero Length and ending with the rest of src as literals. It returns
// ErrShortBuffer if the block does not fit in len(dst).
func encodeBlock(dst, src []byte, matches []lz4pack.Match) (int, error) {
	d, pos := 0, 0
	for _, m := range matches {
		if m.Length == 0 {
			break
		}
		if sequenceSize(m.Unmatched, m.Length) > len(dst)-d {
			return 0, ErrShortBuffer
		}
		dst[d] = tokenNibble(m.Unmatched)<<4 | tokenNibble(m.Length-MinMatch)
		d++
		if m.Unmatched >= 15 {
			d = putLength(dst, d, m.Unmatched)
		}
		d += copy(dst[d:], src[pos:pos+m.Unmatched])
		binary.LittleEndian.PutUint16(dst[d:], uint16(m.Distance))
		d += 2
		if m.Length-MinMatch >= 15 {
			d = putLength(dst, d, m.Length-MinMatch)
		}
		pos += m.Unmatched + m.Length
	}

	// Write the final, literals-only sequence.
	literals := len(src) - pos
	if lastSequenceSize(literals) > len(dst)-d {
		return 0, ErrShortBuffer
	}
	dst[d] = tokenNibble(literals) << 4
	d++
	if literals >= 15 {
		d = putLength(dst, d, literals)
	}
	d += copy(dst[d:], src[pos:])
	return d, nil
}

// maxLiterals returns the largest literal run whose last sequence fits in
// room bytes.
func maxLiterals(room int) int {
	if room < 1 {
		return -1
	}
	n := room - 1
	n -= (n + 256 - 15) / 256
	for n > 0 && lastSequenceSize(n) > room {
		n--
	}
	return n
}

// encodeBlockDestSize writes as much of src as fits in dst, using the matches
// found for the whole of src. It returns how many bytes of src the block
// covers and how many bytes were written.
func encodeBlockDestSize(dst, src []byte, matches []lz4pack.Match) (consumed, written int) {
	// Room for a final token and the 5 literals every block ends with.
	const reserve = 1 + lastLiterals

	budget := len(dst)
	if budget < 1 {
		return 0, 0
	}

	// Take matches while they fit, shortening the first one that doesn't.
	var (
		cost  int
		pos   int
		taken int
		last  lz4pack.Match
	)
	for taken < len(matches) && matches[taken].Length > 0 {
		m := matches[taken]
		size := sequenceSize(m.Unmatched, m.Length)
		if cost+size+reserve > budget {
			room := budget - reserve - cost - sequenceSize(m.Unmatched, MinMatch)
			if room < 0 {
				break
			}
			if limit := 255*room + 18; m.Length > limit {
				m.Length = limit
			}
			size = sequenceSize(m.Unmatched, m.Length)
			if cost+size+reserve > budget {
				break
			}
			last = m
			cost += size
			pos += m.Unmatched + m.Length
			taken++
			break
		}
		last = m
		cost += size
		pos += m.Unmatched + m.Length
		taken++
	}

	// Fill the rest with literals, giving back matches that would leave the
	// block breaking the end-of-block rules.
	literals := 0
	for {
		literals = maxLiterals(budget - cost)
		if literals > len(src)-pos {
			literals = len(src) - pos
		}
		if taken == 0 || (literals >= lastLiterals && literals+last.Length >= mfLimit) {
			break
		}
		taken--
		cost -= sequenceSize(last.Unmatched, last.Length)
		pos -= last.Unmatched + last.Length
		if taken > 0 {
			last = matches[taken-1]
		}
	}
	if literals < 0 {
		return 0, 0
	}

	consumed = pos + literals
	seqs := matches[:taken]
	if taken > 0 && seqs[taken-1] != last {
		// The last match was shortened; don't modify the caller's slice.
		seqs = append(seqs[:taken-1:taken-1], last)
	}
	n, err := encodeBlock(dst, src[:consumed], seqs)
	if err != nil {
		return 0, 0
	}
	return consumed, n
}

// ParseBlock splits a compressed block into its sequences, without
// decompressing it. The last element of the result is the block's trailing
// literal run, with a Length of 0.
//
// ParseBlock checks that every length fits within the block, and that no
// offset is 0; whether offsets fit within the history is only known when
// decompressing.
func ParseBlock(block []byte) ([]lz4pack.Match, error) {
	var matches []lz4pack.Match
	si := 0
	for {
		if si >= len(block) {
			return nil, ErrCorrupt
		}
		token := block[si]
		si++

		literals := int(token >> 4)
		if literals == 15 {
			var ok bool
			if literals, si, ok = readLength(block, si, literals); !ok {
				return nil, ErrCorrupt
			}
		}
		if literals > len(block)-si {
			return nil, ErrCorrupt
		}
		si += literals
		if si == len(block) {
			return append(matches, lz4pack.Match{Unmatched: literals}), nil
		}

		if len(block)-si < 2 {
			return nil, ErrCorrupt
		}
		offset := int(binary.LittleEndian.Uint16(block[si:]))
		si += 2
		if offset == 0 {
			return nil, ErrCorrupt
		}

		length := int(token & 15)
		if length == 15 {
			var ok bool
			if length, si, ok = readLength(block, si, length); !ok {
				return nil, ErrCorrupt
			}
		}
		matches = append(matches, lz4pack.Match{
			Unmatched: literals,
			Length:    length + MinMatch,
			Distance:  offset,
		})
	}
}

// readLength reads the extra length bytes that follow a token nibble of 15,
// starting at src[si]. It returns the total length and the new value of si,
// or ok == false if the bytes run past the end of src.
func readLength(src []byte, si, n int) (length, next int, ok bool) {
	for {
		if si >= len(src) {
			return 0, si, false
		}
		b := src[si]
		si++
		n += int(b)
		if n > MaxInputSize {
			return 0, si, false
		}
		if b != 255 {
			return n, si, true
		}
	}
}
