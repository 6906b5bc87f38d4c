package lz4

import "encoding/binary"

// UncompressBlock decompresses the block in src into dst, and returns the
// number of bytes written. dst must be large enough for the whole
// decompressed block; otherwise ErrShortBuffer is returned.
//
// UncompressBlock never reads or writes outside src and dst, whatever src
// holds. A malformed block gives ErrCorrupt.
//
// src and dst may overlap when decompressing in place: src must be at the end
// of a buffer of at least DecompressInplaceBufferSize bytes, and dst at its
// start.
func UncompressBlock(src, dst []byte) (int, error) {
	return decodeBlock(dst, 0, src, nil, len(dst), false)
}

// UncompressBlockPartial decompresses the first target bytes of the block in
// src into dst. It returns fewer bytes if the block is shorter, and no more
// than len(dst). Only as much of src as is needed to produce them is read.
func UncompressBlockPartial(src, dst []byte, target int) (int, error) {
	if target > len(dst) {
		target = len(dst)
	}
	if target < 0 {
		target = 0
	}
	return decodeBlock(dst, 0, src, nil, target, true)
}

// UncompressBlockWithDict is like UncompressBlock, but the block may refer to
// dict as if it immediately preceded dst. Only the last HistorySize bytes of
// dict can be referred to.
func UncompressBlockWithDict(src, dst, dict []byte) (int, error) {
	return decodeBlock(dst, 0, src, lastHistory(dict), len(dst), false)
}

// lastHistory returns the part of b that a block can refer to.
func lastHistory(b []byte) []byte {
	if len(b) > HistorySize {
		return b[len(b)-HistorySize:]
	}
	return b
}

// decodeBlock decodes the block in src into dst[di:limit]. dst[:di] holds
// data decoded earlier, and dict is history preceding dst[0]; matches may
// refer to either. In partial mode, decoding stops without error when limit
// is reached. It returns the number of bytes written.
func decodeBlock(dst []byte, di int, src, dict []byte, limit int, partial bool) (int, error) {
	if len(src) == 0 {
		return 0, corrupt("empty block")
	}
	if partial && di == limit {
		return 0, nil
	}

	d, si := di, 0
	for {
		token := src[si]
		si++

		literals := int(token >> 4)
		if literals == 15 {
			var ok bool
			if literals, si, ok = readLength(src, si, literals); !ok {
				return 0, corrupt("literal length past end of block")
			}
		}
		if literals > len(src)-si {
			return 0, corrupt("literals past end of block")
		}
		if literals > limit-d {
			if !partial {
				return 0, ErrShortBuffer
			}
			d += copy(dst[d:limit], src[si:])
			return d - di, nil
		}
		d += copy(dst[d:], src[si:si+literals])
		si += literals
		if si == len(src) {
			return d - di, nil
		}
		if partial && d == limit {
			return d - di, nil
		}

		if len(src)-si < 2 {
			return 0, corrupt("offset past end of block")
		}
		offset := int(binary.LittleEndian.Uint16(src[si:]))
		si += 2

		length := int(token & 15)
		if length == 15 {
			var ok bool
			if length, si, ok = readLength(src, si, length); !ok {
				return 0, corrupt("match length past end of block")
			}
		}
		length += MinMatch

		if offset == 0 || offset > d+len(dict) {
			return 0, corrupt("offset outside history")
		}
		if length > limit-d {
			if !partial {
				return 0, ErrShortBuffer
			}
			length = limit - d
		}

		end := d + length
		from := d - offset
		if from < 0 {
			// The match starts in dict, and may continue at dst[0].
			d += copy(dst[d:end], dict[len(dict)+from:])
			from = 0
		}
		// Each copy doubles the span that can be copied at once when the
		// match overlaps its own output.
		for d < end {
			d += copy(dst[d:end], dst[from:d])
		}

		if partial && d == limit {
			return d - di, nil
		}
		if si == len(src) {
			return 0, corrupt("block ends with a match")
		}
	}
}

func corrupt(reason string) error {
	printf("lz4: corrupt block: %s", reason)
	return ErrCorrupt
}
