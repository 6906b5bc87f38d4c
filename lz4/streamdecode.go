package lz4

// A StreamDecoder decompresses the blocks written by a Stream, keeping track
// of the history each block may refer to.
//
// The history is the output of the previous calls, which must stay where it
// is, unmodified, until the next call. If each block is decompressed right
// after the previous one in the same buffer, any amount of history is
// available. Otherwise only the previous block (or the data since the last
// SetDict) can be referred to. A ring buffer of DecoderRingBufferSize bytes
// can be used, starting again at its beginning whenever the next block
// might not fit.
//
// The zero value is ready to use.
type StreamDecoder struct {
	// prefix is the most recent output, and extDict the output before it,
	// in another part of memory.
	prefix  []byte
	extDict []byte
}

// DecoderRingBufferSize returns the smallest ring buffer a StreamDecoder can
// wrap around in, for blocks that decompress to no more than maxBlockSize
// bytes. It returns 0 if maxBlockSize is negative or larger than
// MaxInputSize.
func DecoderRingBufferSize(maxBlockSize int) int {
	if maxBlockSize < 0 || maxBlockSize > MaxInputSize {
		return 0
	}
	if maxBlockSize < 16 {
		maxBlockSize = 16
	}
	return HistorySize + 14 + maxBlockSize
}

// SetDict starts a new stream, whose first block may refer to dict. A nil
// dict starts a stream with no history. dict must stay unmodified until the
// next block has been decompressed.
func (d *StreamDecoder) SetDict(dict []byte) {
	d.prefix = lastHistory(dict)
	d.extDict = nil
}

// Decompress decompresses the next block of the stream from src into dst,
// and returns the number of bytes written. After an error, the history is
// unchanged.
func (d *StreamDecoder) Decompress(src, dst []byte) (int, error) {
	var n int
	var err error
	if contiguous(d.prefix, dst) {
		// dst continues the previous output.
		window := d.prefix[:len(d.prefix)+len(dst)]
		n, err = decodeBlock(window, len(d.prefix), src, d.extDict, len(window), false)
	} else {
		n, err = decodeBlock(dst, 0, src, lastHistory(d.prefix), len(dst), false)
	}
	if err != nil {
		return 0, err
	}
	d.advance(dst[:n])
	return n, nil
}

// advance records out, which has just been written, as the latest output.
func (d *StreamDecoder) advance(out []byte) {
	if len(out) == 0 {
		return
	}
	if contiguous(d.prefix, out) {
		d.prefix = d.prefix[:len(d.prefix)+len(out)]
	} else {
		d.extDict = lastHistory(d.prefix)
		d.prefix = out
	}
	if len(d.prefix) >= HistorySize {
		// Blocks can no longer reach past the prefix.
		d.prefix = d.prefix[len(d.prefix)-HistorySize:]
		d.extDict = nil
	}
}
