// Package lz4 implements the LZ4 block format: a fast LZ77 codec with no
// entropy stage.
//
// A block carries neither its compressed nor its decompressed length; the
// caller stores both out of band. Blocks can be compressed one at a time
// (CompressBlock, CompressBlockDestSize) or as a chain of dependent blocks
// that reference the previous 64 KiB of history (Stream and StreamDecoder).
// FrameWriter and FrameReader wrap the block codec in the LZ4 frame format.
//
// Decompression never reads or writes outside the slices it is given, even
// for hostile input: any declared length or offset that does not fit is
// reported as ErrCorrupt or ErrShortBuffer.
package lz4

import "errors"

const (
	// MaxInputSize is the largest input a single block can hold.
	MaxInputSize = 0x7E000000

	// DistanceMax is the largest match offset a block can contain.
	DistanceMax = 65535

	// HistorySize is the amount of earlier data a block can reference.
	HistorySize = 64 << 10

	// MinMatch is the shortest match the format can encode.
	MinMatch = 4

	// MemoryUsage is the log2 of the size in bytes of the match finder's
	// hash table.
	MemoryUsage = 14

	// AccelerationDefault is the acceleration used by CompressBlock.
	AccelerationDefault = 1

	// AccelerationMax is the largest useful acceleration; larger values are
	// clamped to it.
	AccelerationMax = 65537
)

const (
	lastLiterals = 5  // the last 5 bytes of a block are always literals
	mfLimit      = 12 // the last match must start at least 12 bytes before the end
	minLength    = mfLimit + 1

	// limit64k is the input size below which positions fit in 16 bits.
	limit64k = 64<<10 + mfLimit - 1

	skipTrigger = 6
)

var (
	// ErrShortBuffer is returned when the destination is too small to hold
	// the result.
	ErrShortBuffer = errors.New("lz4: destination buffer too short")

	// ErrCorrupt is returned when a compressed block is malformed: a length
	// runs past the end of the input, or an offset points outside the
	// available history.
	ErrCorrupt = errors.New("lz4: corrupt block")

	// ErrInputTooLarge is returned for inputs larger than MaxInputSize.
	ErrInputTooLarge = errors.New("lz4: input too large")

	// ErrInvalidBlockSize is returned for a block size that is out of range.
	ErrInvalidBlockSize = errors.New("lz4: invalid block size")

	// ErrStreamFailed is returned by a Stream that has failed a previous call
	// and has not been reset since.
	ErrStreamFailed = errors.New("lz4: stream must be reset after an error")
)

// CompressBlockBound returns the largest size a block compressed from n bytes
// can have. It returns 0 if n is negative or larger than MaxInputSize.
func CompressBlockBound(n int) int {
	if n < 0 || n > MaxInputSize {
		return 0
	}
	return n + n/255 + 16
}

// DecompressInplaceMargin returns how much larger than the decompressed data
// a buffer must be for a block of compressedSize bytes to be decompressed in
// place. The compressed block goes at the end of the buffer, and the output
// starts at the beginning.
func DecompressInplaceMargin(compressedSize int) int {
	return compressedSize>>8 + 32
}

// DecompressInplaceBufferSize returns a buffer size large enough to
// decompress any block that expands to decompressedSize bytes in place.
func DecompressInplaceBufferSize(decompressedSize int) int {
	return decompressedSize + DecompressInplaceMargin(decompressedSize)
}

// CompressInplaceBufferSize returns the buffer size needed to compress in
// place into at most maxCompressedSize bytes. The input goes at the end of
// the buffer, and the output starts at the beginning.
func CompressInplaceBufferSize(maxCompressedSize int) int {
	return maxCompressedSize + DistanceMax + 32
}

func normalizeAcceleration(acceleration int) int {
	if acceleration < 1 {
		return AccelerationDefault
	}
	if acceleration > AccelerationMax {
		return AccelerationMax
	}
	return acceleration
}
