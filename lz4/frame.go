package lz4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/pierrec/xxHash/xxHash32"
)

// The frame format wraps a series of blocks with a header, block sizes, and
// optional checksums, so that it can be read as a stream.

const (
	frameMagic        = 0x184D2204
	skippableMagic    = 0x184D2A50 // through 0x184D2A5F
	skippableMask     = 0xFFFFFFF0
	uncompressedBlock = 0x80000000

	flagVersion         = 1 << 6
	flagBlockIndep      = 1 << 5
	flagBlockChecksum   = 1 << 4
	flagContentSize     = 1 << 3
	flagContentChecksum = 1 << 2
	flagDictID          = 1 << 0
)

var (
	// ErrBadMagic is returned when a frame does not start with the LZ4
	// frame magic number.
	ErrBadMagic = errors.New("lz4: bad magic number")

	// ErrHeaderChecksum is returned when a frame header's checksum does
	// not match.
	ErrHeaderChecksum = errors.New("lz4: frame header checksum mismatch")

	// ErrBlockChecksum is returned when a block's checksum does not match.
	ErrBlockChecksum = errors.New("lz4: block checksum mismatch")

	// ErrContentChecksum is returned when the checksum of a frame's
	// decompressed content does not match.
	ErrContentChecksum = errors.New("lz4: content checksum mismatch")

	// ErrUnsupportedFrame is returned for frames using features this
	// package does not implement, such as dictionary IDs.
	ErrUnsupportedFrame = errors.New("lz4: unsupported frame")

	errWriterClosed = errors.New("lz4: write to closed FrameWriter")
)

// blockSizeID returns the frame header code for a maximum block size.
func blockSizeID(size int) (byte, error) {
	switch size {
	case 64 << 10:
		return 4, nil
	case 256 << 10:
		return 5, nil
	case 1 << 20:
		return 6, nil
	case 4 << 20:
		return 7, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidBlockSize, size)
}

func headerChecksum(descriptor []byte) byte {
	return byte(xxHash32.Checksum(descriptor, 0) >> 8)
}

// A FrameWriter compresses data written to it into an LZ4 frame.
//
// The configuration fields must be set before the first Write. A zero
// FrameWriter needs a call to Reset to give it a destination.
type FrameWriter struct {
	// BlockSize is the maximum size of uncompressed data in a block:
	// 64 KiB (the default), 256 KiB, 1 MiB, or 4 MiB.
	BlockSize int

	// BlockIndependence makes each block decodable on its own. Otherwise
	// each block may refer to the 64 KiB of data before it, which usually
	// compresses better.
	BlockIndependence bool

	// BlockChecksum adds a checksum of each compressed block.
	BlockChecksum bool

	// ContentChecksum adds a checksum of the decompressed data at the end
	// of the frame.
	ContentChecksum bool

	// Acceleration is passed to the block compressor.
	Acceleration int

	dest        io.Writer
	wroteHeader bool
	err         error

	stream     Stream
	compressor Compressor
	hasher     hash.Hash32

	// buf collects input until a block is full. In linked mode, history
	// holds a copy of the end of the previous blocks while buf is refilled.
	buf     []byte
	history []byte
	out     []byte
}

// NewFrameWriter returns a FrameWriter that writes a frame with 64 KiB linked
// blocks and a content checksum to w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		dest:            w,
		ContentChecksum: true,
	}
}

// Reset discards any unwritten data and prepares f to write a new frame to
// w, with the same configuration.
func (f *FrameWriter) Reset(w io.Writer) {
	f.dest = w
	f.wroteHeader = false
	f.err = nil
	f.buf = f.buf[:0]
}

func (f *FrameWriter) Write(p []byte) (n int, err error) {
	if f.err != nil {
		return 0, f.err
	}
	if !f.wroteHeader {
		if f.err = f.writeHeader(); f.err != nil {
			return 0, f.err
		}
	}
	for len(p) > 0 {
		free := f.BlockSize - len(f.buf)
		if free > len(p) {
			free = len(p)
		}
		f.buf = append(f.buf, p[:free]...)
		p = p[free:]
		n += free
		if len(f.buf) == f.BlockSize {
			if f.err = f.writeBlock(); f.err != nil {
				return n, f.err
			}
		}
	}
	return n, nil
}

// Close writes any buffered data and the end of the frame. It does not
// close the underlying writer.
func (f *FrameWriter) Close() error {
	if f.err == errWriterClosed {
		return nil
	}
	if f.err != nil {
		return f.err
	}
	if !f.wroteHeader {
		if f.err = f.writeHeader(); f.err != nil {
			return f.err
		}
	}
	if len(f.buf) > 0 {
		if f.err = f.writeBlock(); f.err != nil {
			return f.err
		}
	}

	f.out = binary.LittleEndian.AppendUint32(f.out[:0], 0)
	if f.ContentChecksum {
		f.out = binary.LittleEndian.AppendUint32(f.out, f.hasher.Sum32())
	}
	if _, err := f.dest.Write(f.out); err != nil {
		f.err = err
		return err
	}
	f.err = errWriterClosed
	return nil
}

func (f *FrameWriter) writeHeader() error {
	if f.BlockSize == 0 {
		f.BlockSize = 64 << 10
	}
	bd, err := blockSizeID(f.BlockSize)
	if err != nil {
		return err
	}

	flg := byte(flagVersion)
	if f.BlockIndependence {
		flg |= flagBlockIndep
	}
	if f.BlockChecksum {
		flg |= flagBlockChecksum
	}
	if f.ContentChecksum {
		flg |= flagContentChecksum
	}

	header := binary.LittleEndian.AppendUint32(nil, frameMagic)
	header = append(header, flg, bd<<4)
	header = append(header, headerChecksum(header[4:]))
	if _, err := f.dest.Write(header); err != nil {
		return err
	}
	f.wroteHeader = true

	if cap(f.buf) < f.BlockSize {
		f.buf = make([]byte, 0, f.BlockSize)
	}
	if cap(f.out) < CompressBlockBound(f.BlockSize)+8 {
		f.out = make([]byte, 0, CompressBlockBound(f.BlockSize)+8)
	}
	if f.hasher == nil {
		f.hasher = xxHash32.New(0)
	} else {
		f.hasher.Reset()
	}
	if f.BlockIndependence {
		f.compressor.table.clear()
	} else {
		if f.history == nil {
			f.history = make([]byte, HistorySize)
		}
		f.stream.Reset()
	}
	printf("lz4: frame header flg=%#x bd=%#x", flg, bd<<4)
	return nil
}

// writeBlock compresses and writes the contents of f.buf. A block that does
// not get smaller is stored uncompressed.
func (f *FrameWriter) writeBlock() error {
	src := f.buf
	if f.ContentChecksum {
		f.hasher.Write(src)
	}

	// Leave room for the block size before the data.
	dst := f.out[4 : 4+CompressBlockBound(len(src))]
	var n int
	var err error
	if f.BlockIndependence {
		n, err = f.compressor.CompressBlockFastReset(src, dst, f.Acceleration)
	} else {
		n, err = f.stream.Compress(src, dst, f.Acceleration)
		// buf will be overwritten by the next block.
		f.stream.SaveDict(f.history)
	}
	if err != nil {
		return err
	}

	size := uint32(n)
	if n >= len(src) {
		n = copy(dst, src)
		size = uint32(n) | uncompressedBlock
	}
	block := f.out[:4+n]
	binary.LittleEndian.PutUint32(block, size)
	if f.BlockChecksum {
		block = binary.LittleEndian.AppendUint32(block, xxHash32.Checksum(block[4:], 0))
	}
	f.buf = f.buf[:0]
	_, err = f.dest.Write(block)
	return err
}

// A FrameReader decompresses LZ4 frames read from an underlying reader.
// Concatenated frames are read one after the other, and skippable frames
// are skipped.
type FrameReader struct {
	src io.Reader
	err error

	inFrame        bool
	independent    bool
	blockChecksum  bool
	hasher         hash.Hash32
	contentSize    uint64
	hasContentSize bool
	decoded        uint64

	blockMax int
	decoder  StreamDecoder
	ring     []byte
	pos      int
	in       []byte
	pending  []byte
	scratch  [8]byte
}

// NewFrameReader returns a FrameReader that reads frames from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{src: r}
}

// Reset discards any buffered data and prepares f to read from r.
func (f *FrameReader) Reset(r io.Reader) {
	f.src = r
	f.err = nil
	f.inFrame = false
	f.pending = nil
}

func (f *FrameReader) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		f.err = f.next()
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// next reads the next frame header, block, or end mark.
func (f *FrameReader) next() error {
	if !f.inFrame {
		return f.readHeader()
	}

	if err := f.readFull(f.scratch[:4]); err != nil {
		return err
	}
	size := binary.LittleEndian.Uint32(f.scratch[:4])
	if size == 0 {
		return f.readEnd()
	}
	raw := size&uncompressedBlock != 0
	size &^= uncompressedBlock
	if int(size) > f.blockMax {
		return fmt.Errorf("%w: block of %d bytes in frame with %d byte blocks", ErrCorrupt, size, f.blockMax)
	}

	data := f.in[:size]
	if err := f.readFull(data); err != nil {
		return err
	}
	if f.blockChecksum {
		if err := f.readFull(f.scratch[:4]); err != nil {
			return err
		}
		if binary.LittleEndian.Uint32(f.scratch[:4]) != xxHash32.Checksum(data, 0) {
			return ErrBlockChecksum
		}
	}

	if f.pos+f.blockMax > len(f.ring) {
		f.pos = 0
	}
	dst := f.ring[f.pos : f.pos+f.blockMax]
	if f.independent {
		f.decoder.SetDict(nil)
	}
	var n int
	if raw {
		n = copy(dst, data)
		f.decoder.advance(dst[:n])
	} else {
		var err error
		if n, err = f.decoder.Decompress(data, dst); err != nil {
			return fmt.Errorf("lz4: decompressing frame block: %w", err)
		}
	}

	f.pending = dst[:n]
	f.pos += n
	f.decoded += uint64(n)
	if f.hasher != nil {
		f.hasher.Write(f.pending)
	}
	return nil
}

func (f *FrameReader) readHeader() error {
	for {
		// Running out of data before a frame starts is a clean end.
		if _, err := io.ReadFull(f.src, f.scratch[:4]); err != nil {
			return err
		}
		magic := binary.LittleEndian.Uint32(f.scratch[:4])
		if magic&skippableMask == skippableMagic {
			if err := f.readFull(f.scratch[:4]); err != nil {
				return err
			}
			n := int64(binary.LittleEndian.Uint32(f.scratch[:4]))
			if _, err := io.CopyN(io.Discard, f.src, n); err != nil {
				return unexpected(err)
			}
			continue
		}
		if magic != frameMagic {
			return ErrBadMagic
		}
		break
	}

	var descriptor [2 + 8 + 4]byte
	if err := f.readFull(descriptor[:2]); err != nil {
		return err
	}
	flg, bd := descriptor[0], descriptor[1]
	if flg>>6 != 1 || flg&0x02 != 0 || bd&0x8F != 0 {
		return fmt.Errorf("%w: header flags %#x %#x", ErrUnsupportedFrame, flg, bd)
	}
	if flg&flagDictID != 0 {
		return fmt.Errorf("%w: dictionary ID", ErrUnsupportedFrame)
	}
	n := 2
	if flg&flagContentSize != 0 {
		if err := f.readFull(descriptor[2:10]); err != nil {
			return err
		}
		n = 10
	}
	if err := f.readFull(f.scratch[:1]); err != nil {
		return err
	}
	if f.scratch[0] != headerChecksum(descriptor[:n]) {
		return ErrHeaderChecksum
	}

	blockMax := 0
	switch bd >> 4 {
	case 4:
		blockMax = 64 << 10
	case 5:
		blockMax = 256 << 10
	case 6:
		blockMax = 1 << 20
	case 7:
		blockMax = 4 << 20
	default:
		return fmt.Errorf("%w: block size code %d", ErrUnsupportedFrame, bd>>4)
	}

	f.independent = flg&flagBlockIndep != 0
	f.blockChecksum = flg&flagBlockChecksum != 0
	f.hasContentSize = flg&flagContentSize != 0
	f.contentSize = binary.LittleEndian.Uint64(descriptor[2:10])
	f.decoded = 0
	if flg&flagContentChecksum != 0 {
		if f.hasher == nil {
			f.hasher = xxHash32.New(0)
		}
		f.hasher.Reset()
	} else {
		f.hasher = nil
	}

	if f.blockMax != blockMax || f.ring == nil {
		f.blockMax = blockMax
		f.ring = make([]byte, DecoderRingBufferSize(blockMax))
		f.in = make([]byte, blockMax)
	}
	f.pos = 0
	f.decoder.SetDict(nil)
	f.inFrame = true
	printf("lz4: reading frame flg=%#x bd=%#x", flg, bd)
	return nil
}

func (f *FrameReader) readEnd() error {
	f.inFrame = false
	if f.hasContentSize && f.decoded != f.contentSize {
		return fmt.Errorf("%w: frame has %d bytes, header says %d", ErrCorrupt, f.decoded, f.contentSize)
	}
	if f.hasher == nil {
		return nil
	}
	if err := f.readFull(f.scratch[:4]); err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(f.scratch[:4]) != f.hasher.Sum32() {
		return ErrContentChecksum
	}
	return nil
}

// readFull fills b from the underlying reader. Running out of data part way
// through a frame is reported as io.ErrUnexpectedEOF.
func (f *FrameReader) readFull(b []byte) error {
	_, err := io.ReadFull(f.src, b)
	return unexpected(err)
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
