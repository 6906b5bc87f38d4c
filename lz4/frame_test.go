package lz4

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"testing"
	"testing/iotest"
)

func writeFrame(t *testing.T, data []byte, configure func(*FrameWriter)) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	if configure != nil {
		configure(fw)
	}
	// Write in uneven pieces, to exercise the buffering.
	for p := data; len(p) > 0; {
		n := 70001
		if n > len(p) {
			n = len(p)
		}
		if _, err := fw.Write(p[:n]); err != nil {
			t.Fatal(err)
		}
		p = p[n:]
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	configs := []struct {
		name      string
		configure func(*FrameWriter)
	}{
		{"default", nil},
		{"independent", func(fw *FrameWriter) { fw.BlockIndependence = true }},
		{"checksums", func(fw *FrameWriter) { fw.BlockChecksum = true }},
		{"no checksum", func(fw *FrameWriter) { fw.ContentChecksum = false }},
		{"256K", func(fw *FrameWriter) { fw.BlockSize = 256 << 10 }},
		{"1M independent", func(fw *FrameWriter) {
			fw.BlockSize = 1 << 20
			fw.BlockIndependence = true
			fw.BlockChecksum = true
		}},
		{"accelerated", func(fw *FrameWriter) { fw.Acceleration = 8 }},
	}
	for _, cfg := range configs {
		for _, c := range corpora {
			for _, size := range []int{0, 1, 100000, 3 << 20} {
				name := fmt.Sprintf("%s/%s/%d", cfg.name, c.name, size)
				data := c.gen(size)
				frame := writeFrame(t, data, cfg.configure)

				decompressed, err := io.ReadAll(NewFrameReader(bytes.NewReader(frame)))
				if err != nil {
					t.Fatalf("%s: %v", name, err)
				}
				if !bytes.Equal(decompressed, data) {
					t.Fatalf("%s: decompressed output does not match", name)
				}
			}
		}
	}
}

func TestFrameSmallReads(t *testing.T) {
	data := mixedData(100000)
	frame := writeFrame(t, data, nil)
	decompressed, err := io.ReadAll(iotest.OneByteReader(NewFrameReader(iotest.OneByteReader(bytes.NewReader(frame)))))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("decompressed output does not match")
	}
}

func TestFrameConcatenated(t *testing.T) {
	first := textData(200000)
	second := mixedData(50000)

	var stream []byte
	stream = append(stream, writeFrame(t, first, nil)...)
	// A skippable frame between the two.
	stream = binary.LittleEndian.AppendUint32(stream, skippableMagic+7)
	stream = binary.LittleEndian.AppendUint32(stream, 5)
	stream = append(stream, "skip!"...)
	stream = append(stream, writeFrame(t, second, func(fw *FrameWriter) { fw.BlockIndependence = true })...)
	stream = append(stream, writeFrame(t, nil, nil)...)

	decompressed, err := io.ReadAll(NewFrameReader(bytes.NewReader(stream)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decompressed, append(append([]byte(nil), first...), second...)) {
		t.Fatal("decompressed output does not match")
	}
}

func TestFrameWriterReset(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	fw := NewFrameWriter(&buf1)
	fw.BlockChecksum = true
	data1, data2 := textData(100000), mixedData(200000)

	if _, err := fw.Write(data1); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := fw.Write(data1); err == nil {
		t.Fatal("Write after Close succeeded")
	}

	fw.Reset(&buf2)
	if _, err := fw.Write(data2); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}

	fr := NewFrameReader(&buf1)
	for _, want := range [][]byte{data1, data2} {
		got, err := io.ReadAll(fr)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatal("decompressed output does not match")
		}
		fr.Reset(&buf2)
	}
}

func TestFrameInvalidBlockSize(t *testing.T) {
	fw := NewFrameWriter(io.Discard)
	fw.BlockSize = 1000
	if _, err := fw.Write([]byte("hello")); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("got %v, want ErrInvalidBlockSize", err)
	}
	if err := fw.Close(); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("Close: got %v, want ErrInvalidBlockSize", err)
	}
}

func TestFrameErrors(t *testing.T) {
	data := textData(200000)
	frame := writeFrame(t, data, func(fw *FrameWriter) { fw.BlockChecksum = true })

	mutate := func(i int) []byte {
		b := append([]byte(nil), frame...)
		b[i] ^= 0x40
		return b
	}

	for _, tc := range []struct {
		name  string
		input []byte
		want  error
	}{
		{"bad magic", []byte("hello, world"), ErrBadMagic},
		{"header checksum", mutate(6), ErrHeaderChecksum},
		{"version", mutate(4), ErrUnsupportedFrame},
		{"block checksum", mutate(7 + 4 + 2), ErrBlockChecksum},
		{"content checksum", mutate(len(frame) - 1), ErrContentChecksum},
		{"truncated magic", frame[:2], io.ErrUnexpectedEOF},
		{"truncated header", frame[:5], io.ErrUnexpectedEOF},
		{"truncated block", frame[:len(frame)/2], io.ErrUnexpectedEOF},
		{"truncated checksum", frame[:len(frame)-1], io.ErrUnexpectedEOF},
		{"truncated skippable frame", []byte{0x50, 0x2A, 0x4D, 0x18, 10, 0, 0, 0, 1, 2}, io.ErrUnexpectedEOF},
	} {
		_, err := io.ReadAll(NewFrameReader(bytes.NewReader(tc.input)))
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	// The error sticks.
	fr := NewFrameReader(bytes.NewReader([]byte("not a frame")))
	for i := 0; i < 2; i++ {
		if _, err := fr.Read(make([]byte, 10)); !errors.Is(err, ErrBadMagic) {
			t.Fatalf("read %d: got %v, want ErrBadMagic", i, err)
		}
	}

	// An empty stream holds no frames.
	got, err := io.ReadAll(NewFrameReader(bytes.NewReader(nil)))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty stream: got (%q, %v)", got, err)
	}
}

func TestFrameCorruptBlock(t *testing.T) {
	data := mixedData(300000)
	frame := writeFrame(t, data, func(fw *FrameWriter) { fw.BlockIndependence = true })
	for i := 11; i < len(frame)-8; i += 997 {
		b := append([]byte(nil), frame...)
		b[i] ^= 0xFF
		got, err := io.ReadAll(NewFrameReader(bytes.NewReader(b)))
		if err == nil && !bytes.Equal(got, data) {
			t.Fatalf("byte %d: corrupted frame read without error", i)
		}
	}
}

// handmadeFrame builds a frame holding one uncompressed block, with the
// content size in the header.
func handmadeFrame(content []byte, declaredSize uint64) []byte {
	frame := binary.LittleEndian.AppendUint32(nil, frameMagic)
	descriptorStart := len(frame)
	frame = append(frame, flagVersion|flagBlockIndep|flagContentSize, 4<<4)
	frame = binary.LittleEndian.AppendUint64(frame, declaredSize)
	frame = append(frame, headerChecksum(frame[descriptorStart:]))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(content))|uncompressedBlock)
	frame = append(frame, content...)
	return binary.LittleEndian.AppendUint32(frame, 0)
}

func TestFrameContentSize(t *testing.T) {
	got, err := io.ReadAll(NewFrameReader(bytes.NewReader(handmadeFrame([]byte("hello"), 5))))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}

	_, err = io.ReadAll(NewFrameReader(bytes.NewReader(handmadeFrame([]byte("hello"), 6))))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("wrong content size: got %v, want ErrCorrupt", err)
	}
}

func TestFrameOversizedBlock(t *testing.T) {
	frame := binary.LittleEndian.AppendUint32(nil, frameMagic)
	frame = append(frame, flagVersion, 4<<4)
	frame = append(frame, headerChecksum(frame[4:]))
	frame = binary.LittleEndian.AppendUint32(frame, 64<<10+1)
	frame = append(frame, make([]byte, 64<<10+1)...)
	_, err := io.ReadAll(NewFrameReader(bytes.NewReader(frame)))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("got %v, want ErrCorrupt", err)
	}
}
