package lz4

import (
	"bytes"
	"errors"
	"testing"

	"github.com/andybalholm/lz4pack"
)

func TestBlockEncoderHello(t *testing.T) {
	src := []byte("HelloHelloHello, world")
	matches := []lz4pack.Match{
		{Unmatched: 5, Length: 10, Distance: 5},
		{Unmatched: 7},
	}
	block := BlockEncoder{}.Encode(nil, src, matches, true)

	want := []byte{0x56, 'H', 'e', 'l', 'l', 'o', 5, 0, 0x70, ',', ' ', 'w', 'o', 'r', 'l', 'd'}
	if !bytes.Equal(block, want) {
		t.Fatalf("got %x, want %x", block, want)
	}

	parsed, err := ParseBlock(block)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(lz4pack.TextEncoder{}.Encode(nil, src, parsed, true)); got != "Hello<10,5>, world" {
		t.Fatalf("got %q", got)
	}

	dst := make([]byte, len(src))
	n, err := UncompressBlock(block, dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst[:n], src) {
		t.Fatalf("got %q", dst[:n])
	}
}

func TestBlockEncoderEndRules(t *testing.T) {
	src := bytes.Repeat([]byte("abcd"), 10)
	for _, tc := range []struct {
		name    string
		matches []lz4pack.Match
		want    []lz4pack.Match
	}{
		{
			// The match runs to the end, leaving no literals.
			name:    "match at end",
			matches: []lz4pack.Match{{Unmatched: 4, Length: 36, Distance: 4}},
			want:    []lz4pack.Match{{Unmatched: 40}},
		},
		{
			name:    "enough trailing literals",
			matches: []lz4pack.Match{{Unmatched: 4, Length: 28, Distance: 4}, {Unmatched: 8}},
			want:    []lz4pack.Match{{Unmatched: 4, Length: 28, Distance: 4}, {Unmatched: 8}},
		},
		{
			name:    "only 4 trailing literals",
			matches: []lz4pack.Match{{Unmatched: 4, Length: 32, Distance: 4}, {Unmatched: 4}},
			want:    []lz4pack.Match{{Unmatched: 40}},
		},
		{
			name:    "last match starts 11 bytes from end",
			matches: []lz4pack.Match{{Unmatched: 4, Length: 20, Distance: 4}, {Unmatched: 5, Length: 6, Distance: 4}, {Unmatched: 5}},
			want:    []lz4pack.Match{{Unmatched: 4, Length: 20, Distance: 4}, {Unmatched: 16}},
		},
	} {
		block := BlockEncoder{}.Encode(nil, src, tc.matches, true)
		got, err := ParseBlock(block)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
			}
		}

		dst := make([]byte, len(src))
		if _, err := UncompressBlock(block, dst); err != nil || !bytes.Equal(dst, src) {
			t.Fatalf("%s: decompressed output does not match (%v)", tc.name, err)
		}
	}
}

func TestParseBlockReencode(t *testing.T) {
	for _, c := range corpora {
		for _, size := range []int{1, 20, 1000, 100000} {
			data := c.gen(size)
			block := compressForTest(t, data)

			matches, err := ParseBlock(block)
			if err != nil {
				t.Fatalf("%s/%d: %v", c.name, size, err)
			}
			total := 0
			for _, m := range matches {
				total += m.Unmatched + m.Length
			}
			if total != len(data) {
				t.Fatalf("%s/%d: sequences cover %d bytes", c.name, size, total)
			}
			if last := matches[len(matches)-1]; last.Length != 0 {
				t.Fatalf("%s/%d: last sequence %+v has a match", c.name, size, last)
			}

			again := BlockEncoder{}.Encode(nil, data, matches, true)
			if !bytes.Equal(again, block) {
				t.Fatalf("%s/%d: re-encoded block differs", c.name, size)
			}
		}
	}
}

func TestParseBlockErrors(t *testing.T) {
	for _, block := range [][]byte{
		nil,
		{0x10, 'a', 0, 0, 0x00},
		{0x10, 'a', 1},
		{0x20, 'a'},
		{0xF0},
		{0x1F, 'a', 1, 0},
		{0x10, 'a', 1, 0},
	} {
		if _, err := ParseBlock(block); !errors.Is(err, ErrCorrupt) {
			t.Errorf("ParseBlock(%x): got %v, want ErrCorrupt", block, err)
		}
	}
}

func TestEncodeBlockShortBuffer(t *testing.T) {
	src := textData(1000)
	var mf MatchFinder
	matches := mf.FindMatches(nil, src)
	size := encodedSize(len(src), matches)

	dst := make([]byte, size)
	n, err := encodeBlock(dst, src, matches)
	if err != nil || n != size {
		t.Fatalf("got (%d, %v), want (%d, nil)", n, err, size)
	}
	for _, short := range []int{0, 1, size / 2, size - 1} {
		if _, err := encodeBlock(dst[:short], src, matches); !errors.Is(err, ErrShortBuffer) {
			t.Fatalf("%d bytes: got %v, want ErrShortBuffer", short, err)
		}
	}
}

func TestMaxLiterals(t *testing.T) {
	for room := 1; room < 2000; room++ {
		n := maxLiterals(room)
		if lastSequenceSize(n) > room {
			t.Fatalf("maxLiterals(%d) = %d, which takes %d bytes", room, n, lastSequenceSize(n))
		}
		if lastSequenceSize(n+1) <= room {
			t.Fatalf("maxLiterals(%d) = %d, but %d fit", room, n, n+1)
		}
	}
	if maxLiterals(0) >= 0 {
		t.Fatal("maxLiterals(0) should be negative")
	}
}
