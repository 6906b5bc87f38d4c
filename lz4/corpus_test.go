package lz4

import (
	"bytes"
	"math/rand"
)

var words = []string{
	"the", "light", "of", "rays", "which", "are", "refracted", "colours",
	"prism", "and", "in", "is", "by", "experiment", "glass", "a", "that",
	"reflected", "white", "red", "violet", "Sun", "Image", "Paper", "Lens",
	"obliquely", "Refraction", "degrees", "of the", "Spectrum",
}

// textData returns n bytes of text-like data that compresses moderately well.
func textData(n int) []byte {
	rng := rand.New(rand.NewSource(int64(n)))
	var b bytes.Buffer
	for b.Len() < n {
		b.WriteString(words[rng.Intn(len(words))])
		if rng.Intn(12) == 0 {
			b.WriteString(".\n")
		} else {
			b.WriteByte(' ')
		}
	}
	return b.Bytes()[:n]
}

// randomData returns n bytes that do not compress.
func randomData(n int) []byte {
	rng := rand.New(rand.NewSource(int64(n) + 1))
	b := make([]byte, n)
	rng.Read(b)
	return b
}

// mixedData alternates text with random stretches and long runs.
func mixedData(n int) []byte {
	rng := rand.New(rand.NewSource(int64(n) + 2))
	b := make([]byte, 0, n+4096)
	for len(b) < n {
		switch rng.Intn(3) {
		case 0:
			b = append(b, textData(1+rng.Intn(4000))...)
		case 1:
			b = append(b, randomData(1+rng.Intn(500))...)
		case 2:
			b = append(b, bytes.Repeat([]byte{byte(rng.Intn(256))}, 1+rng.Intn(1000))...)
		}
	}
	return b[:n]
}

var corpora = []struct {
	name string
	gen  func(int) []byte
}{
	{"text", textData},
	{"random", randomData},
	{"mixed", mixedData},
	{"zeros", func(n int) []byte { return make([]byte, n) }},
}
