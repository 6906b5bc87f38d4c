// Package lz4pack holds the pieces shared by the codecs in this module.
//
// A compressed block is described by two things: the bytes being compressed,
// and a list of sequences that say which of those bytes are copied literally
// and which are copied from earlier in the stream. Match finders produce the
// sequence list; encoders turn it into a wire format. Keeping the two apart
// makes it possible to inspect a block's structure (see TextEncoder) without
// caring about how it is laid out on the wire.
package lz4pack

// A Match is one sequence of LZ77 compression: a run of literal bytes followed
// by a copy of earlier data.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match
	Length    int // the number of bytes in the matched string; it is 0 for the trailing literals of a block
	Distance  int // how far back in the stream to copy from
}

// A MatchFinder performs the LZ77 stage of compression, looking for matches.
type MatchFinder interface {
	// FindMatches looks for matches in src, appends them to dst, and returns dst.
	FindMatches(dst []Match, src []byte) []Match

	// Reset clears any internal state, preparing the MatchFinder to be used with
	// a new stream.
	Reset()
}

// An Encoder encodes the data in its final format.
type Encoder interface {
	// Encode appends the encoded format of src to dst, using the match
	// information from matches.
	Encode(dst []byte, src []byte, matches []Match, lastBlock bool) []byte

	// Reset clears any internal state, preparing the Encoder to be used with
	// a new stream.
	Reset()
}
