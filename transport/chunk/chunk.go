// Package chunk implements the on-disk framing of the chunked log format.
//
// A log file is a sequence of fixed-size chunks. Within a chunk, records
// are laid out back to back, each preceded by a 4-byte big-endian length
// prefix. A chunk may end with zero-byte padding up to the next chunk
// boundary; a zero length prefix marks that padding. A record whose framed
// size exceeds the chunk size starts at a chunk boundary and spans as many
// chunks as it needs. Chunks exist so that an external reader can always
// resynchronize at the next chunk boundary after hitting a corrupt region.
package chunk

// LenPrefixBytes is the size of the length prefix preceding every record.
const LenPrefixBytes = 4

const (
	// DefaultSize is the default chunk size.
	DefaultSize = 16 << 20
)

// Layout computes record placement within fixed-size chunks. The zero
// value is not usable; both fields must be positive and PadThreshold must
// be at least LenPrefixBytes so a length prefix never straddles a chunk
// boundary.
type Layout struct {
	ChunkSize    int64
	PadThreshold int64
}

// Remaining returns the number of bytes left in the chunk containing
// offset, counting offset itself.
func (l Layout) Remaining(offset int64) int64 {
	return l.ChunkSize - offset%l.ChunkSize
}

// ChunkIndex returns the index of the chunk containing offset.
func (l Layout) ChunkIndex(offset int64) int64 {
	return offset / l.ChunkSize
}

// Pad returns how many zero bytes must be written at offset before a
// record of framedLen bytes may start there. A record that fits in the
// remaining space needs no padding. A record that does not fit pads to the
// next boundary when the remaining space is below the pad threshold, or
// when the length prefix itself would straddle the boundary; otherwise it
// starts in place and spans the boundary.
func (l Layout) Pad(offset, framedLen int64) int64 {
	rem := l.Remaining(offset)
	if framedLen <= rem {
		return 0
	}
	if rem < l.PadThreshold || rem < LenPrefixBytes {
		return rem
	}
	return 0
}
