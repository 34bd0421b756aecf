package chunk

import (
	"encoding/binary"
	"io"
)

// Record is a framed record read back from a log.
type Record struct {
	// Offset of the record's length prefix within the file.
	Offset  int64
	Payload []byte
}

// Reader iterates over the framed records of a chunked log. It skips
// padding, follows records that span chunk boundaries, and stops with a
// CorruptionError or TruncationError when the framing is violated. It is
// independent of the writer and safe to run against a closed log file.
type Reader struct {
	src    io.ReaderAt
	size   int64
	layout Layout
	offset int64
}

// NewReader returns a Reader over the first size bytes of src, framed
// according to layout.
func NewReader(src io.ReaderAt, size int64, layout Layout) *Reader {
	return &Reader{src: src, size: size, layout: layout}
}

// Offset returns the file offset the next read starts at.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the next record, or io.EOF at the end of the log.
func (r *Reader) Next() (Record, error) {
	for {
		if r.offset >= r.size {
			return Record{}, io.EOF
		}
		rem := r.layout.Remaining(r.offset)
		if rem < LenPrefixBytes {
			// Too small to hold a prefix; the writer always pads this.
			r.offset += rem
			continue
		}
		if r.size-r.offset < LenPrefixBytes {
			return Record{}, CorruptionError{Offset: r.offset, Reason: "length prefix past end of file"}
		}
		var hdr [LenPrefixBytes]byte
		if _, err := r.src.ReadAt(hdr[:], r.offset); err != nil {
			return Record{}, err
		}
		n := int64(binary.BigEndian.Uint32(hdr[:]))
		if n == 0 {
			// Padding (or corruption) runs to the next chunk boundary.
			r.offset += rem
			continue
		}
		start := r.offset
		payloadOff := start + LenPrefixBytes
		if n > r.size-payloadOff {
			return Record{}, TruncationError{Offset: start, Want: n, Have: r.size - payloadOff}
		}
		payload := make([]byte, n)
		if _, err := r.src.ReadAt(payload, payloadOff); err != nil {
			return Record{}, err
		}
		r.offset = payloadOff + n
		return Record{Offset: start, Payload: payload}, nil
	}
}

// Resync skips to the next chunk boundary. Callers use it to continue past
// a corrupt region reported by Next.
func (r *Reader) Resync() {
	r.offset = (r.layout.ChunkIndex(r.offset) + 1) * r.layout.ChunkSize
}
