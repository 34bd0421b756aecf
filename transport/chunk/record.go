package chunk

import (
	"encoding/binary"
)

// FramedSize returns the on-disk size of a record with an n-byte payload.
func FramedSize(n int) int64 {
	return int64(LenPrefixBytes + n)
}

// AppendFrame appends the length prefix and payload to dst and returns the
// extended slice.
func AppendFrame(dst, payload []byte) []byte {
	var hdr [LenPrefixBytes]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}

// AppendPad appends n zero bytes to dst and returns the extended slice.
func AppendPad(dst []byte, n int64) []byte {
	for n > 0 {
		step := int64(len(zeroPad))
		if step > n {
			step = n
		}
		dst = append(dst, zeroPad[:step]...)
		n -= step
	}
	return dst
}

var zeroPad [4096]byte
