package chunk

import "fmt"

// CorruptionError reports a framing violation found while reading a log.
// The reader it came from can be resynchronized at the next chunk boundary
// with Resync.
type CorruptionError struct {
	Offset int64
	Reason string
}

func (e CorruptionError) Error() string {
	return fmt.Sprintf("chunk: corrupt record at offset %d: %s", e.Offset, e.Reason)
}

// TruncationError reports a record whose length prefix was read but whose
// payload extends past the end of the file. Only the final record of a log
// cut short mid-write produces it.
type TruncationError struct {
	Offset int64
	Want   int64
	Have   int64
}

func (e TruncationError) Error() string {
	return fmt.Sprintf("chunk: truncated record at offset %d: want %d payload bytes, have %d",
		e.Offset, e.Want, e.Have)
}
