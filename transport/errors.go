package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrBadWrite reports a caller-side contract violation: an empty or
	// oversized payload. It never affects the writer.
	ErrBadWrite = errors.New("chunklog: bad write")

	// ErrQueueFull is returned under OverflowError when the queue is at
	// capacity. The caller may retry or drop.
	ErrQueueFull = errors.New("chunklog: queue full")

	// ErrIOFailed reports an unrecoverable file I/O error. Once raised, all
	// current and subsequent producer calls fail with it until Close.
	ErrIOFailed = errors.New("chunklog: io failed")

	// ErrShutdown is returned when the transport was closed while the call
	// was outstanding.
	ErrShutdown = errors.New("chunklog: transport shut down")
)

// BadWriteError carries the reason a payload was rejected. It matches
// ErrBadWrite under errors.Is.
type BadWriteError struct {
	Reason string
}

func (e BadWriteError) Error() string {
	return fmt.Sprintf("chunklog: bad write: %s", e.Reason)
}

func (e BadWriteError) Is(target error) bool {
	return target == ErrBadWrite
}

// IOError wraps the operating system error that faulted the writer. It
// matches ErrIOFailed under errors.Is and unwraps to the underlying error.
type IOError struct {
	Op  string
	Err error
}

func (e IOError) Error() string {
	return fmt.Sprintf("chunklog: io failed: %s: %v", e.Op, e.Err)
}

func (e IOError) Is(target error) bool {
	return target == ErrIOFailed
}

func (e IOError) Unwrap() error {
	return e.Err
}
