package transport

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/chunklog/chunklog/transport/chunk"
)

// OverflowPolicy selects what Write does when the queue is at capacity.
type OverflowPolicy int8

const (
	// OverflowBlock suspends the producer until the writer drains the queue.
	OverflowBlock OverflowPolicy = iota
	// OverflowDropNewest silently discards the event being written.
	OverflowDropNewest
	// OverflowError fails the write with ErrQueueFull.
	OverflowError
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowDropNewest:
		return "drop"
	case OverflowError:
		return "error"
	}
	return fmt.Sprintf("OverflowPolicy(%d)", int8(p))
}

// ParseOverflowPolicy converts the configuration-file spelling of a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "block":
		return OverflowBlock, nil
	case "drop", "drop_newest":
		return OverflowDropNewest, nil
	case "error":
		return OverflowError, nil
	}
	return 0, fmt.Errorf("unknown overflow policy %q", s)
}

// SyncHook observes every durability syscall the writer issues. It runs on
// the writer goroutine, so it must not block for long. Installed
// per-transport; the default is none.
type SyncHook func(fd uintptr, ts time.Time)

const (
	DefaultChunkSize     = chunk.DefaultSize
	DefaultMaxEventSize  = 16 << 20
	DefaultMaxQueueDepth = 10000
	DefaultMaxQueueBytes = 32 << 20
	DefaultFlushMaxBytes = 1 << 20
	DefaultFlushInterval = 3 * time.Second
)

// Config carries the transport settings. It is supplied as a value at open
// time; the setters on Transport replace the snapshot the writer reads at
// the start of each cycle.
type Config struct {
	// ChunkSize is the size in bytes of an on-disk chunk.
	ChunkSize int64

	// PadThreshold is the largest end-of-chunk remainder that is padded out
	// rather than carrying a spanning record. Zero means ChunkSize, so
	// records only span chunks when larger than a whole chunk.
	PadThreshold int64

	// MaxEventSize rejects any write larger than this. It must leave the
	// framed record representable by the 4-byte length prefix; Open fails
	// otherwise.
	MaxEventSize int

	// MaxQueueEvents and MaxQueueBytes bound the producer queue.
	MaxQueueEvents int
	MaxQueueBytes  int64

	// FlushMaxBytes forces an fsync after this many bytes written since the
	// previous one. Zero disables size-based flushing.
	FlushMaxBytes int64

	// FlushInterval forces an fsync when this much time has passed since
	// the previous one and unsynced bytes exist. Zero disables time-based
	// flushing.
	FlushInterval time.Duration

	// Overflow selects the behavior of Write against a full queue.
	Overflow OverflowPolicy

	// Hook, when set, observes every fsync.
	Hook SyncHook

	// Syncer overrides the durability syscall. Nil means (*os.File).Sync.
	// Tests install a no-op here to keep timing assertions off the disk.
	Syncer func(*os.File) error
}

// DefaultConfig returns the full default settings. Open applies these for
// unset fields of its config argument with one exception: a zero
// FlushMaxBytes or FlushInterval stays zero, disabling that flush policy
// rather than taking the default.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      DefaultChunkSize,
		MaxEventSize:   DefaultMaxEventSize,
		MaxQueueEvents: DefaultMaxQueueDepth,
		MaxQueueBytes:  DefaultMaxQueueBytes,
		FlushMaxBytes:  DefaultFlushMaxBytes,
		FlushInterval:  DefaultFlushInterval,
		Overflow:       OverflowBlock,
	}
}

func (c Config) withDefaults() (Config, error) {
	def := DefaultConfig()
	if c.ChunkSize == 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.ChunkSize < chunk.LenPrefixBytes {
		return c, fmt.Errorf("chunk size %d smaller than a length prefix", c.ChunkSize)
	}
	if c.PadThreshold == 0 || c.PadThreshold > c.ChunkSize {
		c.PadThreshold = c.ChunkSize
	}
	if c.PadThreshold < chunk.LenPrefixBytes {
		c.PadThreshold = chunk.LenPrefixBytes
	}
	if c.MaxEventSize == 0 {
		c.MaxEventSize = def.MaxEventSize
	}
	// The length prefix is a uint32; a larger limit would let a payload
	// frame with a wrapped prefix and desynchronize every reader.
	if int64(c.MaxEventSize) > math.MaxUint32-chunk.LenPrefixBytes {
		return c, fmt.Errorf("max event size %d exceeds the length-prefix limit %d",
			c.MaxEventSize, int64(math.MaxUint32-chunk.LenPrefixBytes))
	}
	if c.MaxQueueEvents == 0 {
		c.MaxQueueEvents = def.MaxQueueEvents
	}
	if c.MaxQueueBytes == 0 {
		c.MaxQueueBytes = def.MaxQueueBytes
	}
	if c.FlushMaxBytes < 0 {
		c.FlushMaxBytes = 0
	}
	if c.FlushInterval < 0 {
		c.FlushInterval = 0
	}
	return c, nil
}

func (c Config) layout() chunk.Layout {
	return chunk.Layout{ChunkSize: c.ChunkSize, PadThreshold: c.PadThreshold}
}
