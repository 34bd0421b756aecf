// Package transport implements a durable, thread-safe, append-only file
// transport. Producers hand it small byte payloads; a single background
// writer frames them into fixed-size chunks on disk and issues fsync
// according to byte- and time-based policies. Flush inserts a barrier and
// blocks until everything queued before it is on disk.
package transport

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// State reports the lifecycle phase of the writer.
type State int32

const (
	Starting State = iota
	Running
	Draining
	Terminated
	Faulted
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Stats is a point-in-time snapshot of the transport counters.
type Stats struct {
	EnqueuedEvents int64
	WrittenEvents  int64
	DroppedEvents  int64
	WrittenBytes   int64
	PaddedBytes    int64
	Syncs          int64
	QueueDepth     int
	QueueBytes     int64
}

// logFile is the slice of *os.File the writer needs. Tests substitute a
// fault-injecting implementation.
type logFile interface {
	io.Writer
	Sync() error
	Close() error
	Fd() uintptr
	Name() string
}

// Transport is the producer-facing handle. All methods are safe for
// concurrent use by any number of goroutines.
type Transport struct {
	fp  logFile
	osf *os.File // nil when fp is not a real file

	cfgMu sync.Mutex
	cfg   atomic.Value // Config

	queue *eventQueue
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}

	state int32
	fault atomic.Value // error

	closeOnce sync.Once
	closeErr  error

	startOffset int64

	enqueued int64
	written  int64
	dropped  int64
	wbytes   int64
	padded   int64
	syncs    int64
}

// Open creates or appends to the log at path and starts the writer.
// Unset config fields take their defaults, except FlushMaxBytes and
// FlushInterval, whose zero means the policy is disabled.
func Open(path string, cfg Config) (*Transport, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("chunklog: open %s: %w", path, err)
	}
	st, err := fp.Stat()
	if err != nil {
		_ = fp.Close()
		return nil, fmt.Errorf("chunklog: stat %s: %w", path, err)
	}
	t := newTransport(fp, st.Size(), cfg)
	t.osf = fp
	return t, nil
}

func newTransport(fp logFile, size int64, cfg Config) *Transport {
	t := &Transport{
		fp:          fp,
		queue:       newEventQueue(cfg.MaxQueueEvents, cfg.MaxQueueBytes),
		wake:        make(chan struct{}, 1),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		state:       int32(Starting),
		startOffset: size,
	}
	t.cfg.Store(cfg)
	atomic.StoreInt32(&t.state, int32(Running))
	go t.runWriter()
	return t
}

// Write copies p into a queue entry and enqueues it. It returns once the
// event is queued, not once it is persisted. An empty or oversized payload
// fails with ErrBadWrite; a full queue is handled per the overflow policy.
func (t *Transport) Write(p []byte) error {
	if err := t.faultErr(); err != nil {
		return err
	}
	cfg := t.config()
	if len(p) == 0 {
		return BadWriteError{Reason: "empty event"}
	}
	if len(p) > cfg.MaxEventSize {
		return BadWriteError{Reason: fmt.Sprintf("event of %d bytes exceeds max event size %d", len(p), cfg.MaxEventSize)}
	}
	ev := &event{payload: append([]byte(nil), p...)}
	if err := t.queue.push(ev, cfg.Overflow); err != nil {
		if _, ok := err.(droppedError); ok {
			atomic.AddInt64(&t.dropped, 1)
			return nil
		}
		return err
	}
	atomic.AddInt64(&t.enqueued, 1)
	t.wakeWriter()
	return nil
}

// Flush enqueues a barrier and blocks until the writer has fsynced every
// event enqueued at or before it. It returns ErrShutdown if the transport
// closes first, or the fault if the writer has failed.
func (t *Transport) Flush() error {
	if err := t.faultErr(); err != nil {
		return err
	}
	ev := &event{barrier: true, done: make(chan error, 1)}
	if err := t.queue.push(ev, OverflowBlock); err != nil {
		return err
	}
	t.wakeWriter()
	return <-ev.done
}

// Close signals shutdown, waits for the writer to drain the queue and
// terminate, then closes the file handle. Already-queued events are
// persisted and a final fsync is issued unless the writer has faulted.
// Safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if t.State() != Faulted {
			atomic.StoreInt32(&t.state, int32(Draining))
		}
		// Order matters: the queue stops accepting events strictly before
		// quit is observable, so the writer's final drain cannot miss one.
		t.queue.close()
		close(t.quit)
		<-t.done
		err := t.fp.Close()
		if t.State() != Faulted {
			atomic.StoreInt32(&t.state, int32(Terminated))
		}
		t.closeErr = err
	})
	return t.closeErr
}

// Config returns the current configuration snapshot.
func (t *Transport) Config() Config {
	return t.config()
}

// State returns the writer's lifecycle state.
func (t *Transport) State() State {
	return State(atomic.LoadInt32(&t.state))
}

// Stats returns a snapshot of the transport counters.
func (t *Transport) Stats() Stats {
	depth, qbytes := t.queue.depth()
	return Stats{
		EnqueuedEvents: atomic.LoadInt64(&t.enqueued),
		WrittenEvents:  atomic.LoadInt64(&t.written),
		DroppedEvents:  atomic.LoadInt64(&t.dropped),
		WrittenBytes:   atomic.LoadInt64(&t.wbytes),
		PaddedBytes:    atomic.LoadInt64(&t.padded),
		Syncs:          atomic.LoadInt64(&t.syncs),
		QueueDepth:     depth,
		QueueBytes:     qbytes,
	}
}

// SetFlushMaxBytes replaces the size-based flush threshold. Zero disables
// it. Takes effect at the next writer cycle.
func (t *Transport) SetFlushMaxBytes(n int64) {
	if n < 0 {
		n = 0
	}
	t.updateConfig(func(c *Config) { c.FlushMaxBytes = n })
}

// SetFlushInterval replaces the time-based flush bound. Zero disables it.
// Takes effect at the next writer cycle.
func (t *Transport) SetFlushInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	t.updateConfig(func(c *Config) { c.FlushInterval = d })
}

// SetSyncHook installs the fsync observer. Takes effect at the next writer
// cycle.
func (t *Transport) SetSyncHook(h SyncHook) {
	t.updateConfig(func(c *Config) { c.Hook = h })
}

func (t *Transport) updateConfig(mutate func(*Config)) {
	t.cfgMu.Lock()
	c := t.cfg.Load().(Config)
	mutate(&c)
	t.cfg.Store(c)
	t.cfgMu.Unlock()
	t.wakeWriter()
}

func (t *Transport) config() Config {
	return t.cfg.Load().(Config)
}

func (t *Transport) wakeWriter() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Transport) quitRequested() bool {
	select {
	case <-t.quit:
		return true
	default:
		return false
	}
}

func (t *Transport) faultErr() error {
	if v := t.fault.Load(); v != nil {
		return v.(error)
	}
	return nil
}
