package transport

import (
	"errors"
	"io"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chunklog/chunklog/transport/chunk"
	"github.com/chunklog/chunklog/utils/log"
)

// writerState is owned exclusively by the writer goroutine after start.
type writerState struct {
	layout   chunk.Layout
	offset   int64
	dirty    int64 // bytes written since the last fsync
	lastSync time.Time
	buf      []byte // reused batch buffer
}

// runWriter is the writer goroutine. One cycle: snapshot the config, wait
// until the queue is non-empty, shutdown is requested, or the flush
// deadline passes with unsynced bytes; bulk-dequeue; frame and write the
// batch; apply the flush policy; acknowledge barriers. On a fatal I/O
// error it transitions to Faulted, poisons the queue, and keeps draining
// barriers until Close.
func (t *Transport) runWriter() {
	defer close(t.done)

	w := &writerState{offset: t.startOffset, lastSync: time.Now()}
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		cfg := t.config()
		w.layout = cfg.layout()

		if t.queue.empty() && !t.quitRequested() {
			var deadlineC <-chan time.Time
			if cfg.FlushInterval > 0 && w.dirty > 0 && t.fault.Load() == nil {
				// Monotonic: time.Since ignores wall-clock jumps.
				d := cfg.FlushInterval - time.Since(w.lastSync)
				if d < 0 {
					d = 0
				}
				timer.Reset(d)
				deadlineC = timer.C
			}
			select {
			case <-t.wake:
			case <-deadlineC:
			case <-t.quit:
			}
			if deadlineC != nil && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		batch := t.queue.drain()

		if fault := t.fault.Load(); fault != nil {
			for _, ev := range batch {
				if ev.barrier {
					ev.done <- fault.(error)
				}
			}
			if t.quitRequested() && t.queue.empty() {
				// No final fsync in the Faulted state: the file state is
				// unknown and a sync against a sick device could block
				// Close indefinitely.
				return
			}
			continue
		}

		var barriers []*event
		var framedEvents int64
		w.buf = w.buf[:0]
		for _, ev := range batch {
			if ev.barrier {
				barriers = append(barriers, ev)
				continue
			}
			framed := chunk.FramedSize(len(ev.payload))
			if pad := w.layout.Pad(w.offset, framed); pad > 0 {
				w.buf = chunk.AppendPad(w.buf, pad)
				w.offset += pad
				atomic.AddInt64(&t.padded, pad)
			}
			w.buf = chunk.AppendFrame(w.buf, ev.payload)
			w.offset += framed
			framedEvents++
		}

		if len(w.buf) > 0 {
			if err := t.writeAll(w.buf); err != nil {
				t.fail("write", err, barriers)
				continue
			}
			w.dirty += int64(len(w.buf))
			atomic.AddInt64(&t.wbytes, int64(len(w.buf)))
			atomic.AddInt64(&t.written, framedEvents)
		}

		deadlineHit := cfg.FlushInterval > 0 && time.Since(w.lastSync) >= cfg.FlushInterval
		sizeHit := cfg.FlushMaxBytes > 0 && w.dirty >= cfg.FlushMaxBytes
		if w.dirty > 0 && (deadlineHit || sizeHit || len(barriers) > 0) {
			if err := t.doSync(cfg, w); err != nil {
				t.fail("fsync", err, barriers)
				continue
			}
		}
		for _, b := range barriers {
			b.done <- nil
		}

		if t.quitRequested() && t.queue.empty() {
			if w.dirty > 0 {
				if err := t.doSync(cfg, w); err != nil {
					t.fail("fsync", err, nil)
				}
			}
			return
		}
	}
}

// fail records the fault, poisons the queue so producers observe it, and
// completes pending barriers with the same error.
func (t *Transport) fail(op string, err error, barriers []*event) {
	fault := IOError{Op: op, Err: err}
	log.Error("chunklog: writer faulted on %s: %v", op, err)
	t.fault.Store(error(fault))
	atomic.StoreInt32(&t.state, int32(Faulted))
	t.queue.fail(fault)
	for _, b := range barriers {
		b.done <- fault
	}
}

// writeAll writes p fully: short writes are retried with the remainder and
// retryable errors are retried indefinitely with bounded backoff. Any
// other error is fatal to the writer.
func (t *Transport) writeAll(p []byte) error {
	backoff := time.Millisecond
	const maxBackoff = 100 * time.Millisecond
	for len(p) > 0 {
		n, err := t.fp.Write(p)
		if n > 0 {
			p = p[n:]
		}
		if err == nil {
			if n == 0 {
				// Zero progress without an error; treat like a short write.
				time.Sleep(backoff)
			}
			continue
		}
		if len(p) == 0 {
			return nil
		}
		if !retryable(err) {
			return err
		}
		log.Warn("chunklog: retryable write error, backing off %v: %v", backoff, err)
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, io.ErrShortWrite)
}

// doSync issues the durability syscall, resets the dirty counter, stamps
// the sync time, and invokes the hook.
func (t *Transport) doSync(cfg Config, w *writerState) error {
	if cfg.Syncer != nil && t.osf != nil {
		if err := cfg.Syncer(t.osf); err != nil {
			return err
		}
	} else if err := t.fp.Sync(); err != nil {
		return err
	}
	w.lastSync = time.Now()
	w.dirty = 0
	atomic.AddInt64(&t.syncs, 1)
	if cfg.Hook != nil {
		cfg.Hook(t.fp.Fd(), w.lastSync)
	}
	return nil
}
