package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushDrainOrder(t *testing.T) {
	q := newEventQueue(10, 1<<20)

	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, q.push(&event{payload: []byte(s)}, OverflowError))
	}

	batch := q.drain()
	require.Len(t, batch, 3)
	assert.Equal(t, []byte("a"), batch[0].payload)
	assert.Equal(t, []byte("b"), batch[1].payload)
	assert.Equal(t, []byte("c"), batch[2].payload)
	assert.True(t, q.empty())
}

func TestQueueEventCountBound(t *testing.T) {
	q := newEventQueue(2, 1<<20)

	require.NoError(t, q.push(&event{payload: []byte("1")}, OverflowError))
	require.NoError(t, q.push(&event{payload: []byte("2")}, OverflowError))

	err := q.push(&event{payload: []byte("3")}, OverflowError)
	assert.Equal(t, ErrQueueFull, err)
}

func TestQueueByteBound(t *testing.T) {
	q := newEventQueue(100, 10)

	require.NoError(t, q.push(&event{payload: make([]byte, 8)}, OverflowError))

	err := q.push(&event{payload: make([]byte, 3)}, OverflowError)
	assert.Equal(t, ErrQueueFull, err)

	// A barrier bypasses capacity.
	require.NoError(t, q.push(&event{barrier: true, done: make(chan error, 1)}, OverflowError))
}

func TestQueueEmptyAcceptsOversizedEvent(t *testing.T) {
	q := newEventQueue(100, 10)

	// A single event above the byte bound must not wedge the producer.
	require.NoError(t, q.push(&event{payload: make([]byte, 64)}, OverflowError))
	assert.Equal(t, ErrQueueFull, q.push(&event{payload: []byte("x")}, OverflowError))
}

func TestQueueDropNewest(t *testing.T) {
	q := newEventQueue(1, 1<<20)

	require.NoError(t, q.push(&event{payload: []byte("keep")}, OverflowDropNewest))
	err := q.push(&event{payload: []byte("drop")}, OverflowDropNewest)
	assert.Equal(t, droppedError{}, err)

	batch := q.drain()
	require.Len(t, batch, 1)
	assert.Equal(t, []byte("keep"), batch[0].payload)
}

func TestQueueBlockPolicyResumesAfterDrain(t *testing.T) {
	q := newEventQueue(1, 1<<20)
	require.NoError(t, q.push(&event{payload: []byte("first")}, OverflowBlock))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.push(&event{payload: []byte("second")}, OverflowBlock)
	}()

	// The producer must suspend while the queue is full.
	select {
	case err := <-pushed:
		t.Fatalf("push returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	batch := q.drain()
	require.Len(t, batch, 1)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked producer never resumed")
	}

	batch = q.drain()
	require.Len(t, batch, 1)
	assert.Equal(t, []byte("second"), batch[0].payload)
}

func TestQueueCloseReleasesBlockedProducers(t *testing.T) {
	q := newEventQueue(1, 1<<20)
	require.NoError(t, q.push(&event{payload: []byte("fill")}, OverflowBlock))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = q.push(&event{payload: []byte("blocked")}, OverflowBlock)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	q.close()
	wg.Wait()

	for _, err := range errs {
		assert.Equal(t, ErrShutdown, err)
	}
}

func TestQueueFailPoisonsProducers(t *testing.T) {
	q := newEventQueue(1, 1<<20)
	require.NoError(t, q.push(&event{payload: []byte("fill")}, OverflowBlock))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.push(&event{payload: []byte("blocked")}, OverflowBlock)
	}()

	time.Sleep(20 * time.Millisecond)
	fault := IOError{Op: "write", Err: assert.AnError}
	q.fail(fault)

	select {
	case err := <-pushed:
		assert.Equal(t, fault, err)
	case <-time.After(time.Second):
		t.Fatal("blocked producer never observed the fault")
	}

	// New pushes observe the fault too.
	assert.Equal(t, error(fault), q.push(&event{payload: []byte("late")}, OverflowBlock))
}
