package match

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvent is a simple event type for testing.
type TestEvent struct {
	ID    int64
	Value int64
}

// simpleHandler is a test helper that wraps a function.
type simpleHandler[T any] struct {
	fn func(T)
}

func (h *simpleHandler[T]) OnEvent(e T) {
	h.fn(e)
}

func TestRingBuffer_BasicOperations(t *testing.T) {
	var processed []int64
	var mu sync.Mutex

	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			mu.Lock()
			processed = append(processed, e.ID)
			mu.Unlock()
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	for i := int64(1); i <= 10; i++ {
		rb.Publish(TestEvent{ID: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := rb.Shutdown(ctx)
	require.NoError(t, err)

	// Verify all events were processed in order
	assert.Len(t, processed, 10)
	for i := int64(1); i <= 10; i++ {
		assert.Equal(t, i, processed[i-1])
	}
}

func TestRingBuffer_TryPublishFull(t *testing.T) {
	blockCh := make(chan struct{})
	var count atomic.Int64
	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			<-blockCh
			count.Add(1)
		},
	}

	rb := NewRingBuffer[TestEvent](4, handler)
	rb.Start()

	// the consumer holds one event, the buffer the next four
	accepted := 0
	for i := 0; i < 10; i++ {
		if rb.TryPublish(TestEvent{ID: int64(i)}) {
			accepted++
		}
		time.Sleep(time.Millisecond)
	}
	assert.GreaterOrEqual(t, accepted, 4)
	assert.LessOrEqual(t, accepted, 5)

	close(blockCh)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))
	assert.Equal(t, int64(accepted), count.Load())
}

func TestRingBuffer_PublishAfterShutdown(t *testing.T) {
	var count atomic.Int64
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) { count.Add(1) }}
	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	require.NoError(t, rb.Shutdown(context.Background()))

	assert.False(t, rb.TryPublish(TestEvent{ID: 1}))
	rb.Publish(TestEvent{ID: 2})
	assert.Equal(t, int64(-1), rb.ProducerSequence())
	assert.Equal(t, int64(0), count.Load())
}

func TestRingBuffer_GetPendingEvents(t *testing.T) {
	// Create a handler that blocks until signaled
	blockCh := make(chan struct{})
	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			<-blockCh
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	// Publish 5 events (they will be pending because handler is blocked)
	for i := 0; i < 5; i++ {
		rb.Publish(TestEvent{ID: int64(i)})
	}

	pending := rb.GetPendingEvents()
	assert.GreaterOrEqual(t, pending, int64(4))

	close(blockCh)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(0), rb.GetPendingEvents())
}

func TestRingBuffer_SequenceMonitoring(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}
	rb := NewRingBuffer[TestEvent](16, handler)

	// Initial sequences should be -1
	assert.Equal(t, int64(-1), rb.ProducerSequence())
	assert.Equal(t, int64(-1), rb.ConsumerSequence())

	rb.Start()

	for i := 0; i < 3; i++ {
		rb.Publish(TestEvent{ID: int64(i)})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(2), rb.ProducerSequence())
	assert.Equal(t, int64(2), rb.ConsumerSequence())
}

func TestRingBuffer_IdleConsumerWakes(t *testing.T) {
	var count atomic.Int64
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) { count.Add(1) }}
	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	for round := 1; round <= 3; round++ {
		// let the consumer park before each publish
		time.Sleep(10 * time.Millisecond)
		assert.True(t, rb.TryPublish(TestEvent{ID: int64(round)}))
		want := int64(round)
		assert.Eventually(t, func() bool {
			return count.Load() == want
		}, time.Second, time.Millisecond)
	}

	require.NoError(t, rb.Shutdown(context.Background()))
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	blockCh := make(chan struct{})
	defer close(blockCh)

	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			<-blockCh
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	rb.Publish(TestEvent{ID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rb.Shutdown(ctx)
	assert.ErrorIs(t, err, ErrDisruptorTimeout)
}

func TestRingBuffer_ConcurrentPublish(t *testing.T) {
	var count atomic.Int64

	handler := &simpleHandler[TestEvent]{
		fn: func(e TestEvent) {
			count.Add(1)
		},
	}

	rb := NewRingBuffer[TestEvent](64, handler)
	rb.Start()

	const numPublishers = 10
	const eventsPerPublisher = 100

	var wg sync.WaitGroup
	wg.Add(numPublishers)

	for i := 0; i < numPublishers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerPublisher; j++ {
				rb.Publish(TestEvent{ID: int64(id*eventsPerPublisher + j)})
			}
		}(i)
	}

	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(numPublishers*eventsPerPublisher), count.Load())
}

func TestRingBuffer_PowerOf2Validation(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](15, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](0, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](-1, handler)
	})

	assert.NotPanics(t, func() {
		NewRingBuffer[TestEvent](16, handler)
	})
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, int64(1), nextPowerOfTwo(1))
	assert.Equal(t, int64(2), nextPowerOfTwo(2))
	assert.Equal(t, int64(4), nextPowerOfTwo(3))
	assert.Equal(t, int64(1024), nextPowerOfTwo(1000))
}

type countingHandler struct {
	count atomic.Int64
}

func (h *countingHandler) OnEvent(batch []*Event) {
	h.count.Add(int64(len(batch)))
}

func BenchmarkRingBufferEventBatches(b *testing.B) {
	handler := &countingHandler{}
	rb := NewRingBuffer[[]*Event](DefaultEventBuffer, handler)
	rb.Start()

	batch := []*Event{
		newTradeEvent(&Trade{Instrument: "BTC-USDT"}),
		newBookEvent(&BookUpdate{BBO: &BBO{Instrument: "BTC-USDT"}}),
	}

	var dropped atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if !rb.TryPublish(batch) {
				dropped.Add(1)
			}
		}
	})
	b.StopTimer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
	b.ReportMetric(float64(dropped.Load())/float64(b.N), "dropped/op")
}

func BenchmarkRingBufferBlockingPublish(b *testing.B) {
	handler := &simpleHandler[TestEvent]{fn: func(e TestEvent) {}}
	rb := NewRingBuffer[TestEvent](1024*1024, handler)
	rb.Start()

	var counter atomic.Int64
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rb.Publish(TestEvent{ID: counter.Add(1)})
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
}
