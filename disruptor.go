package match

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
)

// ErrDisruptorTimeout is returned when shutdown times out
var ErrDisruptorTimeout = errors.New("disruptor: shutdown timeout")

// EventHandler consumes the events of a RingBuffer on its consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// RingBuffer is a bounded multi-producer single-consumer queue.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	// Ring buffer core
	buffer     []T
	bufferMask int64
	capacity   int64

	// Published slice to indicate ready slots
	published []int64

	handler EventHandler[T]

	isShutdown atomic.Bool
	wake       chan struct{} // parks an idle consumer
	stopped    chan struct{} // closed when the consumer returns
}

// NewRingBuffer creates a new MPSC RingBuffer.
// capacity must be a power of 2.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		wake:       make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)

	for i := range rb.published {
		atomic.StoreInt64(&rb.published[i], -1)
	}

	return rb
}

// Publish puts an event into the ring buffer, waiting for space while it is full.
// Safe for multiple producers.
func (rb *RingBuffer[T]) Publish(event T) {
	if rb.isShutdown.Load() {
		return
	}

	var nextSeq int64
	for {
		currentProducerSeq := rb.producerSequence.Load()
		nextSeq = currentProducerSeq + 1

		// producer must stay within one buffer of the consumer
		wrapPoint := nextSeq - rb.capacity
		if wrapPoint > rb.consumerSequence.Load() {
			if rb.isShutdown.Load() {
				return
			}
			rb.signal()
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	rb.commit(nextSeq, event)
}

// TryPublish puts an event into the ring buffer only if there is space.
// It never blocks and returns false when the buffer is full or shut down.
func (rb *RingBuffer[T]) TryPublish(event T) bool {
	for {
		if rb.isShutdown.Load() {
			return false
		}

		currentProducerSeq := rb.producerSequence.Load()
		nextSeq := currentProducerSeq + 1
		if nextSeq-rb.capacity > rb.consumerSequence.Load() {
			return false
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			rb.commit(nextSeq, event)
			return true
		}
	}
}

func (rb *RingBuffer[T]) commit(seq int64, event T) {
	index := seq & rb.bufferMask
	rb.buffer[index] = event
	atomic.StoreInt64(&rb.published[index], seq)
	rb.signal()
}

func (rb *RingBuffer[T]) signal() {
	select {
	case rb.wake <- struct{}{}:
	default:
	}
}

// Start starts the consumer goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.consumerLoop()
}

// Shutdown stops accepting events and waits until the consumer handled every claimed one.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	if rb.isShutdown.CompareAndSwap(false, true) {
		rb.signal()
	}

	select {
	case <-rb.stopped:
		return nil
	case <-ctx.Done():
		return ErrDisruptorTimeout
	}
}

func (rb *RingBuffer[T]) consumerLoop() {
	defer close(rb.stopped)
	nextConsumerSeq := rb.consumerSequence.Load() + 1

	for {
		shutdown := rb.isShutdown.Load()
		availableSeq := rb.producerSequence.Load()

		for nextConsumerSeq <= availableSeq {
			rb.consume(nextConsumerSeq)
			nextConsumerSeq++
		}

		if shutdown {
			// producers that claimed before the flag flipped are done by now or about to be
			rb.processRemainingEvents(nextConsumerSeq)
			return
		}

		if nextConsumerSeq > rb.producerSequence.Load() {
			<-rb.wake
		}
	}
}

func (rb *RingBuffer[T]) consume(seq int64) {
	index := seq & rb.bufferMask

	// the slot is claimed, wait until its producer finished writing it
	for atomic.LoadInt64(&rb.published[index]) != seq {
		runtime.Gosched()
	}

	event := rb.buffer[index]
	var zero T
	rb.buffer[index] = zero

	rb.handler.OnEvent(event)
	rb.consumerSequence.Store(seq)
}

// processRemainingEvents drains what was claimed before shutdown.
func (rb *RingBuffer[T]) processRemainingEvents(nextConsumerSeq int64) {
	availableSeq := rb.producerSequence.Load()

	for nextConsumerSeq <= availableSeq {
		rb.consume(nextConsumerSeq)
		nextConsumerSeq++
	}
}

// ConsumerSequence returns the last consumed sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns the number of claimed events not yet consumed.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	producerSeq := rb.producerSequence.Load()
	consumerSeq := rb.consumerSequence.Load()
	return producerSeq - consumerSeq
}
