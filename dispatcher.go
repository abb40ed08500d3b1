package match

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// subscriber feeds one Publisher from its own ring buffer and goroutine.
type subscriber struct {
	id        uint64
	publisher Publisher
	ring      *RingBuffer[[]*Event]
	dropped   atomic.Uint64
	metrics   *engineMetrics
	stopOnce  sync.Once
	stopErr   error
}

func newSubscriber(id uint64, p Publisher, capacity int64, metrics *engineMetrics) *subscriber {
	s := &subscriber{
		id:        id,
		publisher: p,
		metrics:   metrics,
	}
	s.ring = NewRingBuffer[[]*Event](capacity, s)
	s.ring.Start()
	return s
}

// OnEvent implements EventHandler. A panicking publisher loses the batch, not the goroutine.
func (s *subscriber) OnEvent(batch []*Event) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.recordSubscriberPanic(context.Background(), s.id)
			logger.Error().Uint64("subscriber", s.id).Interface("panic", r).Msg("publisher panicked")
		}
	}()
	s.publisher.Publish(batch...)
}

// offer hands a batch to the subscriber without blocking.
func (s *subscriber) offer(batch []*Event) {
	if s.ring.TryPublish(batch) {
		return
	}

	dropped := s.dropped.Add(1)
	s.metrics.recordDropped(context.Background(), s.id)
	logger.Warn().
		Uint64("subscriber", s.id).
		Str("market_id", batch[0].Instrument).
		Int("events", len(batch)).
		Uint64("dropped_total", dropped).
		Msg("subscriber buffer full, event batch dropped")
}

// stop drains the buffer and closes the publisher if it is an io.Closer.
func (s *subscriber) stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.ring.Shutdown(ctx)
		if c, ok := s.publisher.(io.Closer); ok {
			if err := c.Close(); err != nil && s.stopErr == nil {
				s.stopErr = err
			}
		}
	})
	return s.stopErr
}

// dispatcher fans out event batches to the current subscribers.
type dispatcher struct {
	mu       sync.Mutex
	subs     atomic.Pointer[[]*subscriber] // copy on write, read by market loops
	nextID   uint64
	capacity int64
	metrics  *engineMetrics
}

func newDispatcher(capacity int64, metrics *engineMetrics) *dispatcher {
	d := &dispatcher{capacity: capacity, metrics: metrics}
	empty := make([]*subscriber, 0)
	d.subs.Store(&empty)
	return d
}

func (d *dispatcher) publish(events []*Event) {
	if len(events) == 0 {
		return
	}
	for _, s := range *d.subs.Load() {
		s.offer(events)
	}
}

func (d *dispatcher) subscribe(p Publisher) *subscriber {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	s := newSubscriber(d.nextID, p, d.capacity, d.metrics)

	current := *d.subs.Load()
	next := make([]*subscriber, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, s)
	d.subs.Store(&next)

	logger.Info().Uint64("subscriber", s.id).Msg("subscriber added")
	return s
}

// unsubscribe detaches s; events already buffered are still delivered.
func (d *dispatcher) unsubscribe(ctx context.Context, s *subscriber) error {
	d.mu.Lock()
	current := *d.subs.Load()
	next := make([]*subscriber, 0, len(current))
	for _, other := range current {
		if other != s {
			next = append(next, other)
		}
	}
	d.subs.Store(&next)
	d.mu.Unlock()

	logger.Info().Uint64("subscriber", s.id).Uint64("dropped", s.dropped.Load()).Msg("subscriber removed")
	return s.stop(ctx)
}

// shutdown drains and stops every subscriber.
func (d *dispatcher) shutdown(ctx context.Context) []error {
	d.mu.Lock()
	current := *d.subs.Load()
	empty := make([]*subscriber, 0)
	d.subs.Store(&empty)
	d.mu.Unlock()

	var errs []error
	for _, s := range current {
		if err := s.stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
