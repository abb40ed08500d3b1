package match

import (
	"sync"

	"github.com/0x5487/matchcore/protocol"
)

type EventType = protocol.EventType

const (
	EventTrade      EventType = protocol.EventTypeTrade
	EventBookUpdate EventType = protocol.EventTypeBookUpdate
)

// BookUpdate is emitted once per operation that changed the book.
type BookUpdate struct {
	BBO     *BBO
	Changes []*DepthChange
}

// Event is one entry of a market's event feed. Exactly one of Trade and Book is set.
// Events are shared between subscribers and must be treated as read-only.
type Event struct {
	Type       EventType
	Instrument string
	Trade      *Trade
	Book       *BookUpdate
}

func newTradeEvent(trade *Trade) *Event {
	return &Event{Type: EventTrade, Instrument: trade.Instrument, Trade: trade}
}

func newBookEvent(update *BookUpdate) *Event {
	return &Event{Type: EventBookUpdate, Instrument: update.BBO.Instrument, Book: update}
}

// Publisher receives the events of every market the engine runs.
//
// Publish is called from a dedicated goroutine per subscriber with the events
// of one operation: zero or more trades in execution order followed by at most
// one book update. Calls for the same instrument arrive in order.
type Publisher interface {
	Publish(events ...*Event)
}

// MemoryPublisher stores events in memory, useful for testing.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemoryPublisher creates a new MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		events: make([]*Event, 0),
	}
}

// Publish appends events to the in-memory slice.
func (m *MemoryPublisher) Publish(events ...*Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
}

// Count returns the number of events stored.
func (m *MemoryPublisher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Get returns the event at the specified index.
func (m *MemoryPublisher) Get(index int) *Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.events[index]
}

// Events returns a copy of all events stored.
func (m *MemoryPublisher) Events() []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*Event, len(m.events))
	copy(events, m.events)
	return events
}

// Trades returns the trades of all stored events.
func (m *MemoryPublisher) Trades() []*Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]*Trade, 0, len(m.events))
	for _, e := range m.events {
		if e.Trade != nil {
			trades = append(trades, e.Trade)
		}
	}
	return trades
}

// DiscardPublisher discards all events, useful for benchmarking.
type DiscardPublisher struct {
}

// NewDiscardPublisher creates a new DiscardPublisher.
func NewDiscardPublisher() *DiscardPublisher {
	return &DiscardPublisher{}
}

// Publish does nothing.
func (p *DiscardPublisher) Publish(events ...*Event) {

}
