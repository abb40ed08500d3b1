package match

import (
	"sync/atomic"
)

// bboTracker derives BBO snapshots from a book after every mutation.
// Only the market loop calls update; current is safe from any goroutine.
type bboTracker struct {
	instrument string
	limit      int
	updateID   uint64
	current    atomic.Pointer[BBO]
}

func newBBOTracker(instrument string, limit int) *bboTracker {
	t := &bboTracker{
		instrument: instrument,
		limit:      limit,
	}
	t.current.Store(&BBO{
		Instrument: instrument,
		Bids:       []*DepthItem{},
		Asks:       []*DepthItem{},
	})
	return t
}

// update consumes the book journal. It returns nil when no level changed.
func (t *bboTracker) update(book *OrderBook, ts int64) *BookUpdate {
	changes := book.drainChanges()
	if len(changes) == 0 {
		return nil
	}

	t.updateID++
	bbo := &BBO{
		Instrument: t.instrument,
		UpdateID:   t.updateID,
		Bids:       book.Depth(Buy, t.limit),
		Asks:       book.Depth(Sell, t.limit),
		Timestamp:  ts,
	}
	if lvl := book.PeekBest(Buy); lvl != nil {
		bbo.Bid = lvl.toDepthItem()
	}
	if lvl := book.PeekBest(Sell); lvl != nil {
		bbo.Ask = lvl.toDepthItem()
	}

	t.current.Store(bbo)
	return &BookUpdate{BBO: bbo, Changes: changes}
}

func (t *bboTracker) load() *BBO {
	return t.current.Load()
}

func (t *bboTracker) lastUpdateID() uint64 {
	return t.updateID
}
