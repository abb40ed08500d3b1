package match

import (
	"fmt"
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedBook maintains a simplified view of one instrument's order book,
// tracking only price levels with their aggregated sizes and order counts.
// It is designed for downstream services that rebuild depth from a Depth
// snapshot plus the BookUpdate events that follow it.
//
// AggregatedBook implements Publisher and can be subscribed to an engine directly.
// Updates received before the first Rebuild are buffered.
type AggregatedBook struct {
	mu       sync.RWMutex
	marketID string
	seqID    uint64 // last applied update id
	synced   bool
	err      error // sticky until the next Rebuild
	pending  []*BookUpdate
	ask      *treemap.TreeMap[decimal.Decimal, *DepthItem]
	bid      *treemap.TreeMap[decimal.Decimal, *DepthItem]
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook(marketID string) *AggregatedBook {
	return &AggregatedBook{
		marketID: marketID,
		ask: treemap.NewWithKeyCompare[decimal.Decimal, *DepthItem](func(a, b decimal.Decimal) bool {
			return a.LessThan(b)
		}),
		bid: treemap.NewWithKeyCompare[decimal.Decimal, *DepthItem](func(a, b decimal.Decimal) bool {
			return a.GreaterThan(b)
		}),
	}
}

// SequenceID returns the last applied update id.
func (ab *AggregatedBook) SequenceID() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.seqID
}

// Err returns the sync error that made the book stale, if any.
// A stale book ignores updates until it is rebuilt.
func (ab *AggregatedBook) Err() error {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.err
}

// Rebuild resets the book from a full depth snapshot and applies buffered
// updates newer than the snapshot.
func (ab *AggregatedBook) Rebuild(depth *Depth) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.ask.Clear()
	ab.bid.Clear()
	for _, item := range depth.Asks {
		ab.ask.Set(item.Price, &DepthItem{Price: item.Price, Size: item.Size, Count: item.Count})
	}
	for _, item := range depth.Bids {
		ab.bid.Set(item.Price, &DepthItem{Price: item.Price, Size: item.Size, Count: item.Count})
	}

	ab.seqID = depth.UpdateID
	ab.synced = true
	ab.err = nil

	pending := ab.pending
	ab.pending = nil
	for _, update := range pending {
		if err := ab.apply(update); err != nil {
			ab.err = err
			return err
		}
	}
	return nil
}

// Apply applies one book update. Updates already covered are ignored;
// a skipped update id returns ErrSequenceGap and marks the book stale.
func (ab *AggregatedBook) Apply(update *BookUpdate) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if !ab.synced {
		ab.pending = append(ab.pending, update)
		return nil
	}
	if ab.err != nil {
		return ab.err
	}
	if err := ab.apply(update); err != nil {
		ab.err = err
		return err
	}
	return nil
}

func (ab *AggregatedBook) apply(update *BookUpdate) error {
	id := update.BBO.UpdateID
	if id <= ab.seqID {
		return nil
	}
	if id != ab.seqID+1 {
		return fmt.Errorf("%w: %s expected update %d, got %d", ErrSequenceGap, ab.marketID, ab.seqID+1, id)
	}

	for _, change := range update.Changes {
		tree := ab.side(change.Side)
		if change.Size.IsZero() {
			tree.Del(change.Price)
			continue
		}
		tree.Set(change.Price, &DepthItem{Price: change.Price, Size: change.Size, Count: change.Count})
	}

	ab.seqID = id
	return nil
}

// Publish implements Publisher for this book's instrument.
func (ab *AggregatedBook) Publish(events ...*Event) {
	for _, e := range events {
		if e.Type != EventBookUpdate || e.Instrument != ab.marketID {
			continue
		}
		if err := ab.Apply(e.Book); err != nil {
			logger.Warn().Err(err).Str("market_id", ab.marketID).Msg("aggregated book out of sync")
			return
		}
	}
}

func (ab *AggregatedBook) side(side Side) *treemap.TreeMap[decimal.Decimal, *DepthItem] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}

// Depth returns the aggregated size at a specific price level for the given side.
// Returns zero if the price level does not exist.
func (ab *AggregatedBook) Depth(side Side, price decimal.Decimal) decimal.Decimal {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	item, ok := ab.side(side).Get(price)
	if !ok {
		return decimal.Zero
	}
	return item.Size
}

// Levels returns up to limit levels of a side, best price first.
func (ab *AggregatedBook) Levels(side Side, limit int) []*DepthItem {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	result := make([]*DepthItem, 0)
	for it := ab.side(side).Iterator(); it.Valid() && len(result) < limit; it.Next() {
		item := *it.Value()
		result = append(result, &item)
	}
	return result
}
