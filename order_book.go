package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type levelRef struct {
	side  Side
	price string
}

// OrderBook holds the resting orders of one instrument. It is not safe for
// concurrent use; a market serializes every access through its command loop.
type OrderBook struct {
	instrument string
	bidQueue   *queue
	askQueue   *queue
	orders     map[string]*Order

	// levels touched since the last drainChanges, in first-touch order
	touched    []levelRef
	touchedSet map[levelRef]decimal.Decimal
}

// NewOrderBook creates an empty order book.
func NewOrderBook(instrument string) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bidQueue:   NewBuyerQueue(),
		askQueue:   NewSellerQueue(),
		orders:     make(map[string]*Order),
		touchedSet: make(map[levelRef]decimal.Decimal),
	}
}

// Instrument returns the instrument the book belongs to.
func (book *OrderBook) Instrument() string {
	return book.instrument
}

func (book *OrderBook) queue(side Side) *queue {
	if side == Buy {
		return book.bidQueue
	}
	return book.askQueue
}

// Insert rests an order at the tail of its price level.
// The order must not cross the opposite side.
func (book *OrderBook) Insert(order *Order) error {
	if !order.Remaining.IsPositive() {
		return fmt.Errorf("%w: order %s rests with remaining %s", ErrInvariant, order.ID, order.Remaining)
	}
	if _, ok := book.orders[order.ID]; ok {
		return fmt.Errorf("%w: order %s already rests", ErrInvariant, order.ID)
	}
	if best := book.queue(opposite(order.Side)).best(); best != nil && crosses(order.Side, order.Price, best.price) {
		return fmt.Errorf("%w: order %s at %s crosses best %s %s", ErrInvariant, order.ID, order.Price, opposite(order.Side), best.price)
	}
	if err := order.transition(StatusResting); err != nil {
		return err
	}

	book.queue(order.Side).insertOrder(order)
	book.orders[order.ID] = order
	book.touch(order.Side, order.Price)
	return nil
}

// PeekBest returns the best level of a side without removing it, or nil when the side is empty.
func (book *OrderBook) PeekBest(side Side) *PriceLevel {
	return book.queue(side).best()
}

// RemoveBest removes the best level of a side. Its orders leave the book cancelled.
func (book *OrderBook) RemoveBest(side Side) *PriceLevel {
	q := book.queue(side)
	lvl := q.best()
	if lvl == nil {
		return nil
	}

	book.touch(side, lvl.price)
	removed := &PriceLevel{price: lvl.price, totalSize: lvl.totalSize, count: lvl.count}
	var prev *Order
	for _, o := range q.removeLevel(lvl) {
		delete(book.orders, o.ID)
		o.Status = StatusCancelled

		cpy := o.clone()
		if prev == nil {
			removed.head = cpy
		} else {
			prev.next = cpy
			cpy.prev = prev
		}
		prev = cpy
	}
	removed.tail = prev
	return removed
}

// ReduceOrCancel executes qty against a resting order. The order leaves the
// book, and its level too when emptied, once nothing remains.
func (book *OrderBook) ReduceOrCancel(orderID string, qty decimal.Decimal) (*Order, error) {
	order, ok := book.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	q := book.queue(order.Side)
	lvl := q.level(order.Price)
	if lvl == nil {
		return nil, fmt.Errorf("%w: order %s has no level at %s", ErrInvariant, orderID, order.Price)
	}
	if err := order.fill(qty); err != nil {
		return nil, err
	}

	book.touch(order.Side, order.Price)
	lvl.reduce(qty)
	if order.Remaining.IsZero() {
		q.removeOrder(order)
		delete(book.orders, orderID)
	}
	return order, nil
}

// Cancel removes a resting order regardless of its remaining quantity.
func (book *OrderBook) Cancel(orderID string) (*Order, error) {
	order, ok := book.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err := order.transition(StatusCancelled); err != nil {
		return nil, err
	}

	book.touch(order.Side, order.Price)
	book.queue(order.Side).removeOrder(order)
	delete(book.orders, orderID)
	return order, nil
}

// Order returns a copy of a resting order.
func (book *OrderBook) Order(orderID string) (*Order, bool) {
	order, ok := book.orders[orderID]
	if !ok {
		return nil, false
	}
	return order.clone(), true
}

// Depth returns up to limit aggregated levels of a side, best first.
func (book *OrderBook) Depth(side Side, limit int) []*DepthItem {
	return book.queue(side).depth(limit)
}

// Stats returns the level and order counts of both sides.
func (book *OrderBook) Stats() *BookStats {
	return &BookStats{
		AskDepthCount: book.askQueue.depthCount(),
		AskOrderCount: book.askQueue.orderCount(),
		BidDepthCount: book.bidQueue.depthCount(),
		BidOrderCount: book.bidQueue.orderCount(),
	}
}

// canFill reports whether qty can be executed against the opposite side at
// prices no worse than limit. The book is not modified.
func (book *OrderBook) canFill(side Side, limit decimal.Decimal, qty decimal.Decimal) bool {
	available := decimal.Zero
	book.queue(opposite(side)).each(func(lvl *PriceLevel) bool {
		if !crosses(side, limit, lvl.price) {
			return false
		}
		available = available.Add(lvl.totalSize)
		return available.LessThan(qty)
	})
	return available.GreaterThanOrEqual(qty)
}

// touch records a level whose aggregate changed in the current operation.
func (book *OrderBook) touch(side Side, price decimal.Decimal) {
	ref := levelRef{side: side, price: priceKey(price)}
	if _, ok := book.touchedSet[ref]; ok {
		return
	}
	book.touchedSet[ref] = price
	book.touched = append(book.touched, ref)
}

// drainChanges returns the current state of every level touched since the last call.
func (book *OrderBook) drainChanges() []*DepthChange {
	if len(book.touched) == 0 {
		return nil
	}

	changes := make([]*DepthChange, 0, len(book.touched))
	for _, ref := range book.touched {
		price := book.touchedSet[ref]
		change := &DepthChange{Side: ref.side, Price: price, Size: decimal.Zero}
		if lvl := book.queue(ref.side).level(price); lvl != nil {
			change.Size = lvl.totalSize
			change.Count = lvl.count
		}
		changes = append(changes, change)
		delete(book.touchedSet, ref)
	}
	book.touched = book.touched[:0]
	return changes
}

// CheckInvariants walks the whole book and verifies its structural guarantees:
// no crossed book, no empty level, cached totals and counts that match the
// orders, no zero-remaining order and arrival order inside every level.
func (book *OrderBook) CheckInvariants() error {
	bid, ask := book.bidQueue.best(), book.askQueue.best()
	if bid != nil && ask != nil && bid.price.GreaterThanOrEqual(ask.price) {
		return fmt.Errorf("%w: crossed book bid %s >= ask %s", ErrInvariant, bid.price, ask.price)
	}

	var resting int
	for _, q := range []*queue{book.bidQueue, book.askQueue} {
		var levels, orders int64
		var err error
		var prevPrice *decimal.Decimal
		q.each(func(lvl *PriceLevel) bool {
			levels++
			if prevPrice != nil && !isBetter(q.side, *prevPrice, lvl.price) {
				err = fmt.Errorf("%w: %s levels out of order at %s", ErrInvariant, q.side, lvl.price)
				return false
			}
			p := lvl.price
			prevPrice = &p

			if err = book.checkLevel(q.side, lvl); err != nil {
				return false
			}
			orders += lvl.count
			return true
		})
		if err != nil {
			return err
		}
		if levels != q.depthCount() || levels != int64(len(q.priceList)) {
			return fmt.Errorf("%w: %s level count %d, cached %d", ErrInvariant, q.side, levels, q.depthCount())
		}
		if orders != q.orderCount() {
			return fmt.Errorf("%w: %s order count %d, cached %d", ErrInvariant, q.side, orders, q.orderCount())
		}
		resting += int(orders)
	}

	if resting != len(book.orders) {
		return fmt.Errorf("%w: %d resting orders, %d indexed", ErrInvariant, resting, len(book.orders))
	}
	return nil
}

func (book *OrderBook) checkLevel(side Side, lvl *PriceLevel) error {
	if lvl.isEmpty() || lvl.head == nil {
		return fmt.Errorf("%w: empty %s level at %s", ErrInvariant, side, lvl.price)
	}

	total := decimal.Zero
	var count int64
	var prev *Order
	for o := lvl.head; o != nil; o = o.next {
		if !o.Remaining.IsPositive() {
			return fmt.Errorf("%w: order %s rests with remaining %s", ErrInvariant, o.ID, o.Remaining)
		}
		if !o.Price.Equal(lvl.price) || o.Side != side || o.Status != StatusResting {
			return fmt.Errorf("%w: order %s misplaced in %s level %s", ErrInvariant, o.ID, side, lvl.price)
		}
		if prev != nil && prev.Sequence >= o.Sequence {
			return fmt.Errorf("%w: order %s breaks time priority at %s", ErrInvariant, o.ID, lvl.price)
		}
		if book.orders[o.ID] != o {
			return fmt.Errorf("%w: order %s not indexed", ErrInvariant, o.ID)
		}
		total = total.Add(o.Remaining)
		count++
		prev = o
	}

	if prev != lvl.tail {
		return fmt.Errorf("%w: broken tail at %s level %s", ErrInvariant, side, lvl.price)
	}
	if count != lvl.count || !total.Equal(lvl.totalSize) {
		return fmt.Errorf("%w: %s level %s holds %d/%s, cached %d/%s", ErrInvariant, side, lvl.price, count, total, lvl.count, lvl.totalSize)
	}
	return nil
}

// crosses reports whether an order on side limited at limit can trade against price.
func crosses(side Side, limit, price decimal.Decimal) bool {
	if side == Buy {
		return limit.GreaterThanOrEqual(price)
	}
	return limit.LessThanOrEqual(price)
}

// isBetter reports whether a is a strictly better price than b for side.
func isBetter(side Side, a, b decimal.Decimal) bool {
	if side == Buy {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}
