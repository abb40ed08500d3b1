package match

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceKey normalizes a price for map lookups: decimal.Decimal holds a *big.Int
// and cannot be compared with ==, and "10" and "10.0" must land on the same level.
func priceKey(price decimal.Decimal) string {
	return price.String()
}

var ascendingPrice = skiplist.GreaterThanFunc(func(lhs, rhs any) int {
	d1, _ := lhs.(decimal.Decimal)
	d2, _ := rhs.(decimal.Decimal)
	return d1.Cmp(d2)
})

// queue is one side of the book: price levels ordered best first.
type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[string]*skiplist.Element
}

// NewBuyerQueue creates a new queue for buy orders (bids).
// The levels are sorted by price in descending order (highest price first).
func NewBuyerQueue() *queue {
	return &queue{
		side:      Buy,
		depthList: skiplist.New(skiplist.Reverse(ascendingPrice)),
		priceList: make(map[string]*skiplist.Element),
	}
}

// NewSellerQueue creates a new queue for sell orders (asks).
// The levels are sorted by price in ascending order (lowest price first).
func NewSellerQueue() *queue {
	return &queue{
		side:      Sell,
		depthList: skiplist.New(ascendingPrice),
		priceList: make(map[string]*skiplist.Element),
	}
}

// level returns the level at price, or nil.
func (q *queue) level(price decimal.Decimal) *PriceLevel {
	el, ok := q.priceList[priceKey(price)]
	if !ok {
		return nil
	}
	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

// insertOrder appends the order to the tail of its price level, creating the level if needed.
func (q *queue) insertOrder(order *Order) *PriceLevel {
	key := priceKey(order.Price)
	el, ok := q.priceList[key]
	if !ok {
		lvl := newPriceLevel(order.Price)
		el = q.depthList.Set(order.Price, lvl)
		q.priceList[key] = el
		q.depths++
	}

	lvl, _ := el.Value.(*PriceLevel)
	lvl.pushBack(order)
	q.totalOrders++
	return lvl
}

// removeOrder unlinks the order and drops its level once empty.
func (q *queue) removeOrder(order *Order) {
	key := priceKey(order.Price)
	el, ok := q.priceList[key]
	if !ok {
		return
	}
	lvl, _ := el.Value.(*PriceLevel)

	lvl.unlink(order)
	q.totalOrders--

	if lvl.isEmpty() {
		q.depthList.RemoveElement(el)
		delete(q.priceList, key)
		q.depths--
	}
}

// removeLevel drops a whole level and returns its orders in time priority.
func (q *queue) removeLevel(lvl *PriceLevel) []*Order {
	key := priceKey(lvl.price)
	el, ok := q.priceList[key]
	if !ok {
		return nil
	}

	orders := make([]*Order, 0, lvl.count)
	for o := lvl.head; o != nil; {
		next := o.next
		o.next = nil
		o.prev = nil
		orders = append(orders, o)
		o = next
	}

	q.totalOrders -= lvl.count
	lvl.head = nil
	lvl.tail = nil
	lvl.count = 0
	lvl.totalSize = decimal.Zero

	q.depthList.RemoveElement(el)
	delete(q.priceList, key)
	q.depths--
	return orders
}

// best returns the level at the front of the queue (best price), or nil.
func (q *queue) best() *PriceLevel {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}
	lvl, _ := el.Value.(*PriceLevel)
	return lvl
}

// each walks the levels best first until fn returns false.
func (q *queue) each(fn func(lvl *PriceLevel) bool) {
	for el := q.depthList.Front(); el != nil; el = el.Next() {
		lvl, _ := el.Value.(*PriceLevel)
		if !fn(lvl) {
			return
		}
	}
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// depth returns the aggregated levels up to the specified limit.
func (q *queue) depth(limit int) []*DepthItem {
	if limit <= 0 {
		return []*DepthItem{}
	}

	size := limit
	if int64(size) > q.depths {
		size = int(q.depths)
	}
	result := make([]*DepthItem, 0, size)

	q.each(func(lvl *PriceLevel) bool {
		result = append(result, lvl.toDepthItem())
		return len(result) < limit
	})

	return result
}
