package match

import (
	"github.com/shopspring/decimal"
)

// PriceLevel holds the resting orders of one side at one price, oldest first.
type PriceLevel struct {
	price     decimal.Decimal
	totalSize decimal.Decimal
	head      *Order
	tail      *Order
	count     int64
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{
		price:     price,
		totalSize: decimal.Zero,
	}
}

// Price returns the price of the level.
func (l *PriceLevel) Price() decimal.Decimal {
	return l.price
}

// TotalSize returns the aggregate remaining quantity of the level.
func (l *PriceLevel) TotalSize() decimal.Decimal {
	return l.totalSize
}

// Count returns the number of orders resting at the level.
func (l *PriceLevel) Count() int64 {
	return l.count
}

// Orders returns copies of the resting orders in time priority.
func (l *PriceLevel) Orders() []*Order {
	orders := make([]*Order, 0, l.count)
	for o := l.head; o != nil; o = o.next {
		orders = append(orders, o.clone())
	}
	return orders
}

func (l *PriceLevel) isEmpty() bool {
	return l.count == 0
}

func (l *PriceLevel) pushBack(order *Order) {
	order.prev = l.tail
	order.next = nil
	if l.tail != nil {
		l.tail.next = order
	}
	l.tail = order
	if l.head == nil {
		l.head = order
	}

	l.totalSize = l.totalSize.Add(order.Remaining)
	l.count++
}

func (l *PriceLevel) unlink(order *Order) {
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		l.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		l.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	l.totalSize = l.totalSize.Sub(order.Remaining)
	l.count--
}

// reduce lowers the cached total after qty of a resting order was executed.
func (l *PriceLevel) reduce(qty decimal.Decimal) {
	l.totalSize = l.totalSize.Sub(qty)
}

func (l *PriceLevel) toDepthItem() *DepthItem {
	return &DepthItem{
		Price: l.price,
		Size:  l.totalSize,
		Count: l.count,
	}
}
