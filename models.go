package match

import (
	"fmt"

	"github.com/0x5487/matchcore/protocol"
	"github.com/shopspring/decimal"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

func opposite(side Side) Side {
	if side == Buy {
		return Sell
	}
	return Buy
}

type OrderType = protocol.OrderType

const (
	Market OrderType = protocol.OrderTypeMarket
	Limit  OrderType = protocol.OrderTypeLimit
	IOC    OrderType = protocol.OrderTypeIOC
	FOK    OrderType = protocol.OrderTypeFOK
)

type OrderStatus = protocol.OrderStatus

const (
	StatusPending   OrderStatus = protocol.OrderStatusPending
	StatusResting   OrderStatus = protocol.OrderStatusResting
	StatusFilled    OrderStatus = protocol.OrderStatusFilled
	StatusCancelled OrderStatus = protocol.OrderStatusCancelled
	StatusRejected  OrderStatus = protocol.OrderStatusRejected
)

func isTerminal(status OrderStatus) bool {
	return status == StatusFilled || status == StatusCancelled || status == StatusRejected
}

// Order is an order accepted by a market. While resting it is owned by the
// OrderBook; everything handed out to callers is a copy.
type Order struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Instrument    string          `json:"instrument"`
	UserID        uint64          `json:"user_id"`
	Side          Side            `json:"side"`
	Type          OrderType       `json:"type"`
	Price         decimal.Decimal `json:"price"`     // zero for market orders
	Quantity      decimal.Decimal `json:"quantity"`  // original size
	Remaining     decimal.Decimal `json:"remaining"` // unfilled size, decreases only
	Sequence      uint64          `json:"sequence"`  // per-market arrival sequence
	Timestamp     int64           `json:"timestamp"` // Unix nano, arrival time
	Status        OrderStatus     `json:"status"`

	// Intrusive linked list pointers (ignored by JSON)
	next *Order
	prev *Order
}

// Filled returns the executed quantity.
func (o *Order) Filled() decimal.Decimal {
	return o.Quantity.Sub(o.Remaining)
}

// IsTerminal reports whether the order reached Filled, Cancelled or Rejected.
func (o *Order) IsTerminal() bool {
	return isTerminal(o.Status)
}

func (o *Order) clone() *Order {
	cpy := *o
	cpy.next = nil
	cpy.prev = nil
	return &cpy
}

// fill executes qty against the order. Reaching zero remaining marks it Filled.
func (o *Order) fill(qty decimal.Decimal) error {
	if o.IsTerminal() {
		return fmt.Errorf("%w: fill on %s order %s", ErrInvariant, o.Status, o.ID)
	}
	if !qty.IsPositive() || qty.GreaterThan(o.Remaining) {
		return fmt.Errorf("%w: fill %s exceeds remaining %s of order %s", ErrInvariant, qty, o.Remaining, o.ID)
	}

	o.Remaining = o.Remaining.Sub(qty)
	if o.Remaining.IsZero() {
		o.Status = StatusFilled
	}
	return nil
}

// transition moves a live order to a new status. Terminal states are final.
func (o *Order) transition(to OrderStatus) error {
	if o.IsTerminal() {
		return fmt.Errorf("%w: order %s is %s, cannot become %s", ErrInvariant, o.ID, o.Status, to)
	}
	o.Status = to
	return nil
}

// Trade is one execution between an incoming (taker) order and a resting (maker) order.
// Trades are immutable once created.
type Trade struct {
	ID            uint64          `json:"id"`
	Instrument    string          `json:"instrument"`
	Price         decimal.Decimal `json:"price"` // always the maker's price
	Quantity      decimal.Decimal `json:"quantity"`
	Amount        decimal.Decimal `json:"amount"` // Price * Quantity
	AggressorSide Side            `json:"aggressor_side"`
	TakerOrderID  string          `json:"taker_order_id"`
	TakerUserID   uint64          `json:"taker_user_id"`
	MakerOrderID  string          `json:"maker_order_id"`
	MakerUserID   uint64          `json:"maker_user_id"`
	Timestamp     int64           `json:"timestamp"`
}

// SubmitOrderRequest is the input for placing an order.
type SubmitOrderRequest struct {
	Instrument    string
	ClientOrderID string
	UserID        uint64
	Side          Side
	Type          OrderType
	Price         decimal.Decimal
	Quantity      decimal.Decimal
}

// SubmitResult is what SubmitOrder hands back to the caller.
type SubmitResult struct {
	Order  *Order
	Trades []*Trade
	// Reason is set when an unfilled remainder was cancelled.
	Reason RejectReason
}

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Count int64           `json:"count"`
}

// Depth is a consistent view of the top levels of both sides.
type Depth struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// DepthChange is the post-operation state of one touched price level.
// A zero Size means the level is gone.
type DepthChange struct {
	Side  Side            `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
	Count int64           `json:"count"`
}

// BBO is the best bid and offer plus the configured depth of one market.
// Bid or Ask is nil when that side is empty. A BBO is never modified after it is published.
type BBO struct {
	Instrument string       `json:"instrument"`
	UpdateID   uint64       `json:"update_id"`
	Bid        *DepthItem   `json:"bid"`
	Ask        *DepthItem   `json:"ask"`
	Bids       []*DepthItem `json:"bids"`
	Asks       []*DepthItem `json:"asks"`
	Timestamp  int64        `json:"timestamp"`
}

// BookStats contains statistics about the order book queues
type BookStats struct {
	AskDepthCount int64
	AskOrderCount int64
	BidDepthCount int64
	BidOrderCount int64
	OrderCount    int64 // orders ever accepted by the market
	TradeCount    uint64
}
