package protocol

// Side represents the order side (Buy/Sell).
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	}
	return "unknown"
}

// OrderType represents the type of order.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeIOC    OrderType = "ioc" // Immediate Or Cancel
	OrderTypeFOK    OrderType = "fok" // Fill Or Kill
)

// OrderStatus represents where an order is in its lifecycle.
// Filled, Cancelled and Rejected are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusResting   OrderStatus = "resting"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// EventType identifies the payload of an event feed message.
type EventType string

const (
	EventTypeTrade      EventType = "trade"
	EventTypeBookUpdate EventType = "book_update"
)

// RejectReason explains why an order was rejected or why its remainder was cancelled.
type RejectReason string

const (
	RejectReasonNone              RejectReason = ""
	RejectReasonNoLiquidity       RejectReason = "no_liquidity"      // Market/IOC: opposite side exhausted
	RejectReasonPriceMismatch     RejectReason = "price_mismatch"    // IOC: best opposite price outside the limit
	RejectReasonInsufficientSize  RejectReason = "insufficient_size" // FOK: cannot be fully filled
	RejectReasonInvalidQuantity   RejectReason = "invalid_quantity"
	RejectReasonInvalidPrice      RejectReason = "invalid_price"
	RejectReasonInvalidSide       RejectReason = "invalid_side"
	RejectReasonInvalidType       RejectReason = "invalid_order_type"
	RejectReasonUnknownInstrument RejectReason = "unknown_instrument"
	RejectReasonInvalidPayload    RejectReason = "invalid_payload"
	RejectReasonUserCancelled     RejectReason = "user_cancelled"
)

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// DepthChange is the post-operation state of one touched price level.
// A zero size means the level was removed.
type DepthChange struct {
	Side  Side   `json:"side"`
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// TradeMessage is the wire form of a trade execution.
type TradeMessage struct {
	TradeID       uint64 `json:"trade_id"`
	MarketID      string `json:"market_id"`
	Price         string `json:"price"`
	Size          string `json:"size"`
	Amount        string `json:"amount"`
	AggressorSide Side   `json:"aggressor_side"`
	TakerOrderID  string `json:"taker_order_id"`
	TakerUserID   uint64 `json:"taker_user_id,omitempty"`
	MakerOrderID  string `json:"maker_order_id"`
	MakerUserID   uint64 `json:"maker_user_id,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

// BookUpdateMessage is the wire form of a BBO/depth update.
// Missing best bid or ask is sent as nil.
type BookUpdateMessage struct {
	UpdateID  uint64         `json:"update_id"`
	MarketID  string         `json:"market_id"`
	BestBid   *DepthItem     `json:"best_bid"`
	BestAsk   *DepthItem     `json:"best_ask"`
	Bids      []*DepthItem   `json:"bids"`
	Asks      []*DepthItem   `json:"asks"`
	Changes   []*DepthChange `json:"changes"`
	Timestamp int64          `json:"timestamp"`
}

// EventMessage is the envelope put on the event feed.
type EventMessage struct {
	Type  EventType          `json:"type"`
	Trade *TradeMessage      `json:"trade,omitempty"`
	Book  *BookUpdateMessage `json:"book,omitempty"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}
