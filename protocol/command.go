package protocol

// PlaceOrderCommand is the payload for placing a new order.
// Decimals travel as strings to prevent precision loss in JSON.
type PlaceOrderCommand struct {
	MarketID      string    `json:"market_id"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	Side          Side      `json:"side"`
	OrderType     OrderType `json:"order_type"`
	Price         string    `json:"price,omitempty"` // ignored for market orders
	Size          string    `json:"size"`
	UserID        uint64    `json:"user_id"`
}

// CancelOrderCommand is the payload for cancelling a resting order.
type CancelOrderCommand struct {
	MarketID string `json:"market_id"`
	OrderID  string `json:"order_id"`
	UserID   uint64 `json:"user_id"`
}

// OrderMessage is the wire form of an order snapshot.
type OrderMessage struct {
	OrderID       string       `json:"order_id"`
	ClientOrderID string       `json:"client_order_id,omitempty"`
	MarketID      string       `json:"market_id"`
	Side          Side         `json:"side"`
	OrderType     OrderType    `json:"order_type"`
	Price         string       `json:"price"`
	Size          string       `json:"size"`
	FilledSize    string       `json:"filled_size"`
	RemainingSize string       `json:"remaining_size"`
	Status        OrderStatus  `json:"status"`
	RejectReason  RejectReason `json:"reject_reason,omitempty"`
	Timestamp     int64        `json:"timestamp"`
}

// PlaceOrderResponse is returned to the submitting collaborator.
type PlaceOrderResponse struct {
	Order  *OrderMessage   `json:"order"`
	Trades []*TradeMessage `json:"trades"`
}
