package match

import (
	"fmt"

	"github.com/0x5487/matchcore/protocol"
	"github.com/shopspring/decimal"
)

// ParsePlaceOrder converts a wire command into a SubmitOrderRequest.
// Malformed decimals are reported as a *RejectError wrapping ErrInvalidOrder.
func ParsePlaceOrder(cmd *protocol.PlaceOrderCommand) (*SubmitOrderRequest, error) {
	if cmd == nil {
		return nil, ErrInvalidParam
	}

	req := &SubmitOrderRequest{
		Instrument:    cmd.MarketID,
		ClientOrderID: cmd.ClientOrderID,
		UserID:        cmd.UserID,
		Side:          cmd.Side,
		Type:          cmd.OrderType,
	}

	reject := func(field, value string, err error) error {
		order := &Order{
			ClientOrderID: req.ClientOrderID,
			Instrument:    req.Instrument,
			UserID:        req.UserID,
			Side:          req.Side,
			Type:          req.Type,
		}
		return newRejectError(order, ReasonInvalidPayload, ErrInvalidOrder, fmt.Sprintf("%s %q: %v", field, value, err))
	}

	size, err := decimal.NewFromString(cmd.Size)
	if err != nil {
		return nil, reject("size", cmd.Size, err)
	}
	req.Quantity = size

	if cmd.OrderType != Market && len(cmd.Price) > 0 {
		price, err := decimal.NewFromString(cmd.Price)
		if err != nil {
			return nil, reject("price", cmd.Price, err)
		}
		req.Price = price
	}

	return req, nil
}

func toDepthItemMessage(item *DepthItem) *protocol.DepthItem {
	if item == nil {
		return nil
	}
	return &protocol.DepthItem{
		Price: item.Price.String(),
		Size:  item.Size.String(),
		Count: item.Count,
	}
}

func toDepthItemMessages(items []*DepthItem) []*protocol.DepthItem {
	result := make([]*protocol.DepthItem, 0, len(items))
	for _, item := range items {
		result = append(result, toDepthItemMessage(item))
	}
	return result
}

// ToMessage converts the order to its wire form.
func (o *Order) ToMessage() *protocol.OrderMessage {
	return &protocol.OrderMessage{
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		MarketID:      o.Instrument,
		Side:          o.Side,
		OrderType:     o.Type,
		Price:         o.Price.String(),
		Size:          o.Quantity.String(),
		FilledSize:    o.Filled().String(),
		RemainingSize: o.Remaining.String(),
		Status:        o.Status,
		Timestamp:     o.Timestamp,
	}
}

// ToMessage converts the trade to its wire form.
func (t *Trade) ToMessage() *protocol.TradeMessage {
	return &protocol.TradeMessage{
		TradeID:       t.ID,
		MarketID:      t.Instrument,
		Price:         t.Price.String(),
		Size:          t.Quantity.String(),
		Amount:        t.Amount.String(),
		AggressorSide: t.AggressorSide,
		TakerOrderID:  t.TakerOrderID,
		TakerUserID:   t.TakerUserID,
		MakerOrderID:  t.MakerOrderID,
		MakerUserID:   t.MakerUserID,
		Timestamp:     t.Timestamp,
	}
}

// ToMessage converts the update to its wire form.
func (u *BookUpdate) ToMessage() *protocol.BookUpdateMessage {
	changes := make([]*protocol.DepthChange, 0, len(u.Changes))
	for _, c := range u.Changes {
		changes = append(changes, &protocol.DepthChange{
			Side:  c.Side,
			Price: c.Price.String(),
			Size:  c.Size.String(),
			Count: c.Count,
		})
	}

	return &protocol.BookUpdateMessage{
		UpdateID:  u.BBO.UpdateID,
		MarketID:  u.BBO.Instrument,
		BestBid:   toDepthItemMessage(u.BBO.Bid),
		BestAsk:   toDepthItemMessage(u.BBO.Ask),
		Bids:      toDepthItemMessages(u.BBO.Bids),
		Asks:      toDepthItemMessages(u.BBO.Asks),
		Changes:   changes,
		Timestamp: u.BBO.Timestamp,
	}
}

// ToMessage converts the event to the envelope put on the event feed.
func (e *Event) ToMessage() *protocol.EventMessage {
	msg := &protocol.EventMessage{Type: e.Type}
	if e.Trade != nil {
		msg.Trade = e.Trade.ToMessage()
	}
	if e.Book != nil {
		msg.Book = e.Book.ToMessage()
	}
	return msg
}

// ToMessage converts the depth to its wire form.
func (d *Depth) ToMessage() *protocol.GetDepthResponse {
	return &protocol.GetDepthResponse{
		UpdateID: d.UpdateID,
		Asks:     toDepthItemMessages(d.Asks),
		Bids:     toDepthItemMessages(d.Bids),
	}
}

// ToMessage converts the result to the response sent back to the submitter.
func (r *SubmitResult) ToMessage() *protocol.PlaceOrderResponse {
	order := r.Order.ToMessage()
	order.RejectReason = r.Reason

	trades := make([]*protocol.TradeMessage, 0, len(r.Trades))
	for _, t := range r.Trades {
		trades = append(trades, t.ToMessage())
	}
	return &protocol.PlaceOrderResponse{Order: order, Trades: trades}
}
