package match

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// matchPolicy describes how an order type interacts with the book.
type matchPolicy struct {
	priced    bool         // only trades at prices no worse than its limit
	allOrNone bool         // must be fillable in full before touching the book
	rests     bool         // an unfilled remainder stays on the book
	exhausted RejectReason // reason when the opposite side runs dry
}

// policies is the single decision point for order type behaviour.
var policies = map[OrderType]matchPolicy{
	Market: {priced: false, rests: false, exhausted: ReasonNoLiquidity},
	Limit:  {priced: true, rests: true},
	IOC:    {priced: true, rests: false, exhausted: ReasonNoLiquidity},
	FOK:    {priced: true, allOrNone: true, rests: false, exhausted: ReasonInsufficientSize},
}

// newTradeFunc builds the trade for one execution; maker is the resting order.
type newTradeFunc func(taker, maker *Order, qty decimal.Decimal) *Trade

// matchOrder executes an incoming order against the book under price-time
// priority. It returns the trades in execution order and, when an unfilled
// remainder was cancelled, the reason. Any error is an invariant violation
// and leaves the book in an undefined state.
func matchOrder(book *OrderBook, taker *Order, newTrade newTradeFunc) ([]*Trade, RejectReason, error) {
	policy, ok := policies[taker.Type]
	if !ok {
		return nil, ReasonNone, fmt.Errorf("%w: no policy for order type %q", ErrInvariant, taker.Type)
	}

	if policy.allOrNone && !book.canFill(taker.Side, taker.Price, taker.Remaining) {
		if err := taker.transition(StatusCancelled); err != nil {
			return nil, ReasonNone, err
		}
		return nil, ReasonInsufficientSize, nil
	}

	targetSide := opposite(taker.Side)
	trades := make([]*Trade, 0, 4)
	reason := ReasonNone

	for taker.Remaining.IsPositive() {
		lvl := book.PeekBest(targetSide)
		if lvl == nil {
			reason = policy.exhausted
			break
		}
		if policy.priced && !crosses(taker.Side, taker.Price, lvl.price) {
			reason = ReasonPriceMismatch
			break
		}

		maker := lvl.head
		qty := decimal.Min(taker.Remaining, maker.Remaining)
		trade := newTrade(taker, maker, qty)

		if err := taker.fill(qty); err != nil {
			return trades, ReasonNone, err
		}
		if _, err := book.ReduceOrCancel(maker.ID, qty); err != nil {
			return trades, ReasonNone, err
		}
		trades = append(trades, trade)
	}

	if taker.Remaining.IsZero() {
		return trades, ReasonNone, nil
	}

	if policy.allOrNone {
		return trades, ReasonNone, fmt.Errorf("%w: fill-or-kill order %s left %s unfilled after pre-check", ErrInvariant, taker.ID, taker.Remaining)
	}

	if policy.rests {
		if err := book.Insert(taker); err != nil {
			return trades, ReasonNone, err
		}
		return trades, ReasonNone, nil
	}

	if err := taker.transition(StatusCancelled); err != nil {
		return trades, ReasonNone, err
	}
	return trades, reason, nil
}
