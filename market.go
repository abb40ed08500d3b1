package match

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// commandType represents the type of command sent to a market.
type commandType int

const (
	cmdSubmitOrder commandType = iota
	cmdCancelOrder
	cmdOrder
	cmdDepth
	cmdStats
)

// command is a unified request processed by the market loop.
// A single channel keeps every operation of one instrument in arrival order.
type command struct {
	typ     commandType
	order   *Order
	orderID string
	limit   int
	resp    chan response
}

type response struct {
	result *SubmitResult
	order  *Order
	depth  *Depth
	stats  *BookStats
	err    error
}

// market serializes every operation of one instrument on a single goroutine.
type market struct {
	id       string
	lotSize  decimal.Decimal
	tickSize decimal.Decimal

	book    *OrderBook
	tracker *bboTracker
	orders  map[string]*Order // every accepted order, terminal ones included
	seqID   uint64
	tradeID uint64

	cmdChan chan command
	mu      sync.RWMutex // guards closed against sends on a closed cmdChan
	closed  bool
	done    chan struct{}

	publish         func(events []*Event)
	metrics         *engineMetrics
	checkInvariants bool
}

func newMarket(id string, mo marketOptions, eo engineOptions, metrics *engineMetrics, publish func([]*Event)) *market {
	return &market{
		id:              id,
		lotSize:         mo.lotSize,
		tickSize:        mo.tickSize,
		book:            NewOrderBook(id),
		tracker:         newBBOTracker(id, eo.depthLimit),
		orders:          make(map[string]*Order),
		cmdChan:         make(chan command, eo.commandBuffer),
		done:            make(chan struct{}),
		publish:         publish,
		metrics:         metrics,
		checkInvariants: eo.checkInvariants,
	}
}

// start runs the market loop until shutdown closes the command channel and
// every queued command has been processed.
func (m *market) start() {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(m.done)

		for cmd := range m.cmdChan {
			m.handle(cmd)
		}
	}()
}

// shutdown stops accepting commands and waits until the queue is drained.
func (m *market) shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.cmdChan)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("market %s: %w", m.id, ctx.Err())
	}
}

// call enqueues a command and waits for its response. ctx only bounds the
// wait for queue space: once enqueued a command always runs to completion.
func (m *market) call(ctx context.Context, cmd command) (response, error) {
	cmd.resp = make(chan response, 1)

	if err := m.enqueue(ctx, cmd); err != nil {
		return response{}, err
	}

	res := <-cmd.resp
	return res, res.err
}

func (m *market) enqueue(ctx context.Context, cmd command) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrShutdown
	}

	select {
	case m.cmdChan <- cmd:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

func (m *market) handle(cmd command) {
	var res response

	switch cmd.typ {
	case cmdSubmitOrder:
		res.result = m.submitOrder(cmd.order)
	case cmdCancelOrder:
		res.order, res.err = m.cancelOrder(cmd.orderID)
	case cmdOrder:
		if order, ok := m.orders[cmd.orderID]; ok {
			res.order = order.clone()
		} else {
			res.err = fmt.Errorf("%w: %s", ErrOrderNotFound, cmd.orderID)
		}
	case cmdDepth:
		res.depth = &Depth{
			UpdateID: m.tracker.lastUpdateID(),
			Asks:     m.book.Depth(Sell, cmd.limit),
			Bids:     m.book.Depth(Buy, cmd.limit),
		}
	case cmdStats:
		stats := m.book.Stats()
		stats.OrderCount = int64(len(m.orders))
		stats.TradeCount = m.tradeID
		res.stats = stats
	}

	cmd.resp <- res
}

// validate builds a pending order from the request, or a *RejectError.
func (m *market) validate(req *SubmitOrderRequest) (*Order, error) {
	order := &Order{
		ClientOrderID: req.ClientOrderID,
		Instrument:    m.id,
		UserID:        req.UserID,
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price,
		Quantity:      req.Quantity,
		Remaining:     req.Quantity,
		Status:        StatusPending,
	}

	if req.Side != Buy && req.Side != Sell {
		return nil, newRejectError(order, ReasonInvalidSide, ErrInvalidOrder, fmt.Sprintf("side %d", req.Side))
	}
	if _, ok := policies[req.Type]; !ok {
		return nil, newRejectError(order, ReasonInvalidType, ErrInvalidOrder, fmt.Sprintf("order type %q", req.Type))
	}
	if !req.Quantity.IsPositive() {
		return nil, newRejectError(order, ReasonInvalidQuantity, ErrInvalidOrder, "quantity must be positive")
	}
	if m.lotSize.IsPositive() && !req.Quantity.Mod(m.lotSize).IsZero() {
		return nil, newRejectError(order, ReasonInvalidQuantity, ErrInvalidOrder, fmt.Sprintf("quantity %s is not a multiple of lot size %s", req.Quantity, m.lotSize))
	}

	if req.Type == Market {
		order.Price = decimal.Zero
		return order, nil
	}

	if !req.Price.IsPositive() {
		return nil, newRejectError(order, ReasonInvalidPrice, ErrInvalidOrder, "price must be positive")
	}
	if m.tickSize.IsPositive() && !req.Price.Mod(m.tickSize).IsZero() {
		return nil, newRejectError(order, ReasonInvalidPrice, ErrInvalidOrder, fmt.Sprintf("price %s is not a multiple of tick size %s", req.Price, m.tickSize))
	}
	return order, nil
}

func (m *market) submitOrder(order *Order) *SubmitResult {
	now := time.Now().UnixNano()
	m.seqID++
	order.ID = xid.New().String()
	order.Sequence = m.seqID
	order.Timestamp = now

	trades, reason, err := matchOrder(m.book, order, func(taker, maker *Order, qty decimal.Decimal) *Trade {
		m.tradeID++
		return &Trade{
			ID:            m.tradeID,
			Instrument:    m.id,
			Price:         maker.Price,
			Quantity:      qty,
			Amount:        maker.Price.Mul(qty),
			AggressorSide: taker.Side,
			TakerOrderID:  taker.ID,
			TakerUserID:   taker.UserID,
			MakerOrderID:  maker.ID,
			MakerUserID:   maker.UserID,
			Timestamp:     now,
		}
	})
	if err != nil {
		m.fatal(err, order.ID)
	}
	m.orders[order.ID] = order

	events := make([]*Event, 0, len(trades)+1)
	for _, t := range trades {
		events = append(events, newTradeEvent(t))
	}
	if update := m.refresh(now); update != nil {
		events = append(events, newBookEvent(update))
	}
	m.publish(events)

	ctx := context.Background()
	m.metrics.recordOrder(ctx, m.id, order)
	m.metrics.recordTrades(ctx, m.id, trades)

	logger.Debug().
		Str("market_id", m.id).
		Str("order_id", order.ID).
		Str("type", string(order.Type)).
		Str("status", string(order.Status)).
		Int("trades", len(trades)).
		Str("reason", string(reason)).
		Msg("order processed")

	return &SubmitResult{
		Order:  order.clone(),
		Trades: trades,
		Reason: reason,
	}
}

func (m *market) cancelOrder(orderID string) (*Order, error) {
	order, err := m.book.Cancel(orderID)
	if err != nil {
		return nil, err
	}

	if update := m.refresh(time.Now().UnixNano()); update != nil {
		m.publish([]*Event{newBookEvent(update)})
	}

	logger.Debug().
		Str("market_id", m.id).
		Str("order_id", orderID).
		Str("remaining", order.Remaining.String()).
		Msg("order cancelled")

	return order.clone(), nil
}

// refresh recomputes the BBO after a mutation and returns the update to emit.
func (m *market) refresh(ts int64) *BookUpdate {
	if m.checkInvariants {
		if err := m.book.CheckInvariants(); err != nil {
			m.fatal(err, "")
		}
	}
	return m.tracker.update(m.book, ts)
}

// fatal logs and panics on a broken book.
func (m *market) fatal(err error, orderID string) {
	logger.Error().Err(err).Str("market_id", m.id).Str("order_id", orderID).Msg("order book invariant violated")
	panic(err)
}
