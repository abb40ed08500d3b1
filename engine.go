package match

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/0x5487/matchcore/protocol"
)

// MatchingEngine manages one market per instrument. Markets run in parallel;
// operations on the same instrument are processed one at a time in arrival order.
type MatchingEngine struct {
	isShutdown atomic.Bool
	markets    sync.Map // instrument -> *market
	createMu   sync.Mutex
	opts       engineOptions
	dispatcher *dispatcher
	metrics    *engineMetrics
}

// NewMatchingEngine creates a new matching engine instance.
func NewMatchingEngine(opts ...EngineOption) *MatchingEngine {
	o := defaultEngineOptions()
	for _, opt := range opts {
		opt(&o)
	}

	metrics := newEngineMetrics(o.meterProvider)
	engine := &MatchingEngine{
		opts:       o,
		metrics:    metrics,
		dispatcher: newDispatcher(o.eventBuffer, metrics),
	}
	for _, p := range o.publishers {
		engine.dispatcher.subscribe(p)
	}
	return engine
}

// CreateMarket registers an instrument and starts its market loop.
func (engine *MatchingEngine) CreateMarket(marketID string, opts ...MarketOption) error {
	if engine.isShutdown.Load() {
		return ErrShutdown
	}
	if len(marketID) == 0 {
		return ErrInvalidParam
	}

	var mo marketOptions
	for _, opt := range opts {
		opt(&mo)
	}
	if mo.lotSize.IsNegative() || mo.tickSize.IsNegative() {
		return fmt.Errorf("%w: negative lot or tick size", ErrInvalidParam)
	}

	engine.createMu.Lock()
	defer engine.createMu.Unlock()

	if _, ok := engine.markets.Load(marketID); ok {
		return fmt.Errorf("%w: %s", ErrMarketExists, marketID)
	}

	m := newMarket(marketID, mo, engine.opts, engine.metrics, engine.dispatcher.publish)
	m.start()
	engine.markets.Store(marketID, m)

	logger.Info().
		Str("market_id", marketID).
		Str("lot_size", mo.lotSize.String()).
		Str("tick_size", mo.tickSize.String()).
		Msg("market created")
	return nil
}

func (engine *MatchingEngine) market(marketID string) (*market, error) {
	value, ok := engine.markets.Load(marketID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, marketID)
	}
	m, _ := value.(*market)
	return m, nil
}

// SubmitOrder validates an order, matches it against its instrument's book and
// returns the accepted order with its trades. Validation failures and unknown
// instruments are returned as *RejectError.
func (engine *MatchingEngine) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitResult, error) {
	if req == nil {
		return nil, ErrInvalidParam
	}
	if engine.isShutdown.Load() {
		return nil, ErrShutdown
	}

	m, err := engine.market(req.Instrument)
	if err != nil {
		order := &Order{
			ClientOrderID: req.ClientOrderID,
			Instrument:    req.Instrument,
			UserID:        req.UserID,
			Side:          req.Side,
			Type:          req.Type,
			Price:         req.Price,
			Quantity:      req.Quantity,
			Remaining:     req.Quantity,
		}
		return nil, newRejectError(order, ReasonUnknownInstrument, ErrUnknownInstrument, req.Instrument)
	}

	order, err := m.validate(req)
	if err != nil {
		var rejectErr *RejectError
		if errors.As(err, &rejectErr) {
			engine.metrics.recordOrder(ctx, m.id, rejectErr.Order)
		}
		return nil, err
	}

	res, err := m.call(ctx, command{typ: cmdSubmitOrder, order: order})
	if err != nil {
		return nil, err
	}
	return res.result, nil
}

// PlaceOrder parses a wire command and submits it.
func (engine *MatchingEngine) PlaceOrder(ctx context.Context, cmd *protocol.PlaceOrderCommand) (*SubmitResult, error) {
	req, err := ParsePlaceOrder(cmd)
	if err != nil {
		return nil, err
	}
	return engine.SubmitOrder(ctx, req)
}

// CancelOrder removes a resting order and returns its final state.
// Cancelling an unknown, filled or already cancelled order returns ErrOrderNotFound.
func (engine *MatchingEngine) CancelOrder(ctx context.Context, marketID string, orderID string) (*Order, error) {
	if len(orderID) == 0 {
		return nil, ErrInvalidParam
	}
	m, err := engine.market(marketID)
	if err != nil {
		return nil, err
	}

	res, err := m.call(ctx, command{typ: cmdCancelOrder, orderID: orderID})
	if err != nil {
		return nil, err
	}
	return res.order, nil
}

// Order returns the current state of any order the market accepted.
func (engine *MatchingEngine) Order(ctx context.Context, marketID string, orderID string) (*Order, error) {
	m, err := engine.market(marketID)
	if err != nil {
		return nil, err
	}

	res, err := m.call(ctx, command{typ: cmdOrder, orderID: orderID})
	if err != nil {
		return nil, err
	}
	return res.order, nil
}

// BBO returns the latest published snapshot without waiting on the market loop.
func (engine *MatchingEngine) BBO(marketID string) (*BBO, error) {
	m, err := engine.market(marketID)
	if err != nil {
		return nil, err
	}
	return m.tracker.load(), nil
}

// Depth returns up to limit levels per side, consistent with the BBO update id it carries.
func (engine *MatchingEngine) Depth(ctx context.Context, marketID string, limit int) (*Depth, error) {
	if limit <= 0 {
		return nil, ErrInvalidParam
	}
	m, err := engine.market(marketID)
	if err != nil {
		return nil, err
	}

	res, err := m.call(ctx, command{typ: cmdDepth, limit: limit})
	if err != nil {
		return nil, err
	}
	return res.depth, nil
}

// Stats returns usage statistics for a market.
func (engine *MatchingEngine) Stats(ctx context.Context, marketID string) (*BookStats, error) {
	m, err := engine.market(marketID)
	if err != nil {
		return nil, err
	}

	res, err := m.call(ctx, command{typ: cmdStats})
	if err != nil {
		return nil, err
	}
	return res.stats, nil
}

// Instruments returns the registered instruments in lexical order.
func (engine *MatchingEngine) Instruments() []string {
	ids := make([]string, 0)
	engine.markets.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// Subscribe delivers the events of every market to p. The returned function
// detaches p after delivering what was already buffered for it.
func (engine *MatchingEngine) Subscribe(p Publisher) func(ctx context.Context) error {
	s := engine.dispatcher.subscribe(p)
	return func(ctx context.Context) error {
		return engine.dispatcher.unsubscribe(ctx, s)
	}
}

// Shutdown gracefully shuts down all markets, then the subscribers.
// It blocks until queued commands and buffered events are processed or the context is done.
// Returns nil if everything shut down successfully, or an aggregated error otherwise.
func (engine *MatchingEngine) Shutdown(ctx context.Context) error {
	engine.createMu.Lock()
	engine.isShutdown.Store(true)
	engine.createMu.Unlock()

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	engine.markets.Range(func(key, value any) bool {
		wg.Add(1)
		go func(m *market) {
			defer wg.Done()
			if err := m.shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(value.(*market))
		return true
	})

	wg.Wait()

	errs = append(errs, engine.dispatcher.shutdown(ctx)...)

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info().Msg("matching engine shut down")
	return nil
}
