package match

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/0x5487/matchcore"

// engineMetrics holds the counters of one engine. A counter that failed to
// register stays nil and is skipped.
type engineMetrics struct {
	ordersTotal     metric.Int64Counter
	tradesTotal     metric.Int64Counter
	tradedVolume    metric.Float64Counter
	droppedBatches  metric.Int64Counter
	subscriberPanic metric.Int64Counter
}

func newEngineMetrics(provider metric.MeterProvider) *engineMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(instrumentationName)
	m := &engineMetrics{}

	var err error
	m.ordersTotal, err = meter.Int64Counter(
		"matchcore.orders.total",
		metric.WithDescription("Orders processed, by type and final status"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("register orders counter")
	}

	m.tradesTotal, err = meter.Int64Counter(
		"matchcore.trades.total",
		metric.WithDescription("Trades executed"),
		metric.WithUnit("{trade}"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("register trades counter")
	}

	m.tradedVolume, err = meter.Float64Counter(
		"matchcore.trades.volume",
		metric.WithDescription("Executed base quantity"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("register volume counter")
	}

	m.droppedBatches, err = meter.Int64Counter(
		"matchcore.events.dropped",
		metric.WithDescription("Event batches dropped because a subscriber buffer was full"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("register dropped batches counter")
	}

	m.subscriberPanic, err = meter.Int64Counter(
		"matchcore.subscriber.panics",
		metric.WithDescription("Panics recovered from subscriber publishers"),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("register subscriber panic counter")
	}

	return m
}

func (m *engineMetrics) recordOrder(ctx context.Context, marketID string, order *Order) {
	if m.ordersTotal == nil {
		return
	}
	m.ordersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("market.id", marketID),
		attribute.String("order.type", string(order.Type)),
		attribute.String("order.status", string(order.Status)),
	))
}

func (m *engineMetrics) recordTrades(ctx context.Context, marketID string, trades []*Trade) {
	if len(trades) == 0 {
		return
	}

	attrs := metric.WithAttributes(attribute.String("market.id", marketID))
	if m.tradesTotal != nil {
		m.tradesTotal.Add(ctx, int64(len(trades)), attrs)
	}
	if m.tradedVolume != nil {
		for _, t := range trades {
			m.tradedVolume.Add(ctx, t.Quantity.InexactFloat64(), attrs)
		}
	}
}

func (m *engineMetrics) recordDropped(ctx context.Context, subscriber uint64) {
	if m.droppedBatches == nil {
		return
	}
	m.droppedBatches.Add(ctx, 1, metric.WithAttributes(attribute.Int64("subscriber.id", int64(subscriber))))
}

func (m *engineMetrics) recordSubscriberPanic(ctx context.Context, subscriber uint64) {
	if m.subscriberPanic == nil {
		return
	}
	m.subscriberPanic.Add(ctx, 1, metric.WithAttributes(attribute.Int64("subscriber.id", int64(subscriber))))
}
