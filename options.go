package match

import (
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

type engineOptions struct {
	depthLimit      int
	commandBuffer   int
	eventBuffer     int64
	publishers      []Publisher
	meterProvider   metric.MeterProvider
	checkInvariants bool
}

func defaultEngineOptions() engineOptions {
	return engineOptions{
		depthLimit:    DefaultDepthLimit,
		commandBuffer: DefaultCommandBuffer,
		eventBuffer:   DefaultEventBuffer,
	}
}

// EngineOption configures a MatchingEngine.
type EngineOption func(*engineOptions)

// WithDepthLimit sets how many levels per side a BBO snapshot carries.
func WithDepthLimit(limit int) EngineOption {
	return func(o *engineOptions) {
		if limit > 0 {
			o.depthLimit = limit
		}
	}
}

// WithCommandBuffer sets the capacity of each market's command queue.
func WithCommandBuffer(size int) EngineOption {
	return func(o *engineOptions) {
		if size > 0 {
			o.commandBuffer = size
		}
	}
}

// WithEventBuffer sets the ring buffer capacity per subscriber, rounded up to a power of 2.
func WithEventBuffer(size int) EngineOption {
	return func(o *engineOptions) {
		if size > 0 {
			o.eventBuffer = nextPowerOfTwo(int64(size))
		}
	}
}

// WithPublisher subscribes a publisher when the engine is created.
func WithPublisher(p Publisher) EngineOption {
	return func(o *engineOptions) {
		if p != nil {
			o.publishers = append(o.publishers, p)
		}
	}
}

// WithMeterProvider overrides the global OpenTelemetry meter provider.
func WithMeterProvider(provider metric.MeterProvider) EngineOption {
	return func(o *engineOptions) {
		o.meterProvider = provider
	}
}

// WithInvariantChecks verifies the whole book after every mutation. Slow; meant for tests.
func WithInvariantChecks(enabled bool) EngineOption {
	return func(o *engineOptions) {
		o.checkInvariants = enabled
	}
}

type marketOptions struct {
	lotSize  decimal.Decimal
	tickSize decimal.Decimal
}

// MarketOption configures a market at creation.
type MarketOption func(*marketOptions)

// WithLotSize requires order quantities to be a multiple of size.
func WithLotSize(size decimal.Decimal) MarketOption {
	return func(o *marketOptions) {
		o.lotSize = size
	}
}

// WithTickSize requires order prices to be a multiple of size.
func WithTickSize(size decimal.Decimal) MarketOption {
	return func(o *marketOptions) {
		o.tickSize = size
	}
}

func nextPowerOfTwo(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}
