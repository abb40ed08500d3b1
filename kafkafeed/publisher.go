// Package kafkafeed relays the matching engine's event feed to a Kafka topic.
package kafkafeed

import (
	"context"
	"time"

	match "github.com/0x5487/matchcore"
	"github.com/0x5487/matchcore/protocol"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	// DefaultWriteTimeout bounds one batch write to the brokers.
	DefaultWriteTimeout = 5 * time.Second

	headerEventType = "event_type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements match.Publisher. Messages are keyed by instrument, so
// all events of one instrument land on one partition in feed order.
type Publisher struct {
	writer     messageWriter
	serializer protocol.Serializer
	timeout    time.Duration
	logger     zerolog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSerializer replaces the JSON encoding of event messages.
func WithSerializer(s protocol.Serializer) Option {
	return func(p *Publisher) {
		if s != nil {
			p.serializer = s
		}
	}
}

// WithWriteTimeout bounds how long one batch may wait on the brokers.
func WithWriteTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Publisher) {
		p.logger = l
	}
}

// NewPublisher creates a publisher writing to topic on the given brokers.
func NewPublisher(brokers []string, topic string, opts ...Option) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newPublisher(writer, opts...)
}

func newPublisher(w messageWriter, opts ...Option) *Publisher {
	p := &Publisher{
		writer:     w,
		serializer: protocol.DefaultJSONSerializer{},
		timeout:    DefaultWriteTimeout,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes one batch of events. It runs on the engine's subscriber
// goroutine, so a slow broker only delays this subscriber.
func (p *Publisher) Publish(events ...*match.Event) {
	msgs := make([]kafka.Message, 0, len(events))
	now := time.Now()

	for _, e := range events {
		data, err := p.serializer.Marshal(e.ToMessage())
		if err != nil {
			p.logger.Error().Err(err).
				Str("market_id", e.Instrument).
				Str("event_type", string(e.Type)).
				Msg("kafkafeed: marshal event")
			continue
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.Instrument),
			Value: data,
			Headers: []kafka.Header{
				{Key: headerEventType, Value: []byte(e.Type)},
			},
			Time: now,
		})
	}

	if len(msgs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error().Err(err).
			Str("market_id", events[0].Instrument).
			Int("messages", len(msgs)).
			Msg("kafkafeed: write messages")
	}
}

// Close flushes pending writes and closes the connection to the brokers.
// The engine calls it when the subscription ends.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
