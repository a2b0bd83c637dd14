package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/peeves91/mcc-final-project/internal/metrics"
)

// Producer writes one event type to one topic. Publishes are synchronous
// with acks from all replicas: when Publish returns nil the event is on
// the broker, which is what lets the purchase endpoint promise "accepted
// means the saga is running".
type Producer struct {
	w   *kafka.Writer
	log zerolog.Logger
}

func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log.With().Str("topic", topic).Logger(),
	}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	err := p.w.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	})
	if err != nil {
		p.log.Error().Err(err).Msg("publish failed")
		return fmt.Errorf("publish to %s: %w", p.w.Topic, err)
	}
	metrics.EventsPublished.WithLabelValues(p.w.Topic).Inc()
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
