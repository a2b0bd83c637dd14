package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/peeves91/mcc-final-project/internal/metrics"
)

// Handler must return nil only when the message is fully handled and the
// offset may be committed. Business failures are not errors here; they
// are converted to events by the handler itself.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer runs one serialized loop over one topic: fetch, handle,
// commit. The next message is not fetched until the current one is
// committed, and a handler error is retried in place with backoff so a
// saga event is never silently dropped.
type Consumer struct {
	r   *kafka.Reader
	log zerolog.Logger
}

func NewConsumer(brokers []string, group, topic string, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit, only after the handler succeeds
	})
	return &Consumer{r: r, log: log.With().Str("topic", topic).Str("group", group).Logger()}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		metrics.EventsConsumed.WithLabelValues(m.Topic).Inc()

		if err := c.handleWithRetry(ctx, h, m); err != nil {
			// Only a cancelled context lands here.
			return nil
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Int64("offset", m.Offset).Msg("commit failed")
		}
	}
}

// handleWithRetry keeps a failing message in place. Infra errors
// (datastore or broker down) get capped exponential backoff; committing
// past the message would lose the event, and FIFO per order forbids
// skipping ahead.
func (c *Consumer) handleWithRetry(ctx context.Context, h Handler, m kafka.Message) error {
	backoff := 200 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		err := h(ctx, m)
		if err == nil {
			return nil
		}
		metrics.HandlerFailures.WithLabelValues(m.Topic).Inc()
		c.log.Error().Err(err).Int64("offset", m.Offset).Dur("backoff", backoff).Msg("handler failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
