package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

type Store interface {
	ProcessedOrder(ctx context.Context, orderID int64) (Result, bool, error)
	CloseForOrder(ctx context.Context, orderID, userID int64) (Result, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Deduper is a read-through fast path over the durable processed_orders
// record. Mark is written only after the outcome event is on the broker,
// so a mark always implies finished work; a miss or a redis error just
// means the durable record decides.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Stage consumes OrderCreated: close the open cart, ship its line items
// onward, or report that there was no cart to consume. The outcome is
// recorded durably with the close, so a redelivery at any crash point
// replays the recorded outcome instead of re-deciding it.
type Stage struct {
	Store     Store
	Validated Publisher // order.cart.validated
	Failed    Publisher // order.failed
	Dedup     Deduper
	Log       zerolog.Logger

	// PublishRetryDelay spaces out publish retries after the outcome is
	// already committed. Tests shrink it.
	PublishRetryDelay time.Duration
}

func (s *Stage) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var ev saga.OrderCreated
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		s.Log.Error().Err(err).Msg("malformed OrderCreated, skipping")
		return nil
	}

	eventID := kafkax.EventID(m)
	if seen, err := s.Dedup.Seen(ctx, eventID); err != nil {
		s.Log.Warn().Err(err).Str("event_id", eventID).Msg("dedup lookup failed, using processing record")
	} else if seen {
		s.Log.Warn().Str("event_id", eventID).Int64("order_id", ev.OrderID).Msg("duplicate OrderCreated, skipping")
		return nil
	}

	res, done, err := s.Store.ProcessedOrder(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if done {
		s.Log.Warn().Int64("order_id", ev.OrderID).Str("outcome", res.Outcome).
			Msg("order already processed, republishing outcome")
	} else {
		res, err = s.Store.CloseForOrder(ctx, ev.OrderID, ev.UserID)
		if err != nil {
			return err
		}
	}

	switch res.Outcome {
	case OutcomeNoCart:
		s.Log.Info().Int64("order_id", ev.OrderID).Int64("user_id", ev.UserID).Msg("no open cart, failing order")
		fail := saga.OrderFailed{UserID: ev.UserID, OrderID: ev.OrderID, ErrorMessage: saga.ReasonNoCartFound}
		if err := s.publishUntilDone(ctx, s.Failed, ev.OrderID,
			kafkax.MustMarshal(fail), kafkax.EventHeaders(saga.EventOrderFailed)); err != nil {
			return err
		}
	default:
		out := saga.ShoppingCartValidated{
			UserID:  ev.UserID,
			OrderID: ev.OrderID,
			Items:   toSagaItems(res.Items),
		}
		if err := s.publishUntilDone(ctx, s.Validated, ev.OrderID,
			kafkax.MustMarshal(out), kafkax.EventHeaders(saga.EventShoppingCartValidated)); err != nil {
			return err
		}
		s.Log.Info().Int64("order_id", ev.OrderID).Int64("cart_id", res.CartID).
			Int("items", len(res.Items)).Msg("cart closed and validated")
	}

	// Best effort: a failed mark only costs the next delivery a record
	// lookup.
	if err := s.Dedup.Mark(ctx, eventID); err != nil {
		s.Log.Warn().Err(err).Str("event_id", eventID).Msg("dedup mark failed")
	}
	return nil
}

// publishUntilDone retries a publish until it lands or the context is
// cancelled. The recorded outcome makes giving up safe, but retrying in
// place is cheaper than a redelivery round trip.
func (s *Stage) publishUntilDone(ctx context.Context, p Publisher, orderID int64, value []byte, headers []kafkago.Header) error {
	delay := s.PublishRetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	for {
		err := p.Publish(ctx, saga.PartitionKey(orderID), value, headers...)
		if err == nil {
			return nil
		}
		s.Log.Error().Err(err).Int64("order_id", orderID).Msg("publish failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func toSagaItems(items []LineItem) []saga.Item {
	out := make([]saga.Item, 0, len(items))
	for _, li := range items {
		out = append(out, saga.Item{ItemID: li.ItemID, Quantity: li.Quantity, Price: li.Price})
	}
	return out
}
