package inventory

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

type Store interface {
	AlreadyReserved(ctx context.Context, orderID int64) (bool, error)
	ReserveAll(ctx context.Context, orderID int64, items []saga.Item) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Stage consumes ShoppingCartValidated: reserve stock for the whole
// batch or fail the order without touching anything. Idempotency rides
// on the reservation rows, so a redelivered event republishes the
// validated result instead of decrementing twice.
type Stage struct {
	Store     Store
	Validated Publisher // order.items.validated
	Failed    Publisher // order.failed
	Log       zerolog.Logger
}

func (s *Stage) HandleCartValidated(ctx context.Context, m kafkago.Message) error {
	var ev saga.ShoppingCartValidated
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		s.Log.Error().Err(err).Msg("malformed ShoppingCartValidated, skipping")
		return nil
	}

	done, err := s.Store.AlreadyReserved(ctx, ev.OrderID)
	if err != nil {
		return err
	}
	if done {
		// Redelivery after a successful commit. Re-emitting is safe: the
		// coordinator drops finalize events for non-pending orders.
		s.Log.Warn().Int64("order_id", ev.OrderID).Msg("order already reserved, republishing")
		return s.publishValidated(ctx, ev)
	}

	ok, err := s.Store.ReserveAll(ctx, ev.OrderID, ev.Items)
	if err != nil {
		return err
	}
	if !ok {
		s.Log.Info().Int64("order_id", ev.OrderID).Msg("insufficient stock, failing order")
		fail := saga.OrderFailed{UserID: ev.UserID, OrderID: ev.OrderID, ErrorMessage: saga.ReasonNotEnoughInStock}
		return s.Failed.Publish(ctx, saga.PartitionKey(ev.OrderID), kafkax.MustMarshal(fail),
			kafkax.EventHeaders(saga.EventOrderFailed)...)
	}

	s.Log.Info().Int64("order_id", ev.OrderID).Int("items", len(ev.Items)).Msg("stock reserved")
	return s.publishValidated(ctx, ev)
}

// publishValidated echoes the item/quantity/price triples forward
// unchanged: totals downstream use the price captured at add time, not a
// re-read of the catalog.
func (s *Stage) publishValidated(ctx context.Context, ev saga.ShoppingCartValidated) error {
	out := saga.OrderItemsValidated{UserID: ev.UserID, OrderID: ev.OrderID, Items: ev.Items}
	return s.Validated.Publish(ctx, saga.PartitionKey(ev.OrderID), kafkax.MustMarshal(out),
		kafkax.EventHeaders(saga.EventOrderItemsValidated)...)
}
