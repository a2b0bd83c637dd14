package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/metrics"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

// Store is the slice of the order ledger the coordinator needs.
type Store interface {
	CreateOrder(ctx context.Context, userID int64) (int64, error)
	Finalize(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error)
	Fail(ctx context.Context, orderID int64, reason Status) error
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// Coordinator is the saga entry point plus the two terminal handlers.
// Idempotency for redelivered events rests on the ledger's pending-state
// guard, not on broker semantics.
type Coordinator struct {
	Store   Store
	Created Publisher // order.created
	Log     zerolog.Logger
}

// StartPurchase creates the pending order and publishes OrderCreated.
// The row commit strictly precedes the publish, and the publish strictly
// precedes returning, so a caller that sees success can poll the order.
// The saga result is not awaited (submit, then poll for terminal state).
func (c *Coordinator) StartPurchase(ctx context.Context, userID int64) (int64, error) {
	orderID, err := c.Store.CreateOrder(ctx, userID)
	if err != nil {
		return 0, err
	}

	ev := saga.OrderCreated{UserID: userID, OrderID: orderID}
	if err := c.Created.Publish(ctx, saga.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkax.EventHeaders(saga.EventOrderCreated)...); err != nil {
		// The pending row stays behind unreferenced; the caller gets the
		// error and no saga is running for it.
		return 0, fmt.Errorf("order %d created but not announced: %w", orderID, err)
	}

	c.Log.Info().Int64("order_id", orderID).Int64("user_id", userID).Msg("purchase accepted")
	return orderID, nil
}

// HandleOrderItemsValidated finalizes the order: line items from the
// echoed reservation payload, total = sum of price x quantity.
func (c *Coordinator) HandleOrderItemsValidated(ctx context.Context, m kafkago.Message) error {
	var ev saga.OrderItemsValidated
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.Log.Error().Err(err).Msg("malformed OrderItemsValidated, skipping")
		return nil
	}

	total, err := c.Store.Finalize(ctx, ev.OrderID, ev.UserID, ev.Items)
	if errors.Is(err, ErrNotPending) || errors.Is(err, ErrOrderNotFound) {
		c.Log.Warn().Err(err).Int64("order_id", ev.OrderID).Msg("dropping finalize for non-pending order")
		return nil
	}
	if err != nil {
		return err
	}

	metrics.OrderOutcomes.WithLabelValues(string(StatusPurchased)).Inc()
	c.Log.Info().Int64("order_id", ev.OrderID).Float64("total_price", total).Msg("order purchased")
	return nil
}

// HandleOrderFailed records the failure reason as the terminal status.
// No compensation runs here: the failing stage never mutated anything on
// its failure path.
func (c *Coordinator) HandleOrderFailed(ctx context.Context, m kafkago.Message) error {
	var ev saga.OrderFailed
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.Log.Error().Err(err).Msg("malformed OrderFailed, skipping")
		return nil
	}

	reason, ok := FailureStatus(ev.ErrorMessage)
	if !ok {
		c.Log.Error().Str("error_message", ev.ErrorMessage).Int64("order_id", ev.OrderID).
			Msg("unknown failure reason, skipping")
		return nil
	}

	err := c.Store.Fail(ctx, ev.OrderID, reason)
	if errors.Is(err, ErrNotPending) {
		c.Log.Warn().Int64("order_id", ev.OrderID).Msg("dropping failure for non-pending order")
		return nil
	}
	if err != nil {
		return err
	}

	metrics.OrderOutcomes.WithLabelValues(string(reason)).Inc()
	c.Log.Info().Int64("order_id", ev.OrderID).Str("reason", ev.ErrorMessage).Msg("order failed")
	return nil
}
