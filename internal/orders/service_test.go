package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/peeves91/mcc-final-project/internal/kafka"
	"github.com/peeves91/mcc-final-project/internal/saga"
)

type fakeStore struct {
	createFn   func(ctx context.Context, userID int64) (int64, error)
	finalizeFn func(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error)
	failFn     func(ctx context.Context, orderID int64, reason Status) error
	calls      []string
}

func (f *fakeStore) CreateOrder(ctx context.Context, userID int64) (int64, error) {
	f.calls = append(f.calls, "create")
	return f.createFn(ctx, userID)
}

func (f *fakeStore) Finalize(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error) {
	f.calls = append(f.calls, "finalize")
	return f.finalizeFn(ctx, orderID, userID, items)
}

func (f *fakeStore) Fail(ctx context.Context, orderID int64, reason Status) error {
	f.calls = append(f.calls, "fail")
	return f.failFn(ctx, orderID, reason)
}

type capturePub struct {
	err      error
	messages []kafkago.Message
}

func (p *capturePub) Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

func headerValue(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func msgFor(t *testing.T, v any) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestStartPurchase(t *testing.T) {
	store := &fakeStore{
		createFn: func(ctx context.Context, userID int64) (int64, error) { return 42, nil },
	}
	pub := &capturePub{}
	c := &Coordinator{Store: store, Created: pub, Log: zerolog.Nop()}

	orderID, err := c.StartPurchase(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), orderID)

	require.Len(t, pub.messages, 1)
	m := pub.messages[0]
	assert.Equal(t, "42", string(m.Key))
	assert.JSONEq(t, `{"user_id":7,"order_id":42}`, string(m.Value))
	assert.Equal(t, saga.EventOrderCreated, headerValue(m, kafkax.HeaderEventType))
	assert.NotEmpty(t, headerValue(m, kafkax.HeaderEventID))
}

func TestStartPurchaseCreateFails(t *testing.T) {
	store := &fakeStore{
		createFn: func(ctx context.Context, userID int64) (int64, error) { return 0, errors.New("db down") },
	}
	pub := &capturePub{}
	c := &Coordinator{Store: store, Created: pub, Log: zerolog.Nop()}

	_, err := c.StartPurchase(context.Background(), 7)
	require.Error(t, err)
	assert.Empty(t, pub.messages, "nothing may be announced for an uncreated order")
}

func TestStartPurchasePublishFails(t *testing.T) {
	store := &fakeStore{
		createFn: func(ctx context.Context, userID int64) (int64, error) { return 42, nil },
	}
	pub := &capturePub{err: errors.New("broker unreachable")}
	c := &Coordinator{Store: store, Created: pub, Log: zerolog.Nop()}

	_, err := c.StartPurchase(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not announced")
}

func TestHandleOrderItemsValidated(t *testing.T) {
	var gotItems []saga.Item
	store := &fakeStore{
		finalizeFn: func(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error) {
			assert.Equal(t, int64(42), orderID)
			assert.Equal(t, int64(7), userID)
			gotItems = items
			return 60, nil
		},
	}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	ev := saga.OrderItemsValidated{UserID: 7, OrderID: 42, Items: []saga.Item{{ItemID: 1, Quantity: 3, Price: 20}}}
	require.NoError(t, c.HandleOrderItemsValidated(context.Background(), msgFor(t, ev)))
	require.Len(t, gotItems, 1)
	assert.Equal(t, 20.0, gotItems[0].Price)
}

func TestHandleOrderItemsValidatedMalformed(t *testing.T) {
	store := &fakeStore{}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	// Poison payloads are dropped, not retried forever.
	err := c.HandleOrderItemsValidated(context.Background(), kafkago.Message{Value: []byte("{not json")})
	require.NoError(t, err)
	assert.Empty(t, store.calls)
}

func TestHandleOrderItemsValidatedNotPending(t *testing.T) {
	store := &fakeStore{
		finalizeFn: func(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error) {
			return 0, ErrNotPending
		},
	}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	ev := saga.OrderItemsValidated{UserID: 7, OrderID: 42}
	assert.NoError(t, c.HandleOrderItemsValidated(context.Background(), msgFor(t, ev)),
		"redelivery against a terminal order is dropped")
}

func TestHandleOrderItemsValidatedStoreError(t *testing.T) {
	store := &fakeStore{
		finalizeFn: func(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error) {
			return 0, errors.New("db down")
		},
	}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	ev := saga.OrderItemsValidated{UserID: 7, OrderID: 42}
	assert.Error(t, c.HandleOrderItemsValidated(context.Background(), msgFor(t, ev)),
		"infra errors must bubble so the message is retried, not committed")
}

func TestHandleOrderFailed(t *testing.T) {
	var gotReason Status
	store := &fakeStore{
		failFn: func(ctx context.Context, orderID int64, reason Status) error {
			assert.Equal(t, int64(42), orderID)
			gotReason = reason
			return nil
		},
	}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	ev := saga.OrderFailed{UserID: 7, OrderID: 42, ErrorMessage: saga.ReasonNotEnoughInStock}
	require.NoError(t, c.HandleOrderFailed(context.Background(), msgFor(t, ev)))
	assert.Equal(t, StatusOutOfStock, gotReason)
}

func TestHandleOrderFailedUnknownReason(t *testing.T) {
	store := &fakeStore{}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	ev := saga.OrderFailed{UserID: 7, OrderID: 42, ErrorMessage: "gremlins"}
	require.NoError(t, c.HandleOrderFailed(context.Background(), msgFor(t, ev)))
	assert.Empty(t, store.calls, "off-contract reasons never reach the ledger")
}

func TestHandleOrderFailedNotPending(t *testing.T) {
	store := &fakeStore{
		failFn: func(ctx context.Context, orderID int64, reason Status) error { return ErrNotPending },
	}
	c := &Coordinator{Store: store, Log: zerolog.Nop()}

	ev := saga.OrderFailed{UserID: 7, OrderID: 42, ErrorMessage: saga.ReasonNoCartFound}
	assert.NoError(t, c.HandleOrderFailed(context.Background(), msgFor(t, ev)))
}
