package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peeves91/mcc-final-project/internal/saga"
)

type fakeInvStore struct {
	reserved     bool
	reservedErr  error
	reserveOK    bool
	reserveErr   error
	reserveCalls int
	gotItems     []saga.Item
}

func (f *fakeInvStore) AlreadyReserved(ctx context.Context, orderID int64) (bool, error) {
	return f.reserved, f.reservedErr
}

func (f *fakeInvStore) ReserveAll(ctx context.Context, orderID int64, items []saga.Item) (bool, error) {
	f.reserveCalls++
	f.gotItems = items
	return f.reserveOK, f.reserveErr
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

func cartValidatedMsg(t *testing.T, items ...saga.Item) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(saga.ShoppingCartValidated{UserID: 7, OrderID: 42, Items: items})
	require.NoError(t, err)
	return kafkago.Message{Topic: saga.TopicCartValidated, Value: b}
}

func TestHandleCartValidated(t *testing.T) {
	store := &fakeInvStore{reserveOK: true}
	validated, failed := &capturePub{}, &capturePub{}
	s := &Stage{Store: store, Validated: validated, Failed: failed, Log: zerolog.Nop()}

	items := []saga.Item{{ItemID: 1, Quantity: 3, Price: 20}, {ItemID: 2, Quantity: 1, Price: 5.5}}
	require.NoError(t, s.HandleCartValidated(context.Background(), cartValidatedMsg(t, items...)))

	assert.Equal(t, 1, store.reserveCalls)
	assert.Empty(t, failed.messages)
	require.Len(t, validated.messages, 1)

	// The echoed prices are the cart's, not a catalog re-read.
	var out saga.OrderItemsValidated
	require.NoError(t, json.Unmarshal(validated.messages[0].Value, &out))
	assert.Equal(t, int64(42), out.OrderID)
	assert.Equal(t, items, out.Items)
	assert.Equal(t, "42", string(validated.messages[0].Key))
}

func TestHandleCartValidatedInsufficientStock(t *testing.T) {
	store := &fakeInvStore{reserveOK: false}
	validated, failed := &capturePub{}, &capturePub{}
	s := &Stage{Store: store, Validated: validated, Failed: failed, Log: zerolog.Nop()}

	msg := cartValidatedMsg(t, saga.Item{ItemID: 1, Quantity: 100, Price: 20})
	require.NoError(t, s.HandleCartValidated(context.Background(), msg))

	assert.Empty(t, validated.messages)
	require.Len(t, failed.messages, 1)

	var fail saga.OrderFailed
	require.NoError(t, json.Unmarshal(failed.messages[0].Value, &fail))
	assert.Equal(t, saga.ReasonNotEnoughInStock, fail.ErrorMessage)
	assert.Equal(t, int64(42), fail.OrderID)
	assert.Equal(t, int64(7), fail.UserID)
}

func TestHandleCartValidatedAlreadyReserved(t *testing.T) {
	store := &fakeInvStore{reserved: true}
	validated, failed := &capturePub{}, &capturePub{}
	s := &Stage{Store: store, Validated: validated, Failed: failed, Log: zerolog.Nop()}

	items := []saga.Item{{ItemID: 1, Quantity: 3, Price: 20}}
	require.NoError(t, s.HandleCartValidated(context.Background(), cartValidatedMsg(t, items...)))

	assert.Zero(t, store.reserveCalls, "a redelivered event must not decrement twice")
	require.Len(t, validated.messages, 1)
	assert.Empty(t, failed.messages)
}

func TestHandleCartValidatedStoreError(t *testing.T) {
	store := &fakeInvStore{reserveErr: errors.New("db down")}
	s := &Stage{Store: store, Validated: &capturePub{}, Failed: &capturePub{}, Log: zerolog.Nop()}

	err := s.HandleCartValidated(context.Background(), cartValidatedMsg(t, saga.Item{ItemID: 1, Quantity: 1}))
	assert.Error(t, err, "infra errors bubble so the message is redelivered")
}

func TestHandleCartValidatedMalformed(t *testing.T) {
	store := &fakeInvStore{reserveOK: true}
	s := &Stage{Store: store, Validated: &capturePub{}, Failed: &capturePub{}, Log: zerolog.Nop()}

	err := s.HandleCartValidated(context.Background(), kafkago.Message{Value: []byte("{nope")})
	require.NoError(t, err)
	assert.Zero(t, store.reserveCalls)
}
