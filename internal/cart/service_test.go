package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peeves91/mcc-final-project/internal/saga"
)

type fakeCartStore struct {
	processed    map[int64]Result
	processedErr error
	closeFn      func(ctx context.Context, orderID, userID int64) (Result, error)
	closeCalls   int
}

func (f *fakeCartStore) ProcessedOrder(ctx context.Context, orderID int64) (Result, bool, error) {
	if f.processedErr != nil {
		return Result{}, false, f.processedErr
	}
	res, ok := f.processed[orderID]
	return res, ok, nil
}

func (f *fakeCartStore) CloseForOrder(ctx context.Context, orderID, userID int64) (Result, error) {
	f.closeCalls++
	return f.closeFn(ctx, orderID, userID)
}

type fakePub struct {
	errs     []error // consumed one per attempt, then nil
	attempts int
	messages []kafkago.Message
}

func (p *fakePub) Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error {
	p.attempts++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return err
		}
	}
	p.messages = append(p.messages, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

type fakeDedup struct {
	seen    map[string]bool
	seenErr error
	marks   []string
}

func newFakeDedup() *fakeDedup { return &fakeDedup{seen: map[string]bool{}} }

func (d *fakeDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	if d.seenErr != nil {
		return false, d.seenErr
	}
	return d.seen[eventID], nil
}

func (d *fakeDedup) Mark(ctx context.Context, eventID string) error {
	d.seen[eventID] = true
	d.marks = append(d.marks, eventID)
	return nil
}

func orderCreatedMsg(t *testing.T, userID, orderID int64) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(saga.OrderCreated{UserID: userID, OrderID: orderID})
	require.NoError(t, err)
	return kafkago.Message{
		Topic: saga.TopicOrderCreated,
		Value: b,
		Headers: []kafkago.Header{
			{Key: "x-event-id", Value: []byte("ev-1")},
			{Key: "x-event-type", Value: []byte(saga.EventOrderCreated)},
		},
	}
}

func newStage(store Store, validated, failed Publisher, dedup Deduper) *Stage {
	return &Stage{
		Store:             store,
		Validated:         validated,
		Failed:            failed,
		Dedup:             dedup,
		Log:               zerolog.Nop(),
		PublishRetryDelay: time.Millisecond,
	}
}

func closeWithItems(items ...LineItem) func(ctx context.Context, orderID, userID int64) (Result, error) {
	return func(ctx context.Context, orderID, userID int64) (Result, error) {
		return Result{Outcome: OutcomeValidated, CartID: 3, Items: items}, nil
	}
}

func TestHandleOrderCreated(t *testing.T) {
	store := &fakeCartStore{closeFn: closeWithItems(
		LineItem{CartID: 3, ItemID: 1, Quantity: 3, Price: 20},
		LineItem{CartID: 3, ItemID: 2, Quantity: 1, Price: 5.5},
	)}
	validated, failed := &fakePub{}, &fakePub{}
	dedup := newFakeDedup()
	s := newStage(store, validated, failed, dedup)

	require.NoError(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))

	require.Len(t, validated.messages, 1)
	assert.Empty(t, failed.messages)

	var out saga.ShoppingCartValidated
	require.NoError(t, json.Unmarshal(validated.messages[0].Value, &out))
	assert.Equal(t, int64(42), out.OrderID)
	assert.Equal(t, int64(7), out.UserID)
	require.Len(t, out.Items, 2)
	assert.Equal(t, saga.Item{ItemID: 1, Quantity: 3, Price: 20}, out.Items[0])
	assert.Equal(t, saga.Item{ItemID: 2, Quantity: 1, Price: 5.5}, out.Items[1])
	assert.Equal(t, "42", string(validated.messages[0].Key))
	assert.Equal(t, []string{"ev-1"}, dedup.marks, "marked once the event is out")
}

func TestHandleOrderCreatedNoOpenCart(t *testing.T) {
	store := &fakeCartStore{
		closeFn: func(ctx context.Context, orderID, userID int64) (Result, error) {
			return Result{Outcome: OutcomeNoCart}, nil
		},
	}
	validated, failed := &fakePub{}, &fakePub{}
	s := newStage(store, validated, failed, newFakeDedup())

	require.NoError(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))

	assert.Empty(t, validated.messages)
	require.Len(t, failed.messages, 1)

	var fail saga.OrderFailed
	require.NoError(t, json.Unmarshal(failed.messages[0].Value, &fail))
	assert.Equal(t, saga.ReasonNoCartFound, fail.ErrorMessage)
	assert.Equal(t, int64(42), fail.OrderID)
}

func TestHandleOrderCreatedDuplicateEvent(t *testing.T) {
	store := &fakeCartStore{closeFn: closeWithItems(LineItem{CartID: 3, ItemID: 1, Quantity: 1, Price: 1})}
	validated, failed := &fakePub{}, &fakePub{}
	s := newStage(store, validated, failed, newFakeDedup())

	m := orderCreatedMsg(t, 7, 42)
	require.NoError(t, s.HandleOrderCreated(context.Background(), m))
	require.NoError(t, s.HandleOrderCreated(context.Background(), m))

	assert.Equal(t, 1, store.closeCalls, "the cart closes once")
	assert.Len(t, validated.messages, 1)
	assert.Empty(t, failed.messages, "a redelivery must not turn into no_sc_found")
}

// Redelivery after the close committed but before the offset commit: the
// recorded outcome is replayed, the cart is not closed again.
func TestHandleOrderCreatedRedeliveryRepublishesValidated(t *testing.T) {
	store := &fakeCartStore{
		processed: map[int64]Result{
			42: {Outcome: OutcomeValidated, CartID: 3, Items: []LineItem{{CartID: 3, ItemID: 1, Quantity: 3, Price: 20}}},
		},
	}
	validated, failed := &fakePub{}, &fakePub{}
	s := newStage(store, validated, failed, newFakeDedup())

	require.NoError(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))

	assert.Zero(t, store.closeCalls)
	require.Len(t, validated.messages, 1)
	assert.Empty(t, failed.messages)

	var out saga.ShoppingCartValidated
	require.NoError(t, json.Unmarshal(validated.messages[0].Value, &out))
	assert.Equal(t, saga.Item{ItemID: 1, Quantity: 3, Price: 20}, out.Items[0])
}

func TestHandleOrderCreatedRedeliveryRepublishesFailure(t *testing.T) {
	store := &fakeCartStore{
		processed: map[int64]Result{42: {Outcome: OutcomeNoCart}},
	}
	validated, failed := &fakePub{}, &fakePub{}
	s := newStage(store, validated, failed, newFakeDedup())

	require.NoError(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))

	assert.Zero(t, store.closeCalls)
	assert.Empty(t, validated.messages)
	require.Len(t, failed.messages, 1)

	var fail saga.OrderFailed
	require.NoError(t, json.Unmarshal(failed.messages[0].Value, &fail))
	assert.Equal(t, saga.ReasonNoCartFound, fail.ErrorMessage)
}

// The fast-path mark must never exist without finished work, so it may
// only be written after the outcome event is out.
func TestHandleOrderCreatedNoMarkBeforePublish(t *testing.T) {
	store := &fakeCartStore{closeFn: closeWithItems(LineItem{CartID: 3, ItemID: 1, Quantity: 1, Price: 1})}
	broken := errors.New("broker gone")
	validated := &fakePub{errs: []error{broken, broken, broken, broken, broken, broken, broken, broken}}
	dedup := newFakeDedup()
	s := newStage(store, validated, &fakePub{}, dedup)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := s.HandleOrderCreated(ctx, orderCreatedMsg(t, 7, 42))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, dedup.marks, "no mark while the event is not on the broker")
}

func TestHandleOrderCreatedDedupDownStillProcesses(t *testing.T) {
	store := &fakeCartStore{closeFn: closeWithItems(LineItem{CartID: 3, ItemID: 1, Quantity: 1, Price: 1})}
	validated := &fakePub{}
	dedup := newFakeDedup()
	dedup.seenErr = errors.New("redis down")
	s := newStage(store, validated, &fakePub{}, dedup)

	require.NoError(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))
	assert.Equal(t, 1, store.closeCalls, "the record, not redis, is the source of truth")
	assert.Len(t, validated.messages, 1)
}

func TestHandleOrderCreatedStoreError(t *testing.T) {
	store := &fakeCartStore{
		closeFn: func(ctx context.Context, orderID, userID int64) (Result, error) {
			return Result{}, errors.New("db down")
		},
	}
	validated, failed := &fakePub{}, &fakePub{}
	dedup := newFakeDedup()
	s := newStage(store, validated, failed, dedup)

	require.Error(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))
	assert.Empty(t, validated.messages)
	assert.Empty(t, failed.messages)
	assert.Empty(t, dedup.marks)
}

func TestHandleOrderCreatedPublishRetries(t *testing.T) {
	store := &fakeCartStore{closeFn: closeWithItems(LineItem{CartID: 3, ItemID: 1, Quantity: 1, Price: 1})}
	validated := &fakePub{errs: []error{errors.New("broker hiccup"), errors.New("broker hiccup")}}
	s := newStage(store, validated, &fakePub{}, newFakeDedup())

	require.NoError(t, s.HandleOrderCreated(context.Background(), orderCreatedMsg(t, 7, 42)))
	assert.Equal(t, 3, validated.attempts)
	assert.Len(t, validated.messages, 1)
}

func TestHandleOrderCreatedMalformed(t *testing.T) {
	store := &fakeCartStore{}
	dedup := newFakeDedup()
	s := newStage(store, &fakePub{}, &fakePub{}, dedup)

	err := s.HandleOrderCreated(context.Background(), kafkago.Message{Value: []byte("{nope")})
	require.NoError(t, err)
	assert.Zero(t, store.closeCalls)
	assert.Empty(t, dedup.marks)
}
