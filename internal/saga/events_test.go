package saga

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The field names below are the wire contract between the services;
// renaming a tag here is a breaking change for every consumer.
func TestEventWireFormat(t *testing.T) {
	ev := ShoppingCartValidated{
		UserID:  7,
		OrderID: 42,
		Items:   []Item{{ItemID: 1, Quantity: 3, Price: 19.99}},
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"user_id": 7,
		"order_id": 42,
		"items": [{"item_id": 1, "item_quantity": 3, "item_price": 19.99}]
	}`, string(b))

	fb, err := json.Marshal(OrderFailed{UserID: 7, OrderID: 42, ErrorMessage: ReasonNoCartFound})
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id": 7, "order_id": 42, "error_message": "no_sc_found"}`, string(fb))
}

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, []byte("42"), PartitionKey(42))
	assert.Equal(t, PartitionKey(42), PartitionKey(42), "one order, one partition")
}
