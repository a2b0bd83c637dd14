package saga

import "strconv"

const (
	TopicOrderCreated   = "order.created"
	TopicCartValidated  = "order.cart.validated"
	TopicItemsValidated = "order.items.validated"
	TopicOrderFailed    = "order.failed"
)

// PartitionKey keys every event of an order to the same partition so the
// stages see one order's events in publish order.
func PartitionKey(orderID int64) []byte {
	return []byte(strconv.FormatInt(orderID, 10))
}
