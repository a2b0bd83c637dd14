package saga

// Event type names, carried in the x-event-type header.
const (
	EventOrderCreated          = "OrderCreated"
	EventShoppingCartValidated = "ShoppingCartValidated"
	EventOrderItemsValidated   = "OrderItemsValidated"
	EventOrderFailed           = "OrderFailed"
)

// Failure reasons. These strings double as terminal order statuses.
const (
	ReasonNoCartFound      = "no_sc_found"
	ReasonNotEnoughInStock = "not_enough_in_stock"
)

// Item is one cart line carried through the pipeline. The price is the
// one captured when the item was added to the cart; the inventory stage
// echoes it unchanged so later catalog price changes never touch an
// order that is already in flight.
type Item struct {
	ItemID   int64   `json:"item_id"`
	Quantity int     `json:"item_quantity"`
	Price    float64 `json:"item_price"`
}

type OrderCreated struct {
	UserID  int64 `json:"user_id"`
	OrderID int64 `json:"order_id"`
}

type ShoppingCartValidated struct {
	UserID  int64  `json:"user_id"`
	OrderID int64  `json:"order_id"`
	Items   []Item `json:"items"`
}

type OrderItemsValidated struct {
	UserID  int64  `json:"user_id"`
	OrderID int64  `json:"order_id"`
	Items   []Item `json:"items"`
}

type OrderFailed struct {
	UserID       int64  `json:"user_id"`
	OrderID      int64  `json:"order_id"`
	ErrorMessage string `json:"error_message"`
}
