package orders

import "time"

type Order struct {
	ID         int64
	UserID     int64
	Status     Status
	TotalPrice float64 // set once, when the order is finalized
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderLineItem struct {
	OrderID  int64
	ItemID   int64
	Quantity int
	Price    float64 // unit price at reservation time
}
