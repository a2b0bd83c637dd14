package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peeves91/mcc-final-project/internal/saga"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrNotPending is the terminal-state guard: finalize/fail only ever
	// move an order out of pending, so a redelivered event against an
	// already-terminal order is rejected instead of corrupting it.
	ErrNotPending = errors.New("order is not pending")
)

type Repo struct{ DB *pgxpool.Pool }

// CreateOrder inserts a pending order and returns its generated id. The
// row is committed before the caller publishes OrderCreated.
func (r *Repo) CreateOrder(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(user_id, status) VALUES ($1, $2)
		RETURNING id`, userID, StatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return id, nil
}

// Finalize inserts the order's line items and moves it to purchased with
// the computed total, all in one transaction guarded by the pending
// check. Keyed by (order_id, user_id) to guard against cross-user id
// collisions.
func (r *Repo) Finalize(ctx context.Context, orderID, userID int64, items []saga.Item) (float64, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	err = tx.QueryRow(ctx, `
		SELECT status FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE`,
		orderID, userID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrOrderNotFound
	}
	if err != nil {
		return 0, err
	}
	if status != StatusPending {
		return 0, ErrNotPending
	}

	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, item_id, quantity, price)
			VALUES ($1, $2, $3, $4)`,
			orderID, it.ItemID, it.Quantity, it.Price); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$1, total_price=$2, updated_at=now()
		WHERE id=$3 AND user_id=$4`,
		StatusPurchased, total, orderID, userID); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// Fail records a terminal failure reason as the order status. The
// pending condition in the WHERE clause is the idempotency guard.
func (r *Repo) Fail(ctx context.Context, orderID int64, reason Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$1, updated_at=now()
		WHERE id=$2 AND status=$3`,
		reason, orderID, StatusPending)
	if err != nil {
		return fmt.Errorf("fail order %d: %w", orderID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, COALESCE(total_price, 0), created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) ListLineItems(ctx context.Context, orderID int64) ([]OrderLineItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, item_id, quantity, price
		FROM order_items WHERE order_id=$1 ORDER BY item_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLineItem
	for rows.Next() {
		var li OrderLineItem
		if err := rows.Scan(&li.OrderID, &li.ItemID, &li.Quantity, &li.Price); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// OrdersContainingItem lists purchased orders that include the item,
// optionally restricted to one user (userID 0 means all users).
func (r *Repo) OrdersContainingItem(ctx context.Context, itemID, userID int64) ([]Order, error) {
	q := `
		SELECT DISTINCT o.id, o.user_id, o.status, COALESCE(o.total_price, 0), o.created_at, o.updated_at
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.item_id=$1 AND o.status=$2`
	args := []any{itemID, StatusPurchased}
	if userID != 0 {
		q += ` AND o.user_id=$3`
		args = append(args, userID)
	}
	q += ` ORDER BY o.id`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
