package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peeves91/mcc-final-project/internal/saga"
)

var ErrItemNotFound = errors.New("item not found")

type Item struct {
	ID              int64
	Name            string
	Price           float64
	QuantityInStock int
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ItemByName(ctx context.Context, name string) (Item, error) {
	return r.item(ctx, `SELECT id, product_name, price, quantity_in_stock FROM items WHERE product_name=$1`, name)
}

func (r *Repo) ItemByID(ctx context.Context, id int64) (Item, error) {
	return r.item(ctx, `SELECT id, product_name, price, quantity_in_stock FROM items WHERE id=$1`, id)
}

func (r *Repo) item(ctx context.Context, query string, arg any) (Item, error) {
	var it Item
	err := r.DB.QueryRow(ctx, query, arg).Scan(&it.ID, &it.Name, &it.Price, &it.QuantityInStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

// AlreadyReserved reports whether reservation rows exist for the order,
// i.e. a previous delivery already applied the decrement.
func (r *Repo) AlreadyReserved(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM reservations WHERE order_id=$1)`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reservations for order %d: %w", orderID, err)
	}
	return exists, nil
}

// ReserveAll decrements stock for every item of the order in one
// transaction, or commits nothing. The decrement is conditional
// (quantity_in_stock >= wanted) so the check and the write are one
// atomic statement: two concurrent reservations can never both pass a
// stale check and overdraw. Reservation rows in the same transaction
// make a redelivered event detectable.
func (r *Repo) ReserveAll(ctx context.Context, orderID int64, items []saga.Item) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE items SET quantity_in_stock = quantity_in_stock - $2
			WHERE id=$1 AND quantity_in_stock >= $2`, it.ItemID, it.Quantity)
		if err != nil {
			return false, err
		}
		if ct.RowsAffected() == 0 {
			// Shortage (or unknown item): the deferred rollback undoes
			// every decrement so far. All-or-nothing.
			return false, nil
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservations(order_id, item_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (order_id, item_id) DO NOTHING`,
			orderID, it.ItemID, it.Quantity); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
