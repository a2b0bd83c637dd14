package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
)

var ErrNoOpenCart = errors.New("no open cart for user")

// Outcomes recorded in processed_orders when an OrderCreated event is
// handled. The row is the durable idempotency record: it commits in the
// same transaction as the cart close, so a redelivery can always replay
// the recorded outcome instead of re-deciding it.
const (
	OutcomeValidated = "validated"
	OutcomeNoCart    = "no_sc_found"
)

// Result is what handling an OrderCreated event concluded. Items are
// populated only for OutcomeValidated.
type Result struct {
	Outcome string
	CartID  int64
	Items   []LineItem
}

type Cart struct {
	ID        int64
	UserID    int64
	Status    string
	CreatedAt time.Time
}

type LineItem struct {
	CartID   int64
	ItemID   int64
	Quantity int
	Price    float64 // unit price captured at add time
}

type Repo struct{ DB *pgxpool.Pool }

// GetOrCreate returns the user's open cart id, creating one if needed.
// The partial unique index on (user_id) WHERE status='open' keeps the
// at-most-one-open-cart invariant even when two requests race; the loser
// of the race re-reads the winner's row.
func (r *Repo) GetOrCreate(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `
		SELECT id FROM shopping_carts WHERE user_id=$1 AND status=$2`,
		userID, StatusOpen).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	err = r.DB.QueryRow(ctx, `
		INSERT INTO shopping_carts(user_id, status) VALUES ($1, $2)
		ON CONFLICT (user_id) WHERE status='open' DO NOTHING
		RETURNING id`, userID, StatusOpen).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race; the open cart now exists.
		err = r.DB.QueryRow(ctx, `
			SELECT id FROM shopping_carts WHERE user_id=$1 AND status=$2`,
			userID, StatusOpen).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("get or create cart: %w", err)
	}
	return id, nil
}

// AddItem appends a line item to the user's open cart, capturing the
// unit price passed by the caller.
func (r *Repo) AddItem(ctx context.Context, userID, itemID int64, quantity int, price float64) error {
	var cartID int64
	err := r.DB.QueryRow(ctx, `
		SELECT id FROM shopping_carts WHERE user_id=$1 AND status=$2`,
		userID, StatusOpen).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoOpenCart
	}
	if err != nil {
		return err
	}

	_, err = r.DB.Exec(ctx, `
		INSERT INTO shopping_cart_items(cart_id, item_id, quantity, price)
		VALUES ($1, $2, $3, $4)`, cartID, itemID, quantity, price)
	if err != nil {
		return fmt.Errorf("add item to cart %d: %w", cartID, err)
	}
	return nil
}

// Items lists the line items of the user's open cart.
func (r *Repo) Items(ctx context.Context, userID int64) ([]LineItem, error) {
	var cartID int64
	err := r.DB.QueryRow(ctx, `
		SELECT id FROM shopping_carts WHERE user_id=$1 AND status=$2`,
		userID, StatusOpen).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoOpenCart
	}
	if err != nil {
		return nil, err
	}
	return r.listItems(ctx, r.DB, cartID)
}

// Cancel moves the user's open cart to cancelled. Only meaningful before
// a purchase is initiated; once OrderCreated is out there is nothing to
// cancel here.
func (r *Repo) Cancel(ctx context.Context, userID int64) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE shopping_carts SET status=$1 WHERE user_id=$2 AND status=$3`,
		StatusCancelled, userID, StatusOpen)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoOpenCart
	}
	return nil
}

// ProcessedOrder looks up the recorded outcome of a previously handled
// OrderCreated event. For a validated outcome the closed cart's line
// items are re-read so the caller can republish the same event.
func (r *Repo) ProcessedOrder(ctx context.Context, orderID int64) (Result, bool, error) {
	var res Result
	err := r.DB.QueryRow(ctx, `
		SELECT outcome, COALESCE(cart_id, 0) FROM processed_orders WHERE order_id=$1`,
		orderID).Scan(&res.Outcome, &res.CartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("lookup processed order %d: %w", orderID, err)
	}

	if res.Outcome == OutcomeValidated {
		res.Items, err = r.listItems(ctx, r.DB, res.CartID)
		if err != nil {
			return Result{}, false, err
		}
	}
	return res, true, nil
}

// CloseForOrder atomically closes the user's open cart for the order and
// returns its line items, or records that there was no cart to close.
// The outcome row commits in the same transaction as the status flip, so
// either both exist or neither does; a crash at any point leaves a state
// the redelivered event can resume from. The FOR UPDATE lock holds the
// cart row against a concurrent cancellation until the commit.
func (r *Repo) CloseForOrder(ctx context.Context, orderID, userID int64) (Result, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cartID int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM shopping_carts WHERE user_id=$1 AND status=$2 FOR UPDATE`,
		userID, StatusOpen).Scan(&cartID)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO processed_orders(order_id, outcome) VALUES ($1, $2)
			ON CONFLICT (order_id) DO NOTHING`, orderID, OutcomeNoCart); err != nil {
			return Result{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeNoCart}, nil
	}
	if err != nil {
		return Result{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE shopping_carts SET status=$1 WHERE id=$2`,
		StatusClosed, cartID); err != nil {
		return Result{}, err
	}

	// Line items stay attached to the closed cart as a historical record.
	items, err := r.listItems(ctx, tx, cartID)
	if err != nil {
		return Result{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO processed_orders(order_id, cart_id, outcome) VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO NOTHING`, orderID, cartID, OutcomeValidated); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeValidated, CartID: cartID, Items: items}, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repo) listItems(ctx context.Context, q querier, cartID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT cart_id, item_id, quantity, price
		FROM shopping_cart_items WHERE cart_id=$1 ORDER BY id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineItem
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.CartID, &li.ItemID, &li.Quantity, &li.Price); err != nil {
			return nil, err
		}
		out = append(out, li)
	}
	return out, rows.Err()
}
