package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Address   string
	Phone     string
	UpdatedAt time.Time
}

// NewUser is the creation payload; the credit card lands in the profile
// row and is never read back out.
type NewUser struct {
	Email      string
	FirstName  string
	LastName   string
	Phone      string
	Address    string
	CreditCard string
}

type Repo struct{ DB *pgxpool.Pool }

// Create inserts the user and its profile row in one transaction.
func (r *Repo) Create(ctx context.Context, nu NewUser) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users(email, first_name, last_name)
		VALUES ($1, $2, $3) RETURNING id`,
		nu.Email, nu.FirstName, nu.LastName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_profiles(user_id, address, phone, credit_card)
		VALUES ($1, $2, $3, $4)`,
		id, nu.Address, nu.Phone, nu.CreditCard); err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) ByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, `u.email=$1`, email)
}

func (r *Repo) ByID(ctx context.Context, id int64) (User, error) {
	return r.one(ctx, `u.id=$1`, id)
}

func (r *Repo) ByLastName(ctx context.Context, lastName string) ([]User, error) {
	rows, err := r.DB.Query(ctx, baseSelect+` WHERE u.last_name=$1 ORDER BY u.id`, lastName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const baseSelect = `
	SELECT u.id, u.email, u.first_name, u.last_name, p.address, p.phone, u.updated_at
	FROM users u JOIN user_profiles p ON p.user_id = u.id`

func (r *Repo) one(ctx context.Context, cond string, arg any) (User, error) {
	rows, err := r.DB.Query(ctx, baseSelect+` WHERE `+cond, arg)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return User{}, err
		}
		return User{}, ErrUserNotFound
	}
	return scanUser(rows)
}

func scanUser(rows pgx.Rows) (User, error) {
	var u User
	err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Address, &u.Phone, &u.UpdatedAt)
	return u, err
}
