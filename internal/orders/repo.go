package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres-backed order store. Items are kept as a JSONB
// snapshot on the order row.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, user_id, items, total::text, status, payment_method, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, in NewOrder) (Order, error) {
	if err := in.Validate(); err != nil {
		return Order{}, err
	}
	items, err := json.Marshal(in.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode items: %w", err)
	}

	now := time.Now().UTC()
	o := Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Items:         append([]Item(nil), in.Items...),
		Total:         in.Total(),
		Status:        StatusPending,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, items, total, status, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $7)
	`, o.ID, o.UserID, items, o.Total.String(), string(o.Status), o.PaymentMethod, now)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+`
	                                FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus locks the row, checks the transition and writes it in one tx.
func (r *Repo) UpdateStatus(ctx context.Context, id string, to Status) (Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, string(to), now); err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	o.Status = to
	o.UpdatedAt = now
	return o, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		items  []byte
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &items, &total, &status, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return Order{}, fmt.Errorf("decode total of %s: %w", o.ID, err)
	}
	o.Total = d
	o.Status = Status(status)
	return o, nil
}
