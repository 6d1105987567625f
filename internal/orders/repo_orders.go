package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo serves order reads and post-checkout status changes.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, orderColumns+` WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, newErr(KindNotFound, "order %d not found", id)
		}
		return Order{}, dbErr("get order", err)
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	o.Lines = lines[id]
	return o, nil
}

// GetStatus reads only the status column, the fallback of the status cache.
func (r *Repo) GetStatus(ctx context.Context, id int64) (Status, error) {
	var s string
	if err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, id).Scan(&s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", newErr(KindNotFound, "order %d not found", id)
		}
		return "", dbErr("get order status", err)
	}
	return Status(s), nil
}

// ListPending returns the barista queue, oldest first.
func (r *Repo) ListPending(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, orderColumns+` WHERE status='pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, dbErr("list pending", err)
	}
	defer rows.Close()

	var (
		out []Order
		ids []int64
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, dbErr("scan order", err)
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (r *Repo) lines(ctx context.Context, orderIDs []int64) (map[int64][]OrderLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, variant_id, quantity, unit_price, COALESCE(notes, '')
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, dbErr("list order items", err)
	}
	defer rows.Close()

	out := map[int64][]OrderLine{}
	for rows.Next() {
		var (
			orderID int64
			l       OrderLine
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.VariantID, &l.Quantity, &l.UnitPrice, &l.Notes); err != nil {
			return nil, dbErr("scan order item", err)
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order along pending -> completed|cancelled and
// returns the previous status.
func (r *Repo) UpdateStatus(ctx context.Context, id int64, to Status) (Status, error) {
	if !to.Valid() {
		return "", newErr(KindValidation, "unknown status %q", to)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", dbErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&from); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", newErr(KindNotFound, "order %d not found", id)
		}
		return "", dbErr("lock order", err)
	}
	if !CanTransition(Status(from), to) {
		return Status(from), newErr(KindValidation, "cannot move order %d from %s to %s", id, from, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, string(to)); err != nil {
		return "", dbErr("update status", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", dbErr("commit", err)
	}
	return Status(from), nil
}
