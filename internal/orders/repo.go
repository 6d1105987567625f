package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres ledger store.
type PgStore struct {
	DB          *pgxpool.Pool
	LockTimeout time.Duration
}

func (s *PgStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return dbErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.LockTimeout > 0 {
		ms := fmt.Sprintf("%dms", s.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, ms); err != nil {
			return dbErr("set lock_timeout", err)
		}
	}

	if err := fn(&pgQueries{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return dbErr("commit", err)
	}
	return nil
}

// dbErr wraps a driver error, marking lock timeouts, deadlocks and
// serialization failures as retryable conflicts.
func dbErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNoRows
	case postgres.IsConflict(err):
		return &Error{Kind: KindConflict, Msg: "store busy, retry the checkout", Err: err}
	case postgres.IsUniqueViolation(err):
		return &Error{Kind: KindConflict, Msg: op + ": duplicate submission", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

type pgQueries struct{ tx pgx.Tx }

func (q *pgQueries) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := q.tx.QueryRow(ctx, `
		SELECT id, name, base_price, category_id, image_url, is_active
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.BasePrice, &p.CategoryID, &p.ImageURL, &p.Active)
	if err != nil {
		return Product{}, dbErr("get product", err)
	}
	return p, nil
}

func (q *pgQueries) ListVariants(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := q.tx.Query(ctx, `
		SELECT id, product_id, size, price, is_active
		FROM product_variants WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, dbErr("list variants", err)
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Price, &v.Active); err != nil {
			return nil, dbErr("scan variant", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (q *pgQueries) GetVariant(ctx context.Context, id int64) (Variant, error) {
	var v Variant
	err := q.tx.QueryRow(ctx, `
		SELECT id, product_id, size, price, is_active
		FROM product_variants WHERE id=$1`, id).
		Scan(&v.ID, &v.ProductID, &v.Size, &v.Price, &v.Active)
	if err != nil {
		return Variant{}, dbErr("get variant", err)
	}
	return v, nil
}

func (q *pgQueries) VariantRecipe(ctx context.Context, variantID int64) ([]RecipeItem, error) {
	return q.recipe(ctx, `
		SELECT ingredient_id, quantity_needed FROM recipe_items
		WHERE product_variant_id=$1 ORDER BY ingredient_id`, variantID)
}

func (q *pgQueries) ProductRecipe(ctx context.Context, productID int64) ([]RecipeItem, error) {
	return q.recipe(ctx, `
		SELECT ingredient_id, quantity_needed FROM product_ingredients
		WHERE product_id=$1 ORDER BY ingredient_id`, productID)
}

func (q *pgQueries) recipe(ctx context.Context, sql string, id int64) ([]RecipeItem, error) {
	rows, err := q.tx.Query(ctx, sql, id)
	if err != nil {
		return nil, dbErr("load recipe", err)
	}
	defer rows.Close()

	var out []RecipeItem
	for rows.Next() {
		var it RecipeItem
		if err := rows.Scan(&it.IngredientID, &it.Quantity); err != nil {
			return nil, dbErr("scan recipe", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *pgQueries) LockCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := q.tx.QueryRow(ctx, `
		SELECT id, name, email, loyalty_points
		FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.LoyaltyPoints)
	if err != nil {
		return Customer{}, dbErr("lock customer", err)
	}
	return c, nil
}

func (q *pgQueries) SetLoyaltyPoints(ctx context.Context, customerID int64, points int) error {
	_, err := q.tx.Exec(ctx, `UPDATE customers SET loyalty_points=$2 WHERE id=$1`, customerID, points)
	if err != nil {
		return dbErr("set loyalty points", err)
	}
	return nil
}

func (q *pgQueries) InsertOrder(ctx context.Context, o *Order) error {
	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}
	err := q.tx.QueryRow(ctx, `
		INSERT INTO orders(created_at, user_id, customer_id, subtotal, tax_amount, discount, total,
		                   earned_points, payment_method, cash_amount, card_amount, status, idempotency_key)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id`,
		o.CreatedAt, o.UserID, o.CustomerID, o.Subtotal, o.TaxAmount, o.Discount, o.Total,
		o.EarnedPoints, string(o.PaymentMethod), o.CashAmount, o.CardAmount, string(o.Status), key,
	).Scan(&o.ID)
	if err != nil {
		return dbErr("insert order", err)
	}
	return nil
}

func (q *pgQueries) InsertOrderLines(ctx context.Context, orderID int64, lines []OrderLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		var notes *string
		if l.Notes != "" {
			n := l.Notes
			notes = &n
		}
		batch.Queue(`
			INSERT INTO order_items(order_id, product_id, variant_id, quantity, unit_price, notes)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			orderID, l.ProductID, l.VariantID, l.Quantity, l.UnitPrice, notes)
	}
	if err := q.tx.SendBatch(ctx, batch).Close(); err != nil {
		return dbErr("insert order items", err)
	}
	return nil
}

func (q *pgQueries) OrderByIdempotencyKey(ctx context.Context, key string) (Order, error) {
	o, err := scanOrder(q.tx.QueryRow(ctx, orderColumns+` WHERE idempotency_key=$1`, key))
	if err != nil {
		return Order{}, dbErr("order by idempotency key", err)
	}
	return o, nil
}

const orderColumns = `
	SELECT id, created_at, user_id, customer_id, subtotal, tax_amount, discount, total,
	       earned_points, payment_method, cash_amount, card_amount, status
	FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o              Order
		method, status string
	)
	err := row.Scan(&o.ID, &o.CreatedAt, &o.UserID, &o.CustomerID, &o.Subtotal, &o.TaxAmount,
		&o.Discount, &o.Total, &o.EarnedPoints, &method, &o.CashAmount, &o.CardAmount, &status)
	o.PaymentMethod = PaymentMethod(method)
	o.Status = Status(status)
	return o, err
}
