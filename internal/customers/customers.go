package customers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Patch is a create or partial-update request. Nil fields are left as they
// are on update.
type Patch struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	LoyaltyPoints *int    `json:"loyaltyPoints"`
}

func invalid(format string, args ...any) error {
	return &orders.Error{Kind: orders.KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Merge applies p onto cur and validates the result.
func Merge(cur orders.Customer, p Patch) (orders.Customer, error) {
	if p.Name != nil {
		cur.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		e := strings.TrimSpace(*p.Email)
		if e == "" {
			cur.Email = nil
		} else {
			cur.Email = &e
		}
	}
	if p.LoyaltyPoints != nil {
		cur.LoyaltyPoints = *p.LoyaltyPoints
	}

	if len([]rune(cur.Name)) < 2 {
		return cur, invalid("name must have at least 2 characters")
	}
	if cur.Email != nil {
		if _, err := mail.ParseAddress(*cur.Email); err != nil {
			return cur, invalid("email %q is not valid", *cur.Email)
		}
	}
	if cur.LoyaltyPoints < 0 {
		return cur, invalid("loyalty points must not be negative")
	}
	return cur, nil
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) List(ctx context.Context) ([]orders.Customer, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, email, loyalty_points FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []orders.Customer
	for rows.Next() {
		var c orders.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.LoyaltyPoints); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) Create(ctx context.Context, p Patch) (orders.Customer, error) {
	p.LoyaltyPoints = nil // new customers start at zero
	c, err := Merge(orders.Customer{}, p)
	if err != nil {
		return c, err
	}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO customers(name, email) VALUES ($1, $2)
		RETURNING id`, c.Name, c.Email).Scan(&c.ID)
	if err != nil {
		return c, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

// Update locks the row so it cannot interleave with a checkout settling
// the same customer's points.
func (r *Repo) Update(ctx context.Context, id int64, p Patch) (orders.Customer, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Customer{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur orders.Customer
	err = tx.QueryRow(ctx, `
		SELECT id, name, email, loyalty_points FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&cur.ID, &cur.Name, &cur.Email, &cur.LoyaltyPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Customer{}, &orders.Error{Kind: orders.KindNotFound, Msg: fmt.Sprintf("customer %d not found", id)}
	}
	if err != nil {
		return orders.Customer{}, fmt.Errorf("lock customer: %w", err)
	}

	next, err := Merge(cur, p)
	if err != nil {
		return next, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE customers SET name=$2, email=$3, loyalty_points=$4 WHERE id=$1`,
		id, next.Name, next.Email, next.LoyaltyPoints); err != nil {
		return next, fmt.Errorf("update customer: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return next, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}
