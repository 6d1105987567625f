package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/ariefcatur/go-cafe-pos/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Patch creates or partially updates an ingredient.
type Patch struct {
	Name           *string          `json:"name"`
	Unit           *orders.Unit     `json:"unit"`
	Stock          *decimal.Decimal `json:"stockQuantity"`
	AlertThreshold *decimal.Decimal `json:"alertThreshold"`
}

func invalid(format string, args ...any) error {
	return &orders.Error{Kind: orders.KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Merge applies p onto cur and validates the result.
func Merge(cur orders.Ingredient, p Patch) (orders.Ingredient, error) {
	if p.Name != nil {
		cur.Name = strings.TrimSpace(*p.Name)
	}
	if p.Unit != nil {
		cur.Unit = *p.Unit
	}
	if p.Stock != nil {
		cur.Stock = *p.Stock
	}
	if p.AlertThreshold != nil {
		cur.AlertThreshold = *p.AlertThreshold
	}

	switch {
	case len([]rune(cur.Name)) < 2:
		return cur, invalid("name must have at least 2 characters")
	case !cur.Unit.Valid():
		return cur, invalid("unit %q must be one of g, ml, unit", cur.Unit)
	case cur.Stock.IsNegative():
		return cur, invalid("stock quantity must not be negative")
	case cur.AlertThreshold.IsNegative():
		return cur, invalid("alert threshold must not be negative")
	}
	return cur, nil
}

type Repo struct{ DB *pgxpool.Pool }

const ingredientColumns = `SELECT id, name, unit, stock_quantity, alert_threshold FROM ingredients`

func scanIngredients(rows pgx.Rows) ([]orders.Ingredient, error) {
	defer rows.Close()
	var out []orders.Ingredient
	for rows.Next() {
		var (
			i    orders.Ingredient
			unit string
		)
		if err := rows.Scan(&i.ID, &i.Name, &unit, &i.Stock, &i.AlertThreshold); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		i.Unit = orders.Unit(unit)
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *Repo) List(ctx context.Context) ([]orders.Ingredient, error) {
	rows, err := r.DB.Query(ctx, ingredientColumns+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return scanIngredients(rows)
}

// LowStock lists ingredients at or under their alert threshold, scarcest
// first.
func (r *Repo) LowStock(ctx context.Context) ([]orders.Ingredient, error) {
	rows, err := r.DB.Query(ctx, ingredientColumns+`
		WHERE stock_quantity <= alert_threshold
		ORDER BY stock_quantity - alert_threshold, name`)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return scanIngredients(rows)
}

func (r *Repo) Create(ctx context.Context, p Patch) (orders.Ingredient, error) {
	if p.Unit == nil || p.Stock == nil {
		return orders.Ingredient{}, invalid("name, unit and stockQuantity are required")
	}
	ing, err := Merge(orders.Ingredient{}, p)
	if err != nil {
		return ing, err
	}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO ingredients(name, unit, stock_quantity, alert_threshold)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		ing.Name, string(ing.Unit), ing.Stock, ing.AlertThreshold).Scan(&ing.ID)
	if err != nil {
		return ing, fmt.Errorf("insert ingredient: %w", err)
	}
	return ing, nil
}

// Update takes the same row lock as a checkout, so a restock never
// overwrites a concurrent decrement.
func (r *Repo) Update(ctx context.Context, id int64, p Patch) (orders.Ingredient, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Ingredient{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		cur  orders.Ingredient
		unit string
	)
	err = tx.QueryRow(ctx, ingredientColumns+` WHERE id=$1 FOR UPDATE`, id).
		Scan(&cur.ID, &cur.Name, &unit, &cur.Stock, &cur.AlertThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Ingredient{}, &orders.Error{Kind: orders.KindNotFound, Msg: fmt.Sprintf("ingredient %d not found", id)}
	}
	if err != nil {
		return orders.Ingredient{}, fmt.Errorf("lock ingredient: %w", err)
	}
	cur.Unit = orders.Unit(unit)

	next, err := Merge(cur, p)
	if err != nil {
		return next, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE ingredients SET name=$2, unit=$3, stock_quantity=$4, alert_threshold=$5 WHERE id=$1`,
		id, next.Name, string(next.Unit), next.Stock, next.AlertThreshold); err != nil {
		return next, fmt.Errorf("update ingredient: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return next, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM ingredients WHERE id=$1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return &orders.Error{Kind: orders.KindConflict, Msg: fmt.Sprintf("ingredient %d is used by a recipe", id), Err: err}
	}
	if err != nil {
		return fmt.Errorf("delete ingredient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &orders.Error{Kind: orders.KindNotFound, Msg: fmt.Sprintf("ingredient %d not found", id)}
	}
	return nil
}
