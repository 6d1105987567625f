package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

// LockIngredient takes the row lock on an ingredient's stock and returns the
// value current at lock time.
func (q *pgQueries) LockIngredient(ctx context.Context, id int64) (Ingredient, error) {
	var (
		ing  Ingredient
		unit string
	)
	err := q.tx.QueryRow(ctx, `
		SELECT id, name, unit, stock_quantity, alert_threshold
		FROM ingredients WHERE id=$1 FOR UPDATE`, id).
		Scan(&ing.ID, &ing.Name, &unit, &ing.Stock, &ing.AlertThreshold)
	if err != nil {
		return Ingredient{}, dbErr("lock ingredient", err)
	}
	ing.Unit = Unit(unit)
	return ing, nil
}

// DecrementStock relies on the lock taken by LockIngredient; the guard in
// the WHERE clause and the CHECK constraint keep stock non-negative anyway.
func (q *pgQueries) DecrementStock(ctx context.Context, ingredientID int64, qty decimal.Decimal) error {
	ct, err := q.tx.Exec(ctx, `
		UPDATE ingredients SET stock_quantity = stock_quantity - $2
		WHERE id=$1 AND stock_quantity >= $2`, ingredientID, qty)
	if err != nil {
		return dbErr("decrement stock", err)
	}
	if ct.RowsAffected() != 1 {
		return newErr(KindInsufficientStock, "stock of ingredient %d changed under lock", ingredientID)
	}
	return nil
}
