package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const KeyTaxRate = "tax_rate"

// Validate checks values for keys with a known meaning. Other keys are free
// text.
func Validate(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return &orders.Error{Kind: orders.KindValidation, Msg: "setting key is required"}
	}
	if key == KeyTaxRate {
		if _, err := parseRate(value); err != nil {
			return &orders.Error{Kind: orders.KindValidation, Msg: err.Error()}
		}
	}
	return nil
}

func parseRate(s string) (decimal.Decimal, error) {
	r, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("tax_rate %q is not a number", s)
	}
	if r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("tax_rate %s must be between 0 and 1", r)
	}
	return r, nil
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.DB.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

// Put upserts all values in one transaction after validating each.
func (r *Repo) Put(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		if err := Validate(k, v); err != nil {
			return err
		}
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for k, v := range values {
		if _, err := tx.Exec(ctx, `
			INSERT INTO settings(key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, k, strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("put setting %s: %w", k, err)
		}
	}
	return tx.Commit(ctx)
}

type getter interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// TaxRates reads settings.tax_rate for every checkout and falls back to
// Default when the row is absent.
type TaxRates struct {
	Store   getter
	Default decimal.Decimal
}

func (t TaxRates) TaxRate(ctx context.Context) (decimal.Decimal, error) {
	v, ok, err := t.Store.Get(ctx, KeyTaxRate)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return t.Default, nil
	}
	r, err := parseRate(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stored %w", err)
	}
	return r, nil
}
