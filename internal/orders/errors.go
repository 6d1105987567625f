package orders

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindNotFound            Kind = "not_found"
	KindNoRecipeDefined     Kind = "no_recipe_defined"
	KindNoVariantAvailable  Kind = "no_variant_available"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindMissingSplitAmounts Kind = "missing_split_amounts"
	KindSplitAmountMismatch Kind = "split_amount_mismatch"
	KindConflict            Kind = "conflict"
	KindUnexpected          Kind = "unexpected"
)

// Error is a checkout failure of a known kind. Two errors match under
// errors.Is when their kinds are equal, so the sentinels below can be used
// as targets.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNoRecipeDefined     = &Error{Kind: KindNoRecipeDefined}
	ErrNoVariantAvailable  = &Error{Kind: KindNoVariantAvailable}
	ErrInsufficientStock   = &Error{Kind: KindInsufficientStock}
	ErrMissingSplitAmounts = &Error{Kind: KindMissingSplitAmounts}
	ErrSplitAmountMismatch = &Error{Kind: KindSplitAmountMismatch}
	ErrConflict            = &Error{Kind: KindConflict}
)

// ErrNoRows is returned by Queries when the requested row does not exist.
var ErrNoRows = errors.New("no rows")

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the first ingredient whose stock cannot
// cover the order.
type InsufficientStockError struct {
	IngredientID int64
	Ingredient   string
	Unit         Unit
	Required     decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): required %s, available %s",
		e.Ingredient, e.Unit, e.Required.String(), e.Available.String())
}

func (e *InsufficientStockError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindInsufficientStock
}

// KindOf classifies err. Anything unrecognised is KindUnexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *InsufficientStockError
	if errors.As(err, &se) {
		return KindInsufficientStock
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
