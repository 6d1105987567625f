package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

// Queries is the transactional view of the ledger store seen by one
// checkout. Lock* methods hold an exclusive row lock until the enclosing
// transaction ends. Lookups of missing rows return ErrNoRows.
type Queries interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListVariants(ctx context.Context, productID int64) ([]Variant, error)
	GetVariant(ctx context.Context, id int64) (Variant, error)
	VariantRecipe(ctx context.Context, variantID int64) ([]RecipeItem, error)
	ProductRecipe(ctx context.Context, productID int64) ([]RecipeItem, error)

	LockCustomer(ctx context.Context, id int64) (Customer, error)
	LockIngredient(ctx context.Context, id int64) (Ingredient, error)

	DecrementStock(ctx context.Context, ingredientID int64, qty decimal.Decimal) error
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderLines(ctx context.Context, orderID int64, lines []OrderLine) error
	SetLoyaltyPoints(ctx context.Context, customerID int64, points int) error
	OrderByIdempotencyKey(ctx context.Context, key string) (Order, error)
}

// Store runs fn inside one transaction: committed when fn returns nil,
// rolled back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// TaxRateSource supplies the tax rate applied to a checkout.
type TaxRateSource interface {
	TaxRate(ctx context.Context) (decimal.Decimal, error)
}
