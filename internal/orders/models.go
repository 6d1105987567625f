package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeSmall  Size = "S"
	SizeMedium Size = "M"
	SizeLarge  Size = "L"
)

func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

type Unit string

const (
	UnitGram  Unit = "g"
	UnitMl    Unit = "ml"
	UnitCount Unit = "unit"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitGram, UnitMl, UnitCount:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentMixed PaymentMethod = "mixed"
)

type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	BasePrice  decimal.Decimal `json:"basePrice"`
	CategoryID *int64          `json:"categoryId,omitempty"`
	ImageURL   *string         `json:"imageUrl,omitempty"`
	Active     bool            `json:"active"`
	Variants   []Variant       `json:"variants,omitempty"`
}

type Variant struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"productId"`
	Size      Size            `json:"size"`
	Price     decimal.Decimal `json:"price"`
	Active    bool            `json:"active"`
}

// RecipeItem is the quantity of one ingredient consumed per unit sold.
type RecipeItem struct {
	IngredientID int64           `json:"ingredientId"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type Ingredient struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Unit           Unit            `json:"unit"`
	Stock          decimal.Decimal `json:"stockQuantity"`
	AlertThreshold decimal.Decimal `json:"alertThreshold"`
}

func (i Ingredient) BelowThreshold() bool {
	return i.Stock.LessThanOrEqual(i.AlertThreshold)
}

type Customer struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         *string `json:"email,omitempty"`
	LoyaltyPoints int     `json:"loyaltyPoints"`
}

type Order struct {
	ID             int64            `json:"id"`
	CreatedAt      time.Time        `json:"createdAt"`
	UserID         int64            `json:"userId"`
	CustomerID     *int64           `json:"customerId,omitempty"`
	Subtotal       decimal.Decimal  `json:"subtotal"`
	TaxAmount      decimal.Decimal  `json:"taxAmount"`
	Discount       decimal.Decimal  `json:"discount"`
	Total          decimal.Decimal  `json:"total"`
	EarnedPoints   int              `json:"earnedPoints"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	CashAmount     *decimal.Decimal `json:"cashAmount,omitempty"`
	CardAmount     *decimal.Decimal `json:"cardAmount,omitempty"`
	Status         Status           `json:"status"`
	IdempotencyKey string           `json:"-"`
	Lines          []OrderLine      `json:"lines,omitempty"`
}

// OrderLine carries the unit price charged at sale time. It is never
// recomputed from the catalog.
type OrderLine struct {
	ProductID int64           `json:"productId"`
	VariantID *int64          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Notes     string          `json:"notes,omitempty"`
}
