package catalog

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/shopspring/decimal"
)

// ProductPatch creates or partially updates a product.
type ProductPatch struct {
	Name       *string          `json:"name"`
	BasePrice  *decimal.Decimal `json:"basePrice"`
	CategoryID *int64           `json:"categoryId"`
	ImageURL   *string          `json:"imageUrl"`
	Active     *bool            `json:"active"`
}

// VariantPatch creates or partially updates a product variant.
type VariantPatch struct {
	Size   *orders.Size     `json:"size"`
	Price  *decimal.Decimal `json:"price"`
	Active *bool            `json:"active"`
}

func invalid(format string, args ...any) error {
	return &orders.Error{Kind: orders.KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &orders.Error{Kind: orders.KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func checkPrice(field string, d decimal.Decimal) error {
	switch {
	case d.IsNegative():
		return invalid("%s must not be negative", field)
	case !orders.IsCents(d):
		return invalid("%s has more than 2 decimal places", field)
	case d.GreaterThan(orders.MaxAmount):
		return invalid("%s exceeds %s", field, orders.MaxAmount)
	}
	return nil
}

// MergeProduct applies p onto cur and validates the result. An empty image
// url clears it.
func MergeProduct(cur orders.Product, p ProductPatch) (orders.Product, error) {
	if p.Name != nil {
		cur.Name = strings.TrimSpace(*p.Name)
	}
	if p.BasePrice != nil {
		cur.BasePrice = *p.BasePrice
	}
	if p.CategoryID != nil {
		if *p.CategoryID <= 0 {
			return cur, invalid("invalid category id")
		}
		id := *p.CategoryID
		cur.CategoryID = &id
	}
	if p.ImageURL != nil {
		if u := strings.TrimSpace(*p.ImageURL); u == "" {
			cur.ImageURL = nil
		} else {
			cur.ImageURL = &u
		}
	}
	if p.Active != nil {
		cur.Active = *p.Active
	}

	if len([]rune(cur.Name)) < 2 {
		return cur, invalid("name must have at least 2 characters")
	}
	return cur, checkPrice("base price", cur.BasePrice)
}

func MergeVariant(cur orders.Variant, p VariantPatch) (orders.Variant, error) {
	if p.Size != nil {
		cur.Size = orders.Size(strings.ToUpper(strings.TrimSpace(string(*p.Size))))
	}
	if p.Price != nil {
		cur.Price = *p.Price
	}
	if p.Active != nil {
		cur.Active = *p.Active
	}

	if !cur.Size.Valid() {
		return cur, invalid("size %q must be one of S, M, L", cur.Size)
	}
	return cur, checkPrice("price", cur.Price)
}

// ValidateRecipe checks a full replacement recipe. A sellable item needs at
// least one ingredient, each listed once with a positive quantity.
func ValidateRecipe(items []orders.RecipeItem) error {
	if len(items) == 0 {
		return invalid("a recipe needs at least one ingredient")
	}
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		switch {
		case it.IngredientID <= 0:
			return invalid("invalid ingredient id %d", it.IngredientID)
		case seen[it.IngredientID]:
			return invalid("ingredient %d is listed twice", it.IngredientID)
		case !it.Quantity.IsPositive():
			return invalid("ingredient %d: quantity must be positive", it.IngredientID)
		case !it.Quantity.Equal(it.Quantity.Round(3)):
			return invalid("ingredient %d: quantity has more than 3 decimal places", it.IngredientID)
		}
		seen[it.IngredientID] = true
	}
	return nil
}
