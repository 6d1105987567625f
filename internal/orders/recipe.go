package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Resolver maps a requested product (and optional variant) to the variant
// that is charged and the ingredients it consumes.
type Resolver struct {
	// ImplicitVariants lets a product without any variant rows sell as its
	// own single variant, consuming the recipe in product_ingredients.
	ImplicitVariants bool
}

type Resolution struct {
	VariantID *int64 // nil for an implicit variant
	Size      Size
	Items     []RecipeItem // ordered by ingredient id
}

func (r Resolver) Resolve(ctx context.Context, q Queries, productID int64, variantID *int64) (Resolution, error) {
	p, err := q.GetProduct(ctx, productID)
	switch {
	case errors.Is(err, ErrNoRows):
		return Resolution{}, newErr(KindNotFound, "product %d not found", productID)
	case err != nil:
		return Resolution{}, fmt.Errorf("load product %d: %w", productID, err)
	case !p.Active:
		return Resolution{}, newErr(KindNotFound, "product %d is not on sale", productID)
	}

	var v Variant
	if variantID != nil {
		got, err := q.GetVariant(ctx, *variantID)
		switch {
		case errors.Is(err, ErrNoRows):
			return Resolution{}, newErr(KindNotFound, "variant %d not found", *variantID)
		case err != nil:
			return Resolution{}, fmt.Errorf("load variant %d: %w", *variantID, err)
		case got.ProductID != productID || !got.Active:
			return Resolution{}, newErr(KindNotFound, "variant %d not found for product %d", *variantID, productID)
		}
		v = got
	} else {
		vs, err := q.ListVariants(ctx, productID)
		if err != nil {
			return Resolution{}, fmt.Errorf("list variants of product %d: %w", productID, err)
		}
		if len(vs) == 0 && r.ImplicitVariants {
			return r.implicit(ctx, q, productID)
		}
		def, ok := DefaultVariant(vs)
		if !ok {
			return Resolution{}, newErr(KindNoVariantAvailable, "product %d has no active variant", productID)
		}
		v = def
	}

	items, err := q.VariantRecipe(ctx, v.ID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load recipe of variant %d: %w", v.ID, err)
	}
	if len(items) == 0 {
		return Resolution{}, newErr(KindNoRecipeDefined, "no recipe defined for product %d size %s", productID, v.Size)
	}
	id := v.ID
	return Resolution{VariantID: &id, Size: v.Size, Items: sortItems(items)}, nil
}

func (r Resolver) implicit(ctx context.Context, q Queries, productID int64) (Resolution, error) {
	items, err := q.ProductRecipe(ctx, productID)
	if err != nil {
		return Resolution{}, fmt.Errorf("load recipe of product %d: %w", productID, err)
	}
	if len(items) == 0 {
		return Resolution{}, newErr(KindNoRecipeDefined, "no recipe defined for product %d", productID)
	}
	return Resolution{Items: sortItems(items)}, nil
}

// DefaultVariant picks the canonical variant among the active ones:
// size M first, then S, then the lowest id.
func DefaultVariant(vs []Variant) (Variant, bool) {
	var (
		best  Variant
		found bool
	)
	for _, v := range vs {
		if !v.Active {
			continue
		}
		if !found || sizeRank(v.Size) < sizeRank(best.Size) ||
			(sizeRank(v.Size) == sizeRank(best.Size) && v.ID < best.ID) {
			best, found = v, true
		}
	}
	return best, found
}

func sizeRank(s Size) int {
	switch s {
	case SizeMedium:
		return 0
	case SizeSmall:
		return 1
	}
	return 2
}

func sortItems(items []RecipeItem) []RecipeItem {
	out := append([]RecipeItem(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}
