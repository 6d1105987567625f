package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ResolvedLine is one basket line after recipe resolution.
type ResolvedLine struct {
	Quantity int
	Recipe   []RecipeItem
}

// Requirements maps ingredient id to the total quantity an order consumes.
type Requirements map[int64]decimal.Decimal

// ComputeRequirements multiplies every recipe item by its line quantity and
// sums per ingredient across lines.
func ComputeRequirements(lines []ResolvedLine) Requirements {
	req := Requirements{}
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		for _, it := range l.Recipe {
			req[it.IngredientID] = req[it.IngredientID].Add(it.Quantity.Mul(qty))
		}
	}
	return req
}

// IngredientIDs returns the ingredient ids in ascending order, the order in
// which locks are taken.
func (r Requirements) IngredientIDs() []int64 {
	ids := make([]int64, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reservation proves every ingredient of a Requirements set is locked and
// covered by current stock. Only ReserveAndCheck creates one.
type Reservation struct {
	req    Requirements
	locked map[int64]Ingredient
}

// IngredientUse is one applied decrement.
type IngredientUse struct {
	IngredientID   int64           `json:"ingredientId"`
	Name           string          `json:"name"`
	Unit           Unit            `json:"unit"`
	Used           decimal.Decimal `json:"used"`
	Remaining      decimal.Decimal `json:"remaining"`
	AlertThreshold decimal.Decimal `json:"alertThreshold"`
	BelowThreshold bool            `json:"belowThreshold"`
}

type Ledger struct{}

// ReserveAndCheck locks every required ingredient in ascending id order and
// fails on the first one whose stock is short. All locks are taken before
// anything is decremented.
func (Ledger) ReserveAndCheck(ctx context.Context, q Queries, req Requirements) (*Reservation, error) {
	res := &Reservation{req: req, locked: make(map[int64]Ingredient, len(req))}
	for _, id := range req.IngredientIDs() {
		ing, err := q.LockIngredient(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNoRows) {
				return nil, newErr(KindNotFound, "ingredient %d not found in inventory", id)
			}
			return nil, fmt.Errorf("lock ingredient %d: %w", id, err)
		}
		need := req[id]
		if ing.Stock.LessThan(need) {
			return nil, &InsufficientStockError{
				IngredientID: id,
				Ingredient:   ing.Name,
				Unit:         ing.Unit,
				Required:     need,
				Available:    ing.Stock,
			}
		}
		res.locked[id] = ing
	}
	return res, nil
}

// Apply decrements the stock reserved by res.
func (Ledger) Apply(ctx context.Context, q Queries, res *Reservation) ([]IngredientUse, error) {
	if res == nil {
		return nil, errors.New("apply stock: no reservation")
	}
	out := make([]IngredientUse, 0, len(res.req))
	for _, id := range res.req.IngredientIDs() {
		ing, ok := res.locked[id]
		if !ok {
			return nil, fmt.Errorf("apply stock: ingredient %d was not reserved", id)
		}
		need := res.req[id]
		if err := q.DecrementStock(ctx, id, need); err != nil {
			return nil, fmt.Errorf("decrement ingredient %d: %w", id, err)
		}
		left := ing
		left.Stock = ing.Stock.Sub(need)
		out = append(out, IngredientUse{
			IngredientID:   id,
			Name:           ing.Name,
			Unit:           ing.Unit,
			Used:           need,
			Remaining:      left.Stock,
			AlertThreshold: ing.AlertThreshold,
			BelowThreshold: left.BelowThreshold(),
		})
	}
	return out, nil
}
