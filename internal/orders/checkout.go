package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/ariefcatur/go-cafe-pos/internal/logging"
	"github.com/shopspring/decimal"
)

const (
	maxNotesLen = 280
	maxQuantity = math.MaxInt32
)

// MaxAmount is the largest value a NUMERIC(10,2) money column holds.
var MaxAmount = decimal.RequireFromString("99999999.99")

// IsCents reports whether d has no fraction finer than a cent.
func IsCents(d decimal.Decimal) bool { return d.Equal(d.Round(2)) }

type LineInput struct {
	ProductID int64           `json:"productId"`
	VariantID *int64          `json:"variantId,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Notes     string          `json:"notes,omitempty"`
}

type Basket struct {
	Lines          []LineInput      `json:"lines"`
	PaymentMethod  PaymentMethod    `json:"paymentMethod"`
	CustomerID     *int64           `json:"customerId,omitempty"`
	CashAmount     *decimal.Decimal `json:"cashAmount,omitempty"`
	CardAmount     *decimal.Decimal `json:"cardAmount,omitempty"`
	IdempotencyKey string           `json:"-"`
}

type Receipt struct {
	OrderID         int64           `json:"orderId"`
	Total           decimal.Decimal `json:"total"`
	DiscountApplied bool            `json:"discountApplied"`
	EarnedPoints    int             `json:"earnedPoints"`
	Status          Status          `json:"status"`
	Replayed        bool            `json:"replayed,omitempty"`

	Order       Order           `json:"-"`
	Consumption []IngredientUse `json:"-"`
}

type Phase string

const (
	PhaseStarted      Phase = "started"
	PhaseValidated    Phase = "validated"
	PhasePriced       Phase = "priced"
	PhaseStockChecked Phase = "stock-checked"
	PhasePersisted    Phase = "persisted"
	PhaseCommitted    Phase = "committed"
	PhaseRolledBack   Phase = "rolled-back"
)

// Observer is told about every finished checkout. outcome is "committed",
// "replayed" or the error kind.
type Observer interface {
	CheckoutDone(outcome string, last Phase, d time.Duration)
}

// Coordinator runs one checkout as a single atomic unit of work.
type Coordinator struct {
	Store    Store
	Resolver Resolver
	Ledger   Ledger
	Pricing  Pricing
	Rates    TaxRateSource // overrides Pricing.TaxRate when set
	Now      func() time.Time
	Observer Observer
	Service  string
}

func (c *Coordinator) Checkout(ctx context.Context, staffID int64, b Basket) (Receipt, error) {
	start := c.now()
	phase := PhaseStarted

	var rc Receipt
	err := c.Store.InTx(ctx, func(q Queries) error {
		if b.IdempotencyKey != "" {
			prev, err := q.OrderByIdempotencyKey(ctx, b.IdempotencyKey)
			if err == nil {
				rc = receiptOf(prev)
				rc.Replayed = true
				return nil
			}
			if !errors.Is(err, ErrNoRows) {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
		}

		// 1. basket
		method, err := validateBasket(b)
		if err != nil {
			return err
		}
		phase = PhaseValidated

		// 2. customer
		var cust *Customer
		if b.CustomerID != nil {
			got, err := q.LockCustomer(ctx, *b.CustomerID)
			if errors.Is(err, ErrNoRows) {
				return newErr(KindNotFound, "customer %d not found", *b.CustomerID)
			}
			if err != nil {
				return fmt.Errorf("lock customer %d: %w", *b.CustomerID, err)
			}
			cust = &got
		}

		// 3. money
		pricing, err := c.pricing(ctx)
		if err != nil {
			return err
		}
		totals := pricing.ComputeTotal(b.Lines)
		if totals.Total.GreaterThan(MaxAmount) {
			return newErr(KindValidation, "order total exceeds %s", MaxAmount)
		}
		total, discounted := pricing.ApplyLoyaltyDiscount(cust, totals.Total)
		earned := pricing.EarnedPoints(cust, total)
		phase = PhasePriced

		// 4. recipes
		resolved := make([]ResolvedLine, len(b.Lines))
		lines := make([]OrderLine, len(b.Lines))
		for i, l := range b.Lines {
			res, err := c.Resolver.Resolve(ctx, q, l.ProductID, l.VariantID)
			if err != nil {
				return err
			}
			resolved[i] = ResolvedLine{Quantity: l.Quantity, Recipe: res.Items}
			lines[i] = OrderLine{
				ProductID: l.ProductID,
				VariantID: res.VariantID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Notes:     l.Notes,
			}
		}

		// 5-6. stock
		req := ComputeRequirements(resolved)
		reservation, err := c.Ledger.ReserveAndCheck(ctx, q, req)
		if err != nil {
			return err
		}
		phase = PhaseStockChecked

		// 7. payment
		if err := ValidateSplitPayment(method, b.CashAmount, b.CardAmount, total); err != nil {
			return err
		}
		cash, card := paymentAmounts(method, b.CashAmount, b.CardAmount, total)

		// 8. order
		o := Order{
			CreatedAt:      c.now(),
			UserID:         staffID,
			CustomerID:     b.CustomerID,
			Subtotal:       totals.Subtotal,
			TaxAmount:      totals.Tax,
			Discount:       totals.Total.Sub(total),
			Total:          total,
			EarnedPoints:   earned,
			PaymentMethod:  method,
			CashAmount:     cash,
			CardAmount:     card,
			Status:         StatusPending,
			IdempotencyKey: b.IdempotencyKey,
			Lines:          lines,
		}
		if err := q.InsertOrder(ctx, &o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := q.InsertOrderLines(ctx, o.ID, lines); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}

		// 9. decrement
		used, err := c.Ledger.Apply(ctx, q, reservation)
		if err != nil {
			return err
		}

		// 10. loyalty
		if cust != nil {
			next := pricing.SettleLoyaltyBalance(cust.LoyaltyPoints, discounted, earned)
			if err := q.SetLoyaltyPoints(ctx, cust.ID, next); err != nil {
				return fmt.Errorf("update loyalty points: %w", err)
			}
		}
		phase = PhasePersisted

		rc = receiptOf(o)
		rc.DiscountApplied = discounted
		rc.Consumption = used
		return nil
	})

	d := c.now().Sub(start)
	if err != nil {
		c.log(logging.Fields{
			Step:       string(phase),
			Status:     string(PhaseRolledBack),
			Kind:       string(KindOf(err)),
			DurationMS: d.Milliseconds(),
			Message:    err.Error(),
		})
		c.observe(string(KindOf(err)), phase, d)
		return Receipt{}, err
	}

	outcome := string(PhaseCommitted)
	if rc.Replayed {
		outcome = "replayed"
	}
	c.log(logging.Fields{
		OrderID:    strconv.FormatInt(rc.OrderID, 10),
		Step:       string(PhaseCommitted),
		Status:     outcome,
		DurationMS: d.Milliseconds(),
	})
	c.observe(outcome, PhaseCommitted, d)
	return rc, nil
}

func validateBasket(b Basket) (PaymentMethod, error) {
	if len(b.Lines) == 0 {
		return "", newErr(KindValidation, "basket is empty")
	}
	for i, l := range b.Lines {
		switch {
		case l.ProductID <= 0:
			return "", newErr(KindValidation, "line %d: product id is required", i+1)
		case l.VariantID != nil && *l.VariantID <= 0:
			return "", newErr(KindValidation, "line %d: invalid variant id", i+1)
		case l.Quantity <= 0:
			return "", newErr(KindValidation, "line %d: quantity must be a positive integer", i+1)
		case l.Quantity > maxQuantity:
			return "", newErr(KindValidation, "line %d: quantity exceeds %d", i+1, maxQuantity)
		case !l.UnitPrice.IsPositive():
			return "", newErr(KindValidation, "line %d: unit price must be positive", i+1)
		case !IsCents(l.UnitPrice):
			return "", newErr(KindValidation, "line %d: unit price has more than 2 decimal places", i+1)
		case l.UnitPrice.GreaterThan(MaxAmount):
			return "", newErr(KindValidation, "line %d: unit price exceeds %s", i+1, MaxAmount)
		case utf8.RuneCountInString(l.Notes) > maxNotesLen:
			return "", newErr(KindValidation, "line %d: notes exceed %d characters", i+1, maxNotesLen)
		}
	}
	for _, amt := range []*decimal.Decimal{b.CashAmount, b.CardAmount} {
		if amt == nil {
			continue
		}
		if amt.IsNegative() {
			return "", newErr(KindValidation, "payment amounts must not be negative")
		}
		if !IsCents(*amt) || amt.GreaterThan(MaxAmount) {
			return "", newErr(KindValidation, "payment amounts must be whole cents up to %s", MaxAmount)
		}
	}
	if b.CustomerID != nil && *b.CustomerID <= 0 {
		return "", newErr(KindValidation, "invalid customer id")
	}

	switch m := b.PaymentMethod; m {
	case "":
		return PaymentCash, nil
	case PaymentCash, PaymentCard, PaymentMixed:
		return m, nil
	default:
		return "", newErr(KindValidation, "unknown payment method %q", m)
	}
}

func receiptOf(o Order) Receipt {
	return Receipt{
		OrderID:         o.ID,
		Total:           o.Total,
		DiscountApplied: o.Discount.IsPositive(),
		EarnedPoints:    o.EarnedPoints,
		Status:          o.Status,
		Order:           o,
	}
}

func (c *Coordinator) pricing(ctx context.Context) (Pricing, error) {
	p := c.Pricing
	if c.Rates == nil {
		return p, nil
	}
	rate, err := c.Rates.TaxRate(ctx)
	if err != nil {
		return p, fmt.Errorf("load tax rate: %w", err)
	}
	p.TaxRate = rate
	return p, nil
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) log(f logging.Fields) {
	f.Service = c.Service
	logging.Log(f)
}

func (c *Coordinator) observe(outcome string, last Phase, d time.Duration) {
	if c.Observer != nil {
		c.Observer.CheckoutDone(outcome, last, d)
	}
}
