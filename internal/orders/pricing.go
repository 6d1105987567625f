package orders

import (
	"github.com/shopspring/decimal"
)

var splitEpsilon = decimal.RequireFromString("0.01")

// Pricing computes money and loyalty points for one order.
type Pricing struct {
	TaxRate          decimal.Decimal // fraction, e.g. 0.20
	LoyaltyThreshold int             // discount when points strictly exceed it
	LoyaltyDiscount  decimal.Decimal
	LoyaltyCost      int // points redeemed per discount, whatever its size
}

func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:          decimal.RequireFromString("0.20"),
		LoyaltyThreshold: 50,
		LoyaltyDiscount:  decimal.NewFromInt(5),
		LoyaltyCost:      50,
	}
}

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotal taxes the whole subtotal once at TaxRate. Tax is rounded to
// cents.
func (p Pricing) ComputeTotal(lines []LineInput) Totals {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	tax := sub.Mul(p.TaxRate).Round(2)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// ApplyLoyaltyDiscount returns the discounted total, floored at zero, and
// whether a discount was applied.
func (p Pricing) ApplyLoyaltyDiscount(c *Customer, total decimal.Decimal) (decimal.Decimal, bool) {
	if c == nil || c.LoyaltyPoints <= p.LoyaltyThreshold {
		return total, false
	}
	return decimal.Max(decimal.Zero, total.Sub(p.LoyaltyDiscount)), true
}

// EarnedPoints is one point per whole currency unit of the final total.
func (p Pricing) EarnedPoints(c *Customer, finalTotal decimal.Decimal) int {
	if c == nil {
		return 0
	}
	return int(finalTotal.Floor().IntPart())
}

func (p Pricing) SettleLoyaltyBalance(balance int, discountApplied bool, earned int) int {
	next := balance + earned
	if discountApplied {
		next -= p.LoyaltyCost
	}
	if next < 0 {
		return 0
	}
	return next
}

// ValidateSplitPayment checks the cash/card split of a mixed payment.
// Other methods are not checked.
func ValidateSplitPayment(method PaymentMethod, cash, card *decimal.Decimal, total decimal.Decimal) error {
	if method != PaymentMixed {
		return nil
	}
	if cash == nil || card == nil {
		return newErr(KindMissingSplitAmounts, "cash and card amounts are required for a mixed payment")
	}
	if cash.Add(*card).Sub(total).Abs().GreaterThan(splitEpsilon) {
		return newErr(KindSplitAmountMismatch, "cash %s + card %s does not match total %s",
			cash.StringFixed(2), card.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

// paymentAmounts returns the amounts recorded on the order row.
func paymentAmounts(method PaymentMethod, cash, card *decimal.Decimal, total decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	switch method {
	case PaymentCash:
		t := total
		return &t, nil
	case PaymentCard:
		t := total
		return nil, &t
	}
	return cash, card
}
