package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	p := DefaultPricing()

	got := p.ComputeTotal([]LineInput{
		{ProductID: 1, Quantity: 2, UnitPrice: d("4.50")},
		{ProductID: 2, Quantity: 1, UnitPrice: d("3.15")},
	})

	assert.True(t, got.Subtotal.Equal(d("12.15")))
	assert.True(t, got.Tax.Equal(d("2.43")))
	assert.True(t, got.Total.Equal(d("14.58")))
	assert.True(t, got.Total.Equal(got.Subtotal.Add(got.Tax)))
}

func TestComputeTotalRoundsTaxToCents(t *testing.T) {
	p := Pricing{TaxRate: d("0.075")}
	got := p.ComputeTotal([]LineInput{{Quantity: 1, UnitPrice: d("3.33")}})
	// 3.33 * 0.075 = 0.24975
	assert.True(t, got.Tax.Equal(d("0.25")))
}

func TestApplyLoyaltyDiscount(t *testing.T) {
	p := DefaultPricing()

	tests := []struct {
		name       string
		customer   *Customer
		total      string
		want       string
		discounted bool
	}{
		{"no customer", nil, "30", "30", false},
		{"at threshold", &Customer{LoyaltyPoints: 50}, "30", "30", false},
		{"above threshold", &Customer{LoyaltyPoints: 51}, "30", "25", true},
		{"floored at zero", &Customer{LoyaltyPoints: 200}, "3.50", "0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ApplyLoyaltyDiscount(tt.customer, d(tt.total))
			assert.Equal(t, tt.discounted, ok)
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
		})
	}
}

func TestEarnedPoints(t *testing.T) {
	p := DefaultPricing()
	assert.Equal(t, 0, p.EarnedPoints(nil, d("99")))
	assert.Equal(t, 25, p.EarnedPoints(&Customer{}, d("25.99")))
	assert.Equal(t, 0, p.EarnedPoints(&Customer{}, d("0.40")))
}

func TestSettleLoyaltyBalance(t *testing.T) {
	p := DefaultPricing()
	// 51 points, $30 order -> $25 after discount, earns 25, pays 50
	assert.Equal(t, 26, p.SettleLoyaltyBalance(51, true, 25))
	assert.Equal(t, 80, p.SettleLoyaltyBalance(50, false, 30))
	assert.Equal(t, 0, p.SettleLoyaltyBalance(10, true, 0))
}

func TestValidateSplitPayment(t *testing.T) {
	total := d("20.00")

	assert.NoError(t, ValidateSplitPayment(PaymentCash, nil, nil, total))
	assert.NoError(t, ValidateSplitPayment(PaymentCard, nil, nil, total))
	assert.NoError(t, ValidateSplitPayment(PaymentMixed, dp("12.00"), dp("8.00"), total))
	assert.NoError(t, ValidateSplitPayment(PaymentMixed, dp("12.00"), dp("7.99"), total))

	assert.ErrorIs(t, ValidateSplitPayment(PaymentMixed, dp("12.00"), dp("7.00"), total), ErrSplitAmountMismatch)
	assert.ErrorIs(t, ValidateSplitPayment(PaymentMixed, dp("12.00"), dp("8.02"), total), ErrSplitAmountMismatch)
	assert.ErrorIs(t, ValidateSplitPayment(PaymentMixed, dp("20.00"), nil, total), ErrMissingSplitAmounts)
	assert.ErrorIs(t, ValidateSplitPayment(PaymentMixed, nil, nil, total), ErrMissingSplitAmounts)
}

func TestPaymentAmounts(t *testing.T) {
	total := d("10.80")

	cash, card := paymentAmounts(PaymentCash, nil, nil, total)
	assert.True(t, cash.Equal(total))
	assert.Nil(t, card)

	cash, card = paymentAmounts(PaymentCard, nil, nil, total)
	assert.Nil(t, cash)
	assert.True(t, card.Equal(total))

	cash, card = paymentAmounts(PaymentMixed, dp("5"), dp("5.80"), total)
	assert.True(t, cash.Equal(d("5")))
	assert.True(t, card.Equal(d("5.80")))
}
