package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const staffID int64 = 7

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	phases   []Phase
}

func (o *recordingObserver) CheckoutDone(outcome string, last Phase, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.phases = append(o.phases, last)
}

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) TaxRate(context.Context) (decimal.Decimal, error) { return f.rate, f.err }

func newCoordinator(s *memStore, taxRate string) *Coordinator {
	p := DefaultPricing()
	p.TaxRate = d(taxRate)
	return &Coordinator{
		Store:    s,
		Resolver: Resolver{ImplicitVariants: true},
		Pricing:  p,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) },
		Service:  "cafe-api-test",
	}
}

func line(productID int64, variantID *int64, qty int, price string) LineInput {
	return LineInput{ProductID: productID, VariantID: variantID, Quantity: qty, UnitPrice: d(price)}
}

func assertUntouched(t *testing.T, s *memStore) {
	t.Helper()
	fresh := cafeFixture()
	for id, ing := range fresh.ingredients {
		assert.True(t, s.stockOf(id).Equal(ing.Stock), "ingredient %d stock changed to %s", id, s.stockOf(id))
	}
	for id, c := range fresh.customers {
		assert.Equal(t, c.LoyaltyPoints, s.pointsOf(id), "customer %d points changed", id)
	}
	assert.Zero(t, s.orderCount())
}

func TestCheckoutCommitsOrder(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")

	rc, err := c.Checkout(context.Background(), staffID, Basket{
		Lines: []LineInput{line(prodLatte, nil, 2, "4.50")},
	})
	require.NoError(t, err)

	assert.NotZero(t, rc.OrderID)
	assert.True(t, rc.Total.Equal(d("10.80")), "total %s", rc.Total)
	assert.False(t, rc.DiscountApplied)
	assert.Zero(t, rc.EarnedPoints)
	assert.Equal(t, StatusPending, rc.Status)

	o := s.orders[rc.OrderID]
	assert.Equal(t, staffID, o.UserID)
	assert.True(t, o.Subtotal.Equal(d("9.00")))
	assert.True(t, o.TaxAmount.Equal(d("1.80")))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.TaxAmount).Sub(o.Discount)))
	assert.Equal(t, PaymentCash, o.PaymentMethod)
	require.NotNil(t, o.CashAmount)
	assert.True(t, o.CashAmount.Equal(rc.Total))
	assert.Nil(t, o.CardAmount)
	require.Len(t, o.Lines, 1)
	require.NotNil(t, o.Lines[0].VariantID)
	assert.Equal(t, latteM, *o.Lines[0].VariantID)
	assert.True(t, o.Lines[0].UnitPrice.Equal(d("4.50")))

	assert.True(t, s.stockOf(ingBeans).Equal(d("964")))
	assert.True(t, s.stockOf(ingMilk).Equal(d("1400")))
	assert.True(t, s.stockOf(ingCup).Equal(d("48")))

	require.Len(t, rc.Consumption, 3)
	assert.Equal(t, ingBeans, rc.Consumption[0].IngredientID)
}

func TestCheckoutLoyaltyDiscount(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0")

	rc, err := c.Checkout(context.Background(), staffID, Basket{
		Lines:      []LineInput{line(prodEspresso, i64(espS), 10, "3.00")},
		CustomerID: i64(custAna),
	})
	require.NoError(t, err)

	assert.True(t, rc.DiscountApplied)
	assert.True(t, rc.Total.Equal(d("25")), "total %s", rc.Total)
	assert.Equal(t, 25, rc.EarnedPoints)
	assert.Equal(t, 26, s.pointsOf(custAna))
	assert.True(t, s.orders[rc.OrderID].Discount.Equal(d("5")))
}

func TestCheckoutNoDiscountAtThreshold(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0")

	rc, err := c.Checkout(context.Background(), staffID, Basket{
		Lines:      []LineInput{line(prodEspresso, i64(espS), 10, "3.00")},
		CustomerID: i64(custBen),
	})
	require.NoError(t, err)

	assert.False(t, rc.DiscountApplied)
	assert.True(t, rc.Total.Equal(d("30")))
	assert.Equal(t, 30, rc.EarnedPoints)
	assert.Equal(t, 80, s.pointsOf(custBen))
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")

	_, err := c.Checkout(context.Background(), staffID, Basket{
		Lines:      []LineInput{line(prodLatte, i64(latteL), 6, "5.20")},
		CustomerID: i64(custAna),
	})

	var se *InsufficientStockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "milk", se.Ingredient)
	assert.Equal(t, UnitMl, se.Unit)
	assert.True(t, se.Required.Equal(d("2400")))
	assertUntouched(t, s)
}

func TestCheckoutAggregatesAcrossLines(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")

	// 1200 ml and 900 ml each fit, 2100 ml together does not
	_, err := c.Checkout(context.Background(), staffID, Basket{
		Lines: []LineInput{
			line(prodLatte, i64(latteL), 3, "5.20"),
			line(prodLatte, nil, 3, "4.50"),
		},
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assertUntouched(t, s)
}

func TestCheckoutSplitPayment(t *testing.T) {
	tests := []struct {
		name       string
		cash, card *decimal.Decimal
		want       error
	}{
		{"exact split", dp("12"), dp("8"), nil},
		{"mismatch", dp("12"), dp("7"), ErrSplitAmountMismatch},
		{"card missing", dp("20"), nil, ErrMissingSplitAmounts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := cafeFixture()
			c := newCoordinator(s, "0")

			rc, err := c.Checkout(context.Background(), staffID, Basket{
				Lines:         []LineInput{line(prodEspresso, i64(espL), 5, "4.00")},
				PaymentMethod: PaymentMixed,
				CashAmount:    tt.cash,
				CardAmount:    tt.card,
			})
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assertUntouched(t, s)
				return
			}
			require.NoError(t, err)
			o := s.orders[rc.OrderID]
			assert.True(t, o.CashAmount.Equal(d("12")))
			assert.True(t, o.CardAmount.Equal(d("8")))
		})
	}
}

func TestCheckoutCardPaymentRecordsTotal(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")

	rc, err := c.Checkout(context.Background(), staffID, Basket{
		Lines:         []LineInput{line(prodEspresso, nil, 1, "3.00")},
		PaymentMethod: PaymentCard,
	})
	require.NoError(t, err)

	o := s.orders[rc.OrderID]
	assert.Nil(t, o.CashAmount)
	require.NotNil(t, o.CardAmount)
	assert.True(t, o.CardAmount.Equal(d("3.60")))
}

func TestCheckoutImplicitVariant(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")

	rc, err := c.Checkout(context.Background(), staffID, Basket{
		Lines: []LineInput{line(prodCookie, nil, 2, "2.50")},
	})
	require.NoError(t, err)

	assert.Nil(t, s.orders[rc.OrderID].Lines[0].VariantID)
	assert.True(t, s.stockOf(ingDough).Equal(d("340")))
}

func TestCheckoutRejects(t *testing.T) {
	long := strings.Repeat("é", maxNotesLen+1)
	withNotes := line(prodLatte, nil, 1, "4.50")
	withNotes.Notes = long

	tests := []struct {
		name   string
		basket Basket
		want   error
	}{
		{"empty basket", Basket{}, ErrValidation},
		{"zero quantity", Basket{Lines: []LineInput{line(prodLatte, nil, 0, "4.50")}}, ErrValidation},
		{"zero price", Basket{Lines: []LineInput{line(prodLatte, nil, 1, "0")}}, ErrValidation},
		{"sub-cent price", Basket{Lines: []LineInput{line(prodCookie, nil, 1, "1.005")}}, ErrValidation},
		{"price rounds to zero", Basket{Lines: []LineInput{line(prodCookie, nil, 1, "0.001")}}, ErrValidation},
		{"price too large", Basket{Lines: []LineInput{line(prodLatte, nil, 1, "100000000")}}, ErrValidation},
		{"quantity too large", Basket{Lines: []LineInput{line(prodLatte, nil, maxQuantity + 1, "4.50")}}, ErrValidation},
		{"total too large", Basket{Lines: []LineInput{line(prodLatte, nil, 1000000, "99.99")}}, ErrValidation},
		{"sub-cent cash", Basket{Lines: []LineInput{line(prodLatte, nil, 1, "4.50")}, PaymentMethod: PaymentMixed, CashAmount: dp("2.005"), CardAmount: dp("3.395")}, ErrValidation},
		{"missing product", Basket{Lines: []LineInput{line(0, nil, 1, "4.50")}}, ErrValidation},
		{"notes too long", Basket{Lines: []LineInput{withNotes}}, ErrValidation},
		{"unknown method", Basket{Lines: []LineInput{line(prodLatte, nil, 1, "4.50")}, PaymentMethod: "voucher"}, ErrValidation},
		{"negative cash", Basket{Lines: []LineInput{line(prodLatte, nil, 1, "4.50")}, CashAmount: dp("-1")}, ErrValidation},
		{"unknown customer", Basket{Lines: []LineInput{line(prodLatte, nil, 1, "4.50")}, CustomerID: i64(404)}, ErrNotFound},
		{"unknown product", Basket{Lines: []LineInput{line(404, nil, 1, "4.50")}}, ErrNotFound},
		{"foreign variant", Basket{Lines: []LineInput{line(prodLatte, i64(espS), 1, "4.50")}}, ErrNotFound},
		{"no recipe", Basket{Lines: []LineInput{line(prodWater, nil, 1, "1.00")}}, ErrNoRecipeDefined},
		{"no active variant", Basket{Lines: []LineInput{line(prodMocha, nil, 1, "5.00")}}, ErrNoVariantAvailable},
		{
			"second line fails after first resolves",
			Basket{Lines: []LineInput{line(prodLatte, nil, 1, "4.50"), line(prodTea, nil, 1, "2.00")}},
			ErrNoRecipeDefined,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := cafeFixture()
			_, err := newCoordinator(s, "0.20").Checkout(context.Background(), staffID, tt.basket)
			assert.ErrorIs(t, err, tt.want)
			assertUntouched(t, s)
		})
	}
}

func TestCheckoutAcceptsTrailingZeroPrice(t *testing.T) {
	s := cafeFixture()
	rc, err := newCoordinator(s, "0.20").Checkout(context.Background(), staffID,
		Basket{Lines: []LineInput{line(prodCookie, nil, 2, "1.500")}})
	require.NoError(t, err)

	assert.True(t, d("3.60").Equal(rc.Total), rc.Total.String())
	assert.True(t, rc.Total.Equal(s.orders[rc.OrderID].Total))
}

func TestCheckoutAcceptsNotesAtLimit(t *testing.T) {
	s := cafeFixture()
	l := line(prodLatte, nil, 1, "4.50")
	l.Notes = strings.Repeat("é", maxNotesLen)

	rc, err := newCoordinator(s, "0.20").Checkout(context.Background(), staffID, Basket{Lines: []LineInput{l}})
	require.NoError(t, err)
	assert.Equal(t, l.Notes, s.orders[rc.OrderID].Lines[0].Notes)
}

func TestCheckoutFailureLateRollsBackEverything(t *testing.T) {
	for _, method := range []string{"InsertOrder", "InsertOrderLines", "DecrementStock", "SetLoyaltyPoints"} {
		t.Run(method, func(t *testing.T) {
			s := cafeFixture()
			s.failOn = method
			obs := &recordingObserver{}
			c := newCoordinator(s, "0.20")
			c.Observer = obs

			_, err := c.Checkout(context.Background(), staffID, Basket{
				Lines:      []LineInput{line(prodLatte, nil, 1, "4.50")},
				CustomerID: i64(custAna),
			})
			assert.ErrorIs(t, err, errInjected)
			assert.Equal(t, KindUnexpected, KindOf(err))
			assertUntouched(t, s)
			assert.Equal(t, []string{string(KindUnexpected)}, obs.outcomes)
		})
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	s := cafeFixture()
	obs := &recordingObserver{}
	c := newCoordinator(s, "0.20")
	c.Observer = obs

	b := Basket{
		Lines:          []LineInput{line(prodLatte, nil, 1, "4.50")},
		IdempotencyKey: "till-2-000117",
	}
	first, err := c.Checkout(context.Background(), staffID, b)
	require.NoError(t, err)
	second, err := c.Checkout(context.Background(), staffID, b)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, first.Total.Equal(second.Total))
	assert.Equal(t, 1, s.orderCount())
	assert.True(t, s.stockOf(ingMilk).Equal(d("1700")))
	assert.Equal(t, []string{"committed", "replayed"}, obs.outcomes)
}

func TestCheckoutUsesTaxRateSource(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")
	c.Rates = fixedRate{rate: d("0.10")}

	rc, err := c.Checkout(context.Background(), staffID, Basket{
		Lines: []LineInput{line(prodEspresso, nil, 1, "3.00")},
	})
	require.NoError(t, err)
	assert.True(t, rc.Total.Equal(d("3.30")))

	c.Rates = fixedRate{err: errors.New("settings unavailable")}
	_, err = c.Checkout(context.Background(), staffID, Basket{
		Lines: []LineInput{line(prodEspresso, nil, 1, "3.00")},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, s.orderCount())
}

func TestCheckoutConcurrentOverdraw(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0.20")

	// each checkout takes 400 ml of the 2000 ml in stock
	const attempts = 12
	var (
		mu        sync.Mutex
		committed int
		short     int
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := c.Checkout(ctx, staffID, Basket{
				Lines: []LineInput{line(prodLatte, i64(latteL), 1, "5.20")},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, ErrInsufficientStock):
				short++
			default:
				return fmt.Errorf("unexpected checkout error: %w", err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 5, committed)
	assert.Equal(t, attempts-5, short)
	assert.True(t, s.stockOf(ingMilk).IsZero())
	assert.Equal(t, 5, s.orderCount())
	assert.False(t, s.stockOf(ingBeans).IsNegative())
}

func TestCheckoutConcurrentLoyaltyIsSerialized(t *testing.T) {
	s := cafeFixture()
	c := newCoordinator(s, "0")

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := c.Checkout(ctx, staffID, Basket{
				Lines:      []LineInput{line(prodEspresso, nil, 1, "3.00")},
				CustomerID: i64(custChloe),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 12, s.pointsOf(custChloe))
}
