package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store. Row locks are mutexes held until the
// transaction ends; writes are buffered and applied on commit.
type memStore struct {
	mu          sync.Mutex
	products    map[int64]Product
	variants    map[int64]Variant
	vRecipes    map[int64][]RecipeItem
	pRecipes    map[int64][]RecipeItem
	ingredients map[int64]Ingredient
	customers   map[int64]Customer
	orders      map[int64]Order
	nextOrderID int64

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	failOn string // method name that returns errInjected
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		products:    map[int64]Product{},
		variants:    map[int64]Variant{},
		vRecipes:    map[int64][]RecipeItem{},
		pRecipes:    map[int64][]RecipeItem{},
		ingredients: map[int64]Ingredient{},
		customers:   map[int64]Customer{},
		orders:      map[int64]Order{},
		locks:       map[string]*sync.Mutex{},
	}
}

func (s *memStore) rowLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *memStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx := &memTx{
		s:      s,
		held:   map[string]*sync.Mutex{},
		stock:  map[int64]decimal.Decimal{},
		points: map[int64]int{},
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range tx.stock {
		ing := s.ingredients[id]
		ing.Stock = v
		s.ingredients[id] = ing
	}
	for id, p := range tx.points {
		c := s.customers[id]
		c.LoyaltyPoints = p
		s.customers[id] = c
	}
	for _, o := range tx.orders {
		s.orders[o.ID] = *o
	}
	return nil
}

func (s *memStore) stockOf(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingredients[id].Stock
}

func (s *memStore) pointsOf(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customers[id].LoyaltyPoints
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type memTx struct {
	s      *memStore
	held   map[string]*sync.Mutex
	stock  map[int64]decimal.Decimal
	points map[int64]int
	orders []*Order
}

func (t *memTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
}

func (t *memTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	m := t.s.rowLock(key)
	m.Lock()
	t.held[key] = m
}

func (t *memTx) fail(method string) error {
	if t.s.failOn == method {
		return fmt.Errorf("%s: %w", method, errInjected)
	}
	return nil
}

func (t *memTx) GetProduct(_ context.Context, id int64) (Product, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	p, ok := t.s.products[id]
	if !ok {
		return Product{}, ErrNoRows
	}
	return p, nil
}

func (t *memTx) ListVariants(_ context.Context, productID int64) ([]Variant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []Variant
	for _, v := range t.s.variants {
		if v.ProductID == productID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (t *memTx) GetVariant(_ context.Context, id int64) (Variant, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	v, ok := t.s.variants[id]
	if !ok {
		return Variant{}, ErrNoRows
	}
	return v, nil
}

func (t *memTx) VariantRecipe(_ context.Context, variantID int64) ([]RecipeItem, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.vRecipes[variantID], nil
}

func (t *memTx) ProductRecipe(_ context.Context, productID int64) ([]RecipeItem, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.pRecipes[productID], nil
}

func (t *memTx) LockCustomer(_ context.Context, id int64) (Customer, error) {
	t.lock(fmt.Sprintf("customer:%d", id))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	c, ok := t.s.customers[id]
	if !ok {
		return Customer{}, ErrNoRows
	}
	if p, ok := t.points[id]; ok {
		c.LoyaltyPoints = p
	}
	return c, nil
}

func (t *memTx) LockIngredient(_ context.Context, id int64) (Ingredient, error) {
	t.lock(fmt.Sprintf("ingredient:%d", id))
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	ing, ok := t.s.ingredients[id]
	if !ok {
		return Ingredient{}, ErrNoRows
	}
	if v, ok := t.stock[id]; ok {
		ing.Stock = v
	}
	return ing, nil
}

func (t *memTx) DecrementStock(_ context.Context, id int64, qty decimal.Decimal) error {
	if err := t.fail("DecrementStock"); err != nil {
		return err
	}
	if _, ok := t.held[fmt.Sprintf("ingredient:%d", id)]; !ok {
		return fmt.Errorf("ingredient %d decremented without lock", id)
	}
	t.s.mu.Lock()
	cur := t.s.ingredients[id].Stock
	t.s.mu.Unlock()
	if v, ok := t.stock[id]; ok {
		cur = v
	}
	next := cur.Sub(qty)
	if next.IsNegative() {
		return fmt.Errorf("ingredient %d: stock_quantity check violated", id)
	}
	t.stock[id] = next
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	t.s.mu.Lock()
	t.s.nextOrderID++
	o.ID = t.s.nextOrderID
	t.s.mu.Unlock()
	cp := *o
	t.orders = append(t.orders, &cp)
	return nil
}

func (t *memTx) InsertOrderLines(_ context.Context, orderID int64, lines []OrderLine) error {
	if err := t.fail("InsertOrderLines"); err != nil {
		return err
	}
	for _, o := range t.orders {
		if o.ID == orderID {
			o.Lines = append([]OrderLine(nil), lines...)
			return nil
		}
	}
	return fmt.Errorf("order %d not inserted in this tx", orderID)
}

func (t *memTx) SetLoyaltyPoints(_ context.Context, customerID int64, points int) error {
	if err := t.fail("SetLoyaltyPoints"); err != nil {
		return err
	}
	if points < 0 {
		return fmt.Errorf("customer %d: loyalty_points check violated", customerID)
	}
	t.points[customerID] = points
	return nil
}

func (t *memTx) OrderByIdempotencyKey(_ context.Context, key string) (Order, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, o := range t.s.orders {
		if o.IdempotencyKey == key {
			return o, nil
		}
	}
	return Order{}, ErrNoRows
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func i64(v int64) *int64 { return &v }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

const (
	ingBeans int64 = 1
	ingMilk  int64 = 2
	ingCup   int64 = 3
	ingDough int64 = 4

	prodLatte    int64 = 1
	prodEspresso int64 = 2
	prodCookie   int64 = 3 // no variants, product recipe
	prodTea      int64 = 4 // no variants, no recipe
	prodMocha    int64 = 5 // only inactive variants
	prodWater    int64 = 6 // variant without recipe

	latteS int64 = 10
	latteM int64 = 11
	latteL int64 = 12
	espS   int64 = 20
	espL   int64 = 21
	mochaM int64 = 50
	waterM int64 = 60

	custAna   int64 = 1 // 51 points
	custBen   int64 = 2 // 50 points
	custChloe int64 = 3 // 0 points
)

func cafeFixture() *memStore {
	s := newMemStore()

	s.ingredients[ingBeans] = Ingredient{ID: ingBeans, Name: "espresso beans", Unit: UnitGram, Stock: d("1000"), AlertThreshold: d("100")}
	s.ingredients[ingMilk] = Ingredient{ID: ingMilk, Name: "milk", Unit: UnitMl, Stock: d("2000"), AlertThreshold: d("500")}
	s.ingredients[ingCup] = Ingredient{ID: ingCup, Name: "cup", Unit: UnitCount, Stock: d("50"), AlertThreshold: d("10")}
	s.ingredients[ingDough] = Ingredient{ID: ingDough, Name: "cookie dough", Unit: UnitGram, Stock: d("500"), AlertThreshold: d("50")}

	for _, p := range []Product{
		{ID: prodLatte, Name: "Latte", BasePrice: d("4.50"), Active: true},
		{ID: prodEspresso, Name: "Espresso", BasePrice: d("3.00"), Active: true},
		{ID: prodCookie, Name: "Cookie", BasePrice: d("2.50"), Active: true},
		{ID: prodTea, Name: "Tea", BasePrice: d("2.00"), Active: true},
		{ID: prodMocha, Name: "Mocha", BasePrice: d("5.00"), Active: true},
		{ID: prodWater, Name: "Water", BasePrice: d("1.00"), Active: true},
	} {
		s.products[p.ID] = p
	}

	for _, v := range []Variant{
		{ID: latteS, ProductID: prodLatte, Size: SizeSmall, Price: d("3.80"), Active: true},
		{ID: latteM, ProductID: prodLatte, Size: SizeMedium, Price: d("4.50"), Active: true},
		{ID: latteL, ProductID: prodLatte, Size: SizeLarge, Price: d("5.20"), Active: true},
		{ID: espS, ProductID: prodEspresso, Size: SizeSmall, Price: d("3.00"), Active: true},
		{ID: espL, ProductID: prodEspresso, Size: SizeLarge, Price: d("4.00"), Active: true},
		{ID: mochaM, ProductID: prodMocha, Size: SizeMedium, Price: d("5.00"), Active: false},
		{ID: waterM, ProductID: prodWater, Size: SizeMedium, Price: d("1.00"), Active: true},
	} {
		s.variants[v.ID] = v
	}

	s.vRecipes[latteS] = []RecipeItem{{ingBeans, d("18")}, {ingMilk, d("200")}, {ingCup, d("1")}}
	s.vRecipes[latteM] = []RecipeItem{{ingMilk, d("300")}, {ingBeans, d("18")}, {ingCup, d("1")}}
	s.vRecipes[latteL] = []RecipeItem{{ingBeans, d("36")}, {ingMilk, d("400")}, {ingCup, d("1")}}
	s.vRecipes[espS] = []RecipeItem{{ingBeans, d("18")}, {ingCup, d("1")}}
	s.vRecipes[espL] = []RecipeItem{{ingBeans, d("36")}, {ingCup, d("1")}}
	s.vRecipes[mochaM] = []RecipeItem{{ingBeans, d("18")}, {ingMilk, d("250")}}
	s.pRecipes[prodCookie] = []RecipeItem{{ingDough, d("80")}}

	s.customers[custAna] = Customer{ID: custAna, Name: "Ana", LoyaltyPoints: 51}
	s.customers[custBen] = Customer{ID: custBen, Name: "Ben", LoyaltyPoints: 50}
	s.customers[custChloe] = Customer{ID: custChloe, Name: "Chloe"}
	return s
}
