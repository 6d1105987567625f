package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/ariefcatur/go-cafe-pos/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

const (
	productColumns = `SELECT id, name, base_price, category_id, image_url, is_active FROM products`
	variantColumns = `SELECT id, product_id, size, price, is_active FROM product_variants`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.ID, &p.Name, &p.BasePrice, &p.CategoryID, &p.ImageURL, &p.Active)
	return p, err
}

func scanVariant(row scanner) (orders.Variant, error) {
	var (
		v    orders.Variant
		size string
	)
	err := row.Scan(&v.ID, &v.ProductID, &size, &v.Price, &v.Active)
	v.Size = orders.Size(size)
	return v, err
}

// ListProducts returns active products with their active variants, the
// menu a cashier sells from.
func (r *Repo) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, p.base_price, p.category_id, p.image_url, p.is_active,
		       v.id, v.size, v.price, v.is_active
		FROM products p
		LEFT JOIN product_variants v ON v.product_id = p.id AND v.is_active
		WHERE p.is_active
		ORDER BY p.name, p.id, v.id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var (
			p       orders.Product
			vID     *int64
			vSize   *string
			vPrice  *decimal.Decimal
			vActive *bool
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.BasePrice, &p.CategoryID, &p.ImageURL, &p.Active,
			&vID, &vSize, &vPrice, &vActive); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].ID != p.ID {
			out = append(out, p)
		}
		if vID != nil {
			last := &out[len(out)-1]
			last.Variants = append(last.Variants, orders.Variant{
				ID: *vID, ProductID: p.ID, Size: orders.Size(*vSize), Price: *vPrice, Active: *vActive,
			})
		}
	}
	return out, rows.Err()
}

// Product returns one product with all its variants, inactive ones
// included.
func (r *Repo) Product(ctx context.Context, id int64) (orders.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, productColumns+` WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, notFound("product %d not found", id)
	}
	if err != nil {
		return p, fmt.Errorf("get product: %w", err)
	}

	rows, err := r.DB.Query(ctx, variantColumns+` WHERE product_id=$1 ORDER BY id`, id)
	if err != nil {
		return p, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return p, fmt.Errorf("scan variant: %w", err)
		}
		p.Variants = append(p.Variants, v)
	}
	return p, rows.Err()
}

func (r *Repo) CreateProduct(ctx context.Context, p ProductPatch) (orders.Product, error) {
	if p.Name == nil || p.BasePrice == nil {
		return orders.Product{}, invalid("name and basePrice are required")
	}
	prod, err := MergeProduct(orders.Product{Active: true}, p)
	if err != nil {
		return prod, err
	}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO products(name, base_price, category_id, image_url, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		prod.Name, prod.BasePrice, prod.CategoryID, prod.ImageURL, prod.Active).Scan(&prod.ID)
	if postgres.IsForeignKeyViolation(err) {
		return prod, notFound("category %d not found", *prod.CategoryID)
	}
	if err != nil {
		return prod, fmt.Errorf("insert product: %w", err)
	}
	return prod, nil
}

func (r *Repo) UpdateProduct(ctx context.Context, id int64, p ProductPatch) (orders.Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Product{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanProduct(tx.QueryRow(ctx, productColumns+` WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, notFound("product %d not found", id)
	}
	if err != nil {
		return orders.Product{}, fmt.Errorf("lock product: %w", err)
	}

	next, err := MergeProduct(cur, p)
	if err != nil {
		return next, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE products SET name=$2, base_price=$3, category_id=$4, image_url=$5, is_active=$6
		WHERE id=$1`,
		id, next.Name, next.BasePrice, next.CategoryID, next.ImageURL, next.Active)
	if postgres.IsForeignKeyViolation(err) {
		return next, notFound("category %d not found", *next.CategoryID)
	}
	if err != nil {
		return next, fmt.Errorf("update product: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return next, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// DeleteProduct removes a product with its variants and recipes. A product
// that was ever sold is kept for its order history; deactivate it instead.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return &orders.Error{Kind: orders.KindConflict, Msg: fmt.Sprintf("product %d has orders, deactivate it instead", id), Err: err}
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("product %d not found", id)
	}
	return nil
}

func (r *Repo) CreateVariant(ctx context.Context, productID int64, p VariantPatch) (orders.Variant, error) {
	if p.Size == nil || p.Price == nil {
		return orders.Variant{}, invalid("size and price are required")
	}
	v, err := MergeVariant(orders.Variant{ProductID: productID, Active: true}, p)
	if err != nil {
		return v, err
	}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO product_variants(product_id, size, price, is_active)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		productID, string(v.Size), v.Price, v.Active).Scan(&v.ID)
	if postgres.IsForeignKeyViolation(err) {
		return v, notFound("product %d not found", productID)
	}
	if err != nil {
		return v, fmt.Errorf("insert variant: %w", err)
	}
	return v, nil
}

func (r *Repo) UpdateVariant(ctx context.Context, id int64, p VariantPatch) (orders.Variant, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Variant{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := scanVariant(tx.QueryRow(ctx, variantColumns+` WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Variant{}, notFound("variant %d not found", id)
	}
	if err != nil {
		return orders.Variant{}, fmt.Errorf("lock variant: %w", err)
	}

	next, err := MergeVariant(cur, p)
	if err != nil {
		return next, err
	}
	if _, err := tx.Exec(ctx, `UPDATE product_variants SET size=$2, price=$3, is_active=$4 WHERE id=$1`,
		id, string(next.Size), next.Price, next.Active); err != nil {
		return next, fmt.Errorf("update variant: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return next, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (r *Repo) DeleteVariant(ctx context.Context, id int64) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM product_variants WHERE id=$1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return &orders.Error{Kind: orders.KindConflict, Msg: fmt.Sprintf("variant %d has orders, deactivate it instead", id), Err: err}
	}
	if err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("variant %d not found", id)
	}
	return nil
}

// recipeTable names one of the two recipe tables: per variant, or per
// product for products sold without variants.
type recipeTable struct {
	table, owner, ownerTable, label string
}

var (
	variantRecipes = recipeTable{"recipe_items", "product_variant_id", "product_variants", "variant"}
	productRecipes = recipeTable{"product_ingredients", "product_id", "products", "product"}
)

func (r *Repo) VariantRecipe(ctx context.Context, variantID int64) ([]orders.RecipeItem, error) {
	return r.recipe(ctx, variantRecipes, variantID)
}

func (r *Repo) ProductRecipe(ctx context.Context, productID int64) ([]orders.RecipeItem, error) {
	return r.recipe(ctx, productRecipes, productID)
}

func (r *Repo) recipe(ctx context.Context, t recipeTable, ownerID int64) ([]orders.RecipeItem, error) {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM `+t.ownerTable+` WHERE id=$1)`, ownerID).
		Scan(&exists); err != nil {
		return nil, fmt.Errorf("check %s: %w", t.label, err)
	}
	if !exists {
		return nil, notFound("%s %d not found", t.label, ownerID)
	}

	rows, err := r.DB.Query(ctx, `SELECT ingredient_id, quantity_needed FROM `+t.table+`
		WHERE `+t.owner+`=$1 ORDER BY ingredient_id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list %s recipe: %w", t.label, err)
	}
	defer rows.Close()
	out := []orders.RecipeItem{}
	for rows.Next() {
		var it orders.RecipeItem
		if err := rows.Scan(&it.IngredientID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan recipe item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetVariantRecipe replaces the whole recipe of a variant.
func (r *Repo) SetVariantRecipe(ctx context.Context, variantID int64, items []orders.RecipeItem) error {
	return r.setRecipe(ctx, variantRecipes, variantID, items, nil)
}

// SetProductRecipe replaces the recipe of a product sold without variants.
// Products with variants keep their recipes per variant.
func (r *Repo) SetProductRecipe(ctx context.Context, productID int64, items []orders.RecipeItem) error {
	return r.setRecipe(ctx, productRecipes, productID, items, func(tx pgx.Tx) error {
		var n int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM product_variants WHERE product_id=$1`, productID).
			Scan(&n); err != nil {
			return fmt.Errorf("count variants: %w", err)
		}
		if n > 0 {
			return invalid("product %d has variants, set the recipe per variant", productID)
		}
		return nil
	})
}

func (r *Repo) setRecipe(ctx context.Context, t recipeTable, ownerID int64, items []orders.RecipeItem, check func(pgx.Tx) error) error {
	if err := ValidateRecipe(items); err != nil {
		return err
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM `+t.ownerTable+` WHERE id=$1 FOR UPDATE`, ownerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("%s %d not found", t.label, ownerID)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", t.label, err)
	}
	if check != nil {
		if err := check(tx); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM `+t.table+` WHERE `+t.owner+`=$1`, ownerID); err != nil {
		return fmt.Errorf("clear %s recipe: %w", t.label, err)
	}
	for _, it := range items {
		_, err := tx.Exec(ctx, `INSERT INTO `+t.table+`(`+t.owner+`, ingredient_id, quantity_needed) VALUES ($1, $2, $3)`,
			ownerID, it.IngredientID, it.Quantity)
		if postgres.IsForeignKeyViolation(err) {
			return notFound("ingredient %d not found", it.IngredientID)
		}
		if err != nil {
			return fmt.Errorf("insert recipe item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
