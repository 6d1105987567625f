package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/catalog"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
)

type ProductStore interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	Product(ctx context.Context, id int64) (orders.Product, error)
	CreateProduct(ctx context.Context, p catalog.ProductPatch) (orders.Product, error)
	UpdateProduct(ctx context.Context, id int64, p catalog.ProductPatch) (orders.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateVariant(ctx context.Context, productID int64, p catalog.VariantPatch) (orders.Variant, error)
	UpdateVariant(ctx context.Context, id int64, p catalog.VariantPatch) (orders.Variant, error)
	DeleteVariant(ctx context.Context, id int64) error

	VariantRecipe(ctx context.Context, variantID int64) ([]orders.RecipeItem, error)
	SetVariantRecipe(ctx context.Context, variantID int64, items []orders.RecipeItem) error
	ProductRecipe(ctx context.Context, productID int64) ([]orders.RecipeItem, error)
	SetProductRecipe(ctx context.Context, productID int64, items []orders.RecipeItem) error
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Service, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(ps))
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Products.Product(ctx, id)
	if err != nil {
		writeError(w, h.Service, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.ProductPatch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	prod, err := h.Products.CreateProduct(ctx, p)
	if err != nil {
		writeError(w, h.Service, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, prod)
}

func (h *CatalogHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p catalog.ProductPatch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prod, err := h.Products.UpdateProduct(ctx, id, p)
	if err != nil {
		writeError(w, h.Service, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, prod)
}

func (h *CatalogHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Products.DeleteProduct(ctx, id); err != nil {
		writeError(w, h.Service, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) createVariant(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(w, r)
	if !ok {
		return
	}
	var p catalog.VariantPatch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	v, err := h.Products.CreateVariant(ctx, productID, p)
	if err != nil {
		writeError(w, h.Service, "create variant", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *CatalogHandler) updateVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p catalog.VariantPatch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	v, err := h.Products.UpdateVariant(ctx, id, p)
	if err != nil {
		writeError(w, h.Service, "update variant", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CatalogHandler) deleteVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Products.DeleteVariant(ctx, id); err != nil {
		writeError(w, h.Service, "delete variant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recipeGetter func(ctx context.Context, id int64) ([]orders.RecipeItem, error)

type recipeSetter func(ctx context.Context, id int64, items []orders.RecipeItem) error

func (h *CatalogHandler) getRecipe(w http.ResponseWriter, r *http.Request, step string, get recipeGetter) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := get(ctx, id)
	if err != nil {
		writeError(w, h.Service, step, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

// putRecipe replaces a whole recipe with the JSON array in the body.
func (h *CatalogHandler) putRecipe(w http.ResponseWriter, r *http.Request, step string, set recipeSetter, get recipeGetter) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var items []orders.RecipeItem
	if !decode(w, r, &items) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := set(ctx, id, items); err != nil {
		writeError(w, h.Service, step, err)
		return
	}
	saved, err := get(ctx, id)
	if err != nil {
		writeError(w, h.Service, step, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(saved))
}

func (h *CatalogHandler) getVariantRecipe(w http.ResponseWriter, r *http.Request) {
	h.getRecipe(w, r, "get variant recipe", h.Products.VariantRecipe)
}

func (h *CatalogHandler) putVariantRecipe(w http.ResponseWriter, r *http.Request) {
	h.putRecipe(w, r, "put variant recipe", h.Products.SetVariantRecipe, h.Products.VariantRecipe)
}

func (h *CatalogHandler) getProductRecipe(w http.ResponseWriter, r *http.Request) {
	h.getRecipe(w, r, "get product recipe", h.Products.ProductRecipe)
}

func (h *CatalogHandler) putProductRecipe(w http.ResponseWriter, r *http.Request) {
	h.putRecipe(w, r, "put product recipe", h.Products.SetProductRecipe, h.Products.ProductRecipe)
}
