package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/auth"
	"github.com/ariefcatur/go-cafe-pos/internal/customers"
	"github.com/ariefcatur/go-cafe-pos/internal/inventory"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/go-chi/chi/v5"
)

type IngredientStore interface {
	List(ctx context.Context) ([]orders.Ingredient, error)
	LowStock(ctx context.Context) ([]orders.Ingredient, error)
	Create(ctx context.Context, p inventory.Patch) (orders.Ingredient, error)
	Update(ctx context.Context, id int64, p inventory.Patch) (orders.Ingredient, error)
	Delete(ctx context.Context, id int64) error
}

type CustomerStore interface {
	List(ctx context.Context) ([]orders.Customer, error)
	Create(ctx context.Context, p customers.Patch) (orders.Customer, error)
	Update(ctx context.Context, id int64, p customers.Patch) (orders.Customer, error)
}

type SettingsStore interface {
	All(ctx context.Context) (map[string]string, error)
	Put(ctx context.Context, values map[string]string) error
}

// CatalogHandler serves the back-office resources: products, ingredients,
// customers and settings.
type CatalogHandler struct {
	Products    ProductStore
	Ingredients IngredientStore
	Customers   CustomerStore
	Settings    SettingsStore
	Service     string
}

func (h *CatalogHandler) Register(r chi.Router) {
	admin := auth.RequireRole(auth.RoleAdmin)
	front := auth.RequireRole(auth.RoleAdmin, auth.RoleCashier)

	r.Get("/products", h.listProducts)
	r.With(admin).Post("/products", h.createProduct)
	r.With(admin).Get("/products/{id}", h.getProduct)
	r.With(admin).Put("/products/{id}", h.updateProduct)
	r.With(admin).Delete("/products/{id}", h.deleteProduct)
	r.With(admin).Get("/products/{id}/recipe", h.getProductRecipe)
	r.With(admin).Put("/products/{id}/recipe", h.putProductRecipe)
	r.With(admin).Post("/products/{id}/variants", h.createVariant)
	r.With(admin).Put("/variants/{id}", h.updateVariant)
	r.With(admin).Delete("/variants/{id}", h.deleteVariant)
	r.With(admin).Get("/variants/{id}/recipe", h.getVariantRecipe)
	r.With(admin).Put("/variants/{id}/recipe", h.putVariantRecipe)

	r.Get("/ingredients", h.listIngredients)
	r.Get("/ingredients/low-stock", h.lowStock)
	r.With(admin).Post("/ingredients", h.createIngredient)
	r.With(admin).Put("/ingredients/{id}", h.updateIngredient)
	r.With(admin).Delete("/ingredients/{id}", h.deleteIngredient)

	r.With(front).Get("/customers", h.listCustomers)
	r.With(front).Post("/customers", h.createCustomer)
	r.With(front).Put("/customers/{id}", h.updateCustomer)

	r.Get("/settings", h.getSettings)
	r.With(admin).Put("/settings", h.putSettings)
}

func orEmpty[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (h *CatalogHandler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	is, err := h.Ingredients.List(ctx)
	if err != nil {
		writeError(w, h.Service, "list ingredients", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(is))
}

func (h *CatalogHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	is, err := h.Ingredients.LowStock(ctx)
	if err != nil {
		writeError(w, h.Service, "low stock", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(is))
}

func (h *CatalogHandler) createIngredient(w http.ResponseWriter, r *http.Request) {
	var p inventory.Patch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ing, err := h.Ingredients.Create(ctx, p)
	if err != nil {
		writeError(w, h.Service, "create ingredient", err)
		return
	}
	writeJSON(w, http.StatusCreated, ing)
}

func (h *CatalogHandler) updateIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p inventory.Patch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ing, err := h.Ingredients.Update(ctx, id, p)
	if err != nil {
		writeError(w, h.Service, "update ingredient", err)
		return
	}
	writeJSON(w, http.StatusOK, ing)
}

func (h *CatalogHandler) deleteIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Ingredients.Delete(ctx, id); err != nil {
		writeError(w, h.Service, "delete ingredient", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) listCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Customers.List(ctx)
	if err != nil {
		writeError(w, h.Service, "list customers", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cs))
}

func (h *CatalogHandler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var p customers.Patch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Customers.Create(ctx, p)
	if err != nil {
		writeError(w, h.Service, "create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var p customers.Patch
	if !decode(w, r, &p) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Customers.Update(ctx, id, p)
	if err != nil {
		writeError(w, h.Service, "update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.Settings.All(ctx)
	if err != nil {
		writeError(w, h.Service, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// putSettings accepts string or bare JSON values, e.g. {"tax_rate": 0.2}.
func (h *CatalogHandler) putSettings(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			s = strings.TrimSpace(string(v))
		}
		values[k] = s
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Settings.Put(ctx, values); err != nil {
		writeError(w, h.Service, "put settings", err)
		return
	}
	all, err := h.Settings.All(ctx)
	if err != nil {
		writeError(w, h.Service, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}
