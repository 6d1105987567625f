package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/auth"
	"github.com/ariefcatur/go-cafe-pos/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Deps struct {
	Tokens  *auth.Tokens
	Metrics *metrics.ServerMetrics // optional
	Auth    *AuthHandler
	Orders  *OrdersHandler
	Catalog *CatalogHandler
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		if d.Auth != nil {
			d.Auth.RegisterPublic(api)
		}
		api.Group(func(p chi.Router) {
			p.Use(auth.RequireAuth(d.Tokens))
			if d.Auth != nil {
				d.Auth.Register(p)
			}
			if d.Orders != nil {
				d.Orders.Register(p)
			}
			if d.Catalog != nil {
				d.Catalog.Register(p)
			}
		})
	})
	return r
}
