package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/auth"
	kafkax "github.com/ariefcatur/go-cafe-pos/internal/kafka"
	"github.com/ariefcatur/go-cafe-pos/internal/logging"
	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxIdempotencyKeyLen = 128

type Checkouter interface {
	Checkout(ctx context.Context, staffID int64, b orders.Basket) (orders.Receipt, error)
}

type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	GetStatus(ctx context.Context, id int64) (orders.Status, error)
	ListPending(ctx context.Context) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id int64, to orders.Status) (orders.Status, error)
}

// Cache is the Redis side of the order endpoints. Every call is best
// effort; Postgres stays authoritative.
type Cache interface {
	Receipt(ctx context.Context, staffID int64, key string) (orders.Receipt, bool, error)
	PutReceipt(ctx context.Context, staffID int64, key string, rc orders.Receipt) error
	Status(ctx context.Context, orderID int64) (orders.Status, bool, error)
	SetStatus(ctx context.Context, orderID int64, s orders.Status) error
	InvalidateStatus(ctx context.Context, orderID int64) error
}

type OrdersHandler struct {
	Checkout      Checkouter
	Orders        OrderStore
	Cache         Cache            // optional
	Created       kafkax.Publisher // cafe.order.created, optional
	StatusChanged kafkax.Publisher // cafe.order.status_changed, optional
	Service       string
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.With(auth.RequireRole(auth.RoleAdmin, auth.RoleCashier)).Post("/orders", h.createOrder)
	r.With(auth.RequireRole(auth.RoleAdmin, auth.RoleBarista)).Get("/orders/pending", h.listPending)
	r.With(auth.RequireRole(auth.RoleAdmin)).Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.With(auth.RequireRole(auth.RoleAdmin, auth.RoleBarista)).Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	who, _ := auth.FromContext(r.Context())

	var b orders.Basket
	if !decode(w, r, &b) {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLen {
		badRequest(w, "Idempotency-Key is too long")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// fast path; the order row's unique key is the real guard
	if key != "" && h.Cache != nil {
		if rc, ok, err := h.Cache.Receipt(ctx, who.UserID, key); err == nil && ok {
			rc.Replayed = true
			writeJSON(w, http.StatusOK, rc)
			return
		}
	}
	if key != "" {
		b.IdempotencyKey = fmt.Sprintf("%d:%s", who.UserID, key)
	}

	rc, err := h.Checkout.Checkout(ctx, who.UserID, b)
	if err != nil {
		writeError(w, h.Service, "checkout", err)
		return
	}
	if rc.Replayed {
		writeJSON(w, http.StatusOK, rc)
		return
	}

	if h.Cache != nil {
		if key != "" {
			if err := h.Cache.PutReceipt(ctx, who.UserID, key, rc); err != nil {
				logging.Error(h.Service, "cache receipt", err)
			}
		}
		_ = h.Cache.SetStatus(ctx, rc.OrderID, rc.Status)
	}
	h.publish(h.Created, rc.OrderID, orders.EventOrderCreated, middleware.GetReqID(r.Context()),
		orders.NewOrderCreatedPayload(rc))

	writeJSON(w, http.StatusCreated, rc)
}

func (h *OrdersHandler) publish(p kafkax.Publisher, orderID int64, eventType, traceID string, payload any) {
	if p == nil {
		return
	}
	id := strconv.FormatInt(orderID, 10)
	env, err := kafkax.PublishEvent(p, orders.PartitionKey(orderID), eventType, h.Service, traceID, id, payload)
	if err != nil {
		logging.Error(h.Service, "publish "+eventType, err)
		return
	}
	logging.Log(logging.Fields{Service: h.Service, OrderID: id, EventID: env.EventID, Step: "publish", Status: eventType})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		writeError(w, h.Service, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusResp struct {
	OrderID int64         `json:"orderId"`
	Status  orders.Status `json:"status"`
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, ok, err := h.Cache.Status(ctx, id); err == nil && ok {
			writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: s})
			return
		}
	}
	s, err := h.Orders.GetStatus(ctx, id)
	if err != nil {
		writeError(w, h.Service, "get status", err)
		return
	}
	if h.Cache != nil {
		_ = h.Cache.SetStatus(ctx, id, s)
	}
	writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: s})
}

func (h *OrdersHandler) listPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	pending, err := h.Orders.ListPending(ctx)
	if err != nil {
		writeError(w, h.Service, "list pending", err)
		return
	}
	if pending == nil {
		pending = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, pending)
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req updateStatusReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	from, err := h.Orders.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		writeError(w, h.Service, "update status", err)
		return
	}
	if h.Cache != nil {
		if err := h.Cache.SetStatus(ctx, id, req.Status); err != nil {
			logging.Error(h.Service, "cache status", err)
			if err := h.Cache.InvalidateStatus(ctx, id); err != nil {
				logging.Error(h.Service, "invalidate status", err)
			}
		}
	}
	h.publish(h.StatusChanged, id, orders.EventOrderStatusChanged, middleware.GetReqID(r.Context()),
		orders.OrderStatusChangedPayload{OrderID: id, From: from, To: req.Status})

	writeJSON(w, http.StatusOK, statusResp{OrderID: id, Status: req.Status})
}
