package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-cafe-pos/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests   *prometheus.CounterVec
	LatencyMS  *prometheus.HistogramVec
	Checkouts  *prometheus.CounterVec
	CheckoutMS *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer
// to expose them on Handler().
func New(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cafe",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Name:      "checkouts_total",
			Help:      "Checkouts by outcome (committed, replayed or error kind).",
		}, []string{"outcome", "phase"}),
		CheckoutMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cafe",
			Name:      "checkout_duration_ms",
			Help:      "Checkout transaction latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.Checkouts, m.CheckoutMS)
	return m
}

// CheckoutDone implements orders.Observer.
func (m *ServerMetrics) CheckoutDone(outcome string, last orders.Phase, d time.Duration) {
	m.Checkouts.WithLabelValues(outcome, string(last)).Inc()
	m.CheckoutMS.WithLabelValues(outcome).Observe(float64(d.Milliseconds()))
}

// Middleware counts requests per chi route pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
