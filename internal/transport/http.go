package transport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artisansalley/backend/internal/handler"
	"github.com/artisansalley/backend/internal/order"
	"github.com/artisansalley/backend/internal/user"
	"github.com/artisansalley/backend/pkg/metrics"
)

func NewRouter(svc order.Service, users user.Repository, m *metrics.ServerMetrics) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	h := handler.NewOrderHandler(svc, m)

	r.Group(func(r chi.Router) {
		r.Use(metricsMiddleware(m))
		r.Use(handler.ActorMiddleware(users))

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Patch("/orders/{id}", h.UpdateOrder)
		r.Post("/orders/{id}/cancel", h.CancelOrder)
	})

	return r
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			path := chi.RouteContext(r.Context()).RoutePattern()
			if path == "" {
				path = r.URL.Path
			}
			m.Requests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			m.Duration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
