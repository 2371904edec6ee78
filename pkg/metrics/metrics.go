package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests        *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	OrdersPlaced    prometheus.Counter
	OrdersCancelled prometheus.Counter
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "artisansalley",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "artisansalley",
		Subsystem: service,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "artisansalley",
		Subsystem: service,
		Name:      "orders_placed_total",
		Help:      "Total number of successfully placed orders.",
	})
	ordersCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "artisansalley",
		Subsystem: service,
		Name:      "orders_cancelled_total",
		Help:      "Total number of cancelled orders.",
	})

	prometheus.MustRegister(requests, duration, ordersPlaced, ordersCancelled)
	return &ServerMetrics{
		Requests:        requests,
		Duration:        duration,
		OrdersPlaced:    ordersPlaced,
		OrdersCancelled: ordersCancelled,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
