package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"route", "method", "status"},
	)
	ReqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	AuthOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_operations_total", Help: "Auth operations by outcome"},
		[]string{"operation", "outcome"},
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors with the default registry. Safe to call more than once.
func MustRegister() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal, ReqDuration, AuthOperations)
	})
}

// ObserveAuth counts one auth operation; outcome is "success" or the failure kind.
func ObserveAuth(operation, outcome string) {
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}
