package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for one registry. Pass a fresh registry in tests.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	proxyVerifications  *prometheus.CounterVec
	adminCallsTotal     *prometheus.CounterVec
	adminCallDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		proxyVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "app_proxy_verifications_total",
				Help: "App proxy signature checks by result",
			},
			[]string{"result"},
		),
		adminCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shopify_admin_calls_total",
				Help: "Shopify Admin API calls by path and status",
			},
			[]string{"method", "path", "status"},
		),
		adminCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shopify_admin_call_duration_seconds",
				Help:    "Shopify Admin API call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.proxyVerifications,
		m.adminCallsTotal,
		m.adminCallDuration,
	)
	return m
}

func (m *Metrics) ObserveRequest(handler, method string, status int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(handler, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(elapsed.Seconds())
}

// ObserveVerification records accepted, rejected or bypassed.
func (m *Metrics) ObserveVerification(result string) {
	m.proxyVerifications.WithLabelValues(result).Inc()
}

// ObserveAdminCall records one Admin API round trip; status 0 means transport failure.
func (m *Metrics) ObserveAdminCall(method, path string, status int, elapsed time.Duration) {
	m.adminCallsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.adminCallDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
