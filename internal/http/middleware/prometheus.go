package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMiddleware holds the outbound request metrics.
type PrometheusMiddleware struct {
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusMiddleware creates the metrics and registers them on reg.
func NewPrometheusMiddleware(reg prometheus.Registerer) (*PrometheusMiddleware, error) {
	m := &PrometheusMiddleware{
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voucher_api_requests_total",
				Help: "Total number of requests sent to the voucher API.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voucher_api_request_duration_seconds",
				Help:    "Latency of requests sent to the voucher API.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	for _, c := range []prometheus.Collector{m.requestCount, m.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Middleware returns the transport wrapper that records every call.
func (m *PrometheusMiddleware) Middleware() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)

			path := routePattern(req.URL.Path)
			status := "error"
			if err == nil && resp != nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			m.requestCount.WithLabelValues(req.Method, path, status).Inc()
			m.requestDuration.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())

			return resp, err
		})
	}
}

// routePattern collapses voucher ids so label cardinality stays bounded,
// e.g. /v1/vouchers/123/files becomes /v1/vouchers/{id}/files.
func routePattern(p string) string {
	segs := strings.Split(p, "/")
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == "vouchers" && segs[i+1] != "" {
			segs[i+1] = "{id}"
			break
		}
	}
	return strings.Join(segs, "/")
}
