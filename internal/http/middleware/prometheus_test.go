package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMiddleware(t *testing.T) {
	// Use a fresh registry for each test to avoid "duplicate registration" errors
	reg := prometheus.NewRegistry()
	promMiddleware, err := NewPrometheusMiddleware(reg)
	if err != nil {
		t.Fatalf("failed to create middleware: %v", err)
	}

	rt := Chain(echoTransport(http.StatusCreated, nil), promMiddleware.Middleware())

	resp, err := rt.RoundTrip(httptest.NewRequest(http.MethodPost, "http://remote.test/v1/vouchers", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", resp.StatusCode)
	}

	count := testutil.ToFloat64(promMiddleware.requestCount.WithLabelValues("POST", "/v1/vouchers", "201"))
	if count != 1 {
		t.Errorf("expected count 1, got %f", count)
	}
}

func TestPrometheusMiddleware_TransportError(t *testing.T) {
	reg := prometheus.NewRegistry()
	promMiddleware, err := NewPrometheusMiddleware(reg)
	if err != nil {
		t.Fatalf("failed to create middleware: %v", err)
	}

	failing := RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("boom")
	})
	rt := Chain(failing, promMiddleware.Middleware())
	_, _ = rt.RoundTrip(httptest.NewRequest(http.MethodPost, "http://remote.test/v1/vouchers", nil))

	count := testutil.ToFloat64(promMiddleware.requestCount.WithLabelValues("POST", "/v1/vouchers", "error"))
	if count != 1 {
		t.Errorf("expected count 1 for transport error, got %f", count)
	}
}

func TestPrometheusMiddleware_PathPattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	promMiddleware, err := NewPrometheusMiddleware(reg)
	if err != nil {
		t.Fatalf("failed to create middleware: %v", err)
	}

	rt := Chain(echoTransport(http.StatusAccepted, nil), promMiddleware.Middleware())
	for _, id := range []string{"a1", "b2"} {
		_, _ = rt.RoundTrip(httptest.NewRequest(http.MethodPost, "http://remote.test/v1/vouchers/"+id+"/files", nil))
	}

	// Should use the pattern as label, not the concrete voucher id
	count := testutil.ToFloat64(promMiddleware.requestCount.WithLabelValues("POST", "/v1/vouchers/{id}/files", "202"))
	if count != 2 {
		t.Errorf("expected count 2 for pattern, got %f", count)
	}

	countDur := testutil.CollectAndCount(promMiddleware.requestDuration)
	if countDur == 0 {
		t.Error("expected histogram metrics to be collected, got 0")
	}
}

func TestPrometheusMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMiddleware(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := NewPrometheusMiddleware(reg); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestRoutePattern(t *testing.T) {
	cases := map[string]string{
		"/v1/vouchers":           "/v1/vouchers",
		"/v1/vouchers/":          "/v1/vouchers/",
		"/v1/vouchers/xyz/files": "/v1/vouchers/{id}/files",
		"/vouchers/xyz":          "/vouchers/{id}",
		"/v1/contacts/xyz":       "/v1/contacts/xyz",
	}
	for in, want := range cases {
		if got := routePattern(in); got != want {
			t.Errorf("routePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
