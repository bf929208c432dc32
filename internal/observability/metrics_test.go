package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nexusride/nexusride-web/internal/access"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/dashboard")

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected status %d, got %d", http.StatusSeeOther, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `nexusride_http_requests_total{code="303",route="/dashboard"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `nexusride_http_request_duration_seconds_bucket{route="/dashboard"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestBackendCallsAndDecisions(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveBackendCall("fetch_subscription", "ok", 20*time.Millisecond)
	metrics.ObserveBackendCall("fetch_subscription", "auth", 5*time.Millisecond)
	metrics.ObserveAccessDecision("/dashboard", access.Redirect(access.PathSubscriber))

	body := scrape(t, metrics)
	for _, want := range []string{
		`nexusride_backend_requests_total{operation="fetch_subscription",outcome="ok"} 1`,
		`nexusride_backend_requests_total{operation="fetch_subscription",outcome="auth"} 1`,
		`nexusride_backend_request_duration_seconds_count{operation="fetch_subscription"} 2`,
		`nexusride_access_decisions_total{decision="REDIRECT(/subscriber)",path="/dashboard"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveBackendCall("login", "ok", time.Millisecond)
	m.ObserveAccessDecision("/login", access.Render(access.VariantPage))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
