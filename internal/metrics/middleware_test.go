package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const sessionID = "3f2b8c1e-6a0d-4e5b-9c7f-1d2e3a4b5c6d"

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Delete("/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/sessions/{id}/documents", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Post("/sessions/{id}/ask", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func serve(t *testing.T, h http.Handler, method, path string) int {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, http.NoBody))
	return rr.Code
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	h := newTestRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/sessions/{id}/ask", "200"))

	if code := serve(t, h, "POST", "/sessions/"+sessionID+"/ask"); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/sessions/{id}/ask", "200"))
	if after-before != 1 {
		t.Errorf("expected one request under the route pattern, got %f", after-before)
	}
	raw := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/sessions/"+sessionID+"/ask", "200"))
	if raw != 0 {
		t.Errorf("raw session path leaked into labels: %f", raw)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds to have observations")
	}
}

func TestMetricsMiddleware_StatusAndMethod(t *testing.T) {
	h := newTestRouter()

	tests := []struct {
		method  string
		path    string
		pattern string
		status  string
	}{
		{"POST", "/sessions", "/sessions", "201"},
		{"DELETE", "/sessions/" + sessionID, "/sessions/{id}", "204"},
		{"POST", "/sessions/" + sessionID + "/documents", "/sessions/{id}/documents", "400"},
		{"GET", "/health", "/health", "200"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.pattern, func(t *testing.T) {
			before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.pattern, tc.status))
			serve(t, h, tc.method, tc.path)
			after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.pattern, tc.status))
			if after-before != 1 {
				t.Errorf("expected requests_total{%s %s %s} to grow by 1, got %f",
					tc.method, tc.pattern, tc.status, after-before)
			}
		})
	}
}

func TestMetricsMiddleware_UnmatchedRouteIsUnknown(t *testing.T) {
	h := newTestRouter()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404"))

	if code := serve(t, h, "GET", "/collections/legacy"); code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", code)
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "404"))
	if after-before != 1 {
		t.Errorf("expected unmatched request under \"unknown\", got %f", after-before)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unknown"},
		{"/*", "unknown"},
		{"/", "/"},
		{"/sessions/", "/sessions"},
		{"/sessions/{id}/ask", "/sessions/{id}/ask"},
		{"/health", "/health"},
	}

	for _, tc := range tests {
		if got := normalizePath(tc.input); got != tc.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}
