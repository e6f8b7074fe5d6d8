package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpointReturnsStatusOK(t *testing.T) {
	s := New(nil, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("got content-type %q", ct)
	}
	if want := `{"status":"ok","version":"dev"}`; rec.Body.String() != want+"\n" {
		t.Fatalf("got body %q, want %q", rec.Body.String(), want)
	}
}

func TestWebhookRouteUnmountedWithNilHandler(t *testing.T) {
	s := New(nil, false)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/deploy", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404 when no webhook handler is wired", rec.Code)
	}
}

func TestWebhookRouteMountedWithHandler(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	s := New(handler, false)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/deploy", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected the webhook handler to be invoked")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

func TestMetricsRouteUnmountedWhenDisabled(t *testing.T) {
	s := New(nil, false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404 when metrics are disabled", rec.Code)
	}
}

func TestMetricsRouteMountedWhenEnabled(t *testing.T) {
	s := New(nil, true)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200 from the promhttp handler", rec.Code)
	}
}
