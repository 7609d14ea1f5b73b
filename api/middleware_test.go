package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestRequestLogMiddlewareAssignsRequestID(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestLogMiddleware())
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("a request id should be assigned")
	}
}

func TestRequestLogMiddlewarePreservesRequestID(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RequestLogMiddleware())
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Request-ID", "delivery-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "delivery-7" {
		t.Fatalf("caller-supplied request id should be echoed, got %q", got)
	}
}
