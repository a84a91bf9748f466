package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"golang.org/x/time/rate"
)

func TestAllowWithinBurst(t *testing.T) {
	rl := NewClientRateLimiter(rate.Every(time.Minute), 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d within burst should pass", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("request beyond burst should be throttled")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("a different client has its own budget")
	}
}

func TestMiddlewareRejectsWithEnvelope(t *testing.T) {
	rl := NewClientRateLimiter(rate.Every(time.Minute), 1)

	router := mux.NewRouter()
	router.Use(rl.Middleware())
	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	first := httptest.NewRequest(http.MethodGet, "/ping", nil)
	first.RemoteAddr = "192.168.1.9:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/ping", nil)
	second.RemoteAddr = "192.168.1.9:1234"
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, second)
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w2.Code)
	}
	if w2.Header().Get("Retry-After") != "60" {
		t.Fatal("throttled response should advertise Retry-After")
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5555"

	if got := clientIP(req); got != "127.0.0.1" {
		t.Fatalf("bare remote addr: got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.7" {
		t.Fatalf("forwarded: got %q", got)
	}
}
