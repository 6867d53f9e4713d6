package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(NewHandler(&fakeRecommender{}), RouterConfig{RateLimitDisabled: true, SecureHeaders: true})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/recommendations?userId=u1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Headers(t *testing.T) {
	router := NewRouter(NewHandler(&fakeRecommender{}), RouterConfig{
		RateLimitDisabled: true,
		SecureHeaders:     true,
		CORSOrigins:       []string{"https://shop.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	req.Header.Set("Origin", "https://shop.example.com")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "req-123" {
		t.Errorf("X-Request-Id = %q, want req-123", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRouter_RateLimit(t *testing.T) {
	router := NewRouter(NewHandler(&fakeRecommender{}), RouterConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	})

	first := doGet(t, router, "/recommendations?userId=u1", "Bearer t")
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", first.Code)
	}
	second := doGet(t, router, "/recommendations?userId=u1", "Bearer t")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
	// healthz 不受限流影响
	if rr := doGet(t, router, "/healthz", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rr.Code)
	}
}
