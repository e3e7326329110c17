package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := NewRegistry(NewMemoryCounterStore(), map[string]Rule{
		"payment": {MaxRequests: 1, Window: time.Minute},
	}, FailOpen, nil)

	r := gin.New()
	r.POST("/pay", Middleware(reg, "payment"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.RemoteAddr = "10.1.1.1:4000"
	r.ServeHTTP(first, req)

	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}
	if got := first.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
	if first.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset missing")
	}
	if first.Header().Get("Retry-After") != "" {
		t.Error("Retry-After must be absent when allowed")
	}

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/pay", nil)
	req.RemoteAddr = "10.1.1.1:4000"
	r.ServeHTTP(second, req)

	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("denied response must carry Retry-After")
	}
}
