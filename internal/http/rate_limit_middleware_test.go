package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTriggerRouter(t *testing.T, rps float64, burst int) *gin.Engine {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := gin.New()
	router.Use(TriggerRateLimitMiddleware(ctx, rps, burst, slog.New(slog.NewTextHandler(io.Discard, nil))))
	router.POST("/run-email-batch", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func postTrigger(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/run-email-batch", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	router.ServeHTTP(w, req)
	return w
}

func TestTriggerRateLimitMiddleware_AllowsRequestsWithinBurst(t *testing.T) {
	router := newTriggerRouter(t, 1.0, 5)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, postTrigger(router, "").Code, "request %d should succeed", i+1)
	}

	assert.Equal(t, http.StatusTooManyRequests, postTrigger(router, "").Code)
}

func TestTriggerRateLimitMiddleware_Returns429WithRetryAfterHeader(t *testing.T) {
	router := newTriggerRouter(t, 0.5, 1)

	assert.Equal(t, http.StatusOK, postTrigger(router, "").Code)

	w := postTrigger(router, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
	assert.Contains(t, w.Body.String(), "Too many batch requests from this IP")
}

func TestTriggerRateLimitMiddleware_IndependentLimitsPerIP(t *testing.T) {
	router := newTriggerRouter(t, 1.0, 1)

	assert.Equal(t, http.StatusOK, postTrigger(router, "192.168.1.100:12345").Code)
	// Different port, same IP
	assert.Equal(t, http.StatusTooManyRequests, postTrigger(router, "192.168.1.100:12346").Code)
	assert.Equal(t, http.StatusOK, postTrigger(router, "192.168.1.101:12345").Code)
}

func TestRateLimiterStore_EvictIdle(t *testing.T) {
	store := &rateLimiterStore{rps: 10.0, burst: 20}

	idle := store.getLimiter("192.168.1.100")
	assert.NotNil(t, idle)
	store.getLimiter("192.168.1.101")

	val, ok := store.limiters.Load("192.168.1.100")
	assert.True(t, ok)
	entry := val.(*rateLimiterEntry)
	entry.mu.Lock()
	entry.lastAccess = time.Now().Add(-2 * time.Hour)
	entry.mu.Unlock()

	store.evictIdle(time.Now().Add(-rateLimiterIdleTTL))

	_, ok = store.limiters.Load("192.168.1.100")
	assert.False(t, ok, "idle limiter should be evicted")
	_, ok = store.limiters.Load("192.168.1.101")
	assert.True(t, ok, "active limiter should be kept")
}

func TestRateLimiterStore_ReusesLimiterPerIP(t *testing.T) {
	store := &rateLimiterStore{rps: 10.0, burst: 20}

	assert.Same(t, store.getLimiter("10.0.0.1"), store.getLimiter("10.0.0.1"))
	assert.NotSame(t, store.getLimiter("10.0.0.1"), store.getLimiter("10.0.0.2"))
}
