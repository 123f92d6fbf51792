package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success_RecordRequests", func(t *testing.T) {
		provider, err := NewProvider("dispatch_http")
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, provider.Shutdown(context.Background()))
		}()

		router := gin.New()
		router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "dispatch_http"))
		router.POST("/run-email-batch", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"processed": 0})
		})
		router.GET("/v1/emails/:id", func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		})

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/run-email-batch", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
		for _, id := range []string{"a", "b"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/emails/"+id, nil))
			assert.Equal(t, http.StatusNotFound, w.Code)
		}

		w := httptest.NewRecorder()
		provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		output := w.Body.String()

		assertBizMetricLine(t, output, `dispatch_http_http_requests_total`,
			`method="POST".*path="/run-email-batch".*status_code="200"`, `3`)
		// Path params collapse into the route pattern.
		assertBizMetricLine(t, output, `dispatch_http_http_requests_total`,
			`method="GET".*path="/v1/emails/:id".*status_code="404"`, `2`)
	})

	t.Run("Success_UnmatchedRoute", func(t *testing.T) {
		provider, err := NewProvider("dispatch_http")
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, provider.Shutdown(context.Background()))
		}()

		router := gin.New()
		router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "dispatch_http"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = httptest.NewRecorder()
		provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assertBizMetricLine(t, w.Body.String(), `dispatch_http_http_requests_total`, `path="unknown"`, `1`)
	})
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "RoutePattern", input: "/v1/emails/:id", expected: "/v1/emails/:id"},
		{name: "EmptyPath", input: "", expected: "unknown"},
		{name: "RootPath", input: "/", expected: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizePath(tt.input))
		})
	}
}
