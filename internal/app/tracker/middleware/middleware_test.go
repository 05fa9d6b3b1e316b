package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tasktracker/internal/config"
	"tasktracker/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(handlers...)
	engine.GET("/ping", func(c *gin.Context) {
		meta := utils.RequestMetaFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"request_id": meta.RequestID, "client_ip": meta.ClientIP})
	})
	return engine
}

func serve(engine *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	m := NewMiddlewareManager(nil)
	engine := newEngine(m.GinRequestIDMiddleware(), m.GinLoggingMiddleware())

	w := serve(engine, http.MethodGet, "/ping", nil)
	require.Equal(t, http.StatusOK, w.Code)
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Contains(t, w.Body.String(), generated)
	assert.Contains(t, w.Body.String(), "203.0.113.7")

	w = serve(engine, http.MethodGet, "/ping", map[string]string{"X-Request-ID": "upstream-id"})
	assert.Equal(t, "upstream-id", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), "upstream-id")
}

func TestRateLimitMiddleware(t *testing.T) {
	m := NewMiddlewareManager(&config.SecurityConfig{
		RateLimit: config.RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			BurstSize:         2,
			StatusCode:        http.StatusTooManyRequests,
			SkipPaths:         []string{"/api/health"},
		},
	})
	engine := newEngine(m.GinRateLimitMiddleware())
	engine.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/ping", nil).Code)
	w := serve(engine, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")

	// 跳过的路径不受限制
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/health", nil).Code)
	}

	// 不同客户端独立计数
	other := serve(engine, http.MethodGet, "/ping", map[string]string{"X-Forwarded-For": "198.51.100.1"})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	m := NewMiddlewareManager(&config.SecurityConfig{})
	engine := newEngine(m.GinRateLimitMiddleware())
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/ping", nil).Code)
	}
}

func TestIPRateLimiterSweep(t *testing.T) {
	l := NewIPRateLimiter(1, 1, 50*time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	time.Sleep(120 * time.Millisecond)
	assert.True(t, l.Allow("b"))
	l.mu.Lock()
	_, exists := l.limiters["a"]
	l.mu.Unlock()
	assert.False(t, exists, "闲置的限流器应被清理")

	l.Reset("b")
	assert.True(t, l.Allow("b"))
}

func TestCORSMiddleware(t *testing.T) {
	m := NewMiddlewareManager(&config.SecurityConfig{
		CORS: config.CORSConfig{
			Enabled:          true,
			AllowOrigins:     []string{"https://app.example.com"},
			AllowMethods:     []string{"GET", "POST"},
			AllowCredentials: true,
			MaxAge:           time.Hour,
		},
	})
	engine := newEngine(m.GinCORSMiddleware(), m.GinSecurityHeadersMiddleware())
	engine.OPTIONS("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(engine, http.MethodGet, "/ping", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = serve(engine, http.MethodGet, "/ping", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(engine, http.MethodOptions, "/ping", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}
