/**
 * 中间件:限流器中间件
 * @author: sun977
 * @date: 2025.12.16
 * @description: 按客户端IP的令牌桶限流
 * @func:
 *   - GinRateLimitMiddleware 默认限流器中间件[根据客户端IP进行限流]
 */
package middleware

import (
	"net/http"
	"sync"
	"time"

	"tasktracker/internal/model/system"
	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// defaultLimiterTTL 客户端限流器闲置多久后被清理
const defaultLimiterTTL = 10 * time.Minute

// IPRateLimiter 按key(客户端IP)维护的令牌桶集合
type IPRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter 创建限流器
// rps 每秒生成的令牌数，burst 桶容量，ttl 闲置清理时间
func NewIPRateLimiter(rps, burst int, ttl time.Duration) *IPRateLimiter {
	if burst <= 0 {
		burst = rps
	}
	if ttl <= 0 {
		ttl = defaultLimiterTTL
	}
	return &IPRateLimiter{
		limiters:  make(map[string]*clientLimiter),
		rate:      rate.Limit(rps),
		burst:     burst,
		ttl:       ttl,
		lastSweep: time.Now(),
	}
}

// Allow 检查是否允许请求
func (l *IPRateLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	if now.Sub(l.lastSweep) > l.ttl {
		l.sweep(now)
	}
	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = cl
	}
	cl.lastSeen = now
	l.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

// Reset 重置指定key的限流状态
func (l *IPRateLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}

// sweep 清理闲置的限流器(调用方持有锁)
func (l *IPRateLimiter) sweep(now time.Time) {
	for key, cl := range l.limiters {
		if now.Sub(cl.lastSeen) > l.ttl {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}

// GinRateLimitMiddleware 默认限流中间件
// 使用配置文件中的限流策略
func (m *MiddlewareManager) GinRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.rateLimiter == nil || m.shouldSkipRateLimit(c) {
			c.Next()
			return
		}

		clientIP := utils.GetClientIP(c)
		if !m.rateLimiter.Allow(clientIP) {
			logger.LogBusinessOperation("rate_limit_exceeded", 0, clientIP, c.GetHeader("X-Request-ID"), logger.ResultFailed, "Rate limit exceeded for client", map[string]interface{}{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})

			status := m.securityConfig.RateLimit.StatusCode
			if status == 0 {
				status = http.StatusTooManyRequests
			}
			message := m.securityConfig.RateLimit.Message
			if message == "" {
				message = "Too many requests, please try again later"
			}
			c.AbortWithStatusJSON(status, system.APIResponse{
				Code:    status,
				Status:  "failed",
				Message: message,
				Error:   "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		c.Next()
	}
}

// shouldSkipRateLimit 检查是否应该跳过限流
func (m *MiddlewareManager) shouldSkipRateLimit(c *gin.Context) bool {
	path := c.Request.URL.Path
	for _, skipPath := range m.securityConfig.RateLimit.SkipPaths {
		if path == skipPath {
			return true
		}
	}

	clientIP := utils.GetClientIP(c)
	for _, skipIP := range m.securityConfig.RateLimit.SkipIPs {
		if clientIP == skipIP {
			return true
		}
	}
	return false
}
