/**
 * 中间件:日志相关中间件
 * @author: sun977
 * @date: 2025.12.16
 * @description: 定义日志中间件
 * @func:
 *   - GinLoggingMiddleware Gin日志中间件[同时把客户端IP存储到Gin上下文和标准上下文,供后续使用]
 */
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GinLoggingMiddleware Gin日志中间件
// 记录所有HTTP请求的访问日志，5xx 额外记录错误日志，超过阈值的请求记录慢请求告警
func (m *MiddlewareManager) GinLoggingMiddleware() gin.HandlerFunc {
	logging := m.securityConfig.Logging
	skip := make(map[string]struct{}, len(logging.SkipPaths))
	for _, p := range logging.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		clientIP := utils.GetClientIP(c)
		requestID := c.GetHeader("X-Request-ID")

		// 存储到Gin上下文与标准上下文
		c.Set("client_ip", clientIP)
		c.Request = c.Request.WithContext(utils.WithRequestMeta(c.Request.Context(), utils.RequestMeta{
			RequestID: requestID,
			ClientIP:  clientIP,
		}))

		c.Next()

		if !logging.EnableRequestLog {
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		logger.LogAccessRequest(c, start, requestID)

		duration := time.Since(start)
		if logging.SlowRequestThreshold > 0 && duration > logging.SlowRequestThreshold {
			logger.LogSystemEvent("server", "slow_request", "Slow request detected", logrus.WarnLevel, map[string]interface{}{
				"path":        c.Request.URL.Path,
				"method":      c.Request.Method,
				"duration_ms": duration.Milliseconds(),
				"request_id":  requestID,
			})
		}

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			errorMsg := c.Errors.String()
			if errorMsg == "" {
				errorMsg = http.StatusText(status)
			}
			logger.LogError(fmt.Errorf("HTTP %d: %s", status, errorMsg), requestID, clientIP, c.Request.URL.Path, c.Request.Method, map[string]interface{}{
				"operation":   "http_request",
				"status_code": status,
				"user_agent":  c.Request.UserAgent(),
			})
		}
	}
}
