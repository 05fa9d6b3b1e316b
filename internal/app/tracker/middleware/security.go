/**
 * 中间件:安全中间件
 * @author: sun977
 * @date: 2025.12.16
 * @description: 定义安全中间件
 * @func:
 *   - GinCORSMiddleware CORS跨域资源共享中间件,按配置设置CORS头部
 *   - GinSecurityHeadersMiddleware 安全头部中间件,设置常见的安全响应头
 *   - GinRequestIDMiddleware 请求ID中间件,为每个请求添加唯一的请求ID,方便日志跟踪
 */
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GinCORSMiddleware CORS跨域资源共享中间件
// 未启用时直接放行;预检请求(OPTIONS)返回 204
func (m *MiddlewareManager) GinCORSMiddleware() gin.HandlerFunc {
	cors := m.securityConfig.CORS

	return func(c *gin.Context) {
		if !cors.Enabled {
			c.Next()
			return
		}

		origin := c.Request.Header.Get("Origin")
		switch {
		case cors.AllowAllOrigins:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && originAllowed(cors.AllowOrigins, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		if len(cors.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(cors.AllowMethods, ", "))
		}
		if len(cors.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(cors.AllowHeaders, ", "))
		}
		if len(cors.ExposeHeaders) > 0 {
			c.Header("Access-Control-Expose-Headers", strings.Join(cors.ExposeHeaders, ", "))
		}
		if cors.AllowCredentials && !cors.AllowAllOrigins {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if cors.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(int(cors.MaxAge.Seconds())))
		}

		if c.Request.Method == http.MethodOptions {
			logger.WithFields(logrus.Fields{
				"path":      c.Request.URL.Path,
				"operation": "cors_preflight",
				"func_name": "middleware.security.GinCORSMiddleware",
				"origin":    origin,
			}).Debug("Handling CORS preflight request")

			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// originAllowed 来源是否在允许列表中("*" 匹配任意来源)
func originAllowed(allowed []string, origin string) bool {
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// GinSecurityHeadersMiddleware 安全头中间件
func (m *MiddlewareManager) GinSecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME类型嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		// 纯JSON接口，不加载任何资源
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		if c.Request.TLS != nil || c.Request.Header.Get("X-Forwarded-Proto") == "https" {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// GinRequestIDMiddleware 请求ID中间件
// 沿用上游(负载均衡器或代理)传入的 X-Request-ID，否则生成新的 UUID
// 请求ID同时写回请求头，处理器统一从请求头读取
func (m *MiddlewareManager) GinRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			generated, err := utils.GenerateUUID()
			if err != nil {
				logger.Warnf("generate request id failed: %v", err)
			}
			requestID = generated
			c.Request.Header.Set("X-Request-ID", requestID)
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}
