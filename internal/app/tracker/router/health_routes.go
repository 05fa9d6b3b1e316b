/**
 * 路由:健康检查路由
 * @author: sun977
 * @date: 2025.12.16
 * @description: 包含健康检查路由
 */

package router

import (
	"net/http"

	"tasktracker/internal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes 设置健康检查路由
func (r *Router) setupHealthRoutes(api *gin.RouterGroup) {
	// 健康检查
	api.GET("/health", r.healthCheck)
	// 就绪检查
	api.GET("/ready", r.readinessCheck)
	// 存活检查
	api.GET("/live", r.livenessCheck)
}

// 健康检查处理器
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   r.config.App.Version,
		"timestamp": logger.NowFormatted(),
	})
}

// readinessCheck 就绪检查处理器，报告存储后端与任务数量
func (r *Router) readinessCheck(c *gin.Context) {
	if r.taskModule == nil || r.taskModule.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"timestamp": logger.NowFormatted(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"backend":   r.config.Store.Backend,
		"tasks":     r.taskModule.Store.Len(),
		"timestamp": logger.NowFormatted(),
	})
}

// livenessCheck 存活检查处理器
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": logger.NowFormatted(),
	})
}
