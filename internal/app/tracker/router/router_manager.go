/**
 * 路由:路由管理器
 * @author: sun977
 * @date: 2025.12.16
 * @description: 路由管理器，包含Router结构体、NewRouter函数和SetupRoutes主函数
 */
package router

import (
	"net/http"

	"tasktracker/internal/app/tracker/middleware"
	"tasktracker/internal/app/tracker/setup"
	"tasktracker/internal/config"
	"tasktracker/internal/model/system"
	"tasktracker/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Router 路由管理器
type Router struct {
	config            *config.Config
	engine            *gin.Engine
	middlewareManager *middleware.MiddlewareManager
	taskModule        *setup.TaskModule
}

// NewRouter 创建路由管理器实例
func NewRouter(cfg *config.Config, taskModule *setup.TaskModule) *Router {
	switch cfg.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	return &Router{
		config:            cfg,
		engine:            engine,
		middlewareManager: middleware.NewMiddlewareManager(&cfg.Security),
		taskModule:        taskModule,
	}
}

// SetupRoutes 设置全局中间件和路由
func (r *Router) SetupRoutes() {
	r.registerGlobalMiddleware()
	r.registerRoutes()
}

// GetEngine 获取Gin引擎实例
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// registerGlobalMiddleware 注册全局中间件
// 请求ID需在日志中间件之前，日志中间件把请求ID与客户端IP写入标准上下文
func (r *Router) registerGlobalMiddleware() {
	logger.WithFields(logrus.Fields{
		"path":      "router_manager.registerGlobalMiddleware",
		"operation": "register_global_middleware",
		"option":    "middlewareManager.attach",
		"func_name": "router.registerGlobalMiddleware",
	}).Info("开始注册全局中间件")

	r.engine.Use(gin.Recovery())
	r.engine.Use(r.middlewareManager.GinRequestIDMiddleware())
	r.engine.Use(r.middlewareManager.GinLoggingMiddleware())
	r.engine.Use(r.middlewareManager.GinCORSMiddleware())
	r.engine.Use(r.middlewareManager.GinSecurityHeadersMiddleware())
	r.engine.Use(r.middlewareManager.GinRateLimitMiddleware())

	logger.WithFields(logrus.Fields{
		"path":      "router_manager.registerGlobalMiddleware",
		"operation": "register_global_middleware",
		"option":    "middlewareManager.attach.done",
		"func_name": "router.registerGlobalMiddleware",
	}).Info("全局中间件注册完成")
}

// registerRoutes 注册路由
func (r *Router) registerRoutes() {
	api := r.engine.Group("/api")
	v1 := api.Group("/v1")

	// 任务路由
	r.setupTaskRoutes(v1)
	// 健康检查路由
	r.setupHealthRoutes(api)

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, system.APIResponse{
			Code:    http.StatusNotFound,
			Status:  "failed",
			Message: "Route not found",
			Error:   c.Request.Method + " " + c.Request.URL.Path,
		})
	})

	logger.WithFields(logrus.Fields{
		"path":      "router_manager.registerRoutes",
		"operation": "register_routes",
		"option":    "routes.attach.done",
		"func_name": "router.registerRoutes",
		"routes":    len(r.engine.Routes()),
	}).Info("路由注册完成")
}
