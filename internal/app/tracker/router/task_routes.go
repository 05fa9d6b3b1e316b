package router

import (
	"github.com/gin-gonic/gin"
)

// setupTaskRoutes 设置任务路由
func (r *Router) setupTaskRoutes(v1 *gin.RouterGroup) {
	h := r.taskModule.TaskHandler

	tasks := v1.Group("/tasks")
	{
		tasks.POST("", h.CreateTask)
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.PUT("/:id/complete", h.CompleteTask)
		tasks.GET("/:id/can-complete", h.CanComplete)
	}
}
