/**
 * 处理器:任务接口
 * @author: sun977
 * @date: 2025.12.15
 * @description: 任务的增删改查、完成与可完成性检查接口
 * @func:
 *   - CreateTask   POST   /api/v1/tasks
 *   - ListTasks    GET    /api/v1/tasks
 *   - GetTask      GET    /api/v1/tasks/:id
 *   - UpdateTask   PUT    /api/v1/tasks/:id
 *   - DeleteTask   DELETE /api/v1/tasks/:id
 *   - CompleteTask PUT    /api/v1/tasks/:id/complete
 *   - CanComplete  GET    /api/v1/tasks/:id/can-complete
 */
package task

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"tasktracker/internal/model/system"
	taskmodel "tasktracker/internal/model/task"
	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/pkg/utils"
	taskservice "tasktracker/internal/service/task"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// TaskHandler 任务接口处理器
type TaskHandler struct {
	service *taskservice.TaskService
}

// NewTaskHandler 创建任务处理器实例
func NewTaskHandler(service *taskservice.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

// requestContext 返回请求上下文及日志中间件写入的追踪信息
func requestContext(c *gin.Context) (context.Context, utils.RequestMeta) {
	ctx := c.Request.Context()
	return ctx, utils.RequestMetaFrom(ctx)
}

// parseTaskID 解析路径参数中的任务ID
func parseTaskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		msg := "id must be a positive integer"
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, system.APIResponse{
			Code:    http.StatusBadRequest,
			Status:  "failed",
			Message: "Invalid task ID",
			Error:   msg,
		})
		return 0, false
	}
	return id, true
}

// CreateTask 创建任务
func (h *TaskHandler) CreateTask(c *gin.Context) {
	ctx, meta := requestContext(c)

	var req taskmodel.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, meta, "create_task", err)
		return
	}

	created, err := h.service.CreateTask(ctx, &req)
	if err != nil {
		h.respondServiceError(c, meta, "create_task", req.ID, "Failed to create task", err)
		return
	}

	c.JSON(http.StatusCreated, system.APIResponse{
		Code:    http.StatusCreated,
		Status:  "success",
		Message: "Task created successfully",
		Data:    created,
	})
}

// ListTasks 获取所有任务
func (h *TaskHandler) ListTasks(c *gin.Context) {
	ctx, _ := requestContext(c)

	c.JSON(http.StatusOK, system.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Tasks retrieved successfully",
		Data:    h.service.ListTasks(ctx),
	})
}

// GetTask 获取单个任务
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	ctx, meta := requestContext(c)

	t, err := h.service.GetTask(ctx, id)
	if err != nil {
		h.respondServiceError(c, meta, "get_task", id, "Failed to get task", err)
		return
	}

	c.JSON(http.StatusOK, system.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Task retrieved successfully",
		Data:    t,
	})
}

// UpdateTask 整体更新任务，请求体中的 id 以路径参数为准
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	ctx, meta := requestContext(c)

	var req taskmodel.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, meta, "update_task", err)
		return
	}

	updated, err := h.service.UpdateTask(ctx, id, &req)
	if err != nil {
		h.respondServiceError(c, meta, "update_task", id, "Failed to update task", err)
		return
	}

	c.JSON(http.StatusOK, system.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Task updated successfully",
		Data:    updated,
	})
}

// DeleteTask 删除任务，成功返回 204
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	ctx, meta := requestContext(c)

	if err := h.service.DeleteTask(ctx, id); err != nil {
		h.respondServiceError(c, meta, "delete_task", id, "Failed to delete task", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CompleteTask 完成任务
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	ctx, meta := requestContext(c)

	completed, err := h.service.CompleteTask(ctx, id)
	if err != nil {
		h.respondServiceError(c, meta, "complete_task", id, "Failed to complete task", err)
		return
	}

	c.JSON(http.StatusOK, system.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Task completed successfully",
		Data:    completed,
	})
}

// CanComplete 检查任务当前是否可以完成
func (h *TaskHandler) CanComplete(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	ctx, meta := requestContext(c)

	resp, err := h.service.CanComplete(ctx, id)
	if err != nil {
		h.respondServiceError(c, meta, "can_complete", id, "Failed to check task completion", err)
		return
	}

	c.JSON(http.StatusOK, system.APIResponse{
		Code:    http.StatusOK,
		Status:  "success",
		Message: "Task completion checked",
		Data:    resp,
	})
}

// respondBindError 请求体解析或绑定校验失败，返回 400
// 绑定校验错误按字段列出，其余(JSON格式、时间格式错误)只返回错误信息
func (h *TaskHandler) respondBindError(c *gin.Context, meta utils.RequestMeta, operation string, err error) {
	logger.LogBusinessOperation(operation, 0, meta.ClientIP, meta.RequestID, logger.ResultFailed, err.Error(), map[string]interface{}{
		"option": "ShouldBindJSON",
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})

	resp := system.APIResponse{
		Code:    http.StatusBadRequest,
		Status:  "failed",
		Message: "Invalid request body",
		Error:   err.Error(),
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Message = "Validation failed"
		resp.Errors = toValidationErrors(utils.TranslateValidationErrors(verrs))
	}

	c.JSON(http.StatusBadRequest, resp)
}

// respondServiceError 按错误类型映射状态码并返回
func (h *TaskHandler) respondServiceError(c *gin.Context, meta utils.RequestMeta, operation string, id int64, message string, err error) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		logger.LogBusinessError(err, meta.RequestID, id, meta.ClientIP, operation, "HANDLER", map[string]interface{}{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		// 内部错误不向调用方暴露细节
		c.JSON(status, system.APIResponse{
			Code:    status,
			Status:  "failed",
			Message: message,
			Error:   "internal server error",
		})
		return
	}

	resp := system.APIResponse{
		Code:    status,
		Status:  "failed",
		Message: message,
		Error:   err.Error(),
	}
	var ve *system.ValidationError
	if errors.As(err, &ve) {
		resp.Errors = []system.ValidationError{{Field: ve.Field, Message: ve.Message}}
	}
	c.JSON(status, resp)
}

// StatusForError 将服务层错误映射为HTTP状态码
func StatusForError(err error) int {
	switch {
	case errors.Is(err, taskmodel.ErrTaskNotFound):
		return http.StatusNotFound
	case taskservice.IsExpectedError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// toValidationErrors 字段 -> 消息 转换为按字段名排序的验证错误列表
func toValidationErrors(fields map[string]string) []system.ValidationError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]system.ValidationError, 0, len(names))
	for _, name := range names {
		out = append(out, system.ValidationError{Field: name, Message: fields[name]})
	}
	return out
}
