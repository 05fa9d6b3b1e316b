// 日志条目与类型化日志方法
package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FormatTimestamp 格式化时间戳为统一的毫秒精度格式
// 返回格式："2006-01-02 15:04:05.000"
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampFormat)
}

// NowFormatted 返回当前时间的格式化字符串
func NowFormatted() string {
	return FormatTimestamp(time.Now())
}

// LogType 日志类型枚举
type LogType string

const (
	// AccessLog 访问日志 - 记录HTTP请求
	AccessLog LogType = "access"
	// BusinessLog 业务日志 - 记录任务的创建、更新、完成、删除
	BusinessLog LogType = "business"
	// ErrorLog 错误日志 - 记录系统错误和异常
	ErrorLog LogType = "error"
	// SystemLog 系统日志 - 记录系统运行状态
	SystemLog LogType = "system"
)

// 业务操作结果
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// AccessLogEntry 访问日志条目结构
type AccessLogEntry struct {
	Method       string `json:"method"`        // HTTP方法
	Path         string `json:"path"`          // 请求路径
	Query        string `json:"query"`         // 查询参数
	StatusCode   int    `json:"status_code"`   // 响应状态码
	ResponseTime int64  `json:"response_time"` // 响应时间(毫秒)
	ClientIP     string `json:"client_ip"`     // 客户端IP
	UserAgent    string `json:"user_agent"`    // 用户代理
	RequestID    string `json:"request_id"`    // 请求追踪ID
	RequestSize  int64  `json:"request_size"`  // 请求大小
	ResponseSize int64  `json:"response_size"` // 响应大小
}

// BusinessLogEntry 业务日志条目结构
type BusinessLogEntry struct {
	Operation string `json:"operation"`  // 操作类型(create_task, complete_task等)
	TaskID    int64  `json:"task_id"`    // 任务ID
	ClientIP  string `json:"client_ip"`  // 客户端IP
	Result    string `json:"result"`     // 操作结果(success, failed)
	Message   string `json:"message"`    // 详细信息
	RequestID string `json:"request_id"` // 请求追踪ID
}

// SystemLogEntry 系统日志条目结构
type SystemLogEntry struct {
	Component string `json:"component"` // 系统组件(store, config, server等)
	Event     string `json:"event"`     // 事件类型(startup, shutdown, reload等)
	Message   string `json:"message"`   // 详细信息
	Level     string `json:"level"`     // 日志级别
}

// LogAccessRequest 记录HTTP访问日志
func LogAccessRequest(c *gin.Context, startTime time.Time, requestID string) {
	if LoggerInstance == nil {
		return
	}

	entry := AccessLogEntry{
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		Query:        c.Request.URL.RawQuery,
		StatusCode:   c.Writer.Status(),
		ResponseTime: time.Since(startTime).Milliseconds(),
		ClientIP:     c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		RequestID:    requestID,
		RequestSize:  c.Request.ContentLength,
		ResponseSize: int64(c.Writer.Size()),
	}

	LoggerInstance.logger.WithFields(logrus.Fields{
		"type":          AccessLog,
		"method":        entry.Method,
		"path":          entry.Path,
		"query":         entry.Query,
		"status_code":   entry.StatusCode,
		"response_time": entry.ResponseTime,
		"client_ip":     entry.ClientIP,
		"user_agent":    entry.UserAgent,
		"request_id":    entry.RequestID,
		"request_size":  entry.RequestSize,
		"response_size": entry.ResponseSize,
	}).Info("HTTP request processed")
}

// LogBusinessOperation 记录业务操作日志
// result 为 success 时记录 info，否则记录 warn
func LogBusinessOperation(operation string, taskID int64, clientIP, requestID, result, message string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	entry := BusinessLogEntry{
		Operation: operation,
		TaskID:    taskID,
		ClientIP:  clientIP,
		Result:    result,
		Message:   message,
		RequestID: requestID,
	}

	fields := logrus.Fields{
		"type":       BusinessLog,
		"operation":  entry.Operation,
		"task_id":    entry.TaskID,
		"client_ip":  entry.ClientIP,
		"result":     entry.Result,
		"message":    entry.Message,
		"request_id": entry.RequestID,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	if result == ResultSuccess {
		LoggerInstance.logger.WithFields(fields).Info(fmt.Sprintf("Business operation: %s", operation))
	} else {
		LoggerInstance.logger.WithFields(fields).Warn(fmt.Sprintf("Business operation failed: %s", operation))
	}
}

// LogError 记录错误日志
func LogError(err error, requestID, clientIP, path, method string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}

	fields := logrus.Fields{
		"type":       ErrorLog,
		"error":      err.Error(),
		"request_id": requestID,
		"client_ip":  clientIP,
		"path":       path,
		"method":     method,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Errorf("System error occurred: %s", err.Error())
}

// LogSystemEvent 记录系统事件日志
// 用于记录系统启动、关闭、配置重载等系统级事件
func LogSystemEvent(component, event, message string, level logrus.Level, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	entry := SystemLogEntry{
		Component: component,
		Event:     event,
		Message:   message,
		Level:     level.String(),
	}

	fields := logrus.Fields{
		"type":      SystemLog,
		"component": entry.Component,
		"event":     entry.Event,
		"message":   entry.Message,
		"level":     entry.Level,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	msg := fmt.Sprintf("System event: %s - %s", component, event)
	switch level {
	case logrus.DebugLevel:
		LoggerInstance.logger.WithFields(fields).Debug(msg)
	case logrus.WarnLevel:
		LoggerInstance.logger.WithFields(fields).Warn(msg)
	case logrus.ErrorLevel:
		LoggerInstance.logger.WithFields(fields).Error(msg)
	default:
		LoggerInstance.logger.WithFields(fields).Info(msg)
	}
}

// LogBusinessError 记录业务层错误
// layer 标识出错的层次(SERVICE、HANDLER 等)，写入错误日志
func LogBusinessError(err error, requestID string, taskID int64, clientIP, operation, layer string, extraFields map[string]interface{}) {
	if LoggerInstance == nil || err == nil {
		return
	}

	fields := logrus.Fields{
		"type":       ErrorLog,
		"error":      err.Error(),
		"request_id": requestID,
		"task_id":    taskID,
		"client_ip":  clientIP,
		"operation":  operation,
		"layer":      layer,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Errorf("Business error in %s: %s", operation, err.Error())
}
