/**
 * 模型:通用响应模型
 * @author: sun977
 * @date: 2025.08.29
 * @description: API统一响应结构及字段校验错误结构
 * @func: APIResponse / ValidationError
 */
package system

import "errors"

// APIResponse 通用API响应结构
type APIResponse struct {
	Code    int               `json:"code,omitempty"`   // 响应状态码，可选
	Status  string            `json:"status"`           // 响应状态："success" 或 "failed"
	Message string            `json:"message"`          // 响应消息
	Data    interface{}       `json:"data,omitempty"`   // 响应数据，可选
	Error   string            `json:"error,omitempty"`  // 错误信息，可选
	Errors  []ValidationError `json:"errors,omitempty"` // 验证错误列表，可选
}

// ValidationError 验证错误结构体
type ValidationError struct {
	Field   string `json:"field"`   // 字段名
	Message string `json:"message"` // 错误消息
	Err     error  `json:"-"`       // 底层错误(可选)，用于 errors.Is 判断
}

// NewValidationError 创建验证错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapValidationError 以底层错误创建字段验证错误
func WrapValidationError(field string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: err.Error(),
		Err:     err,
	}
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap 返回底层错误
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError 检查错误链中是否包含验证错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
