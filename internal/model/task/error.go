/**
 * 模型:任务错误定义
 * @author: sun977
 * @date: 2025.08.29
 * @description: 任务存储与服务层的错误常量
 */
package task

import "errors"

// 存储层错误
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrDuplicateID  = errors.New("task with the same id already exists")
)

// 依赖相关错误
var (
	ErrCircularDependency      = errors.New("circular dependency detected")
	ErrMissingDependency       = errors.New("dependency references a missing task")
	ErrIncompleteDependencies  = errors.New("task has incomplete dependencies")
	ErrSelfDependency          = errors.New("task cannot depend on itself")
	ErrInvalidDependencyStatus = errors.New("invalid dependency status")
)

// 输入校验错误
var (
	ErrInvalidTitle     = errors.New("invalid task title")
	ErrDueDateInPast    = errors.New("due date cannot be in the past")
	ErrAlreadyCompleted = errors.New("task is already completed")
	ErrInvalidTaskID    = errors.New("invalid task id")
)
