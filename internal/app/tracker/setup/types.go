/**
 * 初始化
 * @author: sun977
 * @date: 2025.12.16
 * @description: 包含 tracker 程序初始化相关的类型定义
 */
package setup

import (
	taskHandler "tasktracker/internal/handler/task"
	"tasktracker/internal/repo"
	taskService "tasktracker/internal/service/task"
)

// TaskModule 是任务模块的聚合输出
// setup 层仅负责依赖装配(Repository -> Service -> Handler)，router_manager 通过该模块取用组件
type TaskModule struct {
	// Handler
	TaskHandler *taskHandler.TaskHandler

	// Service(配置热重载时需要更新校验配置)
	TaskService *taskService.TaskService

	// Store(就绪检查报告任务数量)
	Store repo.TaskRepository
}

// StoreModule 任务存储及其关闭函数
type StoreModule struct {
	Store   repo.TaskRepository
	Backend string
	Close   func() error
}
