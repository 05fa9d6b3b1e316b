/**
 * 仓库层:任务存储接口
 * @author: sun977
 * @date: 2025.09.25
 * @description: 任务存储契约，memory 与 sqlite 两种实现(可在配置文件中配置,二选一)
 * @func: 单纯数据访问,不包含输入校验等业务逻辑
 */
package repo

import (
	"tasktracker/internal/model/task"
)

// 存储后端类型
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// TaskRepository 任务存储接口
// 所有方法同步、非阻塞，并发安全
type TaskRepository interface {
	// Add 仅当ID不存在时插入，否则返回 task.ErrDuplicateID;ID必须为正数，否则返回 task.ErrInvalidTaskID
	Add(t *task.Task) error
	// Get 返回任务副本，不存在时返回 task.ErrTaskNotFound
	Get(id int64) (*task.Task, error)
	// List 返回所有任务的时间点快照，顺序不保证
	List() []*task.Task
	// Update 以整条记录原子替换任务，不存在时返回 task.ErrTaskNotFound
	Update(id int64, t *task.Task) (*task.Task, error)
	// Delete 删除任务，不存在时返回 task.ErrTaskNotFound
	Delete(id int64) error
	// ValidateDependencies 校验候选任务的依赖图(候选任务可尚未入库)
	ValidateDependencies(t *task.Task) task.DependencyStatus
	// CanComplete 任务存在、未完成且所有依赖均已完成
	CanComplete(id int64) bool
	// CompleteTask 原子地检查 CanComplete 并置为完成
	CompleteTask(id int64) bool
	// Len 当前任务数量
	Len() int
}
