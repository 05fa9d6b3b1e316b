/**
 * 仓库层:任务数据访问(SQLite)
 * @author: sun977
 * @date: 2025.12.12
 * @description: 基于 GORM + 内存 SQLite 的任务存储，与内存实现遵循同一契约
 * @func: 每个操作在单个事务内完成;单连接保证事务之间串行
 */
package sqlite

import (
	"errors"
	"fmt"

	"tasktracker/internal/model/task"
	"tasktracker/internal/pkg/depgraph"
	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/repo"

	"gorm.io/gorm"
)

var _ repo.TaskRepository = (*TaskRepository)(nil)

// TaskRepository SQLite 任务存储库
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建 SQLite 任务存储库实例并迁移表结构
func NewTaskRepository(db *gorm.DB) (*TaskRepository, error) {
	if err := db.AutoMigrate(&task.Task{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tasks table: %w", err)
	}
	return &TaskRepository{db: db}, nil
}

// logRepoError 记录非预期的数据库错误
func logRepoError(err error, operation string, id int64) {
	logger.LogError(err, "", "", "", operation, map[string]interface{}{
		"operation": operation,
		"task_id":   id,
		"layer":     "REPO",
	})
}

// findTask 在事务内按ID读取任务，不存在时返回 (nil, nil)
func findTask(tx *gorm.DB, id int64) (*task.Task, error) {
	var t task.Task
	err := tx.Where("id = ?", id).Take(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return normalize(&t), nil
}

// normalize 依赖列表为 NULL 时转换为空列表
func normalize(t *task.Task) *task.Task {
	t.Dependencies = task.CloneIDs(t.Dependencies)
	return t
}

// Add 插入任务，ID已存在时返回 ErrDuplicateID 且不做任何修改
func (r *TaskRepository) Add(t *task.Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if t.ID <= 0 {
		return task.ErrInvalidTaskID
	}

	row := t.Clone()
	err := r.db.Transaction(func(tx *gorm.DB) error {
		existing, err := findTask(tx, row.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return task.ErrDuplicateID
		}
		return tx.Create(row).Error
	})
	if err != nil && !errors.Is(err, task.ErrDuplicateID) {
		logRepoError(err, "add_task", t.ID)
	}
	return err
}

// Get 获取任务
func (r *TaskRepository) Get(id int64) (*task.Task, error) {
	t, err := findTask(r.db, id)
	if err != nil {
		logRepoError(err, "get_task", id)
		return nil, err
	}
	if t == nil {
		return nil, task.ErrTaskNotFound
	}
	return t, nil
}

// List 获取所有任务(按ID升序)
func (r *TaskRepository) List() []*task.Task {
	var tasks []*task.Task
	if err := r.db.Order("id asc").Find(&tasks).Error; err != nil {
		logRepoError(err, "list_tasks", 0)
		return []*task.Task{}
	}
	for _, t := range tasks {
		normalize(t)
	}
	return tasks
}

// Update 整体替换任务记录
// 已完成的任务不会被重置为未完成;由未完成变为完成时需满足依赖全部完成
func (r *TaskRepository) Update(id int64, t *task.Task) (*task.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}

	next := t.Clone()
	next.ID = id

	err := r.db.Transaction(func(tx *gorm.DB) error {
		prev, err := findTask(tx, id)
		if err != nil {
			return err
		}
		if prev == nil {
			return task.ErrTaskNotFound
		}

		if prev.IsCompleted {
			next.IsCompleted = true
		} else if next.IsCompleted {
			ok, err := dependenciesCompleted(tx, next.Dependencies)
			if err != nil {
				return err
			}
			if !ok {
				return task.ErrIncompleteDependencies
			}
		}

		// Save 写入全部字段，包括零值
		return tx.Save(next).Error
	})
	if err != nil {
		if !errors.Is(err, task.ErrTaskNotFound) && !errors.Is(err, task.ErrIncompleteDependencies) {
			logRepoError(err, "update_task", id)
		}
		return nil, err
	}
	return next.Clone(), nil
}

// Delete 删除任务
func (r *TaskRepository) Delete(id int64) error {
	result := r.db.Where("id = ?", id).Delete(&task.Task{})
	if result.Error != nil {
		logRepoError(result.Error, "delete_task", id)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return task.ErrTaskNotFound
	}
	return nil
}

// ValidateDependencies 校验候选任务的依赖图
// 遍历在只读事务内进行，所见为同一时间点的数据
func (r *TaskRepository) ValidateDependencies(t *task.Task) task.DependencyStatus {
	status := task.NoIssues
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var lookupErr error
		status = depgraph.Validate(t, func(id int64) ([]int64, bool) {
			if lookupErr != nil {
				return nil, false
			}
			stored, err := findTask(tx, id)
			if err != nil {
				lookupErr = err
				return nil, false
			}
			if stored == nil {
				return nil, false
			}
			return stored.Dependencies, true
		})
		return lookupErr
	})
	if err != nil {
		// 无法读取依赖时按缺失处理，阻止写入
		logRepoError(err, "validate_dependencies", t.ID)
		return task.MissingTask
	}
	return status
}

// CanComplete 任务存在、未完成且所有依赖均已完成
func (r *TaskRepository) CanComplete(id int64) bool {
	can := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		can, err = canComplete(tx, id)
		return err
	})
	if err != nil {
		logRepoError(err, "can_complete", id)
		return false
	}
	return can
}

// CompleteTask 原子地检查并完成任务
// 检查与条件更新处于同一事务;条件更新再次确认任务仍未完成
func (r *TaskRepository) CompleteTask(id int64) bool {
	completed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		can, err := canComplete(tx, id)
		if err != nil || !can {
			return err
		}

		result := tx.Model(&task.Task{}).
			Where("id = ? AND is_completed = ?", id, false).
			Update("is_completed", true)
		if result.Error != nil {
			return result.Error
		}
		completed = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		logRepoError(err, "complete_task", id)
		return false
	}
	return completed
}

// Len 当前任务数量
func (r *TaskRepository) Len() int {
	var count int64
	if err := r.db.Model(&task.Task{}).Count(&count).Error; err != nil {
		logRepoError(err, "count_tasks", 0)
		return 0
	}
	return int(count)
}

// canComplete 在事务内判断任务是否可完成
func canComplete(tx *gorm.DB, id int64) (bool, error) {
	t, err := findTask(tx, id)
	if err != nil || t == nil || t.IsCompleted {
		return false, err
	}
	return dependenciesCompleted(tx, t.Dependencies)
}

// dependencyBatchSize 单次 IN 查询的依赖ID数量，低于 SQLite 绑定参数上限
const dependencyBatchSize = 500

// dependenciesCompleted 所有依赖均存在且已完成(空依赖恒为真)
// 依赖ID去重后分批查询，所有批次处于同一事务
func dependenciesCompleted(tx *gorm.DB, deps []int64) (bool, error) {
	unique := uniqueIDs(deps)
	for start := 0; start < len(unique); start += dependencyBatchSize {
		end := start + dependencyBatchSize
		if end > len(unique) {
			end = len(unique)
		}
		batch := unique[start:end]

		var completedCount int64
		err := tx.Model(&task.Task{}).
			Where("id IN ? AND is_completed = ?", batch, true).
			Count(&completedCount).Error
		if err != nil {
			return false, err
		}
		if completedCount != int64(len(batch)) {
			return false, nil
		}
	}
	return true, nil
}

// uniqueIDs 去重并保持首次出现的顺序
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
