/**
 * 任务服务
 * @author: sun977
 * @date: 2025.12.12
 * @description: 任务的输入校验、依赖图校验与提交编排、完成流程的错误区分
 * @func:
 *   - CreateTask / GetTask / ListTasks / UpdateTask / DeleteTask
 *   - CompleteTask / CanComplete
 * @note: 存储层只负责原子性，标题长度、截止时间、自依赖等校验在此完成
 */
package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"tasktracker/internal/config"
	"tasktracker/internal/model/system"
	"tasktracker/internal/model/task"
	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/pkg/utils"
	"tasktracker/internal/repo"
)

// TaskService 任务服务
type TaskService struct {
	repo repo.TaskRepository
	cfg  atomic.Pointer[config.TaskConfig]

	// graphMu 串行化"校验依赖图 + 写入"，避免两个并发写入各自通过校验后共同形成环
	graphMu sync.Mutex

	// Now 当前时间，测试时可替换
	Now func() time.Time
}

// NewTaskService 创建任务服务实例
func NewTaskService(r repo.TaskRepository, cfg config.TaskConfig) *TaskService {
	s := &TaskService{
		repo: r,
		Now:  time.Now,
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig 更新任务校验配置(配置热重载时调用)
func (s *TaskService) UpdateConfig(cfg config.TaskConfig) {
	if cfg.TitleMaxLength <= 0 {
		cfg.TitleMaxLength = config.DefaultTitleMaxLength
	}
	s.cfg.Store(&cfg)
}

// Config 当前生效的任务校验配置
func (s *TaskService) Config() config.TaskConfig {
	return *s.cfg.Load()
}

// CreateTask 创建任务
// 校验输入 -> 校验依赖图 -> 插入;请求中 isCompleted 为 true 时要求依赖全部已完成
func (s *TaskService) CreateTask(ctx context.Context, req *task.CreateTaskRequest) (*task.Task, error) {
	if req == nil {
		return nil, errors.New("create task request cannot be nil")
	}

	meta := utils.RequestMetaFrom(ctx)
	candidate := req.ToTask()
	candidate.Title = strings.TrimSpace(candidate.Title)

	if err := s.validateTask(candidate); err != nil {
		s.logFailure("create_task", candidate.ID, meta, err)
		return nil, err
	}

	s.graphMu.Lock()
	err := s.commitCreate(candidate)
	s.graphMu.Unlock()
	if err != nil {
		s.logFailure("create_task", candidate.ID, meta, err)
		return nil, err
	}

	logger.LogBusinessOperation("create_task", candidate.ID, meta.ClientIP, meta.RequestID, logger.ResultSuccess, "task created", map[string]interface{}{
		"dependencies": candidate.Dependencies,
		"is_completed": candidate.IsCompleted,
	})
	return candidate.Clone(), nil
}

// commitCreate 校验依赖图并插入(调用方持有 graphMu)
func (s *TaskService) commitCreate(candidate *task.Task) error {
	if err := s.repo.ValidateDependencies(candidate).Err(); err != nil {
		return err
	}
	if candidate.IsCompleted {
		ok, err := s.dependenciesCompleted(candidate.Dependencies)
		if err != nil {
			return err
		}
		if !ok {
			return task.ErrIncompleteDependencies
		}
	}
	return s.repo.Add(candidate)
}

// GetTask 获取任务
func (s *TaskService) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	if id <= 0 {
		return nil, task.ErrInvalidTaskID
	}
	return s.repo.Get(id)
}

// ListTasks 获取所有任务(按ID升序)
func (s *TaskService) ListTasks(ctx context.Context) *task.TaskListResponse {
	tasks := s.repo.List()
	sortTasksByID(tasks)
	return &task.TaskListResponse{
		Tasks: tasks,
		Total: len(tasks),
	}
}

// UpdateTask 整体更新任务
// 任务ID以路径参数为准;已完成的任务不会被重置为未完成
func (s *TaskService) UpdateTask(ctx context.Context, id int64, req *task.UpdateTaskRequest) (*task.Task, error) {
	if req == nil {
		return nil, errors.New("update task request cannot be nil")
	}
	if id <= 0 {
		return nil, task.ErrInvalidTaskID
	}

	meta := utils.RequestMetaFrom(ctx)
	candidate := req.ToTask(id)
	candidate.Title = strings.TrimSpace(candidate.Title)

	if _, err := s.repo.Get(id); err != nil {
		s.logFailure("update_task", id, meta, err)
		return nil, err
	}

	if err := s.validateTask(candidate); err != nil {
		s.logFailure("update_task", id, meta, err)
		return nil, err
	}

	s.graphMu.Lock()
	updated, err := s.commitUpdate(id, candidate)
	s.graphMu.Unlock()
	if err != nil {
		s.logFailure("update_task", id, meta, err)
		return nil, err
	}

	logger.LogBusinessOperation("update_task", id, meta.ClientIP, meta.RequestID, logger.ResultSuccess, "task updated", map[string]interface{}{
		"dependencies": updated.Dependencies,
		"is_completed": updated.IsCompleted,
	})
	return updated, nil
}

// commitUpdate 校验依赖图并替换(调用方持有 graphMu)
func (s *TaskService) commitUpdate(id int64, candidate *task.Task) (*task.Task, error) {
	if err := s.repo.ValidateDependencies(candidate).Err(); err != nil {
		return nil, err
	}
	return s.repo.Update(id, candidate)
}

// DeleteTask 删除任务
// 依赖该任务的其他任务保持不变，之后对它们的依赖校验会报告缺失
func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	if id <= 0 {
		return task.ErrInvalidTaskID
	}

	meta := utils.RequestMetaFrom(ctx)
	if err := s.repo.Delete(id); err != nil {
		s.logFailure("delete_task", id, meta, err)
		return err
	}

	logger.LogBusinessOperation("delete_task", id, meta.ClientIP, meta.RequestID, logger.ResultSuccess, "task deleted", nil)
	return nil
}

// CompleteTask 完成任务
// 存储层只返回 bool，这里先检查存在性与完成状态以区分失败原因:
// 不存在 -> ErrTaskNotFound;已完成 -> ErrAlreadyCompleted;其余 -> ErrIncompleteDependencies
func (s *TaskService) CompleteTask(ctx context.Context, id int64) (*task.Task, error) {
	if id <= 0 {
		return nil, task.ErrInvalidTaskID
	}

	meta := utils.RequestMetaFrom(ctx)
	current, err := s.repo.Get(id)
	if err != nil {
		s.logFailure("complete_task", id, meta, err)
		return nil, err
	}
	if current.IsCompleted {
		s.logFailure("complete_task", id, meta, task.ErrAlreadyCompleted)
		return nil, task.ErrAlreadyCompleted
	}

	if !s.repo.CompleteTask(id) {
		err := s.completionFailure(id)
		s.logFailure("complete_task", id, meta, err)
		return nil, err
	}

	completed, err := s.repo.Get(id)
	if err != nil {
		// 完成后立即被删除
		s.logFailure("complete_task", id, meta, err)
		return nil, err
	}

	logger.LogBusinessOperation("complete_task", id, meta.ClientIP, meta.RequestID, logger.ResultSuccess, "task completed", nil)
	return completed, nil
}

// completionFailure 完成失败后重新读取任务，确定失败原因
// 检查与完成之间任务可能被删除或被其他请求完成
func (s *TaskService) completionFailure(id int64) error {
	latest, err := s.repo.Get(id)
	if err != nil {
		return err
	}
	if latest.IsCompleted {
		return task.ErrAlreadyCompleted
	}
	return task.ErrIncompleteDependencies
}

// CanComplete 查询任务当前是否可以完成
func (s *TaskService) CanComplete(ctx context.Context, id int64) (*task.CanCompleteResponse, error) {
	if id <= 0 {
		return nil, task.ErrInvalidTaskID
	}
	if _, err := s.repo.Get(id); err != nil {
		return nil, err
	}
	return &task.CanCompleteResponse{
		ID:          id,
		CanComplete: s.repo.CanComplete(id),
	}, nil
}

// validateTask 校验任务字段
func (s *TaskService) validateTask(t *task.Task) error {
	cfg := s.Config()

	if t.ID <= 0 {
		return system.WrapValidationError("id", task.ErrInvalidTaskID)
	}

	if t.Title == "" {
		return system.WrapValidationError("title", fmt.Errorf("%w: title is required", task.ErrInvalidTitle))
	}
	if n := utf8.RuneCountInString(t.Title); n > cfg.TitleMaxLength {
		return system.WrapValidationError("title", fmt.Errorf("%w: title length %d exceeds %d", task.ErrInvalidTitle, n, cfg.TitleMaxLength))
	}

	if t.DueDate.IsZero() {
		return system.WrapValidationError("dueDate", fmt.Errorf("due date is required"))
	}
	if !cfg.AllowPastDue && t.DueDate.Before(s.Now()) {
		return system.WrapValidationError("dueDate", task.ErrDueDateInPast)
	}

	if t.DependsOn(t.ID) {
		return system.WrapValidationError("dependencies", task.ErrSelfDependency)
	}

	return nil
}

// sortTasksByID 按ID升序排序，使列表输出稳定
func sortTasksByID(tasks []*task.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}

// dependenciesCompleted 所有依赖均存在且已完成
func (s *TaskService) dependenciesCompleted(deps []int64) (bool, error) {
	for _, dep := range deps {
		d, err := s.repo.Get(dep)
		if err != nil {
			if errors.Is(err, task.ErrTaskNotFound) {
				return false, nil
			}
			return false, err
		}
		if !d.IsCompleted {
			return false, nil
		}
	}
	return true, nil
}

// logFailure 记录失败的业务操作;预期内的失败记录为业务日志，其余记录为错误日志
func (s *TaskService) logFailure(operation string, id int64, meta utils.RequestMeta, err error) {
	if IsExpectedError(err) {
		logger.LogBusinessOperation(operation, id, meta.ClientIP, meta.RequestID, logger.ResultFailed, err.Error(), nil)
		return
	}
	logger.LogBusinessError(err, meta.RequestID, id, meta.ClientIP, operation, "SERVICE", nil)
}

// IsExpectedError 判断是否为调用方可以纠正的预期错误
func IsExpectedError(err error) bool {
	if system.IsValidationError(err) {
		return true
	}
	for _, target := range []error{
		task.ErrTaskNotFound,
		task.ErrDuplicateID,
		task.ErrCircularDependency,
		task.ErrMissingDependency,
		task.ErrIncompleteDependencies,
		task.ErrAlreadyCompleted,
		task.ErrInvalidTaskID,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
