/**
 * 仓库层:任务数据访问
 * @author: sun977
 * @date: 2025.09.25
 * @description: 任务数据交互层(内存存储,适合单实例部署,进程退出即丢失)
 * @func:单纯数据访问,不应该包含业务逻辑
 * @note: 分片 map + 每条记录独立互斥锁;读路径无锁(原子加载不可变快照)
 */
// internal/repo/memory/task.go
package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"tasktracker/internal/model/task"
	"tasktracker/internal/pkg/depgraph"
	"tasktracker/internal/repo"
)

var _ repo.TaskRepository = (*TaskRepository)(nil)

// DefaultShardCount 默认分片数量
const DefaultShardCount = 32

// entry 任务条目
// current 指向的快照不可变，写操作整体替换指针，读操作不会看到半写状态
type entry struct {
	mu      sync.Mutex // 串行化同一任务的写操作(Update/CompleteTask/Delete)
	deleted bool       // 已从分片中移除，受 mu 保护
	current atomic.Pointer[task.Task]
}

// shard 分片
type shard struct {
	mu    sync.RWMutex
	tasks map[int64]*entry
}

// TaskRepository 内存任务存储库
// 锁顺序: 分片锁内不获取条目锁;条目锁内只获取分片读锁
type TaskRepository struct {
	shards []*shard
	mask   uint64
}

// NewTaskRepository 创建内存任务存储库实例
// shardCount 向上取整为2的幂，<=0 时使用 DefaultShardCount
func NewTaskRepository(shardCount int) *TaskRepository {
	n := normalizeShardCount(shardCount)
	repo := &TaskRepository{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
	}
	for i := range repo.shards {
		repo.shards[i] = &shard{tasks: make(map[int64]*entry)}
	}
	return repo
}

// normalizeShardCount 规范化分片数量
func normalizeShardCount(n int) int {
	if n <= 0 {
		n = DefaultShardCount
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// shardFor 根据任务ID定位分片(斐波那契散列，避免连续ID集中到同一分片)
func (r *TaskRepository) shardFor(id int64) *shard {
	h := uint64(id) * 0x9E3779B97F4A7C15
	return r.shards[(h>>32)&r.mask]
}

// lookupEntry 查找任务条目，只在分片读锁内访问 map
func (r *TaskRepository) lookupEntry(id int64) *entry {
	s := r.shardFor(id)
	s.mu.RLock()
	e := s.tasks[id]
	s.mu.RUnlock()
	return e
}

// snapshot 获取任务当前快照(只读，调用方不得修改)
func (r *TaskRepository) snapshot(id int64) (*task.Task, bool) {
	e := r.lookupEntry(id)
	if e == nil {
		return nil, false
	}
	t := e.current.Load()
	return t, t != nil
}

// Add 插入任务，ID已存在时返回 ErrDuplicateID 且不做任何修改
func (r *TaskRepository) Add(t *task.Task) error {
	if t == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if t.ID <= 0 {
		return task.ErrInvalidTaskID
	}

	e := &entry{}
	e.current.Store(t.Clone())

	s := r.shardFor(t.ID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return task.ErrDuplicateID
	}
	s.tasks[t.ID] = e
	return nil
}

// Get 获取任务副本
func (r *TaskRepository) Get(id int64) (*task.Task, error) {
	t, ok := r.snapshot(id)
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// List 获取所有任务的快照
// 持有全部分片读锁期间收集条目，得到同一时间点的任务集合
func (r *TaskRepository) List() []*task.Task {
	entries := make([]*entry, 0, r.Len())

	for _, s := range r.shards {
		s.mu.RLock()
	}
	for _, s := range r.shards {
		for _, e := range s.tasks {
			entries = append(entries, e)
		}
	}
	for _, s := range r.shards {
		s.mu.RUnlock()
	}

	result := make([]*task.Task, 0, len(entries))
	for _, e := range entries {
		if t := e.current.Load(); t != nil {
			result = append(result, t.Clone())
		}
	}
	return result
}

// Update 整体替换任务记录
// 已完成的任务不会被重置为未完成;由未完成变为完成时需满足依赖全部完成
func (r *TaskRepository) Update(id int64, t *task.Task) (*task.Task, error) {
	if t == nil {
		return nil, fmt.Errorf("task cannot be nil")
	}

	e := r.lookupEntry(id)
	if e == nil {
		return nil, task.ErrTaskNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// 与 Delete 竞争时不复活已删除的任务
	if e.deleted {
		return nil, task.ErrTaskNotFound
	}

	prev := e.current.Load()
	next := t.Clone()
	next.ID = id

	if prev.IsCompleted {
		next.IsCompleted = true
	} else if next.IsCompleted && !r.dependenciesCompleted(next.Dependencies) {
		return nil, task.ErrIncompleteDependencies
	}

	e.current.Store(next)
	return next.Clone(), nil
}

// Delete 删除任务
// 先从分片摘除再标记删除，分片锁与条目锁不嵌套
func (r *TaskRepository) Delete(id int64) error {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if !ok {
		return task.ErrTaskNotFound
	}

	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// ValidateDependencies 校验候选任务的依赖图
func (r *TaskRepository) ValidateDependencies(t *task.Task) task.DependencyStatus {
	return depgraph.Validate(t, func(id int64) ([]int64, bool) {
		stored, ok := r.snapshot(id)
		if !ok {
			return nil, false
		}
		return stored.Dependencies, true
	})
}

// CanComplete 任务存在、未完成且所有依赖均已完成
func (r *TaskRepository) CanComplete(id int64) bool {
	t, ok := r.snapshot(id)
	if !ok {
		return false
	}
	return !t.IsCompleted && r.dependenciesCompleted(t.Dependencies)
}

// CompleteTask 原子地检查并完成任务
// 仅持有目标任务的条目锁;依赖的完成状态单调，无锁读取不会产生误判为可完成
func (r *TaskRepository) CompleteTask(id int64) bool {
	e := r.lookupEntry(id)
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return false
	}

	cur := e.current.Load()
	if cur.IsCompleted || !r.dependenciesCompleted(cur.Dependencies) {
		return false
	}

	next := cur.Clone()
	next.IsCompleted = true
	e.current.Store(next)
	return true
}

// dependenciesCompleted 所有依赖均存在且已完成(空依赖恒为真)
func (r *TaskRepository) dependenciesCompleted(deps []int64) bool {
	for _, dep := range deps {
		d, ok := r.snapshot(dep)
		if !ok || !d.IsCompleted {
			return false
		}
	}
	return true
}

// Len 当前任务数量
func (r *TaskRepository) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.tasks)
		s.mu.RUnlock()
	}
	return n
}
