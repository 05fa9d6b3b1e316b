// Package repotest 任务存储契约测试，所有 repo.TaskRepository 实现共用
package repotest

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tasktracker/internal/model/task"
	"tasktracker/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory 为每个子测试创建一个空的存储实例
type Factory func(t *testing.T) repo.TaskRepository

var baseDue = time.Date(2030, 1, 2, 15, 4, 5, 0, time.UTC)

// newTask 构造测试任务
func newTask(id int64, title string, deps ...int64) *task.Task {
	return &task.Task{
		ID:           id,
		Title:        title,
		DueDate:      baseDue,
		Dependencies: task.CloneIDs(deps),
	}
}

// assertSameTask 按字段比较任务(时间按时刻比较，不比较时区)
func assertSameTask(t *testing.T, want, got *task.Task) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.True(t, want.DueDate.Equal(got.DueDate), "due date: want %v, got %v", want.DueDate, got.DueDate)
	assert.Equal(t, want.IsCompleted, got.IsCompleted)
	assert.Equal(t, task.CloneIDs(want.Dependencies), got.Dependencies)
}

// RunTaskRepositoryContract 运行任务存储契约测试
func RunTaskRepositoryContract(t *testing.T, newRepo Factory) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, newRepo(t)) })
	t.Run("Uniqueness", func(t *testing.T) { testUniqueness(t, newRepo(t)) })
	t.Run("NonPositiveID", func(t *testing.T) { testNonPositiveID(t, newRepo(t)) })
	t.Run("CopyInCopyOut", func(t *testing.T) { testCopyInCopyOut(t, newRepo(t)) })
	t.Run("ValidateDependencies", func(t *testing.T) { testValidateDependencies(t, newRepo) })
	t.Run("Completion", func(t *testing.T) { testCompletion(t, newRepo(t)) })
	t.Run("UpdateCompletion", func(t *testing.T) { testUpdateCompletion(t, newRepo(t)) })
	t.Run("LargeDependencyList", func(t *testing.T) { testLargeDependencyList(t, newRepo(t)) })
	t.Run("Scenarios", func(t *testing.T) { testScenarios(t, newRepo) })
	t.Run("ConcurrentAdd", func(t *testing.T) { testConcurrentAdd(t, newRepo(t)) })
	t.Run("ConcurrentComplete", func(t *testing.T) { testConcurrentComplete(t, newRepo) })
	t.Run("ConcurrentUpdateDelete", func(t *testing.T) { testConcurrentUpdateDelete(t, newRepo(t)) })
}

func testCRUD(t *testing.T, r repo.TaskRepository) {
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())

	_, err := r.Get(1)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	a := newTask(1, "A", 2)
	b := newTask(2, "B")
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(1)
	require.NoError(t, err)
	assertSameTask(t, a, got)

	got, err = r.Get(2)
	require.NoError(t, err)
	assert.NotNil(t, got.Dependencies, "空依赖列表应返回[]而不是nil")

	list := r.List()
	assert.Len(t, list, 2)
	ids := map[int64]bool{}
	for _, item := range list {
		ids[item.ID] = true
	}
	assert.Equal(t, map[int64]bool{1: true, 2: true}, ids)

	// 整体替换
	replacement := newTask(99, "A2")
	replacement.DueDate = baseDue.Add(24 * time.Hour)
	updated, err := r.Update(1, replacement)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.ID, "路径ID优先于任务体中的ID")
	assert.Equal(t, "A2", updated.Title)
	assert.Empty(t, updated.Dependencies)

	got, err = r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "A2", got.Title)
	assert.True(t, replacement.DueDate.Equal(got.DueDate))
	_, err = r.Get(99)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	_, err = r.Update(42, newTask(42, "nope"))
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
	_, err = r.Get(42)
	assert.ErrorIs(t, err, task.ErrTaskNotFound, "Update 不能创建任务")

	require.NoError(t, r.Delete(1))
	assert.ErrorIs(t, r.Delete(1), task.ErrTaskNotFound)
	_, err = r.Get(1)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
	assert.Equal(t, 1, r.Len())
}

// testUniqueness 重复ID插入失败且不修改已有记录
func testUniqueness(t *testing.T, r repo.TaskRepository) {
	original := newTask(1, "original", 5)
	require.NoError(t, r.Add(original))

	err := r.Add(newTask(1, "imposter"))
	assert.ErrorIs(t, err, task.ErrDuplicateID)

	got, err := r.Get(1)
	require.NoError(t, err)
	assertSameTask(t, original, got)
	assert.Equal(t, 1, r.Len())

	// 删除后可以重新使用该ID
	require.NoError(t, r.Delete(1))
	assert.NoError(t, r.Add(newTask(1, "again")))
}

// testNonPositiveID 0 和负数ID被拒绝，存储不变
func testNonPositiveID(t *testing.T, r repo.TaskRepository) {
	for _, id := range []int64{0, -5} {
		assert.ErrorIs(t, r.Add(newTask(id, "invalid")), task.ErrInvalidTaskID)
		_, err := r.Get(id)
		assert.ErrorIs(t, err, task.ErrTaskNotFound)
	}
	assert.Equal(t, 0, r.Len())
}

// testCopyInCopyOut 调用方修改自己的切片不影响存储
func testCopyInCopyOut(t *testing.T, r repo.TaskRepository) {
	deps := []int64{2, 3}
	in := newTask(1, "A")
	in.Dependencies = deps
	require.NoError(t, r.Add(in))

	deps[0] = 100
	in.Title = "changed"

	got, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, got.Dependencies)
	assert.Equal(t, "A", got.Title)

	got.Dependencies[1] = 200
	got.IsCompleted = true
	again, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, again.Dependencies)
	assert.False(t, again.IsCompleted)

	list := r.List()
	require.Len(t, list, 1)
	list[0].Dependencies[0] = 300
	again, err = r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, again.Dependencies)

	upd := newTask(1, "A", 4)
	updated, err := r.Update(1, upd)
	require.NoError(t, err)
	upd.Dependencies[0] = 400
	updated.Dependencies[0] = 500
	again, err = r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, again.Dependencies)
}

func testValidateDependencies(t *testing.T, newRepo Factory) {
	tests := []struct {
		name      string
		stored    []*task.Task
		candidate *task.Task
		want      task.DependencyStatus
	}{
		{
			name:      "无依赖",
			candidate: newTask(1, "A"),
			want:      task.NoIssues,
		},
		{
			name:      "自依赖",
			candidate: newTask(1, "A", 1),
			want:      task.CircularDependency,
		},
		{
			name:      "自依赖且已入库",
			stored:    []*task.Task{newTask(1, "A", 1)},
			candidate: newTask(1, "A", 1),
			want:      task.CircularDependency,
		},
		{
			name:      "依赖不存在",
			candidate: newTask(3, "C", 14),
			want:      task.MissingTask,
		},
		{
			name:      "依赖存在",
			stored:    []*task.Task{newTask(2, "B")},
			candidate: newTask(1, "A", 2),
			want:      task.NoIssues,
		},
		{
			name:      "未入库的候选任务闭合环",
			stored:    []*task.Task{newTask(2, "B", 3), newTask(3, "C", 1)},
			candidate: newTask(1, "A", 2),
			want:      task.CircularDependency,
		},
		{
			name:      "菱形依赖",
			stored:    []*task.Task{newTask(2, "B", 4), newTask(3, "C", 4), newTask(4, "D")},
			candidate: newTask(1, "A", 2, 3),
			want:      task.NoIssues,
		},
		{
			name:      "环先于缺失",
			stored:    []*task.Task{newTask(2, "B", 1)},
			candidate: newTask(1, "A", 2, 99),
			want:      task.CircularDependency,
		},
		{
			name:      "缺失先于环",
			stored:    []*task.Task{newTask(2, "B", 1)},
			candidate: newTask(1, "A", 99, 2),
			want:      task.MissingTask,
		},
		{
			name:      "候选任务去掉依赖即可解环",
			stored:    []*task.Task{newTask(1, "A", 2), newTask(2, "B", 1)},
			candidate: newTask(1, "A"),
			want:      task.NoIssues,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRepo(t)
			for _, s := range tt.stored {
				require.NoError(t, r.Add(s))
			}
			before := r.Len()

			got := r.ValidateDependencies(tt.candidate)
			assert.Equal(t, tt.want, got, "want %s, got %s", tt.want, got)
			assert.Equal(t, before, r.Len(), "校验不能修改存储")
		})
	}
}

// testCompletion 依赖门控、空依赖可完成、重复完成
func testCompletion(t *testing.T, r repo.TaskRepository) {
	assert.False(t, r.CanComplete(1), "不存在的任务不可完成")
	assert.False(t, r.CompleteTask(1))

	// 空依赖且未完成 => 可完成
	require.NoError(t, r.Add(newTask(10, "solo")))
	assert.True(t, r.CanComplete(10))

	// 依赖未完成时拒绝，且不修改状态
	require.NoError(t, r.Add(newTask(1, "A", 2)))
	require.NoError(t, r.Add(newTask(2, "B")))
	assert.False(t, r.CanComplete(1))
	assert.False(t, r.CompleteTask(1))
	a, err := r.Get(1)
	require.NoError(t, err)
	assert.False(t, a.IsCompleted)

	assert.True(t, r.CompleteTask(2))
	assert.True(t, r.CanComplete(1))
	assert.True(t, r.CompleteTask(1))
	a, err = r.Get(1)
	require.NoError(t, err)
	assert.True(t, a.IsCompleted)

	// 已完成的任务不能再次完成
	assert.False(t, r.CanComplete(1))
	assert.False(t, r.CompleteTask(1))
	a, err = r.Get(1)
	require.NoError(t, err)
	assert.True(t, a.IsCompleted)

	// 依赖被删除后不可完成
	require.NoError(t, r.Add(newTask(3, "C", 4)))
	require.NoError(t, r.Add(newTask(4, "D")))
	require.True(t, r.CompleteTask(4))
	require.NoError(t, r.Delete(4))
	assert.False(t, r.CanComplete(3))
	assert.False(t, r.CompleteTask(3))
}

// testUpdateCompletion 更新不会撤销完成状态，也不能绕过依赖门控
func testUpdateCompletion(t *testing.T, r repo.TaskRepository) {
	require.NoError(t, r.Add(newTask(1, "A", 2)))
	require.NoError(t, r.Add(newTask(2, "B")))

	completing := newTask(1, "A", 2)
	completing.IsCompleted = true
	_, err := r.Update(1, completing)
	assert.ErrorIs(t, err, task.ErrIncompleteDependencies)
	a, err := r.Get(1)
	require.NoError(t, err)
	assert.False(t, a.IsCompleted)

	// 通过更新完成无依赖任务
	b := newTask(2, "B")
	b.IsCompleted = true
	updated, err := r.Update(2, b)
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)

	// 已完成任务更新为未完成时保持完成
	reopened := newTask(2, "B renamed")
	updated, err = r.Update(2, reopened)
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
	assert.Equal(t, "B renamed", updated.Title)
	got, err := r.Get(2)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)

	_, err = r.Update(1, completing)
	assert.NoError(t, err)
}

// largeDependencyCount 超过 SQLite 单条语句的绑定参数上限(32766)
const largeDependencyCount = 33000

// testLargeDependencyList 依赖数量很大(含重复ID)时完成判断与小列表一致
func testLargeDependencyList(t *testing.T, r repo.TaskRepository) {
	if testing.Short() {
		t.Skip("skipping large dependency list in short mode")
	}

	deps := make([]int64, 0, largeDependencyCount+2)
	for id := int64(1); id <= largeDependencyCount; id++ {
		dep := newTask(id, "dep")
		dep.IsCompleted = true
		require.NoError(t, r.Add(dep))
		deps = append(deps, id)
	}
	deps = append(deps, 1, largeDependencyCount)

	const target = largeDependencyCount + 1
	root := newTask(target, "root", deps...)
	assert.Equal(t, task.NoIssues, r.ValidateDependencies(root))
	require.NoError(t, r.Add(root))
	assert.True(t, r.CanComplete(target))

	// 最后一批中出现未完成的依赖时拒绝
	pending := newTask(target+1, "pending")
	require.NoError(t, r.Add(pending))
	blocked := newTask(target+2, "blocked", append(task.CloneIDs(deps), pending.ID)...)
	require.NoError(t, r.Add(blocked))
	assert.False(t, r.CanComplete(blocked.ID))
	assert.False(t, r.CompleteTask(blocked.ID))

	assert.True(t, r.CompleteTask(target))
	got, err := r.Get(target)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
}

func testScenarios(t *testing.T, newRepo Factory) {
	t.Run("依赖完成后才能完成", func(t *testing.T) {
		r := newRepo(t)
		t1 := newTask(1, "A", 2)
		t2 := newTask(2, "B")
		require.NoError(t, r.Add(t1))
		require.NoError(t, r.Add(t2))

		assert.Equal(t, task.NoIssues, r.ValidateDependencies(t1))
		assert.Equal(t, task.NoIssues, r.ValidateDependencies(t2))
		assert.False(t, r.CompleteTask(1))
		assert.True(t, r.CompleteTask(2))
		assert.True(t, r.CompleteTask(1))
	})

	t.Run("两任务互相依赖", func(t *testing.T) {
		r := newRepo(t)
		t1 := newTask(1, "A", 2)
		require.NoError(t, r.Add(t1))
		require.NoError(t, r.Add(newTask(2, "B", 1)))

		assert.Equal(t, task.CircularDependency, r.ValidateDependencies(t1))
	})

	t.Run("依赖不存在的任务", func(t *testing.T) {
		r := newRepo(t)
		t3 := newTask(3, "C", 14)
		require.NoError(t, r.Add(t3))

		assert.Equal(t, task.MissingTask, r.ValidateDependencies(t3))
	})
}

// testConcurrentAdd 并发插入同一ID，恰好一个成功
func testConcurrentAdd(t *testing.T, r repo.TaskRepository) {
	const workers = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		dupes     atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := r.Add(newTask(7, "racer"))
			if err == nil {
				successes.Add(1)
			} else if assert.ErrorIs(t, err, task.ErrDuplicateID) {
				dupes.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), dupes.Load())
	assert.Equal(t, 1, r.Len())

	// 不同ID并发插入全部成功
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			assert.NoError(t, r.Add(newTask(id, "distinct")))
		}(int64(100 + i))
	}
	wg.Wait()
	assert.Equal(t, workers+1, r.Len())
}

func testConcurrentComplete(t *testing.T, newRepo Factory) {
	// A 依赖 B，并发完成 A 与 B: B 必然成功，A 永远不会先于 B 完成
	t.Run("依赖门控", func(t *testing.T) {
		for round := 0; round < 20; round++ {
			r := newRepo(t)
			require.NoError(t, r.Add(newTask(1, "A", 2)))
			require.NoError(t, r.Add(newTask(2, "B")))

			var (
				wg        sync.WaitGroup
				okA, okB  bool
				violation atomic.Bool
				stop      atomic.Bool
			)
			start := make(chan struct{})

			// 观察者: 先读 A 再读 B，A 已完成时 B 必然已完成
			observerDone := make(chan struct{})
			go func() {
				defer close(observerDone)
				for !stop.Load() {
					a, errA := r.Get(1)
					b, errB := r.Get(2)
					if errA == nil && errB == nil && a.IsCompleted && !b.IsCompleted {
						violation.Store(true)
					}
				}
			}()

			wg.Add(2)
			go func() {
				defer wg.Done()
				<-start
				okA = r.CompleteTask(1)
			}()
			go func() {
				defer wg.Done()
				<-start
				okB = r.CompleteTask(2)
			}()
			close(start)
			wg.Wait()
			stop.Store(true)
			<-observerDone

			assert.True(t, okB, "B 无依赖，必然可以完成")
			assert.False(t, violation.Load(), "A 在 B 完成之前被标记为完成")

			a, err := r.Get(1)
			require.NoError(t, err)
			assert.Equal(t, okA, a.IsCompleted)
			if !okA {
				// B 完成后重试必然成功
				assert.True(t, r.CompleteTask(1))
			}
		}
	})

	t.Run("同一任务只完成一次", func(t *testing.T) {
		r := newRepo(t)
		require.NoError(t, r.Add(newTask(1, "A")))

		const workers = 16
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
		)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if r.CompleteTask(1) {
					successes.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		assert.Equal(t, int32(1), successes.Load())
	})

	t.Run("互不依赖的任务都能完成", func(t *testing.T) {
		r := newRepo(t)
		const n = 16
		for i := int64(1); i <= n; i++ {
			require.NoError(t, r.Add(newTask(i, "independent")))
		}

		var wg sync.WaitGroup
		results := make([]bool, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = r.CompleteTask(int64(i + 1))
			}(i)
		}
		wg.Wait()
		for i, ok := range results {
			assert.True(t, ok, "task %d", i+1)
		}
	})
}

// testConcurrentUpdateDelete 并发更新与删除，删除成功后任务不会复活
func testConcurrentUpdateDelete(t *testing.T, r repo.TaskRepository) {
	const rounds = 50
	for i := int64(1); i <= rounds; i++ {
		require.NoError(t, r.Add(newTask(i, "victim")))

		var (
			wg        sync.WaitGroup
			deleteErr error
			updateErr error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			<-start
			deleteErr = r.Delete(id)
		}(i)
		go func(id int64) {
			defer wg.Done()
			<-start
			_, updateErr = r.Update(id, newTask(id, "updated"))
		}(i)
		close(start)
		wg.Wait()

		require.NoError(t, deleteErr)
		if updateErr != nil {
			assert.ErrorIs(t, updateErr, task.ErrTaskNotFound)
		}
		_, err := r.Get(i)
		assert.ErrorIs(t, err, task.ErrTaskNotFound, "round %d: 已删除的任务被更新复活", i)
	}
	assert.Equal(t, 0, r.Len())
}
