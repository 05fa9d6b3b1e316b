package task

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"tasktracker/internal/config"
	"tasktracker/internal/model/system"
	"tasktracker/internal/model/task"
	"tasktracker/internal/repo/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestService 创建基于内存存储的服务，时间固定
func newTestService() *TaskService {
	svc := NewTaskService(memory.NewTaskRepository(0), config.TaskConfig{TitleMaxLength: 10})
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func createReq(id int64, title string, deps ...int64) *task.CreateTaskRequest {
	return &task.CreateTaskRequest{
		ID:           id,
		Title:        title,
		DueDate:      fixedNow.Add(48 * time.Hour),
		Dependencies: deps,
	}
}

func updateReq(title string, deps ...int64) *task.UpdateTaskRequest {
	return &task.UpdateTaskRequest{
		Title:        title,
		DueDate:      fixedNow.Add(72 * time.Hour),
		Dependencies: deps,
	}
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   []*task.CreateTaskRequest
		req     *task.CreateTaskRequest
		wantErr error
		field   string
	}{
		{name: "创建成功", req: createReq(1, "A")},
		{name: "标题去除首尾空白后为空", req: createReq(1, "   "), wantErr: task.ErrInvalidTitle, field: "title"},
		{name: "标题超长", req: createReq(1, "abcdefghijk"), wantErr: task.ErrInvalidTitle, field: "title"},
		{name: "按字符计算标题长度", req: createReq(1, strings.Repeat("任", 10))},
		{
			name:    "截止时间在过去",
			req:     &task.CreateTaskRequest{ID: 1, Title: "A", DueDate: fixedNow.Add(-time.Minute)},
			wantErr: task.ErrDueDateInPast,
			field:   "dueDate",
		},
		{name: "非法ID", req: createReq(0, "A"), wantErr: task.ErrInvalidTaskID, field: "id"},
		{name: "自依赖", req: createReq(1, "A", 1), wantErr: task.ErrSelfDependency, field: "dependencies"},
		{name: "依赖不存在", req: createReq(3, "C", 14), wantErr: task.ErrMissingDependency},
		{
			name:  "依赖存在",
			setup: []*task.CreateTaskRequest{createReq(2, "B")},
			req:   createReq(1, "A", 2),
		},
		{
			name:    "重复ID",
			setup:   []*task.CreateTaskRequest{createReq(1, "A")},
			req:     createReq(1, "A again"),
			wantErr: task.ErrDuplicateID,
		},
		{
			name:    "创建即完成但依赖未完成",
			setup:   []*task.CreateTaskRequest{createReq(2, "B")},
			req:     &task.CreateTaskRequest{ID: 1, Title: "A", DueDate: fixedNow.Add(time.Hour), IsCompleted: true, Dependencies: []int64{2}},
			wantErr: task.ErrIncompleteDependencies,
		},
		{
			name: "创建即完成且无依赖",
			req:  &task.CreateTaskRequest{ID: 1, Title: "A", DueDate: fixedNow.Add(time.Hour), IsCompleted: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService()
			for _, s := range tt.setup {
				_, err := svc.CreateTask(ctx, s)
				require.NoError(t, err)
			}

			created, err := svc.CreateTask(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, created)
				if tt.field != "" {
					var ve *system.ValidationError
					require.ErrorAs(t, err, &ve)
					assert.Equal(t, tt.field, ve.Field)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req.ID, created.ID)
			assert.Equal(t, strings.TrimSpace(tt.req.Title), created.Title)
			assert.NotNil(t, created.Dependencies)

			stored, err := svc.GetTask(ctx, tt.req.ID)
			require.NoError(t, err)
			assert.Equal(t, created, stored)
		})
	}
}

// TestCreateTaskAllowPastDue 配置允许时接受过去的截止时间
func TestCreateTaskAllowPastDue(t *testing.T) {
	svc := newTestService()
	svc.UpdateConfig(config.TaskConfig{TitleMaxLength: 10, AllowPastDue: true})

	_, err := svc.CreateTask(context.Background(), &task.CreateTaskRequest{ID: 1, Title: "A", DueDate: fixedNow.Add(-24 * time.Hour)})
	assert.NoError(t, err)

	// 未配置标题长度时使用默认值
	svc.UpdateConfig(config.TaskConfig{})
	assert.Equal(t, config.DefaultTitleMaxLength, svc.Config().TitleMaxLength)
}

func TestCreateTaskCircular(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CreateTask(ctx, createReq(2, "B"))
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, createReq(1, "A", 2))
	require.NoError(t, err)

	// 2 -> 1 -> 2
	_, err = svc.UpdateTask(ctx, 2, updateReq("B", 1))
	assert.ErrorIs(t, err, task.ErrCircularDependency)

	b, err := svc.GetTask(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, b.Dependencies, "校验失败时不能写入")
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.UpdateTask(ctx, 1, updateReq("A"))
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	_, err = svc.UpdateTask(ctx, 0, updateReq("A"))
	assert.ErrorIs(t, err, task.ErrInvalidTaskID)

	_, err = svc.CreateTask(ctx, createReq(1, "A"))
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, createReq(2, "B"))
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, 1, updateReq(" A2 ", 2))
	require.NoError(t, err)
	assert.Equal(t, "A2", updated.Title)
	assert.Equal(t, []int64{2}, updated.Dependencies)
	assert.True(t, fixedNow.Add(72*time.Hour).Equal(updated.DueDate))

	_, err = svc.UpdateTask(ctx, 1, updateReq("A", 1))
	assert.ErrorIs(t, err, task.ErrSelfDependency)

	_, err = svc.UpdateTask(ctx, 1, updateReq("A", 99))
	assert.ErrorIs(t, err, task.ErrMissingDependency)

	_, err = svc.UpdateTask(ctx, 1, updateReq("this title is too long"))
	assert.ErrorIs(t, err, task.ErrInvalidTitle)

	// 通过更新完成任务需满足依赖门控
	completing := updateReq("A", 2)
	completing.IsCompleted = true
	_, err = svc.UpdateTask(ctx, 1, completing)
	assert.ErrorIs(t, err, task.ErrIncompleteDependencies)

	_, err = svc.CompleteTask(ctx, 2)
	require.NoError(t, err)
	updated, err = svc.UpdateTask(ctx, 1, completing)
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)

	// 已完成的任务不会被重置
	updated, err = svc.UpdateTask(ctx, 1, updateReq("A"))
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
}

func TestCompleteTask(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CompleteTask(ctx, 1)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	_, err = svc.CreateTask(ctx, createReq(2, "B"))
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, createReq(1, "A", 2))
	require.NoError(t, err)

	_, err = svc.CompleteTask(ctx, 1)
	assert.ErrorIs(t, err, task.ErrIncompleteDependencies)

	b, err := svc.CompleteTask(ctx, 2)
	require.NoError(t, err)
	assert.True(t, b.IsCompleted)

	a, err := svc.CompleteTask(ctx, 1)
	require.NoError(t, err)
	assert.True(t, a.IsCompleted)

	_, err = svc.CompleteTask(ctx, 1)
	assert.ErrorIs(t, err, task.ErrAlreadyCompleted)

	_, err = svc.CompleteTask(ctx, -1)
	assert.ErrorIs(t, err, task.ErrInvalidTaskID)
}

func TestCanComplete(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.CanComplete(ctx, 1)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	_, err = svc.CreateTask(ctx, createReq(2, "B"))
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, createReq(1, "A", 2))
	require.NoError(t, err)

	resp, err := svc.CanComplete(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &task.CanCompleteResponse{ID: 1, CanComplete: false}, resp)

	resp, err = svc.CanComplete(ctx, 2)
	require.NoError(t, err)
	assert.True(t, resp.CanComplete)
}

func TestDeleteAndList(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	for _, id := range []int64{3, 1, 2} {
		_, err := svc.CreateTask(ctx, createReq(id, "T"))
		require.NoError(t, err)
	}

	list := svc.ListTasks(ctx)
	require.Equal(t, 3, list.Total)
	assert.Equal(t, []int64{1, 2, 3}, []int64{list.Tasks[0].ID, list.Tasks[1].ID, list.Tasks[2].ID})

	require.NoError(t, svc.DeleteTask(ctx, 2))
	assert.ErrorIs(t, svc.DeleteTask(ctx, 2), task.ErrTaskNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, 0), task.ErrInvalidTaskID)
	assert.Equal(t, 2, svc.ListTasks(ctx).Total)
}

// TestConcurrentUpdatesCannotFormCycle 并发更新各自合法，但合起来成环时只有一个成功
func TestConcurrentUpdatesCannotFormCycle(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 50; round++ {
		svc := newTestService()
		_, err := svc.CreateTask(ctx, createReq(1, "A"))
		require.NoError(t, err)
		_, err = svc.CreateTask(ctx, createReq(2, "B"))
		require.NoError(t, err)

		var (
			wg         sync.WaitGroup
			err1, err2 error
		)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, err1 = svc.UpdateTask(ctx, 1, updateReq("A", 2))
		}()
		go func() {
			defer wg.Done()
			<-start
			_, err2 = svc.UpdateTask(ctx, 2, updateReq("B", 1))
		}()
		close(start)
		wg.Wait()

		assert.True(t, (err1 == nil) != (err2 == nil), "round %d: err1=%v err2=%v", round, err1, err2)
		if err1 != nil {
			assert.ErrorIs(t, err1, task.ErrCircularDependency)
		}
		if err2 != nil {
			assert.ErrorIs(t, err2, task.ErrCircularDependency)
		}
	}
}

func TestIsExpectedError(t *testing.T) {
	assert.True(t, IsExpectedError(task.ErrTaskNotFound))
	assert.True(t, IsExpectedError(system.WrapValidationError("title", task.ErrInvalidTitle)))
	assert.False(t, IsExpectedError(assert.AnError))
}
