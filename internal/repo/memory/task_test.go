package memory

import (
	"testing"

	"tasktracker/internal/model/task"
	"tasktracker/internal/repo"
	"tasktracker/internal/repo/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepositoryContract(t *testing.T) {
	repotest.RunTaskRepositoryContract(t, func(t *testing.T) repo.TaskRepository {
		return NewTaskRepository(DefaultShardCount)
	})
}

// TestTaskRepositorySingleShard 单分片时行为一致
func TestTaskRepositorySingleShard(t *testing.T) {
	repotest.RunTaskRepositoryContract(t, func(t *testing.T) repo.TaskRepository {
		return NewTaskRepository(1)
	})
}

func TestNormalizeShardCount(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: -1, want: DefaultShardCount},
		{in: 0, want: DefaultShardCount},
		{in: 1, want: 1},
		{in: 3, want: 4},
		{in: 32, want: 32},
		{in: 33, want: 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeShardCount(tt.in), "shards(%d)", tt.in)
	}
}

// TestShardDistribution 连续ID分散到不同分片
func TestShardDistribution(t *testing.T) {
	r := NewTaskRepository(8)
	used := make(map[*shard]int)
	for id := int64(1); id <= 64; id++ {
		used[r.shardFor(id)]++
	}
	assert.Len(t, used, 8)
}

// TestAddNil 空任务返回错误且不修改存储
func TestAddNil(t *testing.T) {
	r := NewTaskRepository(0)
	assert.Error(t, r.Add(nil))
	_, err := r.Update(1, nil)
	assert.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

// TestDeletedEntryNotResurrected 持有已摘除条目的写操作返回不存在
func TestDeletedEntryNotResurrected(t *testing.T) {
	r := NewTaskRepository(0)
	require.NoError(t, r.Add(&task.Task{ID: 1, Title: "A"}))

	// 模拟 Update/CompleteTask 在 Delete 之前取得条目
	e := r.lookupEntry(1)
	require.NotNil(t, e)
	require.NoError(t, r.Delete(1))

	assert.True(t, e.deleted)
	_, err := r.Update(1, &task.Task{Title: "B"})
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
	assert.False(t, r.CompleteTask(1))
	assert.Equal(t, 0, r.Len())
}
