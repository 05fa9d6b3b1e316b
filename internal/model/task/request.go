package task

import "time"

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	ID           int64     `json:"id" binding:"required,gt=0"`         // 任务ID(调用方指定)
	Title        string    `json:"title" binding:"required"`           // 任务标题
	DueDate      time.Time `json:"dueDate" binding:"required,notpast"` // 截止时间
	IsCompleted  bool      `json:"isCompleted"`                        // 是否已完成
	Dependencies []int64   `json:"dependencies"`                       // 前置依赖任务ID
}

// ToTask 转换为任务实体
func (r *CreateTaskRequest) ToTask() *Task {
	return &Task{
		ID:           r.ID,
		Title:        r.Title,
		DueDate:      r.DueDate,
		IsCompleted:  r.IsCompleted,
		Dependencies: CloneIDs(r.Dependencies),
	}
}

// UpdateTaskRequest 更新任务请求(整体替换，不支持部分更新)
// 请求体中的 id 字段被忽略，以路径参数为准
type UpdateTaskRequest struct {
	Title        string    `json:"title" binding:"required"`
	DueDate      time.Time `json:"dueDate" binding:"required,notpast"`
	IsCompleted  bool      `json:"isCompleted"`
	Dependencies []int64   `json:"dependencies"`
}

// ToTask 以指定ID转换为任务实体
func (r *UpdateTaskRequest) ToTask(id int64) *Task {
	return &Task{
		ID:           id,
		Title:        r.Title,
		DueDate:      r.DueDate,
		IsCompleted:  r.IsCompleted,
		Dependencies: CloneIDs(r.Dependencies),
	}
}
