package task

// TaskListResponse 任务列表响应
type TaskListResponse struct {
	Tasks []*Task `json:"tasks"` // 任务快照(顺序不保证)
	Total int     `json:"total"` // 任务数量
}

// CanCompleteResponse 可完成性检查响应
type CanCompleteResponse struct {
	ID          int64 `json:"id"`
	CanComplete bool  `json:"canComplete"`
}
