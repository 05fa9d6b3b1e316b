// 任务模型
// 定义任务实体以及依赖校验结果
package task

import (
	"time"
)

// Task 任务实体
// Dependencies 为前置依赖任务ID列表(有序)，为空表示无依赖
// IsCompleted 单调: 一旦为 true，正常流程不会再置回 false
type Task struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement:false;comment:任务ID(调用方指定)"`
	Title        string    `json:"title" gorm:"size:255;not null;comment:任务标题"`
	DueDate      time.Time `json:"dueDate" gorm:"comment:截止时间"`
	IsCompleted  bool      `json:"isCompleted" gorm:"default:false;comment:是否已完成"`
	Dependencies []int64   `json:"dependencies" gorm:"serializer:json;type:json;comment:前置依赖任务ID列表(JSON数组)"`
}

// TableName 定义数据库表名
func (Task) TableName() string {
	return "tasks"
}

// Clone 深拷贝任务，依赖列表按值复制，避免与调用方共享底层数组
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Dependencies = CloneIDs(t.Dependencies)
	return &c
}

// DependsOn 判断任务是否直接依赖指定ID
func (t *Task) DependsOn(id int64) bool {
	for _, dep := range t.Dependencies {
		if dep == id {
			return true
		}
	}
	return false
}

// CloneIDs 复制ID切片，nil 输入返回空切片(保证JSON序列化为[])
func CloneIDs(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// DependencyStatus 依赖校验结果
type DependencyStatus int

const (
	NoIssues           DependencyStatus = iota // 依赖图合法
	CircularDependency                         // 存在从任务回到自身的路径
	MissingTask                                // 可达依赖闭包中存在不存在的任务
)

// String 返回校验结果的字符串表示(用于日志与错误响应)
func (s DependencyStatus) String() string {
	switch s {
	case NoIssues:
		return "no_issues"
	case CircularDependency:
		return "circular_dependency"
	case MissingTask:
		return "missing_task"
	default:
		return "unknown"
	}
}

// Err 将校验结果转换为错误，NoIssues 返回 nil
func (s DependencyStatus) Err() error {
	switch s {
	case NoIssues:
		return nil
	case CircularDependency:
		return ErrCircularDependency
	case MissingTask:
		return ErrMissingDependency
	default:
		return ErrInvalidDependencyStatus
	}
}
