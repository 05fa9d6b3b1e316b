/**
 * 依赖图校验
 * @author: sun977
 * @date: 2025.12.12
 * @description: 以深度优先遍历判定任务依赖图是否存在环或缺失引用
 * @func:
 *   - Validate 从候选任务出发遍历其可达依赖闭包，返回第一个遇到的问题
 */
package depgraph

import (
	"tasktracker/internal/model/task"
)

// Lookup 按ID解析已存储任务的依赖列表
// 返回的切片只读，调用方不得修改
type Lookup func(id int64) (deps []int64, ok bool)

// frame DFS 栈帧
type frame struct {
	id   int64
	deps []int64
	next int // 下一个待访问的依赖下标
}

// Validate 校验候选任务的依赖图
// 候选任务自身的依赖以 candidate 为准(可在入库前校验)，其余任务通过 lookup 解析。
// 遍历顺序与依赖列表顺序一致，遇到的第一个问题即为结果:
//   - 再次访问当前路径上的节点 => CircularDependency (自依赖是单节点环)
//   - 无法解析的节点 => MissingTask
//
// 使用显式栈代替递归，避免长依赖链导致的栈增长。
func Validate(candidate *task.Task, lookup Lookup) task.DependencyStatus {
	if candidate == nil || len(candidate.Dependencies) == 0 {
		return task.NoIssues
	}

	resolve := func(id int64) ([]int64, bool) {
		if id == candidate.ID {
			return candidate.Dependencies, true
		}
		return lookup(id)
	}

	// visiting: 当前DFS路径上的节点; done: 已完整遍历且无问题的节点
	visiting := map[int64]struct{}{candidate.ID: {}}
	done := make(map[int64]struct{})
	stack := []frame{{id: candidate.ID, deps: candidate.Dependencies}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.deps) {
			// 回溯
			delete(visiting, top.id)
			done[top.id] = struct{}{}
			stack = stack[:len(stack)-1]
			continue
		}

		dep := top.deps[top.next]
		top.next++

		if _, onPath := visiting[dep]; onPath {
			return task.CircularDependency
		}
		// 已完整遍历过的节点不可能再回到当前路径，也不含缺失引用
		if _, ok := done[dep]; ok {
			continue
		}

		deps, ok := resolve(dep)
		if !ok {
			return task.MissingTask
		}
		visiting[dep] = struct{}{}
		stack = append(stack, frame{id: dep, deps: deps})
	}

	return task.NoIssues
}
