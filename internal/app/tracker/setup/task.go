package setup

import (
	"fmt"

	"tasktracker/internal/config"
	taskHandler "tasktracker/internal/handler/task"
	"tasktracker/internal/pkg/database"
	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/repo"
	"tasktracker/internal/repo/memory"
	"tasktracker/internal/repo/sqlite"
	taskService "tasktracker/internal/service/task"

	"github.com/sirupsen/logrus"
)

// BuildStore 按配置构建任务存储
//   - memory: 分片内存存储(默认)
//   - sqlite: GORM + 内存 SQLite
func BuildStore(cfg *config.StoreConfig) (*StoreModule, error) {
	switch cfg.Backend {
	case "", repo.BackendMemory:
		store := memory.NewTaskRepository(cfg.Shards)
		logger.LogSystemEvent("store", "init", "memory task store initialized", logrus.InfoLevel, map[string]interface{}{
			"shards": cfg.Shards,
		})
		return &StoreModule{
			Store:   store,
			Backend: repo.BackendMemory,
			Close:   func() error { return nil },
		}, nil

	case repo.BackendSQLite:
		db, err := database.NewSQLiteConnection(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		store, err := sqlite.NewTaskRepository(db)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		logger.LogSystemEvent("store", "init", "sqlite task store initialized", logrus.InfoLevel, nil)
		return &StoreModule{
			Store:   store,
			Backend: repo.BackendSQLite,
			Close: func() error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}

// BuildTaskModule 构建任务模块
// 参数：
// - store：任务存储
// - cfg：任务校验配置
//
// 返回：
// - *TaskModule：聚合后的任务模块输出
func BuildTaskModule(store repo.TaskRepository, cfg config.TaskConfig) *TaskModule {
	logger.WithFields(logrus.Fields{
		"path":      "internal.app.tracker.setup.task.BuildTaskModule",
		"operation": "setup",
		"option":    "setup.task.begin",
		"func_name": "setup.task.BuildTaskModule",
	}).Info("开始构建任务模块")

	service := taskService.NewTaskService(store, cfg)
	handler := taskHandler.NewTaskHandler(service)

	module := &TaskModule{
		TaskHandler: handler,
		TaskService: service,
		Store:       store,
	}

	logger.WithFields(logrus.Fields{
		"path":      "internal.app.tracker.setup.task.BuildTaskModule",
		"operation": "setup",
		"option":    "setup.task.done",
		"func_name": "setup.task.BuildTaskModule",
	}).Info("任务模块构建完成")

	return module
}
