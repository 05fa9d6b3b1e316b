/**
 * 应用程序
 * @author: sun977
 * @date: 2025.12.16
 * @description: 任务追踪服务的装配与生命周期管理
 * @func:
 *   - NewApp 加载配置、初始化日志、构建存储与路由、注册配置热重载回调
 *   - Start / Stop 启动与优雅关闭HTTP服务
 */
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"tasktracker/internal/app/tracker/router"
	"tasktracker/internal/app/tracker/setup"
	"tasktracker/internal/config"
	"tasktracker/internal/pkg/logger"
	"tasktracker/internal/pkg/utils"
	"tasktracker/internal/pkg/version"

	"github.com/sirupsen/logrus"
)

// App 应用程序结构体
type App struct {
	config     *config.Config
	router     *router.Router
	store      *setup.StoreModule
	taskModule *setup.TaskModule
	watcher    *config.ConfigWatcher
	server     *http.Server
	serveErr   chan error
}

// NewApp 创建新的应用程序实例
// configPath 为配置目录(为空时使用默认目录)，env 为环境标识(为空时读取环境变量)
func NewApp(configPath, env string) (*App, error) {
	cfg, err := config.LoadConfig(configPath, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app, err := NewAppWithConfig(cfg)
	if err != nil {
		return nil, err
	}

	if env == "" {
		env = cfg.App.Environment
	}
	if err := app.WatchConfig(configPath, env); err != nil {
		// 热重载不可用不影响服务
		logger.LogSystemEvent("config", "watch_failed", err.Error(), logrus.WarnLevel, nil)
	}

	return app, nil
}

// NewAppWithConfig 使用已加载的配置创建应用程序实例(不启用配置热重载)
func NewAppWithConfig(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	if cfg.App.Version == "" {
		cfg.App.Version = version.GetVersion()
	}

	utils.SetAllowPastDue(cfg.Task.AllowPastDue)
	if err := utils.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	store, err := setup.BuildStore(&cfg.Store)
	if err != nil {
		return nil, err
	}

	taskModule := setup.BuildTaskModule(store.Store, cfg.Task)

	r := router.NewRouter(cfg, taskModule)
	r.SetupRoutes()

	logger.LogSystemEvent("app", "init", "application initialized", logrus.InfoLevel, map[string]interface{}{
		"environment": cfg.App.Environment,
		"backend":     store.Backend,
		"version":     cfg.App.Version,
	})

	return &App{
		config:     cfg,
		router:     r,
		store:      store,
		taskModule: taskModule,
		serveErr:   make(chan error, 1),
	}, nil
}

// WatchConfig 启动配置监听并注册重载回调
func (a *App) WatchConfig(configPath, env string) error {
	watcher, err := config.NewConfigWatcher(configPath, env)
	if err != nil {
		return err
	}

	watcher.AddCallback(a.onConfigReload)
	watcher.AddCallback(config.StoreConfigReloadCallback)
	watcher.AddCallback(config.SecurityConfigReloadCallback)

	if err := watcher.Start(); err != nil {
		_ = watcher.Close()
		return err
	}
	a.watcher = watcher
	return nil
}

// onConfigReload 应用可热更新的配置:日志级别/格式、任务校验配置
func (a *App) onConfigReload(oldConfig, newConfig *config.Config) error {
	if logger.LoggerInstance != nil {
		if err := logger.LoggerInstance.UpdateConfig(&newConfig.Log); err != nil {
			return fmt.Errorf("failed to update logger config: %w", err)
		}
	}

	a.taskModule.TaskService.UpdateConfig(newConfig.Task)
	utils.SetAllowPastDue(newConfig.Task.AllowPastDue)

	logger.LogSystemEvent("config", "reload", "configuration reloaded", logrus.InfoLevel, map[string]interface{}{
		"title_max_length": newConfig.Task.TitleMaxLength,
		"allow_past_due":   newConfig.Task.AllowPastDue,
		"log_level":        newConfig.Log.Level,
	})
	return nil
}

// GetConfig 获取配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetRouter 获取路由器实例
func (a *App) GetRouter() *router.Router {
	return a.router
}

// Start 在后台启动HTTP服务，监听失败通过 Errors 返回
func (a *App) Start() error {
	if a.server != nil {
		return errors.New("server already started")
	}

	addr := a.config.Server.GetAddress()
	a.server = &http.Server{
		Addr:           addr,
		Handler:        a.router.GetEngine(),
		ReadTimeout:    a.config.Server.ReadTimeout,
		WriteTimeout:   a.config.Server.WriteTimeout,
		IdleTimeout:    a.config.Server.IdleTimeout,
		MaxHeaderBytes: a.config.Server.MaxHeaderBytes,
	}

	go func() {
		logger.LogSystemEvent("server", "startup", "starting server on "+addr, logrus.InfoLevel, nil)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.serveErr <- err
		}
	}()
	return nil
}

// Errors 服务运行期间的致命错误
func (a *App) Errors() <-chan error {
	return a.serveErr
}

// Stop 优雅关闭:停止接收请求并等待处理中的请求，随后关闭配置监听与存储
func (a *App) Stop(ctx context.Context) error {
	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("config watcher stop: %w", err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	logger.LogSystemEvent("server", "shutdown", "server stopped", logrus.InfoLevel, nil)
	return errors.Join(errs...)
}
