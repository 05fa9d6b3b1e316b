/*
 * @author: sun977
 * @date: 2025.12.16
 * @description: Server 子命令
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasktracker/internal/app/tracker"
	"tasktracker/internal/config"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// 优雅关闭的最长等待时间
const shutdownTimeout = 5 * time.Second

var serverFlags struct {
	host    string
	port    int
	backend string
}

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "启动HTTP服务",
		Long: `加载配置并启动任务追踪HTTP服务，收到 SIGINT/SIGTERM 后优雅关闭。
命令行参数优先级高于配置文件与环境变量。

示例:
  tasktracker server --port 9090 --backend sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	cmd.Flags().StringVar(&serverFlags.host, "host", "", "监听地址")
	cmd.Flags().IntVarP(&serverFlags.port, "port", "p", 0, "监听端口")
	cmd.Flags().StringVar(&serverFlags.backend, "backend", "", "存储后端 memory/sqlite")
	return cmd
}

// applyServerFlags 命令行参数覆盖配置
func applyServerFlags(cfg *config.Config) {
	if serverFlags.host != "" {
		cfg.Server.Host = serverFlags.host
	}
	if serverFlags.port > 0 {
		cfg.Server.Port = serverFlags.port
	}
	if serverFlags.backend != "" {
		cfg.Store.Backend = serverFlags.backend
	}
}

// runServer 启动服务并等待中断信号
func runServer() error {
	cfg, err := config.LoadConfig(configPath, envName)
	if err != nil {
		return err
	}
	applyServerFlags(cfg)

	app, err := tracker.NewAppWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	env := envName
	if env == "" {
		env = cfg.App.Environment
	}
	if err := app.WatchConfig(configPath, env); err != nil {
		pterm.Warning.Printfln("Config hot reload disabled: %v", err)
	}

	if err := app.Start(); err != nil {
		return err
	}
	printBanner(cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
		pterm.Info.Println("Shutting down server...")
	case serveErr = <-app.Errors():
		pterm.Error.Printfln("Server stopped unexpectedly: %v", serveErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	pterm.Success.Println("Server exiting")
	return serveErr
}

// printBanner 输出启动信息
func printBanner(cfg *config.Config) {
	if quiet {
		return
	}

	pterm.DefaultHeader.WithFullWidth().Println("TaskTracker " + cfg.App.Version)
	_ = pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Setting", "Value"},
		{"Address", cfg.Server.GetAddress()},
		{"Environment", cfg.App.Environment},
		{"Store", cfg.Store.Backend},
		{"Log", cfg.Log.Level + "/" + cfg.Log.Output},
		{"Rate limit", fmt.Sprintf("%t", cfg.Security.RateLimit.Enabled)},
	}).Render()
	pterm.Success.Printfln("Listening on http://%s/api/v1/tasks", cfg.Server.GetAddress())
}
