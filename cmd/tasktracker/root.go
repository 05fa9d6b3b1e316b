/*
 * @author: sun977
 * @date: 2025.12.16
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envName    string
	quiet      bool
)

// rootCmd 不带子命令时以服务模式运行
var rootCmd = &cobra.Command{
	Use:   "tasktracker",
	Short: "任务追踪服务",
	Long: `tasktracker 是一个带依赖管理的任务追踪服务。
任务之间可以声明前置依赖，服务拒绝循环依赖和缺失依赖，
只有所有依赖完成后任务才能被完成。

示例:
  1.启动服务(默认)
	tasktracker server --config ./configs --env production
  2.查看生效配置
	tasktracker config --env test
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initCLIOutput()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] tasktracker crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件目录 (默认: ./configs 或 TASKTRACKER_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "运行环境 development/test/production (默认: TASKTRACKER_ENV)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "不输出启动信息")

	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// initCLIOutput 配置 pterm 输出
func initCLIOutput() {
	pterm.DisableDebugMessages()
	if quiet {
		pterm.Info = *pterm.Info.WithWriter(io.Discard)
		pterm.Success = *pterm.Success.WithWriter(io.Discard)
		pterm.DisableStyling()
	}
}
