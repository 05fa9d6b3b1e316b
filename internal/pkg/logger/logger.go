// 日志管理器
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"tasktracker/internal/config"

	"github.com/sirupsen/logrus"
)

// LoggerManager 日志管理器
type LoggerManager struct {
	logger *logrus.Logger
	config *config.LogConfig
	mu     sync.Mutex // 保护 config，配置热更新与读取可能并发
}

// LoggerInstance 全局日志实例
var LoggerInstance *LoggerManager

// 管理器使用的时间戳格式(毫秒精度，不显示时区)
const timestampFormat = "2006-01-02 15:04:05.000"

// InitLogger 初始化日志管理器
// 根据配置文件初始化logrus实例，支持多种输出方式和格式
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}

	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		// 如果解析失败，默认使用info级别
		level = logrus.InfoLevel
		logger.Warnf("Invalid log level '%s', using 'info' as default", cfg.Level)
	}
	logger.SetLevel(level)

	if err := setLogFormatter(logger, cfg); err != nil {
		return nil, fmt.Errorf("failed to set log formatter: %w", err)
	}

	setLogOutput(logger, cfg)

	// 文件输出时按日志类型分文件写入
	if cfg.Output == "file" {
		logger.AddHook(NewFileHook(cfg))
	}

	logger.SetReportCaller(cfg.Caller)

	lm := &LoggerManager{
		logger: logger,
		config: cfg,
	}

	LoggerInstance = lm

	return lm, nil
}

// setLogFormatter 设置日志格式化器
func setLogFormatter(logger *logrus.Logger, cfg *config.LogConfig) error {
	switch strings.ToLower(cfg.Format) {
	case "json":
		// JSON格式化器，适合生产环境和日志分析
		logger.SetFormatter(newJSONFormatter())
	case "text":
		// 文本格式化器，适合开发环境和控制台输出
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
			ForceColors:     true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
	return nil
}

// newJSONFormatter 统一字段名的JSON格式化器
func newJSONFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyFunc:  "function",
			logrus.FieldKeyFile:  "file",
		},
	}
}

// setLogOutput 设置日志输出目标
// file 模式下主输出丢弃，由 FileHook 负责落盘;debug 级别时同时输出到控制台
func setLogOutput(logger *logrus.Logger, cfg *config.LogConfig) {
	switch cfg.Output {
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "file":
		if strings.ToLower(cfg.Level) == "debug" {
			logger.SetOutput(os.Stdout)
		} else {
			logger.SetOutput(io.Discard)
		}
	default:
		logger.SetOutput(os.Stdout)
	}
}

// GetLogger 获取logrus实例
func (lm *LoggerManager) GetLogger() *logrus.Logger {
	return lm.logger
}

// GetConfig 获取日志配置
func (lm *LoggerManager) GetConfig() *config.LogConfig {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.config
}

// UpdateConfig 更新日志配置
// 支持运行时动态更新级别、格式、调用者信息;输出目标变更需要重启
func (lm *LoggerManager) UpdateConfig(newCfg *config.LogConfig) error {
	if newCfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if newCfg.Level != lm.config.Level {
		level, err := logrus.ParseLevel(newCfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		lm.logger.SetLevel(level)
		lm.logger.Infof("Log level updated from %s to %s", lm.config.Level, newCfg.Level)
	}

	if newCfg.Format != lm.config.Format {
		if err := setLogFormatter(lm.logger, newCfg); err != nil {
			return fmt.Errorf("failed to update log formatter: %w", err)
		}
		lm.logger.Infof("Log format updated from %s to %s", lm.config.Format, newCfg.Format)
	}

	if newCfg.Output != lm.config.Output || newCfg.FilePath != lm.config.FilePath {
		lm.logger.Warnf("Log output change from %s to %s requires restart", lm.config.Output, newCfg.Output)
	}

	if newCfg.Caller != lm.config.Caller {
		lm.logger.SetReportCaller(newCfg.Caller)
		lm.logger.Infof("Log caller reporting updated to %t", newCfg.Caller)
	}

	// 输出相关字段保持旧值，与实际生效的输出一致
	merged := *newCfg
	merged.Output = lm.config.Output
	merged.FilePath = lm.config.FilePath
	lm.config = &merged

	return nil
}

// 便捷方法：获取全局日志实例

// Debugf 记录格式化调试日志
func Debugf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Debugf(format, args...)
	}
}

// Info 记录信息日志
func Info(args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Info(args...)
	}
}

// Infof 记录格式化信息日志
func Infof(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Infof(format, args...)
	}
}

// Warnf 记录格式化警告日志
func Warnf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Warnf(format, args...)
	}
}

// Errorf 记录格式化错误日志
func Errorf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Errorf(format, args...)
	}
}

// WithFields 添加多个字段
func WithFields(fields logrus.Fields) *logrus.Entry {
	if LoggerInstance != nil {
		return LoggerInstance.logger.WithFields(fields)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
