package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"tasktracker/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileHook 将不同类型的日志写入不同的滚动文件
// 文件位于 file_path 所在目录: access.log / business.log / error.log / system.log，
// 未标注类型的日志写入 file_path 本身
type FileHook struct {
	logConfig *config.LogConfig
	writers   map[string]io.Writer
	formatter logrus.Formatter
	mutex     sync.Mutex
}

// NewFileHook 创建一个新的FileHook实例
func NewFileHook(logConfig *config.LogConfig) *FileHook {
	hook := &FileHook{
		logConfig: logConfig,
		writers:   make(map[string]io.Writer),
		formatter: newJSONFormatter(),
	}

	if logConfig.FilePath != "" {
		hook.writers["default"] = hook.newRollingWriter(logConfig.FilePath)
	}

	return hook
}

// newRollingWriter 创建 lumberjack 滚动写入器
func (hook *FileHook) newRollingWriter(filename string) io.Writer {
	_ = os.MkdirAll(filepath.Dir(filename), 0755)
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    hook.logConfig.MaxSize,
		MaxBackups: hook.logConfig.MaxBackups,
		MaxAge:     hook.logConfig.MaxAge,
		Compress:   hook.logConfig.Compress,
	}
}

// Levels 返回此Hook关心的所有日志级别
func (hook *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在日志触发时执行
func (hook *FileHook) Fire(entry *logrus.Entry) error {
	logType := "default"
	if lt, ok := entry.Data["type"]; ok {
		switch t := lt.(type) {
		case LogType:
			logType = string(t)
		case string:
			logType = t
		}
	}

	formatted, err := hook.formatter.Format(entry)
	if err != nil {
		return err
	}

	hook.mutex.Lock()
	defer hook.mutex.Unlock()

	writer := hook.getWriter(logType)
	if writer == nil {
		return nil
	}
	_, err = writer.Write(formatted)
	return err
}

// getWriter 获取指定类型的writer，如果不存在则创建(调用方持有 mutex)
func (hook *FileHook) getWriter(logType string) io.Writer {
	if writer, exists := hook.writers[logType]; exists {
		return writer
	}

	switch LogType(logType) {
	case AccessLog, BusinessLog, ErrorLog, SystemLog:
	default:
		// 对于未知类型，使用默认writer
		return hook.writers["default"]
	}

	logDir := filepath.Dir(hook.logConfig.FilePath)
	writer := hook.newRollingWriter(filepath.Join(logDir, logType+".log"))
	hook.writers[logType] = writer

	return writer
}
