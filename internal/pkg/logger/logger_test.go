package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tasktracker/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetLogger 测试结束后恢复全局日志实例
func resetLogger(t *testing.T) {
	prev := LoggerInstance
	t.Cleanup(func() { LoggerInstance = prev })
}

func TestInitLoggerInvalid(t *testing.T) {
	resetLogger(t)

	_, err := InitLogger(nil)
	assert.Error(t, err)

	_, err = InitLogger(&config.LogConfig{Level: "info", Format: "xml", Output: "stdout"})
	assert.Error(t, err)
}

// TestFileHookSplitsByType 按日志类型写入不同文件
func TestFileHookSplitsByType(t *testing.T) {
	resetLogger(t)

	dir := t.TempDir()
	cfg := &config.LogConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: filepath.Join(dir, "app.log"),
		MaxSize:  1,
	}
	_, err := InitLogger(cfg)
	require.NoError(t, err)

	LogBusinessOperation("create_task", 7, "127.0.0.1", "req-1", ResultSuccess, "task created", nil)
	LogError(errors.New("boom"), "req-2", "127.0.0.1", "/api/v1/tasks", "POST", nil)
	LogSystemEvent("store", "startup", "store ready", logrus.InfoLevel, map[string]interface{}{"backend": "memory"})
	Info("plain message")

	business, err := os.ReadFile(filepath.Join(dir, "business.log"))
	require.NoError(t, err)
	assert.Contains(t, string(business), `"task_id":7`)
	assert.Contains(t, string(business), `"operation":"create_task"`)

	errorLog, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errorLog), "boom")

	system, err := os.ReadFile(filepath.Join(dir, "system.log"))
	require.NoError(t, err)
	assert.Contains(t, string(system), `"backend":"memory"`)

	plain, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(plain), "plain message")
}

// TestUpdateConfig 运行时更新日志级别与格式
func TestUpdateConfig(t *testing.T) {
	resetLogger(t)

	lm, err := InitLogger(&config.LogConfig{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	var buf bytes.Buffer
	lm.GetLogger().SetOutput(&buf)

	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	require.NoError(t, lm.UpdateConfig(&config.LogConfig{Level: "debug", Format: "text", Output: "file", FilePath: "ignored.log"}))
	assert.Equal(t, logrus.DebugLevel, lm.GetLogger().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, lm.GetLogger().Formatter)
	// 输出目标变更不在运行期生效
	assert.Equal(t, "stdout", lm.GetConfig().Output)

	buf.Reset()
	Debugf("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")

	assert.Error(t, lm.UpdateConfig(&config.LogConfig{Level: "loud", Format: "text"}))
	assert.Error(t, lm.UpdateConfig(nil))
}

// TestNoopWithoutInstance 未初始化时日志方法不做任何事
func TestNoopWithoutInstance(t *testing.T) {
	resetLogger(t)
	LoggerInstance = nil

	assert.NotPanics(t, func() {
		LogBusinessOperation("delete_task", 1, "", "", ResultFailed, "not found", nil)
		LogError(errors.New("x"), "", "", "", "", nil)
		Infof("x %d", 1)
		WithFields(logrus.Fields{"k": "v"}).Info("fallback")
	})
}
