package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tasktracker/internal/config"
	"tasktracker/internal/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: "test"},
		Log:    config.LogConfig{Level: "error", Format: "json", Output: "stderr"},
		Store:  config.StoreConfig{Backend: repo.BackendMemory, Shards: 4},
		Task:   config.TaskConfig{TitleMaxLength: 20},
		App:    config.AppConfig{Environment: "test"},
	}
}

func TestNewAppWithConfig(t *testing.T) {
	_, err := NewAppWithConfig(nil)
	assert.Error(t, err)

	app, err := NewAppWithConfig(testConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, app.GetConfig().App.Version)

	w := httptest.NewRecorder()
	app.GetRouter().GetEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, app.Start())
	assert.Error(t, app.Start(), "重复启动应报错")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, app.Stop(ctx))
}

func TestNewAppUnsupportedBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "redis"
	_, err := NewAppWithConfig(cfg)
	assert.Error(t, err)
}

func TestConfigReloadUpdatesTaskConfig(t *testing.T) {
	app, err := NewAppWithConfig(testConfig())
	require.NoError(t, err)

	newCfg := testConfig()
	newCfg.Task = config.TaskConfig{TitleMaxLength: 5, AllowPastDue: true}
	require.NoError(t, app.onConfigReload(app.GetConfig(), newCfg))

	assert.Equal(t, newCfg.Task, app.taskModule.TaskService.Config())
	assert.NoError(t, app.Stop(context.Background()))
}

func TestNewAppFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  host: 127.0.0.1
  port: 18080
  mode: test
log:
  level: error
  format: text
  output: stderr
store:
  backend: sqlite
  log_level: silent
app:
  environment: development
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	app, err := NewApp(dir, "development")
	require.NoError(t, err)
	assert.Equal(t, repo.BackendSQLite, app.GetConfig().Store.Backend)
	assert.Equal(t, config.DefaultTitleMaxLength, app.GetConfig().Task.TitleMaxLength)
	assert.NotNil(t, app.watcher)

	assert.NoError(t, app.Stop(context.Background()))
}
