package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"tasktracker/internal/app/tracker/setup"
	"tasktracker/internal/config"
	"tasktracker/internal/pkg/utils"
	"tasktracker/internal/repo"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := utils.RegisterValidators(); err != nil {
		fmt.Fprintf(os.Stderr, "register validators: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T, backend string) *Router {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Store:  config.StoreConfig{Backend: backend, Shards: 8, LogLevel: "silent"},
		App:    config.AppConfig{Version: "test"},
	}
	sm, err := setup.BuildStore(&cfg.Store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sm.Close() })

	r := NewRouter(cfg, setup.BuildTaskModule(sm.Store, cfg.Task))
	r.SetupRoutes()
	return r
}

func call(t *testing.T, r *Router, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.GetEngine().ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func newTask(id int64, deps ...int64) map[string]interface{} {
	if deps == nil {
		deps = []int64{}
	}
	return map[string]interface{}{
		"id":           id,
		"title":        fmt.Sprintf("task-%d", id),
		"dueDate":      time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"dependencies": deps,
	}
}

func TestHealthRoutes(t *testing.T) {
	r := newTestRouter(t, repo.BackendMemory)

	for _, path := range []string{"/api/health", "/api/live"} {
		w, body := call(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, body["timestamp"])
	}

	w, _ := call(t, r, http.MethodPost, "/api/v1/tasks", newTask(1))
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := call(t, r, http.MethodGet, "/api/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, float64(1), body["tasks"])
}

// TestCompletionScenario 依赖链完成顺序，两种存储后端行为一致
func TestCompletionScenario(t *testing.T) {
	for _, backend := range []string{repo.BackendMemory, repo.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			r := newTestRouter(t, backend)

			w, _ := call(t, r, http.MethodPost, "/api/v1/tasks", newTask(2))
			require.Equal(t, http.StatusCreated, w.Code)
			w, _ = call(t, r, http.MethodPost, "/api/v1/tasks", newTask(1, 2))
			require.Equal(t, http.StatusCreated, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

			w, _ = call(t, r, http.MethodPut, "/api/v1/tasks/1/complete", nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			w, _ = call(t, r, http.MethodPut, "/api/v1/tasks/2/complete", nil)
			assert.Equal(t, http.StatusOK, w.Code)
			w, body := call(t, r, http.MethodPut, "/api/v1/tasks/1/complete", nil)
			require.Equal(t, http.StatusOK, w.Code)
			data := body["data"].(map[string]interface{})
			assert.Equal(t, true, data["isCompleted"])

			// 3 -> 14(不存在)
			w, _ = call(t, r, http.MethodPost, "/api/v1/tasks", newTask(3, 14))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			// 2 -> 1 -> 2
			w, _ = call(t, r, http.MethodPut, "/api/v1/tasks/2", newTask(2, 1))
			assert.Equal(t, http.StatusBadRequest, w.Code)

			w, _ = call(t, r, http.MethodDelete, "/api/v1/tasks/2", nil)
			assert.Equal(t, http.StatusNoContent, w.Code)

			w, body = call(t, r, http.MethodGet, "/api/v1/tasks", nil)
			require.Equal(t, http.StatusOK, w.Code)
			list := body["data"].(map[string]interface{})
			assert.Equal(t, float64(1), list["total"])
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	r := newTestRouter(t, repo.BackendMemory)
	w, body := call(t, r, http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "failed", body["status"])
}
