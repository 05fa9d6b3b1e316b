package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"tasktracker/internal/config"
	"tasktracker/internal/pkg/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "tasktracker "+version.GetVersion())
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	content := "server:\n  port: 9999\n  mode: test\nstore:\n  backend: sqlite\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"config", "--config", dir, "--env", "development", "-q"})
	require.NoError(t, rootCmd.Execute())

	var printed config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, 9999, printed.Server.Port)
	assert.Equal(t, "sqlite", printed.Store.Backend)
	assert.Equal(t, config.DefaultTitleMaxLength, printed.Task.TitleMaxLength)
}

func TestApplyServerFlags(t *testing.T) {
	defer func() { serverFlags.host, serverFlags.port, serverFlags.backend = "", 0, "" }()

	cfg := &config.Config{Server: config.ServerConfig{Host: "0.0.0.0", Port: 8080}, Store: config.StoreConfig{Backend: "memory"}}
	applyServerFlags(cfg)
	assert.Equal(t, 8080, cfg.Server.Port)

	serverFlags.port = 9090
	serverFlags.backend = "sqlite"
	applyServerFlags(cfg)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
}
