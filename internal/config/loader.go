package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tasktracker/internal/repo"

	"github.com/spf13/viper"
)

var (
	// GlobalConfig 全局配置实例
	GlobalConfig *Config
)

// LoadConfig 加载配置文件
// configPath: 配置文件路径，如果为空则使用默认路径
// env: 环境标识，支持 development, test, production
func LoadConfig(configPath, env string) (*Config, error) {
	// 设置默认环境
	if env == "" {
		env = getEnvFromEnvironment()
	}

	// 创建viper实例
	v := viper.New()

	// 设置配置文件类型
	v.SetConfigType("yaml")

	// 设置配置文件路径
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	// 根据环境选择配置文件
	configFile := getConfigFileName(configPath, env)
	v.SetConfigFile(configFile)

	// 设置环境变量前缀
	v.SetEnvPrefix("TASKTRACKER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// 绑定环境变量
	bindEnvironmentVariables(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaultTaskConfig(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 设置全局配置
	GlobalConfig = &config

	return &config, nil
}

// getEnvFromEnvironment 从环境变量获取环境标识
func getEnvFromEnvironment() string {
	env := os.Getenv("TASKTRACKER_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "development" // 默认开发环境
	}
	return env
}

// getDefaultConfigPath 获取默认配置文件路径
func getDefaultConfigPath() string {
	// 尝试从环境变量获取配置路径
	if configPath := os.Getenv("TASKTRACKER_CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// 使用默认路径
	return "configs"
}

// getConfigFileName 根据环境获取配置文件名
func getConfigFileName(configPath, env string) string {
	var configFile string

	switch env {
	case "production", "prod":
		configFile = filepath.Join(configPath, "config.prod.yaml")
	case "test", "testing":
		configFile = filepath.Join(configPath, "config.test.yaml")
	default:
		configFile = filepath.Join(configPath, "config.yaml")
	}

	// 检查文件是否存在，如果不存在则使用默认配置文件
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := filepath.Join(configPath, "config.yaml")
		if _, err := os.Stat(defaultConfig); err == nil {
			return defaultConfig
		}
	}

	return configFile
}

// setDefaults 设置配置默认值(配置文件缺省字段时生效)
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("store.backend", repo.BackendMemory)
	v.SetDefault("store.shards", 32)
	v.SetDefault("store.log_level", "silent")

	v.SetDefault("task.title_max_length", DefaultTitleMaxLength)
	v.SetDefault("task.allow_past_due", false)

	v.SetDefault("app.name", "tasktracker")
	v.SetDefault("app.environment", "development")
}

// bindEnvironmentVariables 绑定环境变量
func bindEnvironmentVariables(v *viper.Viper) {
	// 服务器配置
	v.BindEnv("server.host", "TASKTRACKER_SERVER_HOST")
	v.BindEnv("server.port", "TASKTRACKER_SERVER_PORT")
	v.BindEnv("server.mode", "TASKTRACKER_SERVER_MODE")

	// 日志配置
	v.BindEnv("log.level", "TASKTRACKER_LOG_LEVEL")
	v.BindEnv("log.format", "TASKTRACKER_LOG_FORMAT")
	v.BindEnv("log.output", "TASKTRACKER_LOG_OUTPUT")
	v.BindEnv("log.file_path", "TASKTRACKER_LOG_FILE_PATH")

	// 存储配置
	v.BindEnv("store.backend", "TASKTRACKER_STORE_BACKEND")
	v.BindEnv("store.shards", "TASKTRACKER_STORE_SHARDS")

	// 安全配置
	v.BindEnv("security.cors.allow_origins", "TASKTRACKER_CORS_ALLOW_ORIGINS")
	v.BindEnv("security.rate_limit.enabled", "TASKTRACKER_RATE_LIMIT_ENABLED")

	// 应用配置
	v.BindEnv("app.environment", "TASKTRACKER_APP_ENVIRONMENT")
	v.BindEnv("app.debug", "TASKTRACKER_APP_DEBUG")
}

// DefaultTitleMaxLength 任务标题默认最大长度
const DefaultTitleMaxLength = 100

// validateConfig 验证配置
func validateConfig(config *Config) error {
	// 验证服务器配置
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Server.Mode != "debug" && config.Server.Mode != "release" && config.Server.Mode != "test" {
		return fmt.Errorf("invalid server mode: %s", config.Server.Mode)
	}

	// 验证日志配置
	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	if !contains(validLogLevels, config.Log.Level) {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Log.Format) {
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	validLogOutputs := []string{"stdout", "stderr", "file"}
	if !contains(validLogOutputs, config.Log.Output) {
		return fmt.Errorf("invalid log output: %s", config.Log.Output)
	}

	// 如果日志输出到文件，验证文件路径
	if config.Log.Output == "file" && config.Log.FilePath == "" {
		return fmt.Errorf("log file path is required when output is file")
	}

	// 验证存储配置
	validBackends := []string{repo.BackendMemory, repo.BackendSQLite}
	if !contains(validBackends, config.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s", config.Store.Backend)
	}

	if config.Store.Shards < 0 {
		return fmt.Errorf("invalid store shards: %d", config.Store.Shards)
	}

	if config.Task.TitleMaxLength <= 0 {
		return fmt.Errorf("invalid task title_max_length: %d", config.Task.TitleMaxLength)
	}

	if config.Security.RateLimit.Enabled && config.Security.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit.requests_per_second must be positive when rate limiting is enabled")
	}

	return nil
}

func applyDefaultTaskConfig(config *Config) {
	if config == nil {
		return
	}

	if config.Task.TitleMaxLength == 0 {
		config.Task.TitleMaxLength = DefaultTitleMaxLength
	}
	if config.Security.RateLimit.Enabled && config.Security.RateLimit.BurstSize <= 0 {
		config.Security.RateLimit.BurstSize = config.Security.RateLimit.RequestsPerSecond
	}
	if config.Security.RateLimit.StatusCode == 0 {
		config.Security.RateLimit.StatusCode = 429
	}
}

// contains 检查切片是否包含指定元素
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}

// MustLoadConfig 加载配置，如果失败则panic
func MustLoadConfig(configPath, env string) *Config {
	config, err := LoadConfig(configPath, env)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetEnv 获取当前环境
func GetEnv() string {
	if GlobalConfig != nil {
		return GlobalConfig.App.Environment
	}
	return getEnvFromEnvironment()
}
