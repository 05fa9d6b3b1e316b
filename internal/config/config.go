package config

import (
	"fmt"
	"time"
)

// Config 应用配置结构体 [这里的字段和配置文件中一级字段保持一致，否则会没有值]
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`     // 服务器配置
	Log      LogConfig      `yaml:"log" mapstructure:"log"`           // 日志配置
	Security SecurityConfig `yaml:"security" mapstructure:"security"` // 安全配置
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`       // 任务存储配置
	Task     TaskConfig     `yaml:"task" mapstructure:"task"`         // 任务校验配置
	App      AppConfig      `yaml:"app" mapstructure:"app"`           // 应用配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host"`                         // 服务器主机地址
	Port           int           `yaml:"port" mapstructure:"port"`                         // 服务器端口
	Mode           string        `yaml:"mode" mapstructure:"mode"`                         // 运行模式: debug, release, test
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`         // 读取超时时间
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`       // 写入超时时间
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`         // 空闲超时时间
	MaxHeaderBytes int           `yaml:"max_header_bytes" mapstructure:"max_header_bytes"` // 最大请求头字节数
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式: json, text
	Output     string `yaml:"output" mapstructure:"output"`           // 输出方式: stdout, stderr, file
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 保留的日志文件数量
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 日志文件保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩日志文件
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`       // 日志中间件配置
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`             // CORS配置
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"` // 限流配置
}

// LoggingConfig 日志中间件配置
type LoggingConfig struct {
	EnableRequestLog     bool          `yaml:"enable_request_log" mapstructure:"enable_request_log"`         // 是否启用请求日志
	SlowRequestThreshold time.Duration `yaml:"slow_request_threshold" mapstructure:"slow_request_threshold"` // 慢请求阈值
	SkipPaths            []string      `yaml:"skip_paths" mapstructure:"skip_paths"`                         // 跳过日志记录的路径
}

// CORSConfig CORS配置
type CORSConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`                     // 是否启用CORS
	AllowAllOrigins  bool          `yaml:"allow_all_origins" mapstructure:"allow_all_origins"` // 是否允许所有源
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins"`         // 允许的源
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods"`         // 允许的方法
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers"`         // 允许的请求头
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers"`       // 暴露的响应头
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials"` // 是否允许凭证
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age"`                     // 预检请求缓存时间
}

// RateLimitConfig 限流配置(按客户端IP的令牌桶)
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled" mapstructure:"enabled"`                         // 是否启用限流
	RequestsPerSecond int      `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 每秒请求数限制
	BurstSize         int      `yaml:"burst_size" mapstructure:"burst_size"`                   // 突发请求数
	StatusCode        int      `yaml:"status_code" mapstructure:"status_code"`                 // 限流时返回的状态码
	Message           string   `yaml:"message" mapstructure:"message"`                         // 限流时返回的消息
	SkipPaths         []string `yaml:"skip_paths" mapstructure:"skip_paths"`                   // 跳过限流的路径
	SkipIPs           []string `yaml:"skip_ips" mapstructure:"skip_ips"`                       // 跳过限流的IP
}

// StoreConfig 任务存储配置
type StoreConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"`     // 存储后端: memory, sqlite
	Shards   int    `yaml:"shards" mapstructure:"shards"`       // 内存存储分片数(向上取整为2的幂)
	LogLevel string `yaml:"log_level" mapstructure:"log_level"` // sqlite 后端的 GORM 日志级别: silent, error, warn, info
}

// TaskConfig 任务输入校验配置
type TaskConfig struct {
	TitleMaxLength int  `yaml:"title_max_length" mapstructure:"title_max_length"` // 标题最大长度(字符数)
	AllowPastDue   bool `yaml:"allow_past_due" mapstructure:"allow_past_due"`     // 是否允许截止时间早于当前时间
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Version     string `yaml:"version" mapstructure:"version"`         // 应用版本
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 是否调试模式
}

// GetAddress 获取服务器完整地址
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment 判断是否为开发环境
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction 判断是否为生产环境
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// IsTest 判断是否为测试环境
func (a *AppConfig) IsTest() bool {
	return a.Environment == "test"
}
