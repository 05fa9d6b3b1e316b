/*
ConfigWatcher 配置文件监听器
监听配置文件所在目录，配置文件写入或重建后(500ms 防抖)重新加载配置，
并把旧配置和新配置传给注册的回调函数。

注意事项:
- 新配置校验失败时保留旧配置，不触发回调。
- 存储后端与分片数只在启动时生效，变更需要重启服务。
*/
package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify" // 文件系统监听库
)

// 配置变更防抖间隔
const reloadDebounce = 500 * time.Millisecond

// ConfigWatcher 配置文件监听器
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher  // 文件系统监听器
	configPath string             // 配置文件目录
	env        string             // 环境标识
	callbacks  []ReloadCallback   // 重载回调函数列表
	mu         sync.RWMutex       // 读写锁
	ctx        context.Context    // 上下文
	cancel     context.CancelFunc // 取消函数
	done       chan struct{}      // 完成信号
}

// ReloadCallback 配置重载回调函数类型
type ReloadCallback func(oldConfig, newConfig *Config) error

// NewConfigWatcher 创建配置文件监听器
func NewConfigWatcher(configPath, env string) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	cw := &ConfigWatcher{
		watcher:    watcher,
		configPath: configPath,
		env:        env,
		callbacks:  make([]ReloadCallback, 0),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	return cw, nil
}

// Start 启动配置文件监听
func (cw *ConfigWatcher) Start() error {
	if cw.configPath == "" {
		cw.configPath = getDefaultConfigPath()
	}

	// 添加监听目录
	if err := cw.watcher.Add(cw.configPath); err != nil {
		return fmt.Errorf("failed to add config path to watcher: %w", err)
	}

	go cw.watchLoop()

	log.Printf("Config watcher started, watching path: %s", cw.configPath)
	return nil
}

// Stop 停止配置文件监听
func (cw *ConfigWatcher) Stop() error {
	cw.cancel()

	select {
	case <-cw.done:
	case <-time.After(5 * time.Second):
		log.Println("Config watcher stop timeout")
	}

	return cw.watcher.Close()
}

// Close 释放未启动的监听器
func (cw *ConfigWatcher) Close() error {
	cw.cancel()
	return cw.watcher.Close()
}

// AddCallback 添加配置重载回调函数
func (cw *ConfigWatcher) AddCallback(callback ReloadCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watchLoop 监听循环
func (cw *ConfigWatcher) watchLoop() {
	defer close(cw.done)

	// 防抖动定时器
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	for {
		select {
		case <-cw.ctx.Done():
			log.Println("Config watcher stopped")
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				log.Println("Config watcher events channel closed")
				return
			}

			// 只处理写入和创建事件(编辑器保存时常见 rename + create)
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if cw.isConfigFile(event.Name) {
					debounceTimer.Reset(reloadDebounce)
				}
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				log.Println("Config watcher errors channel closed")
				return
			}
			log.Printf("Config watcher error: %v", err)

		case <-debounceTimer.C:
			if err := cw.reloadConfig(); err != nil {
				log.Printf("Failed to reload config: %v", err)
			}
		}
	}
}

// isConfigFile 检查是否为当前环境使用的配置文件
func (cw *ConfigWatcher) isConfigFile(filename string) bool {
	return filepath.Base(filename) == filepath.Base(getConfigFileName(cw.configPath, cw.env))
}

// reloadConfig 重载配置
func (cw *ConfigWatcher) reloadConfig() error {
	oldConfig := GlobalConfig

	newConfig, err := LoadConfig(cw.configPath, cw.env)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	cw.mu.RLock()
	callbacks := make([]ReloadCallback, len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		// 一个回调失败不影响其他回调
		if err := callback(oldConfig, newConfig); err != nil {
			log.Printf("Config reload callback error: %v", err)
		}
	}

	log.Println("Config reloaded successfully")
	return nil
}

// StoreConfigReloadCallback 存储配置重载回调
// 存储后端在进程启动时创建，运行期变更只提示需要重启
func StoreConfigReloadCallback(oldConfig, newConfig *Config) error {
	if oldConfig == nil {
		return nil
	}

	if oldConfig.Store.Backend != newConfig.Store.Backend || oldConfig.Store.Shards != newConfig.Store.Shards {
		log.Printf("Store configuration changed (backend %s -> %s, shards %d -> %d), restart required to take effect",
			oldConfig.Store.Backend, newConfig.Store.Backend, oldConfig.Store.Shards, newConfig.Store.Shards)
	}

	return nil
}

// SecurityConfigReloadCallback 安全配置重载回调
func SecurityConfigReloadCallback(oldConfig, newConfig *Config) error {
	if oldConfig == nil {
		return nil
	}

	if len(oldConfig.Security.CORS.AllowOrigins) != len(newConfig.Security.CORS.AllowOrigins) {
		log.Println("CORS configuration changed, restart required to take effect")
	}

	if oldConfig.Security.RateLimit.Enabled != newConfig.Security.RateLimit.Enabled ||
		oldConfig.Security.RateLimit.RequestsPerSecond != newConfig.Security.RateLimit.RequestsPerSecond {
		log.Println("Rate limit configuration changed, restart required to take effect")
	}

	return nil
}
