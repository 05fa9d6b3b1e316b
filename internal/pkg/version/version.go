// 版本信息，BuildTime 与 GitCommit 构建时通过 -ldflags 注入
package version

import "runtime"

var (
	Version    = "1.0.0" // 版本号 -- 发布时候更新版本号
	APIVersion = "v1"
	BuildTime  string
	GitCommit  string
	GoVersion  = runtime.Version()
)

// GetVersion 返回版本号
func GetVersion() string {
	return Version
}
