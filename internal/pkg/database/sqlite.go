package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InMemoryDSN 进程内 SQLite 数据库，进程退出即丢失
const InMemoryDSN = "file::memory:"

// NewSQLiteConnection 创建内存 SQLite 数据库连接
// 每个 :memory: 连接都是独立的数据库，因此连接池固定为 1 个连接，
// 所有访问在该连接上串行执行
func NewSQLiteConnection(logLevelName string) (*gorm.DB, error) {
	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch logLevelName {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	default:
		logLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(InMemoryDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	// 连接被回收即丢失全部数据
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping SQLite: %w", err)
	}

	return db, nil
}
