package migration

import (
	"context"
)

// Migrator 数据库迁移接口
type Migrator interface {
	// Up 执行全部未应用的迁移
	Up(ctx context.Context) error

	// Down 回滚全部迁移
	Down(ctx context.Context) error

	// Steps 执行指定步数的迁移，负数表示回滚
	Steps(ctx context.Context, n int) error

	// Force 强制设置迁移版本
	Force(ctx context.Context, version int) error

	// Version 获取当前迁移版本
	Version(ctx context.Context) (version int, dirty bool, err error)

	// Close 关闭迁移器
	Close() error
}

// MigrationConfig 迁移配置
type MigrationConfig struct {
	// MigrationsPath 迁移文件目录，为空时使用内置迁移
	MigrationsPath string
	DatabaseName   string
	TableName      string // 迁移版本表名，默认为 schema_migrations
}
