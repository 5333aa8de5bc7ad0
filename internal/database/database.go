package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"foldermeta/internal/database/migration"
	"foldermeta/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// 导入SQLite驱动
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// MemoryPath 内存数据库路径
const MemoryPath = ":memory:"

// Options 数据库初始化选项
type Options struct {
	Path      string
	UsePureGo bool // 使用纯Go驱动（modernc.org/sqlite）
	LogLevel  logger.LogLevel
}

// Initialize 初始化数据库连接
func Initialize(dbPath string) (*gorm.DB, error) {
	return InitializeWithOptions(Options{Path: dbPath, LogLevel: logger.Warn})
}

// InitializeWithOptions 按选项初始化数据库连接并执行迁移
func InitializeWithOptions(opts Options) (*gorm.DB, error) {
	memory := opts.Path == MemoryPath

	if !memory {
		// 确保数据库目录存在
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		// 迁移使用单独的连接
		if err := runMigrations(opts); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      opts.LogLevel,
			Colorful:      true,
		},
	)

	db, err := gorm.Open(dialector(opts), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if memory {
		// 内存数据库每个连接都是独立的库
		sqlDB.SetMaxOpenConns(1)
		if err := db.AutoMigrate(&models.CacheEntry{}, &models.FolderHistory{}); err != nil {
			return nil, fmt.Errorf("failed to migrate in-memory database: %w", err)
		}
	} else {
		optimizeConnectionPool(sqlDB)
		applySQLiteOptimizations(db)
	}

	log.Printf("Database initialized successfully: %s", opts.Path)
	return db, nil
}

// ParseLogLevel 将日志级别名称转换为gorm日志级别，未知名称使用Warn
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent", "off":
		return logger.Silent
	case "error":
		return logger.Error
	case "debug", "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func dialector(opts Options) gorm.Dialector {
	if opts.UsePureGo {
		return sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        opts.Path,
		}
	}
	return sqlite.Open(opts.Path)
}

// runMigrations 使用golang-migrate执行内置的版本化迁移
func runMigrations(opts Options) error {
	driverName := "sqlite3"
	if opts.UsePureGo {
		driverName = "sqlite"
	}

	migrationDB, err := sql.Open(driverName, opts.Path)
	if err != nil {
		return fmt.Errorf("failed to open migration database connection: %w", err)
	}
	defer migrationDB.Close()

	migrationService := migration.NewMigrationService(nil)
	if err := migrationService.Initialize(migrationDB, migration.MigrationConfig{
		DatabaseName: "sqlite3",
		TableName:    "schema_migrations",
	}); err != nil {
		return fmt.Errorf("failed to initialize migration service: %w", err)
	}
	defer migrationService.Close()

	if err := migrationService.RunMigrations(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}

// optimizeConnectionPool 优化连接池配置
func optimizeConnectionPool(sqlDB *sql.DB) {
	// WAL模式下支持并发读取，写入仍然串行
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
}

// applySQLiteOptimizations 应用SQLite性能优化
func applySQLiteOptimizations(db *gorm.DB) {
	optimizations := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16384",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range optimizations {
		if err := db.Exec(pragma).Error; err != nil {
			log.Printf("Warning: failed to execute %s: %v", pragma, err)
		}
	}
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
