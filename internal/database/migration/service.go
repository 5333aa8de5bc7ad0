package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
)

// MigrationService 迁移服务
type MigrationService struct {
	migrator Migrator
	config   MigrationConfig
	logger   *log.Logger
}

// NewMigrationService 创建迁移服务
func NewMigrationService(logger *log.Logger) *MigrationService {
	if logger == nil {
		logger = log.New(os.Stdout, "[MIGRATION] ", log.LstdFlags)
	}

	return &MigrationService{
		logger: logger,
	}
}

// Initialize 初始化迁移服务
func (s *MigrationService) Initialize(db *sql.DB, config MigrationConfig) error {
	if config.TableName == "" {
		config.TableName = "schema_migrations"
	}
	if config.DatabaseName == "" {
		config.DatabaseName = "sqlite3"
	}

	migrator, err := NewGolangMigrator(db, config)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	s.migrator = migrator
	s.config = config

	source := config.MigrationsPath
	if source == "" {
		source = "embedded"
	}
	s.logger.Printf("Migration service initialized with source: %s", source)
	return nil
}

// RunMigrations 运行迁移
func (s *MigrationService) RunMigrations(ctx context.Context) error {
	if s.migrator == nil {
		return fmt.Errorf("migration service not initialized")
	}

	version, dirty, err := s.migrator.Version(ctx)
	if err != nil {
		return err
	}
	s.logger.Printf("Current migration version: %d (dirty: %v)", version, dirty)

	// 上次迁移中断时回到中断前的版本重新执行
	if dirty {
		target := version - 1
		if target < 1 {
			target = -1
		}
		s.logger.Printf("Database is in dirty state at version %d, forcing version %d", version, target)
		if err := s.migrator.Force(ctx, target); err != nil {
			return fmt.Errorf("failed to recover from dirty state at version %d: %w", version, err)
		}
	}

	if err := s.migrator.Up(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	finalVersion, _, err := s.migrator.Version(ctx)
	if err != nil {
		return err
	}
	s.logger.Printf("Migrations completed successfully, current version: %d", finalVersion)
	return nil
}

// Version 当前迁移版本
func (s *MigrationService) Version(ctx context.Context) (int, bool, error) {
	if s.migrator == nil {
		return 0, false, fmt.Errorf("migration service not initialized")
	}
	return s.migrator.Version(ctx)
}

// Rollback 回滚指定步数
func (s *MigrationService) Rollback(ctx context.Context, steps int) error {
	if s.migrator == nil {
		return fmt.Errorf("migration service not initialized")
	}
	if steps <= 0 {
		return fmt.Errorf("rollback steps must be positive")
	}

	s.logger.Printf("Rolling back %d migration steps...", steps)
	if err := s.migrator.Steps(ctx, -steps); err != nil {
		return fmt.Errorf("failed to rollback %d steps: %w", steps, err)
	}
	return nil
}

// Close 关闭服务
func (s *MigrationService) Close() error {
	if s.migrator != nil {
		return s.migrator.Close()
	}
	return nil
}
