package migration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openService(t *testing.T, path string) (*MigrationService, *sql.DB) {
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	service := NewMigrationService(nil)
	require.NoError(t, service.Initialize(db, MigrationConfig{}))
	return service, db
}

func hasTable(t *testing.T, db *sql.DB, name string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestMigrationService(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "migrate.db")

	t.Run("未初始化", func(t *testing.T) {
		service := NewMigrationService(nil)
		assert.Error(t, service.RunMigrations(ctx))
		_, _, err := service.Version(ctx)
		assert.Error(t, err)
		assert.NoError(t, service.Close())
	})

	t.Run("执行内置迁移", func(t *testing.T) {
		service, db := openService(t, path)
		defer service.Close()

		require.NoError(t, service.RunMigrations(ctx))
		version, dirty, err := service.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, version)
		assert.False(t, dirty)
		assert.True(t, hasTable(t, db, "cache_entries"))
		assert.True(t, hasTable(t, db, "folder_history"))

		// 重复执行没有变化
		require.NoError(t, service.RunMigrations(ctx))
	})

	t.Run("回滚", func(t *testing.T) {
		service, db := openService(t, path)
		defer service.Close()

		assert.Error(t, service.Rollback(ctx, 0))
		require.NoError(t, service.Rollback(ctx, 1))

		version, _, err := service.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, version)
		assert.False(t, hasTable(t, db, "folder_history"))
		assert.True(t, hasTable(t, db, "cache_entries"))
	})

	t.Run("脏状态恢复", func(t *testing.T) {
		service, db := openService(t, path)
		defer service.Close()

		_, err := db.Exec("UPDATE schema_migrations SET dirty = 1")
		require.NoError(t, err)

		require.NoError(t, service.RunMigrations(ctx))
		version, dirty, err := service.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, version)
		assert.False(t, dirty)
	})
}
