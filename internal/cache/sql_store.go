package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foldermeta/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore 基于gorm的持久化缓存
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore 创建SQL缓存存储
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get 获取缓存项
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set 写入或覆盖缓存项
func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// Delete 删除缓存项
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.CacheEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete cache entry %q: %w", key, err)
	}
	return nil
}
