package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"foldermeta/internal/models"
)

// HistoryService 文件夹对象历史服务接口
type HistoryService interface {
	// Record 记录一次同步发现的新增和删除
	Record(ctx context.Context, listID, folder string, added, deleted []uint32) error

	// GetHistory 获取文件夹的历史记录，按时间倒序
	GetHistory(ctx context.Context, listID, folder string, limit int) ([]models.FolderHistory, error)

	// GetObjectHistory 获取单个对象的历史记录
	GetObjectHistory(ctx context.Context, listID, folder string, uid uint32) ([]models.FolderHistory, error)

	// Prune 删除早于指定时间的记录
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// DatabaseHistoryService 基于数据库的历史服务
type DatabaseHistoryService struct {
	db        *gorm.DB
	batchSize int
}

// NewDatabaseHistoryService 创建数据库历史服务
func NewDatabaseHistoryService(db *gorm.DB) *DatabaseHistoryService {
	return &DatabaseHistoryService{db: db, batchSize: 500}
}

// Record 在一个事务中写入全部变更
func (s *DatabaseHistoryService) Record(ctx context.Context, listID, folder string, added, deleted []uint32) error {
	if len(added) == 0 && len(deleted) == 0 {
		return nil
	}

	now := time.Now()
	entries := make([]models.FolderHistory, 0, len(added)+len(deleted))
	for _, uid := range added {
		entries = append(entries, models.FolderHistory{
			ListID:    listID,
			Folder:    folder,
			UID:       uid,
			Action:    models.HistoryActionAdd,
			CreatedAt: now,
		})
	}
	for _, uid := range deleted {
		entries = append(entries, models.FolderHistory{
			ListID:    listID,
			Folder:    folder,
			UID:       uid,
			Action:    models.HistoryActionDelete,
			CreatedAt: now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(entries, s.batchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to record folder history: %w", err)
	}
	return nil
}

// GetHistory 获取文件夹的历史记录
func (s *DatabaseHistoryService) GetHistory(ctx context.Context, listID, folder string, limit int) ([]models.FolderHistory, error) {
	var entries []models.FolderHistory
	q := s.db.WithContext(ctx).
		Where("list_id = ? AND folder = ?", listID, folder).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get folder history: %w", err)
	}
	return entries, nil
}

// GetObjectHistory 获取单个对象的历史记录
func (s *DatabaseHistoryService) GetObjectHistory(ctx context.Context, listID, folder string, uid uint32) ([]models.FolderHistory, error) {
	var entries []models.FolderHistory
	err := s.db.WithContext(ctx).
		Where("list_id = ? AND folder = ? AND uid = ?", listID, folder, uid).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get object history: %w", err)
	}
	return entries, nil
}

// Prune 删除早于指定时间的记录
func (s *DatabaseHistoryService) Prune(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&models.FolderHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune folder history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
