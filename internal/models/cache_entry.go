package models

import "time"

// CacheEntry 持久化缓存条目
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:500" json:"key"`
	Value     []byte    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CacheEntry) TableName() string {
	return "cache_entries"
}

// 历史动作常量
const (
	HistoryActionAdd    = "add"
	HistoryActionDelete = "delete"
)

// FolderHistory 文件夹对象变更历史
type FolderHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	ListID    string    `gorm:"not null;size:64;index:idx_history_folder" json:"list_id"`
	Folder    string    `gorm:"not null;size:500;index:idx_history_folder" json:"folder"`
	UID       uint32    `gorm:"column:uid;not null" json:"uid"`
	Action    string    `gorm:"not null;size:10" json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (FolderHistory) TableName() string {
	return "folder_history"
}
