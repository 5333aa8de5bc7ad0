package query

import (
	"context"

	"foldermeta/internal/providers"
)

// LiveIndex 每次调用都从后端重新计算的元数据查询
type LiveIndex struct {
	source providers.FolderSource
}

// NewLiveIndex 创建实时索引
func NewLiveIndex(source providers.FolderSource) *LiveIndex {
	return &LiveIndex{source: source}
}

// Tag 查询标签
func (i *LiveIndex) Tag() Tag {
	return TagList
}

// Synchronize 校验后端数据，不保存任何状态
func (i *LiveIndex) Synchronize(ctx context.Context) error {
	_, err := BuildSnapshot(ctx, i.source)
	return err
}

// ListTypes 文件夹 -> 类型
func (i *LiveIndex) ListTypes(ctx context.Context) (map[string]string, error) {
	snapshot, err := BuildSnapshot(ctx, i.source)
	if err != nil {
		return nil, err
	}
	return snapshot.Types, nil
}

// ListByType 线性扫描类型注解
func (i *LiveIndex) ListByType(ctx context.Context, folderType string) ([]string, error) {
	snapshot, err := BuildSnapshot(ctx, i.source)
	if err != nil {
		return nil, err
	}
	return snapshot.ListByType(folderType), nil
}

// ListOwners 文件夹 -> 所有者
func (i *LiveIndex) ListOwners(ctx context.Context) (map[string]string, error) {
	snapshot, err := BuildSnapshot(ctx, i.source)
	if err != nil {
		return nil, err
	}
	return snapshot.Owners, nil
}

// GetDefault 操作用户的默认文件夹
func (i *LiveIndex) GetDefault(ctx context.Context, actingUser, folderType string) (string, bool, error) {
	snapshot, err := BuildSnapshot(ctx, i.source)
	if err != nil {
		return "", false, err
	}
	folder, ok := snapshot.Default(actingUser, folderType)
	return folder, ok, nil
}

// GetForeignDefault 指定所有者的默认文件夹
func (i *LiveIndex) GetForeignDefault(ctx context.Context, owner, folderType string) (string, bool, error) {
	snapshot, err := BuildSnapshot(ctx, i.source)
	if err != nil {
		return "", false, err
	}
	folder, ok := snapshot.ForeignDefault(owner, folderType)
	return folder, ok, nil
}
