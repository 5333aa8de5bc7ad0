package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"foldermeta/internal/cache"
	"foldermeta/internal/metrics"
	"foldermeta/internal/providers"
)

// Loader 缓存为空时填充索引的回调
type Loader func(ctx context.Context) error

// CachedIndex 基于持久化派生索引的元数据查询
type CachedIndex struct {
	source providers.FolderSource
	cache  *cache.ListCache
	loader Loader

	mutex    sync.RWMutex
	snapshot *IndexSnapshot
}

// NewCachedIndex 创建缓存索引
func NewCachedIndex(source providers.FolderSource, listCache *cache.ListCache) *CachedIndex {
	index := &CachedIndex{
		source: source,
		cache:  listCache,
	}
	index.loader = index.Synchronize
	return index
}

// SetLoader 替换缓存为空时的加载回调，nil恢复为自身同步
func (i *CachedIndex) SetLoader(loader Loader) {
	if loader == nil {
		loader = i.Synchronize
	}
	i.loader = loader
}

// Tag 查询标签
func (i *CachedIndex) Tag() Tag {
	return TagList
}

// Synchronize 完整重新计算并持久化全部索引
func (i *CachedIndex) Synchronize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveSynchronization(start, err) }()

	snapshot, err := BuildSnapshot(ctx, i.source)
	if err != nil {
		log.Printf("Folder index synchronization failed for list %s: %v", i.cache.ListID(), err)
		return err
	}

	encoded, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	for _, key := range indexKeys {
		if err := i.cache.SaveRaw(ctx, key, encoded[key]); err != nil {
			log.Printf("Failed to persist folder index %s for list %s: %v", key, i.cache.ListID(), err)
			return fmt.Errorf("failed to persist index %s: %w", key, err)
		}
	}

	i.mutex.Lock()
	i.snapshot = snapshot
	i.mutex.Unlock()

	log.Printf("Folder index synchronized for list %s: %d typed folders, %d owners", i.cache.ListID(), len(snapshot.Types), len(snapshot.Owners))
	return nil
}

// Snapshot 当前快照，必要时从缓存或后端加载
func (i *CachedIndex) Snapshot(ctx context.Context) (*IndexSnapshot, error) {
	i.mutex.RLock()
	snapshot := i.snapshot
	i.mutex.RUnlock()
	if snapshot != nil {
		return snapshot, nil
	}

	snapshot, ok, err := i.load(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		i.mutex.Lock()
		i.snapshot = snapshot
		i.mutex.Unlock()
		return snapshot, nil
	}

	if err := i.loader(ctx); err != nil {
		return nil, err
	}

	i.mutex.RLock()
	snapshot = i.snapshot
	i.mutex.RUnlock()
	if snapshot == nil {
		return nil, errors.New("folder index loader did not populate the index")
	}
	return snapshot, nil
}

// load 从缓存读取全部索引键，任一缺失或代数不一致视为冷缓存
func (i *CachedIndex) load(ctx context.Context) (*IndexSnapshot, bool, error) {
	raw := make(map[string][]byte, len(indexKeys))
	for _, key := range indexKeys {
		data, ok, err := i.cache.LoadRaw(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load index %s: %w", key, err)
		}
		if !ok {
			return nil, false, nil
		}
		raw[key] = data
	}

	snapshot, ok, err := decodeSnapshot(raw)
	if err != nil {
		log.Printf("Discarding unreadable folder index for list %s: %v", i.cache.ListID(), err)
		return nil, false, nil
	}
	if !ok {
		log.Printf("Discarding inconsistent folder index for list %s", i.cache.ListID())
	}
	return snapshot, ok, nil
}

// ListTypes 文件夹 -> 类型
func (i *CachedIndex) ListTypes(ctx context.Context) (map[string]string, error) {
	snapshot, err := i.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return copyStrings(snapshot.Types), nil
}

// ListByType 指定类型的文件夹
func (i *CachedIndex) ListByType(ctx context.Context, folderType string) ([]string, error) {
	snapshot, err := i.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.ListByType(folderType), nil
}

// ListOwners 文件夹 -> 所有者
func (i *CachedIndex) ListOwners(ctx context.Context) (map[string]string, error) {
	snapshot, err := i.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return copyStrings(snapshot.Owners), nil
}

// GetDefault 操作用户的默认文件夹
func (i *CachedIndex) GetDefault(ctx context.Context, actingUser, folderType string) (string, bool, error) {
	snapshot, err := i.Snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	folder, ok := snapshot.Default(actingUser, folderType)
	return folder, ok, nil
}

// GetForeignDefault 指定所有者的默认文件夹
func (i *CachedIndex) GetForeignDefault(ctx context.Context, owner, folderType string) (string, bool, error) {
	snapshot, err := i.Snapshot(ctx)
	if err != nil {
		return "", false, err
	}
	folder, ok := snapshot.ForeignDefault(owner, folderType)
	return folder, ok, nil
}
