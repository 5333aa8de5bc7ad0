package query

import (
	"context"
	"fmt"
	"log"
	"sort"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"
)

// HistoryRecorder 记录文件夹对象的增删
type HistoryRecorder interface {
	Record(ctx context.Context, listID, folder string, added, deleted []uint32) error
}

// CachedHistory 对比对象UID快照并记录历史
type CachedHistory struct {
	backend  providers.ObjectBackend
	folder   string
	cache    *cache.ListCache
	recorder HistoryRecorder
}

// NewCachedHistory 创建历史查询
func NewCachedHistory(backend providers.ObjectBackend, folder string, listCache *cache.ListCache, recorder HistoryRecorder) *CachedHistory {
	return &CachedHistory{
		backend:  backend,
		folder:   folder,
		cache:    listCache,
		recorder: recorder,
	}
}

// Tag 查询标签
func (q *CachedHistory) Tag() Tag {
	return TagHistory
}

func (q *CachedHistory) key() string {
	return "history/" + q.folder
}

// Synchronize 记录自上次同步以来的对象变化
func (q *CachedHistory) Synchronize(ctx context.Context) error {
	current, err := q.backend.ListObjectUIDs(ctx, q.folder)
	if err != nil {
		if !providers.IsNotFound(err) {
			return fmt.Errorf("failed to list objects in %q: %w", q.folder, err)
		}
		current = nil
	}

	var previous []uint32
	if _, err := q.cache.Load(ctx, q.key(), &previous); err != nil {
		log.Printf("Discarding unreadable history snapshot for %q: %v", q.folder, err)
		previous = nil
	}

	added, deleted := diffUIDs(previous, current)
	if len(added) > 0 || len(deleted) > 0 {
		if q.recorder != nil {
			if err := q.recorder.Record(ctx, q.cache.ListID(), q.folder, added, deleted); err != nil {
				return fmt.Errorf("failed to record history for %q: %w", q.folder, err)
			}
		}
		log.Printf("History of %q: %d added, %d deleted", q.folder, len(added), len(deleted))
	}

	if current == nil {
		current = []uint32{}
	}
	return q.cache.Save(ctx, q.key(), current)
}

// diffUIDs 计算新增和删除的UID，结果升序
func diffUIDs(previous, current []uint32) (added, deleted []uint32) {
	before := make(map[uint32]struct{}, len(previous))
	for _, uid := range previous {
		before[uid] = struct{}{}
	}
	after := make(map[uint32]struct{}, len(current))
	for _, uid := range current {
		after[uid] = struct{}{}
		if _, ok := before[uid]; !ok {
			added = append(added, uid)
		}
	}
	for _, uid := range previous {
		if _, ok := after[uid]; !ok {
			deleted = append(deleted, uid)
		}
	}

	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
	return added, deleted
}
