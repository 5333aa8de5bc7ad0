package cache

import (
	"context"
	"sync"
	"time"
)

// Store 通用键值缓存存储接口
type Store interface {
	// Get 获取缓存项，不存在时返回false
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set 设置缓存项
	Set(ctx context.Context, key string, value []byte) error

	// Delete 删除缓存项
	Delete(ctx context.Context, key string) error
}

// CacheItem 缓存项
type CacheItem struct {
	Value     []byte
	ExpiresAt time.Time
}

// IsExpired 检查是否过期
func (item *CacheItem) IsExpired() bool {
	return !item.ExpiresAt.IsZero() && time.Now().After(item.ExpiresAt)
}

// MemoryStore 基于内存的缓存实现
type MemoryStore struct {
	items sync.Map
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

// NewMemoryStore 创建内存缓存，ttl<=0 表示永不过期
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	store := &MemoryStore{
		ttl:  ttl,
		stop: make(chan struct{}),
	}

	if ttl > 0 {
		// 启动清理协程
		go store.startCleanup()
	}

	return store
}

// Set 设置缓存项
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	item := &CacheItem{
		Value: append([]byte(nil), value...),
	}
	if s.ttl > 0 {
		item.ExpiresAt = time.Now().Add(s.ttl)
	}

	s.items.Store(key, item)
	return nil
}

// Get 获取缓存项
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, exists := s.items.Load(key)
	if !exists {
		return nil, false, nil
	}

	item, ok := value.(*CacheItem)
	if !ok || item.IsExpired() {
		s.items.Delete(key)
		return nil, false, nil
	}

	return append([]byte(nil), item.Value...), true, nil
}

// Delete 删除缓存项
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.items.Delete(key)
	return nil
}

// Size 获取有效缓存项数量
func (s *MemoryStore) Size() int {
	count := 0
	s.items.Range(func(key, value interface{}) bool {
		if item, ok := value.(*CacheItem); ok && !item.IsExpired() {
			count++
		}
		return true
	})
	return count
}

// Keys 获取所有有效的键
func (s *MemoryStore) Keys() []string {
	var keys []string
	s.items.Range(func(key, value interface{}) bool {
		if keyStr, ok := key.(string); ok {
			if item, ok := value.(*CacheItem); ok && !item.IsExpired() {
				keys = append(keys, keyStr)
			}
		}
		return true
	})
	return keys
}

// Close 停止清理协程
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// startCleanup 启动定期清理过期项
func (s *MemoryStore) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute) // 每5分钟清理一次
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup 清理过期项
func (s *MemoryStore) cleanup() {
	var expiredKeys []interface{}

	s.items.Range(func(key, value interface{}) bool {
		if item, ok := value.(*CacheItem); ok && item.IsExpired() {
			expiredKeys = append(expiredKeys, key)
		}
		return true
	})

	for _, key := range expiredKeys {
		s.items.Delete(key)
	}
}
