package cache

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleStore 基于pebble的本地持久化缓存
type PebbleStore struct {
	db   *pebble.DB
	path string
}

// OpenPebbleStore 打开pebble存储，path为空时使用内存文件系统
func OpenPebbleStore(path string) (*PebbleStore, error) {
	opts := &pebble.Options{}
	if path == "" {
		opts.FS = vfs.NewMem()
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		log.Printf("Failed to open pebble cache at %q: %v", path, err)
		return nil, fmt.Errorf("failed to open pebble cache: %w", err)
	}
	return &PebbleStore{db: db, path: path}, nil
}

// Get 获取缓存项
func (s *PebbleStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}
	defer closer.Close()

	// pebble返回的切片在closer关闭后失效
	return append([]byte(nil), v...), true, nil
}

// Set 设置缓存项
func (s *PebbleStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// Delete 删除缓存项
func (s *PebbleStore) Delete(ctx context.Context, key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("failed to delete cache entry %q: %w", key, err)
	}
	return nil
}

// Close 关闭存储
func (s *PebbleStore) Close() error {
	return s.db.Close()
}
