package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"foldermeta/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// listNamespace 列表标识的UUID命名空间
var listNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("foldermeta/list"))

// ListID 根据后端身份参数生成稳定的列表标识
func ListID(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
		b.WriteByte('\n')
	}
	return uuid.NewSHA1(listNamespace, []byte(b.String())).String()
}

// ListCache 以列表标识为命名空间的缓存视图
type ListCache struct {
	store  Store
	listID string
}

// NewListCache 创建列表缓存
func NewListCache(store Store, listID string) *ListCache {
	return &ListCache{store: store, listID: listID}
}

// ListID 列表标识
func (c *ListCache) ListID() string {
	return c.listID
}

func (c *ListCache) key(key string) string {
	return c.listID + "/" + key
}

// LoadRaw 读取原始字节
func (c *ListCache) LoadRaw(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		return nil, false, err
	}
	if !ok {
		metrics.CacheMiss()
		return nil, false, nil
	}
	metrics.CacheHit()
	return data, true, nil
}

// SaveRaw 写入原始字节
func (c *ListCache) SaveRaw(ctx context.Context, key string, data []byte) error {
	return c.store.Set(ctx, c.key(key), data)
}

// Load 读取并解码JSON值
func (c *ListCache) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, ok, err := c.LoadRaw(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %q: %w", key, err)
	}
	return true, nil
}

// Save 编码为JSON并写入
func (c *ListCache) Save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %q: %w", key, err)
	}
	return c.SaveRaw(ctx, key, data)
}

// Delete 删除缓存项
func (c *ListCache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}

// Options 缓存存储配置
type Options struct {
	Driver string // memory, sqlite, pebble
	Path   string
	TTL    time.Duration
}

// Open 按驱动名称创建缓存存储
func Open(opts Options, db *gorm.DB) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "memory":
		return NewMemoryStore(opts.TTL), nil
	case "sqlite", "sql":
		if db == nil {
			return nil, fmt.Errorf("cache driver %q requires a database connection", opts.Driver)
		}
		return NewSQLStore(db), nil
	case "pebble":
		return OpenPebbleStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown cache driver: %s", opts.Driver)
	}
}

// Close 关闭实现了io.Closer的存储
func Close(store Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
