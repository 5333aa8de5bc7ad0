package query

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"
)

// 共享元数据注解键名
const (
	DescriptionAnnotation = "/shared/comment"
	ParametersAnnotation  = "/shared/vendor/horde/share-params"
)

// keyShare 共享元数据缓存的键名
const keyShare = "share"

// EncodeParameters 参数编码为base64(JSON)注解值
func EncodeParameters(parameters map[string]string) (string, error) {
	if len(parameters) == 0 {
		return "", nil
	}
	data, err := json.Marshal(parameters)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeParameters 解码参数注解值，空值返回空映射
func DecodeParameters(value string) (map[string]string, error) {
	parameters := make(map[string]string)
	if value == "" {
		return parameters, nil
	}

	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid share parameters encoding: %w", err)
	}
	if err := json.Unmarshal(data, &parameters); err != nil {
		return nil, fmt.Errorf("invalid share parameters: %w", err)
	}
	return parameters, nil
}

// LiveShare 直接访问后端的共享元数据查询
type LiveShare struct {
	backend providers.AnnotationBackend
}

// NewLiveShare 创建实时共享查询
func NewLiveShare(backend providers.AnnotationBackend) *LiveShare {
	return &LiveShare{backend: backend}
}

// Tag 查询标签
func (q *LiveShare) Tag() Tag {
	return TagShare
}

// GetDescription 文件夹描述
func (q *LiveShare) GetDescription(ctx context.Context, folder string) (string, error) {
	description, err := q.backend.GetAnnotation(ctx, folder, DescriptionAnnotation)
	if err != nil {
		if providers.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return description, nil
}

// SetDescription 设置文件夹描述
func (q *LiveShare) SetDescription(ctx context.Context, folder, description string) error {
	return q.backend.SetAnnotation(ctx, folder, DescriptionAnnotation, description)
}

// GetParameters 文件夹共享参数
func (q *LiveShare) GetParameters(ctx context.Context, folder string) (map[string]string, error) {
	value, err := q.backend.GetAnnotation(ctx, folder, ParametersAnnotation)
	if err != nil {
		if providers.IsNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return DecodeParameters(value)
}

// SetParameters 设置文件夹共享参数
func (q *LiveShare) SetParameters(ctx context.Context, folder string, parameters map[string]string) error {
	value, err := EncodeParameters(parameters)
	if err != nil {
		return fmt.Errorf("failed to encode share parameters: %w", err)
	}
	return q.backend.SetAnnotation(ctx, folder, ParametersAnnotation, value)
}

// shareEntry 单个文件夹的缓存共享元数据
type shareEntry struct {
	Description *string           `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters"`
}

// CachedShare 读穿写穿缓存的共享元数据查询
type CachedShare struct {
	live  *LiveShare
	cache *cache.ListCache

	mutex   sync.Mutex
	entries map[string]*shareEntry
}

// NewCachedShare 创建缓存共享查询
func NewCachedShare(backend providers.AnnotationBackend, listCache *cache.ListCache) *CachedShare {
	return &CachedShare{
		live:  NewLiveShare(backend),
		cache: listCache,
	}
}

// Tag 查询标签
func (q *CachedShare) Tag() Tag {
	return TagShare
}

// GetDescription 文件夹描述
func (q *CachedShare) GetDescription(ctx context.Context, folder string) (string, error) {
	entry, err := q.entry(ctx, folder)
	if err != nil {
		return "", err
	}
	if entry.Description != nil {
		return *entry.Description, nil
	}

	description, err := q.live.GetDescription(ctx, folder)
	if err != nil {
		return "", err
	}
	return description, q.update(ctx, folder, func(e *shareEntry) { e.Description = &description })
}

// SetDescription 设置文件夹描述
func (q *CachedShare) SetDescription(ctx context.Context, folder, description string) error {
	if err := q.live.SetDescription(ctx, folder, description); err != nil {
		return err
	}
	return q.update(ctx, folder, func(e *shareEntry) { e.Description = &description })
}

// GetParameters 文件夹共享参数
func (q *CachedShare) GetParameters(ctx context.Context, folder string) (map[string]string, error) {
	entry, err := q.entry(ctx, folder)
	if err != nil {
		return nil, err
	}
	if entry.Parameters != nil {
		return copyStrings(entry.Parameters), nil
	}

	parameters, err := q.live.GetParameters(ctx, folder)
	if err != nil {
		return nil, err
	}
	return parameters, q.update(ctx, folder, func(e *shareEntry) { e.Parameters = copyStrings(parameters) })
}

// SetParameters 设置文件夹共享参数
func (q *CachedShare) SetParameters(ctx context.Context, folder string, parameters map[string]string) error {
	if err := q.live.SetParameters(ctx, folder, parameters); err != nil {
		return err
	}
	return q.update(ctx, folder, func(e *shareEntry) { e.Parameters = copyStrings(parameters) })
}

// Synchronize 清空缓存的共享元数据
func (q *CachedShare) Synchronize(ctx context.Context) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.entries = nil
	if err := q.cache.Delete(ctx, keyShare); err != nil {
		return fmt.Errorf("failed to purge share cache: %w", err)
	}
	return nil
}

func (q *CachedShare) entry(ctx context.Context, folder string) (shareEntry, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if err := q.loadLocked(ctx); err != nil {
		return shareEntry{}, err
	}
	if entry, ok := q.entries[folder]; ok {
		return *entry, nil
	}
	return shareEntry{}, nil
}

func (q *CachedShare) loadLocked(ctx context.Context) error {
	if q.entries != nil {
		return nil
	}

	entries := make(map[string]*shareEntry)
	data, ok, err := q.cache.LoadRaw(ctx, keyShare)
	if err != nil {
		return fmt.Errorf("failed to load share cache: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
			log.Printf("Discarding unreadable share cache for list %s: %v", q.cache.ListID(), err)
			entries = make(map[string]*shareEntry)
		}
	}
	q.entries = entries
	return nil
}

func (q *CachedShare) update(ctx context.Context, folder string, fn func(*shareEntry)) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if err := q.loadLocked(ctx); err != nil {
		return err
	}
	entry, ok := q.entries[folder]
	if !ok {
		entry = &shareEntry{}
		q.entries[folder] = entry
	}
	fn(entry)
	return q.cache.Save(ctx, keyShare, q.entries)
}
