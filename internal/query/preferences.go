package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"

	"github.com/cespare/xxhash/v2"
)

// ApplicationHeader 偏好对象中标记所属应用的邮件头
const ApplicationHeader = "X-Horde-Application"

// searchDescriptor 搜索条件，哈希后作为调用方缓存的键
type searchDescriptor struct {
	Folder string `json:"folder"`
	Header string `json:"header"`
	Value  string `json:"value"`
}

func (d searchDescriptor) key() string {
	data, _ := json.Marshal(d)
	return "search/" + strconv.FormatUint(xxhash.Sum64(data), 16)
}

// LivePreferences 在偏好文件夹中按应用查找偏好对象
type LivePreferences struct {
	backend     providers.ObjectBackend
	folder      string
	searchCache cache.Store
}

// NewLivePreferences 创建偏好查询，searchCache由调用方持有，可为nil
func NewLivePreferences(backend providers.ObjectBackend, folder string, searchCache cache.Store) *LivePreferences {
	return &LivePreferences{
		backend:     backend,
		folder:      folder,
		searchCache: searchCache,
	}
}

// Tag 查询标签
func (q *LivePreferences) Tag() Tag {
	return TagPreferences
}

// GetApplicationPreferences 应用偏好对象的UID
func (q *LivePreferences) GetApplicationPreferences(ctx context.Context, application string) (uint32, bool, error) {
	uids, err := q.search(ctx, searchDescriptor{Folder: q.folder, Header: ApplicationHeader, Value: application})
	if err != nil {
		return 0, false, err
	}
	if len(uids) == 0 {
		return 0, false, nil
	}
	// 存在多个时取最新的对象
	return uids[len(uids)-1], true, nil
}

func (q *LivePreferences) search(ctx context.Context, descriptor searchDescriptor) ([]uint32, error) {
	key := descriptor.key()
	if q.searchCache != nil {
		if data, ok, err := q.searchCache.Get(ctx, key); err == nil && ok {
			var uids []uint32
			if json.Unmarshal(data, &uids) == nil {
				return uids, nil
			}
		}
	}

	uids, err := q.backend.SearchHeader(ctx, descriptor.Folder, descriptor.Header, descriptor.Value)
	if err != nil {
		if providers.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search preferences in %q: %w", descriptor.Folder, err)
	}

	if q.searchCache != nil {
		if data, err := json.Marshal(uids); err == nil {
			_ = q.searchCache.Set(ctx, key, data)
		}
	}
	return uids, nil
}
