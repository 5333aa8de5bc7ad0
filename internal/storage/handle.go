package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"foldermeta/internal/cache"
	"foldermeta/internal/query"
)

// handle 按标签持有查询的句柄
type handle struct {
	mutex   sync.RWMutex
	queries map[query.Tag]query.Query
}

// RegisterQuery 注册查询，同一标签重复注册时替换
func (h *handle) RegisterQuery(tag query.Tag, q query.Query) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.queries == nil {
		h.queries = make(map[query.Tag]query.Query)
	}
	h.queries[tag] = q
}

// GetQuery 获取已注册的查询
func (h *handle) GetQuery(tag query.Tag) (query.Query, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	q, ok := h.queries[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", query.ErrQueryNotRegistered, tag)
	}
	return q, nil
}

// Tags 已注册的标签，按名称排序
func (h *handle) Tags() []query.Tag {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	tags := make([]query.Tag, 0, len(h.queries))
	for tag := range h.queries {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// synchronize 按顺序同步实现了Synchronizer的查询，first优先
func (h *handle) synchronize(ctx context.Context, first query.Tag) error {
	tags := h.Tags()
	ordered := make([]query.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag == first {
			ordered = append([]query.Tag{tag}, ordered...)
		} else {
			ordered = append(ordered, tag)
		}
	}

	for _, tag := range ordered {
		q, err := h.GetQuery(tag)
		if err != nil {
			return err
		}
		if s, ok := q.(query.Synchronizer); ok {
			if err := s.Synchronize(ctx); err != nil {
				return fmt.Errorf("failed to synchronize %s query: %w", tag, err)
			}
		}
	}
	return nil
}

// List 一个文件夹层级的列表句柄
type List struct {
	handle

	params map[string]string
	id     string
	user   string
}

// NewList 创建列表句柄，params为后端身份参数
func NewList(params map[string]string, user string) *List {
	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}
	return &List{
		params: copied,
		id:     cache.ListID(copied),
		user:   user,
	}
}

// ID 列表标识
func (l *List) ID() string {
	return l.id
}

// Parameters 后端身份参数
func (l *List) Parameters() map[string]string {
	return l.params
}

// User 登录用户
func (l *List) User() string {
	return l.user
}

// Synchronize 同步全部查询，元数据索引最先
func (l *List) Synchronize(ctx context.Context) error {
	return l.synchronize(ctx, query.TagList)
}

// MetadataQuery 文件夹元数据查询
func (l *List) MetadataQuery() (query.MetadataQuery, error) {
	q, err := l.GetQuery(query.TagList)
	if err != nil {
		return nil, err
	}
	typed, ok := q.(query.MetadataQuery)
	if !ok {
		return nil, fmt.Errorf("query %s has unexpected type %T", query.TagList, q)
	}
	return typed, nil
}

// ACLQuery ACL查询
func (l *List) ACLQuery() (query.ACLQuery, error) {
	q, err := l.GetQuery(query.TagACL)
	if err != nil {
		return nil, err
	}
	typed, ok := q.(query.ACLQuery)
	if !ok {
		return nil, fmt.Errorf("query %s has unexpected type %T", query.TagACL, q)
	}
	return typed, nil
}

// ShareQuery 共享元数据查询
func (l *List) ShareQuery() (query.ShareQuery, error) {
	q, err := l.GetQuery(query.TagShare)
	if err != nil {
		return nil, err
	}
	typed, ok := q.(query.ShareQuery)
	if !ok {
		return nil, fmt.Errorf("query %s has unexpected type %T", query.TagShare, q)
	}
	return typed, nil
}

// ActiveSyncQuery ActiveSync查询
func (l *List) ActiveSyncQuery() (query.ActiveSyncQuery, error) {
	q, err := l.GetQuery(query.TagActiveSync)
	if err != nil {
		return nil, err
	}
	typed, ok := q.(query.ActiveSyncQuery)
	if !ok {
		return nil, fmt.Errorf("query %s has unexpected type %T", query.TagActiveSync, q)
	}
	return typed, nil
}

// Data 单个文件夹的数据句柄
type Data struct {
	handle

	list       *List
	folder     string
	folderType string
}

// NewData 创建数据句柄
func NewData(list *List, folder, folderType string) *Data {
	return &Data{
		list:       list,
		folder:     folder,
		folderType: folderType,
	}
}

// Folder 文件夹路径
func (d *Data) Folder() string {
	return d.folder
}

// Type 文件夹类型
func (d *Data) Type() string {
	return d.folderType
}

// List 所属的列表句柄
func (d *Data) List() *List {
	return d.list
}

// Synchronize 同步数据查询
func (d *Data) Synchronize(ctx context.Context) error {
	return d.synchronize(ctx, query.TagHistory)
}

// PreferencesQuery 偏好查询
func (d *Data) PreferencesQuery() (query.PreferencesQuery, error) {
	q, err := d.GetQuery(query.TagPreferences)
	if err != nil {
		return nil, err
	}
	typed, ok := q.(query.PreferencesQuery)
	if !ok {
		return nil, fmt.Errorf("query %s has unexpected type %T", query.TagPreferences, q)
	}
	return typed, nil
}

// HistoryQuery 历史查询
func (d *Data) HistoryQuery() (query.HistoryQuery, error) {
	q, err := d.GetQuery(query.TagHistory)
	if err != nil {
		return nil, err
	}
	typed, ok := q.(query.HistoryQuery)
	if !ok {
		return nil, fmt.Errorf("query %s has unexpected type %T", query.TagHistory, q)
	}
	return typed, nil
}
