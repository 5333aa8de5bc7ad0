package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"

	"github.com/emersion/go-imap/v2"
)

// DefaultRights 后端不支持ACL时视为拥有的权限
const DefaultRights = "lrid"

// keyACL ACL缓存的键名
const keyACL = "acl"

// HasAdminRight 权限中是否包含管理权限
func HasAdminRight(rights string) bool {
	return strings.ContainsRune(rights, rune(imap.RightAdminister))
}

// LiveACL 直接访问后端的ACL查询
type LiveACL struct {
	backend providers.ACLBackend
	user    string
}

// NewLiveACL 创建实时ACL查询
func NewLiveACL(backend providers.ACLBackend, user string) *LiveACL {
	return &LiveACL{backend: backend, user: user}
}

// Tag 查询标签
func (q *LiveACL) Tag() Tag {
	return TagACL
}

// HasACLSupport 后端是否支持ACL
func (q *LiveACL) HasACLSupport(ctx context.Context) bool {
	return q.backend.HasACLSupport(ctx)
}

// GetMyACL 当前用户对文件夹的权限
func (q *LiveACL) GetMyACL(ctx context.Context, folder string) (string, error) {
	if !q.backend.HasACLSupport(ctx) {
		return DefaultRights, nil
	}
	return q.myRights(ctx, folder)
}

// myRights 读取自身权限，不检查ACL支持
func (q *LiveACL) myRights(ctx context.Context, folder string) (string, error) {
	rights, err := q.backend.GetMyRights(ctx, folder)
	if err != nil {
		if providers.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return rights, nil
}

// GetAllACL 文件夹的完整ACL
func (q *LiveACL) GetAllACL(ctx context.Context, folder string) (map[string]string, error) {
	if !q.backend.HasACLSupport(ctx) {
		return map[string]string{q.user: DefaultRights}, nil
	}
	return q.allRights(ctx, folder)
}

// allRights 读取完整ACL，不检查ACL支持
func (q *LiveACL) allRights(ctx context.Context, folder string) (map[string]string, error) {
	acl, err := q.backend.GetAllRights(ctx, folder)
	if err != nil {
		if providers.IsNotFound(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return acl, nil
}

// GetACL 先查询自身权限，仅在具有管理权限时读取完整ACL
func (q *LiveACL) GetACL(ctx context.Context, actingUser, folder string) (map[string]string, error) {
	return composeACL(ctx, q, q.user, q.actingUser(actingUser), folder)
}

func (q *LiveACL) actingUser(actingUser string) string {
	if actingUser == "" {
		return q.user
	}
	return actingUser
}

// SetACL 设置主体的权限
func (q *LiveACL) SetACL(ctx context.Context, folder, principal, rights string) error {
	if !q.backend.HasACLSupport(ctx) {
		return providers.NewUnsupportedError("acl", "setacl", folder)
	}
	return q.backend.SetRights(ctx, folder, principal, rights)
}

// DeleteACL 删除主体的权限
func (q *LiveACL) DeleteACL(ctx context.Context, folder, principal string) error {
	if !q.backend.HasACLSupport(ctx) {
		return providers.NewUnsupportedError("acl", "deleteacl", folder)
	}
	return q.backend.DeleteRights(ctx, folder, principal)
}

// aclReader GetACL组合所需的两个读取操作
type aclReader interface {
	HasACLSupport(ctx context.Context) bool
	GetMyACL(ctx context.Context, folder string) (string, error)
	GetAllACL(ctx context.Context, folder string) (map[string]string, error)
}

// composeACL MYRIGHTS只反映登录用户的权限，其他操作用户需要管理权限读取完整ACL
func composeACL(ctx context.Context, reader aclReader, loginUser, actingUser, folder string) (map[string]string, error) {
	if !reader.HasACLSupport(ctx) {
		return map[string]string{actingUser: DefaultRights}, nil
	}

	rights, err := reader.GetMyACL(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to get own rights on %q: %w", folder, err)
	}
	if rights == "" {
		return map[string]string{}, nil
	}
	if !HasAdminRight(rights) {
		if !providers.SameUser(actingUser, loginUser) {
			return map[string]string{}, nil
		}
		return map[string]string{actingUser: rights}, nil
	}

	acl, err := reader.GetAllACL(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to get acl of %q: %w", folder, err)
	}
	return acl, nil
}

// aclEntry 单个文件夹的缓存ACL
type aclEntry struct {
	My  *string           `json:"my,omitempty"`
	All map[string]string `json:"all"`
}

// CachedACL 读穿缓存的ACL查询，写操作使对应文件夹失效
type CachedACL struct {
	live  *LiveACL
	cache *cache.ListCache

	mutex   sync.Mutex
	entries map[string]*aclEntry
	support *bool
}

// NewCachedACL 创建缓存ACL查询
func NewCachedACL(backend providers.ACLBackend, user string, listCache *cache.ListCache) *CachedACL {
	return &CachedACL{
		live:  NewLiveACL(backend, user),
		cache: listCache,
	}
}

// Tag 查询标签
func (q *CachedACL) Tag() Tag {
	return TagACL
}

// HasACLSupport 后端是否支持ACL，结果在同步前保持不变
func (q *CachedACL) HasACLSupport(ctx context.Context) bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.support == nil {
		supported := q.live.HasACLSupport(ctx)
		q.support = &supported
	}
	return *q.support
}

// GetMyACL 当前用户对文件夹的权限
func (q *CachedACL) GetMyACL(ctx context.Context, folder string) (string, error) {
	if !q.HasACLSupport(ctx) {
		return DefaultRights, nil
	}

	entry, err := q.entry(ctx, folder)
	if err != nil {
		return "", err
	}
	if entry.My != nil {
		return *entry.My, nil
	}

	rights, err := q.live.myRights(ctx, folder)
	if err != nil {
		return "", err
	}
	return rights, q.update(ctx, folder, func(e *aclEntry) { e.My = &rights })
}

// GetAllACL 文件夹的完整ACL
func (q *CachedACL) GetAllACL(ctx context.Context, folder string) (map[string]string, error) {
	if !q.HasACLSupport(ctx) {
		return map[string]string{q.live.user: DefaultRights}, nil
	}

	entry, err := q.entry(ctx, folder)
	if err != nil {
		return nil, err
	}
	if entry.All != nil {
		return copyStrings(entry.All), nil
	}

	acl, err := q.live.allRights(ctx, folder)
	if err != nil {
		return nil, err
	}
	return acl, q.update(ctx, folder, func(e *aclEntry) { e.All = copyStrings(acl) })
}

// GetACL 先查询自身权限，仅在具有管理权限时读取完整ACL
func (q *CachedACL) GetACL(ctx context.Context, actingUser, folder string) (map[string]string, error) {
	return composeACL(ctx, q, q.live.user, q.live.actingUser(actingUser), folder)
}

// SetACL 设置权限并使文件夹缓存失效
func (q *CachedACL) SetACL(ctx context.Context, folder, principal, rights string) error {
	if err := q.live.SetACL(ctx, folder, principal, rights); err != nil {
		return err
	}
	return q.invalidate(ctx, folder)
}

// DeleteACL 删除权限并使文件夹缓存失效
func (q *CachedACL) DeleteACL(ctx context.Context, folder, principal string) error {
	if err := q.live.DeleteACL(ctx, folder, principal); err != nil {
		return err
	}
	return q.invalidate(ctx, folder)
}

// Synchronize 清空全部缓存的ACL
func (q *CachedACL) Synchronize(ctx context.Context) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.entries = nil
	q.support = nil
	if err := q.cache.Delete(ctx, keyACL); err != nil {
		return fmt.Errorf("failed to purge acl cache: %w", err)
	}
	return nil
}

// entry 读取文件夹缓存项的副本
func (q *CachedACL) entry(ctx context.Context, folder string) (aclEntry, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if err := q.loadLocked(ctx); err != nil {
		return aclEntry{}, err
	}
	if entry, ok := q.entries[folder]; ok {
		return *entry, nil
	}
	return aclEntry{}, nil
}

func (q *CachedACL) loadLocked(ctx context.Context) error {
	if q.entries != nil {
		return nil
	}

	entries := make(map[string]*aclEntry)
	data, ok, err := q.cache.LoadRaw(ctx, keyACL)
	if err != nil {
		return fmt.Errorf("failed to load acl cache: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &entries); err != nil || entries == nil {
			log.Printf("Discarding unreadable acl cache for list %s: %v", q.cache.ListID(), err)
			entries = make(map[string]*aclEntry)
		}
	}
	q.entries = entries
	return nil
}

func (q *CachedACL) update(ctx context.Context, folder string, fn func(*aclEntry)) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if err := q.loadLocked(ctx); err != nil {
		return err
	}
	entry, ok := q.entries[folder]
	if !ok {
		entry = &aclEntry{}
		q.entries[folder] = entry
	}
	fn(entry)
	return q.cache.Save(ctx, keyACL, q.entries)
}

func (q *CachedACL) invalidate(ctx context.Context, folder string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if err := q.loadLocked(ctx); err != nil {
		return err
	}
	delete(q.entries, folder)
	return q.cache.Save(ctx, keyACL, q.entries)
}
