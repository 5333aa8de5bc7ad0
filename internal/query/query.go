package query

import (
	"context"
)

// Tag 查询标签
type Tag string

// 列表查询标签
const (
	TagList       Tag = "list"
	TagACL        Tag = "acl"
	TagShare      Tag = "share"
	TagActiveSync Tag = "activesync"
)

// 数据查询标签
const (
	TagPreferences Tag = "preferences"
	TagHistory     Tag = "history"
)

// ListTags 所有列表查询标签
var ListTags = []Tag{TagList, TagACL, TagShare, TagActiveSync}

// DataTags 所有数据查询标签
var DataTags = []Tag{TagPreferences, TagHistory}

// Query 可注册到句柄上的查询
type Query interface {
	Tag() Tag
}

// Synchronizer 需要随句柄同步的查询
type Synchronizer interface {
	Synchronize(ctx context.Context) error
}

// MetadataQuery 文件夹类型、所有者和默认文件夹查询
type MetadataQuery interface {
	Query
	Synchronizer

	// ListTypes 文件夹 -> 类型
	ListTypes(ctx context.Context) (map[string]string, error)

	// ListByType 指定类型的文件夹，未知类型返回空列表
	ListByType(ctx context.Context, folderType string) ([]string, error)

	// ListOwners 文件夹 -> 所有者
	ListOwners(ctx context.Context) (map[string]string, error)

	// GetDefault 操作用户的默认文件夹，actingUser为空时表示登录用户
	GetDefault(ctx context.Context, actingUser, folderType string) (string, bool, error)

	// GetForeignDefault 指定所有者的默认文件夹
	GetForeignDefault(ctx context.Context, owner, folderType string) (string, bool, error)
}

// ACLQuery 文件夹访问控制查询
type ACLQuery interface {
	Query

	HasACLSupport(ctx context.Context) bool
	GetMyACL(ctx context.Context, folder string) (string, error)
	GetAllACL(ctx context.Context, folder string) (map[string]string, error)

	// GetACL 先查询自身权限，仅在具有管理权限时读取完整ACL
	GetACL(ctx context.Context, actingUser, folder string) (map[string]string, error)

	SetACL(ctx context.Context, folder, principal, rights string) error
	DeleteACL(ctx context.Context, folder, principal string) error
}

// ShareQuery 文件夹共享描述和参数查询
type ShareQuery interface {
	Query

	GetDescription(ctx context.Context, folder string) (string, error)
	SetDescription(ctx context.Context, folder, description string) error
	GetParameters(ctx context.Context, folder string) (map[string]string, error)
	SetParameters(ctx context.Context, folder string, parameters map[string]string) error
}

// ActiveSyncQuery 设备同步设置查询
type ActiveSyncQuery interface {
	Query

	GetActiveSync(ctx context.Context, folder string) (*ActiveSyncData, error)
	SetActiveSync(ctx context.Context, folder string, data *ActiveSyncData) error
}

// PreferencesQuery 应用偏好设置查询
type PreferencesQuery interface {
	Query

	// GetApplicationPreferences 应用偏好对象的UID，不存在时返回false
	GetApplicationPreferences(ctx context.Context, application string) (uint32, bool, error)
}

// HistoryQuery 文件夹对象历史查询
type HistoryQuery interface {
	Query
	Synchronizer
}

var (
	_ MetadataQuery    = (*CachedIndex)(nil)
	_ MetadataQuery    = (*LiveIndex)(nil)
	_ ACLQuery         = (*LiveACL)(nil)
	_ ACLQuery         = (*CachedACL)(nil)
	_ Synchronizer     = (*CachedACL)(nil)
	_ ShareQuery       = (*LiveShare)(nil)
	_ ShareQuery       = (*CachedShare)(nil)
	_ Synchronizer     = (*CachedShare)(nil)
	_ ActiveSyncQuery  = (*LiveActiveSync)(nil)
	_ PreferencesQuery = (*LivePreferences)(nil)
	_ HistoryQuery     = (*CachedHistory)(nil)
)
