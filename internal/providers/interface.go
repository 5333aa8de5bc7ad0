package providers

import (
	"context"

	"foldermeta/internal/models"
)

// FolderSource 未经同步的文件夹数据来源
type FolderSource interface {
	// ListFolders 列出全部文件夹路径
	ListFolders(ctx context.Context) ([]string, error)

	// ListFolderTypes 列出文件夹类型注解（路径 -> 原始注解值）
	ListFolderTypes(ctx context.Context) (map[string]string, error)

	// Namespace 获取命名空间解析器
	Namespace(ctx context.Context) (NamespaceResolver, error)
}

// NamespaceResolver 命名空间解析器
type NamespaceResolver interface {
	// User 当前登录用户
	User() string

	// Owner 文件夹所有者，共享文件夹没有所有者
	Owner(folder string) (string, bool)

	// Match 文件夹所属的命名空间类型
	Match(folder string) models.NamespaceType
}

// ACLBackend ACL操作
type ACLBackend interface {
	HasACLSupport(ctx context.Context) bool
	GetMyRights(ctx context.Context, folder string) (string, error)
	GetAllRights(ctx context.Context, folder string) (map[string]string, error)
	SetRights(ctx context.Context, folder, principal, rights string) error
	DeleteRights(ctx context.Context, folder, principal string) error
}

// AnnotationBackend 文件夹注解操作
type AnnotationBackend interface {
	// GetAnnotation 读取注解，未设置时返回空字符串
	GetAnnotation(ctx context.Context, folder, key string) (string, error)

	// SetAnnotation 写入注解，空值表示删除
	SetAnnotation(ctx context.Context, folder, key, value string) error
}

// ObjectBackend 文件夹内对象操作
type ObjectBackend interface {
	ListObjectUIDs(ctx context.Context, folder string) ([]uint32, error)
	SearchHeader(ctx context.Context, folder, header, value string) ([]uint32, error)
}

// Backend 完整的后端接口
type Backend interface {
	FolderSource
	ACLBackend
	AnnotationBackend
	ObjectBackend

	// Parameters 后端身份参数，用于区分缓存命名空间
	Parameters() map[string]string

	Close() error
}

// NamespaceElement 命名空间定义
type NamespaceElement struct {
	Type      models.NamespaceType `json:"type" yaml:"type"`
	Prefix    string               `json:"prefix" yaml:"prefix"`
	Delimiter string               `json:"delimiter" yaml:"delimiter"`
}
