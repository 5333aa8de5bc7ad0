package providers

import (
	"context"
	"sort"
	"sync"

	"foldermeta/internal/metrics"
	"foldermeta/internal/models"
)

// memoryFolder 内存文件夹
type memoryFolder struct {
	annotations map[string]string
	acl         map[string]string
	myRights    string
	objects     map[uint32]map[string]string
}

// MemoryBackend 内存后端，用于测试和独立部署
type MemoryBackend struct {
	mutex      sync.RWMutex
	user       string
	folders    map[string]*memoryFolder
	resolver   NamespaceResolver
	aclSupport bool
	calls      map[string]int
	failures   map[string]error
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend(user string) *MemoryBackend {
	return &MemoryBackend{
		user:       user,
		folders:    make(map[string]*memoryFolder),
		aclSupport: true,
		calls:      make(map[string]int),
		failures:   make(map[string]error),
	}
}

// WithNamespace 使用自定义命名空间解析器
func (b *MemoryBackend) WithNamespace(resolver NamespaceResolver) *MemoryBackend {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.resolver = resolver
	return b
}

// SetACLSupport 设置是否支持ACL
func (b *MemoryBackend) SetACLSupport(supported bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.aclSupport = supported
}

// AddFolder 添加文件夹，rawType为空表示无类型注解
func (b *MemoryBackend) AddFolder(path, rawType string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	folder := b.folder(path)
	if rawType == "" {
		delete(folder.annotations, models.FolderTypeAnnotation)
	} else {
		folder.annotations[models.FolderTypeAnnotation] = rawType
	}
}

// RemoveFolder 删除文件夹
func (b *MemoryBackend) RemoveFolder(path string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.folders, path)
}

// SetMyRights 设置当前用户对文件夹的权限
func (b *MemoryBackend) SetMyRights(path, rights string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.folder(path).myRights = rights
}

// AddObject 向文件夹添加对象
func (b *MemoryBackend) AddObject(path string, uid uint32, headers map[string]string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.folder(path).objects[uid] = headers
}

// RemoveObject 从文件夹删除对象
func (b *MemoryBackend) RemoveObject(path string, uid uint32) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if folder, ok := b.folders[path]; ok {
		delete(folder.objects, uid)
	}
}

// FailOn 使指定操作返回错误，err为nil时恢复
func (b *MemoryBackend) FailOn(op string, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// Calls 指定操作的调用次数
func (b *MemoryBackend) Calls(op string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.calls[op]
}

// ResetCalls 清空调用计数
func (b *MemoryBackend) ResetCalls() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls = make(map[string]int)
}

func (b *MemoryBackend) folder(path string) *memoryFolder {
	folder, ok := b.folders[path]
	if !ok {
		folder = &memoryFolder{
			annotations: make(map[string]string),
			acl:         make(map[string]string),
			objects:     make(map[uint32]map[string]string),
		}
		b.folders[path] = folder
	}
	return folder
}

// record 记录调用并返回预设错误，调用方须持有锁
func (b *MemoryBackend) record(op string) error {
	b.calls[op]++
	err := b.failures[op]
	metrics.BackendCall("memory", op, err)
	return err
}

func (b *MemoryBackend) existing(op, path string) (*memoryFolder, error) {
	folder, ok := b.folders[path]
	if !ok {
		return nil, NewNotFoundError("memory", op, path)
	}
	return folder, nil
}

// Parameters 后端身份参数
func (b *MemoryBackend) Parameters() map[string]string {
	return map[string]string{
		"driver": "memory",
		"user":   b.user,
	}
}

// Close 无需释放资源
func (b *MemoryBackend) Close() error {
	return nil
}

// ListFolders 列出全部文件夹
func (b *MemoryBackend) ListFolders(ctx context.Context) ([]string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("list"); err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(b.folders))
	for path := range b.folders {
		folders = append(folders, path)
	}
	sort.Strings(folders)
	return folders, nil
}

// ListFolderTypes 列出类型注解
func (b *MemoryBackend) ListFolderTypes(ctx context.Context) (map[string]string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("types"); err != nil {
		return nil, err
	}

	types := make(map[string]string)
	for path, folder := range b.folders {
		if value, ok := folder.annotations[models.FolderTypeAnnotation]; ok {
			types[path] = value
		}
	}
	return types, nil
}

// Namespace 获取命名空间解析器
func (b *MemoryBackend) Namespace(ctx context.Context) (NamespaceResolver, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("namespace"); err != nil {
		return nil, err
	}

	if b.resolver != nil {
		return b.resolver, nil
	}
	return DefaultNamespace(b.user), nil
}

// HasACLSupport 是否支持ACL
func (b *MemoryBackend) HasACLSupport(ctx context.Context) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.record("capability")
	return b.aclSupport
}

// GetMyRights 当前用户权限
func (b *MemoryBackend) GetMyRights(ctx context.Context, path string) (string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("myrights"); err != nil {
		return "", err
	}

	folder, err := b.existing("myrights", path)
	if err != nil {
		return "", err
	}
	return folder.myRights, nil
}

// GetAllRights 完整ACL
func (b *MemoryBackend) GetAllRights(ctx context.Context, path string) (map[string]string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("getacl"); err != nil {
		return nil, err
	}

	folder, err := b.existing("getacl", path)
	if err != nil {
		return nil, err
	}
	acl := make(map[string]string, len(folder.acl))
	for principal, rights := range folder.acl {
		acl[principal] = rights
	}
	return acl, nil
}

// SetRights 设置权限
func (b *MemoryBackend) SetRights(ctx context.Context, path, principal, rights string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("setacl"); err != nil {
		return err
	}

	folder, err := b.existing("setacl", path)
	if err != nil {
		return err
	}
	folder.acl[principal] = rights
	return nil
}

// DeleteRights 删除权限
func (b *MemoryBackend) DeleteRights(ctx context.Context, path, principal string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("deleteacl"); err != nil {
		return err
	}

	folder, err := b.existing("deleteacl", path)
	if err != nil {
		return err
	}
	delete(folder.acl, principal)
	return nil
}

// GetAnnotation 读取注解
func (b *MemoryBackend) GetAnnotation(ctx context.Context, path, key string) (string, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("getmetadata"); err != nil {
		return "", err
	}

	folder, err := b.existing("getmetadata", path)
	if err != nil {
		return "", err
	}
	return folder.annotations[key], nil
}

// SetAnnotation 写入注解
func (b *MemoryBackend) SetAnnotation(ctx context.Context, path, key, value string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("setmetadata"); err != nil {
		return err
	}

	folder, err := b.existing("setmetadata", path)
	if err != nil {
		return err
	}
	if value == "" {
		delete(folder.annotations, key)
	} else {
		folder.annotations[key] = value
	}
	return nil
}

// ListObjectUIDs 列出对象UID
func (b *MemoryBackend) ListObjectUIDs(ctx context.Context, path string) ([]uint32, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("search"); err != nil {
		return nil, err
	}

	folder, err := b.existing("search", path)
	if err != nil {
		return nil, err
	}
	uids := make([]uint32, 0, len(folder.objects))
	for uid := range folder.objects {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// SearchHeader 按邮件头搜索对象
func (b *MemoryBackend) SearchHeader(ctx context.Context, path, header, value string) ([]uint32, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if err := b.record("search_header"); err != nil {
		return nil, err
	}

	folder, err := b.existing("search_header", path)
	if err != nil {
		return nil, err
	}
	var uids []uint32
	for uid, headers := range folder.objects {
		if headers[header] == value {
			uids = append(uids, uid)
		}
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}
