package providers

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"

	"foldermeta/internal/metrics"
	"foldermeta/internal/models"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
)

// IMAPConfig IMAP后端配置
type IMAPConfig struct {
	Host       string
	Port       int
	Security   string // SSL, TLS, STARTTLS, NONE
	Username   string
	Password   string
	AuthMethod string // login, plain

	// Namespaces 服务器不支持NAMESPACE时使用的命名空间
	Namespaces []NamespaceElement
}

// IMAPBackend 基于IMAP的后端实现
type IMAPBackend struct {
	config    IMAPConfig
	client    *imapclient.Client
	namespace NamespaceResolver
	retry     *RetryHandler
	mutex     sync.Mutex
}

// NewIMAPBackend 创建IMAP后端，连接在首次调用时建立
func NewIMAPBackend(config IMAPConfig) *IMAPBackend {
	return &IMAPBackend{config: config, retry: NewRetryHandler(nil)}
}

// Connect 连接并认证
func (b *IMAPBackend) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.connect()
}

func (b *IMAPBackend) connect() error {
	if b.client != nil {
		return nil
	}

	addr := net.JoinHostPort(b.config.Host, strconv.Itoa(b.config.Port))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: b.config.Host},
	}

	var (
		c   *imapclient.Client
		err error
	)
	switch strings.ToUpper(b.config.Security) {
	case "SSL", "TLS":
		c, err = imapclient.DialTLS(addr, options)
	case "STARTTLS":
		c, err = imapclient.DialStartTLS(addr, options)
	case "NONE", "":
		c, err = imapclient.DialInsecure(addr, options)
	default:
		return &ProviderError{Type: ErrorTypeConfig, Op: "connect", Provider: "imap", Message: "unsupported security type: " + b.config.Security}
	}
	if err != nil {
		return defaultClassifier.ClassifyError(fmt.Errorf("failed to connect to IMAP server: %w", err), "imap", "connect", "")
	}

	switch strings.ToLower(b.config.AuthMethod) {
	case "plain":
		err = c.Authenticate(sasl.NewPlainClient("", b.config.Username, b.config.Password))
	default:
		err = c.Login(b.config.Username, b.config.Password).Wait()
	}
	if err != nil {
		c.Close()
		log.Printf("IMAP authentication failed for %s@%s: %v", b.config.Username, b.config.Host, err)
		return defaultClassifier.ClassifyError(fmt.Errorf("IMAP authentication failed: %w", err), "imap", "login", "")
	}

	b.client = c
	return nil
}

// Close 断开IMAP连接
func (b *IMAPBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.client == nil {
		return nil
	}

	if err := b.client.Logout().Wait(); err != nil {
		log.Printf("Warning: IMAP logout failed: %v", err)
	}
	err := b.client.Close()
	b.client = nil
	return err
}

// Parameters 后端身份参数
func (b *IMAPBackend) Parameters() map[string]string {
	return map[string]string{
		"driver": "imap",
		"host":   b.config.Host,
		"port":   strconv.Itoa(b.config.Port),
		"user":   b.config.Username,
	}
}

// do 在单一连接上串行执行一次调用，连接类错误会重连并重试
func (b *IMAPBackend) do(ctx context.Context, op, folder string, fn func(c *imapclient.Client) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	return b.retry.ExecuteWithRetry(ctx, op, func() error {
		return b.attempt(op, folder, fn)
	})
}

func (b *IMAPBackend) attempt(op, folder string, fn func(c *imapclient.Client) error) error {
	if err := b.connect(); err != nil {
		metrics.BackendCall("imap", op, err)
		return err
	}

	err := fn(b.client)
	metrics.BackendCall("imap", op, err)
	if err != nil {
		pe := defaultClassifier.ClassifyError(err, "imap", op, folder)
		if pe.Type == ErrorTypeConnection || pe.Type == ErrorTypeTimeout {
			// 连接已失效，下次调用重新建立
			b.client.Close()
			b.client = nil
		}
		return pe
	}
	return nil
}

// ListFolders 列出全部文件夹
func (b *IMAPBackend) ListFolders(ctx context.Context) ([]string, error) {
	var folders []string
	err := b.do(ctx, "list", "", func(c *imapclient.Client) error {
		mailboxes, err := c.List("", "*", nil).Collect()
		if err != nil {
			return err
		}
		folders = make([]string, 0, len(mailboxes))
		for _, mbox := range mailboxes {
			folders = append(folders, mbox.Mailbox)
		}
		return nil
	})
	return folders, err
}

// ListFolderTypes 读取所有文件夹的类型注解
func (b *IMAPBackend) ListFolderTypes(ctx context.Context) (map[string]string, error) {
	folders, err := b.ListFolders(ctx)
	if err != nil {
		return nil, err
	}

	types := make(map[string]string, len(folders))
	for _, folder := range folders {
		value, err := b.GetAnnotation(ctx, folder, models.FolderTypeAnnotation)
		if err != nil {
			if IsNotFound(err) {
				// 列表与读取之间文件夹被删除
				continue
			}
			return nil, err
		}
		if value != "" {
			types[folder] = value
		}
	}
	return types, nil
}

// Namespace 获取命名空间解析器
func (b *IMAPBackend) Namespace(ctx context.Context) (NamespaceResolver, error) {
	b.mutex.Lock()
	cached := b.namespace
	b.mutex.Unlock()
	if cached != nil {
		return cached, nil
	}

	var elements []NamespaceElement
	err := b.do(ctx, "namespace", "", func(c *imapclient.Client) error {
		if !c.Caps().Has(imap.CapNamespace) && !c.Caps().Has(imap.CapIMAP4rev2) {
			return nil
		}
		data, err := c.Namespace().Wait()
		if err != nil {
			return err
		}
		elements = append(elements, namespaceElements(models.NamespacePersonal, data.Personal)...)
		elements = append(elements, namespaceElements(models.NamespaceOther, data.Other)...)
		elements = append(elements, namespaceElements(models.NamespaceShared, data.Shared)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var resolver NamespaceResolver
	switch {
	case len(elements) > 0:
		resolver = NewNamespace(b.config.Username, elements)
	case len(b.config.Namespaces) > 0:
		resolver = NewNamespace(b.config.Username, b.config.Namespaces)
	default:
		resolver = DefaultNamespace(b.config.Username)
	}

	b.mutex.Lock()
	b.namespace = resolver
	b.mutex.Unlock()
	return resolver, nil
}

func namespaceElements(typ models.NamespaceType, descriptors []imap.NamespaceDescriptor) []NamespaceElement {
	elements := make([]NamespaceElement, 0, len(descriptors))
	for _, d := range descriptors {
		delim := ""
		if d.Delim != 0 {
			delim = string(d.Delim)
		}
		elements = append(elements, NamespaceElement{Type: typ, Prefix: d.Prefix, Delimiter: delim})
	}
	return elements
}

// HasACLSupport 服务器是否支持ACL
func (b *IMAPBackend) HasACLSupport(ctx context.Context) bool {
	supported := false
	err := b.do(ctx, "capability", "", func(c *imapclient.Client) error {
		supported = c.Caps().Has(imap.CapACL)
		return nil
	})
	if err != nil {
		log.Printf("Warning: failed to check ACL capability: %v", err)
		return false
	}
	return supported
}

// GetMyRights 当前用户对文件夹的权限
func (b *IMAPBackend) GetMyRights(ctx context.Context, folder string) (string, error) {
	var rights string
	err := b.do(ctx, "myrights", folder, func(c *imapclient.Client) error {
		data, err := c.MyRights(folder).Wait()
		if err != nil {
			return err
		}
		rights = string(data.Rights)
		return nil
	})
	return rights, err
}

// GetAllRights 文件夹的完整ACL
func (b *IMAPBackend) GetAllRights(ctx context.Context, folder string) (map[string]string, error) {
	var acl map[string]string
	err := b.do(ctx, "getacl", folder, func(c *imapclient.Client) error {
		data, err := c.GetACL(folder).Wait()
		if err != nil {
			return err
		}
		acl = make(map[string]string, len(data.Rights))
		for identifier, rights := range data.Rights {
			acl[string(identifier)] = string(rights)
		}
		return nil
	})
	return acl, err
}

// SetRights 设置主体权限
func (b *IMAPBackend) SetRights(ctx context.Context, folder, principal, rights string) error {
	return b.do(ctx, "setacl", folder, func(c *imapclient.Client) error {
		return c.SetACL(folder, imap.RightsIdentifier(principal), imap.RightModificationReplace, imap.RightSet(rights)).Wait()
	})
}

// DeleteRights 删除主体权限
func (b *IMAPBackend) DeleteRights(ctx context.Context, folder, principal string) error {
	// 空权限集等价于DELETEACL
	return b.do(ctx, "deleteacl", folder, func(c *imapclient.Client) error {
		return c.SetACL(folder, imap.RightsIdentifier(principal), imap.RightModificationReplace, imap.RightSet("")).Wait()
	})
}

// GetAnnotation 读取文件夹注解
func (b *IMAPBackend) GetAnnotation(ctx context.Context, folder, key string) (string, error) {
	var value string
	err := b.do(ctx, "getmetadata", folder, func(c *imapclient.Client) error {
		data, err := c.GetMetadata(folder, []string{key}, nil).Wait()
		if err != nil {
			return err
		}
		if v, ok := data.Entries[key]; ok && v != nil {
			value = string(*v)
		}
		return nil
	})
	return value, err
}

// SetAnnotation 写入文件夹注解
func (b *IMAPBackend) SetAnnotation(ctx context.Context, folder, key, value string) error {
	entries := map[string]*[]byte{key: nil}
	if value != "" {
		data := []byte(value)
		entries[key] = &data
	}
	return b.do(ctx, "setmetadata", folder, func(c *imapclient.Client) error {
		return c.SetMetadata(folder, entries).Wait()
	})
}

// ListObjectUIDs 列出文件夹内所有对象UID
func (b *IMAPBackend) ListObjectUIDs(ctx context.Context, folder string) ([]uint32, error) {
	return b.search(ctx, "search", folder, &imap.SearchCriteria{})
}

// SearchHeader 按邮件头搜索对象
func (b *IMAPBackend) SearchHeader(ctx context.Context, folder, header, value string) ([]uint32, error) {
	return b.search(ctx, "search_header", folder, &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: header, Value: value}},
	})
}

func (b *IMAPBackend) search(ctx context.Context, op, folder string, criteria *imap.SearchCriteria) ([]uint32, error) {
	var uids []uint32
	err := b.do(ctx, op, folder, func(c *imapclient.Client) error {
		if _, err := c.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return err
		}
		data, err := c.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return err
		}
		for _, uid := range data.AllUIDs() {
			uids = append(uids, uint32(uid))
		}
		return nil
	})
	return uids, err
}
