package providers

import (
	"sort"
	"strings"

	"foldermeta/internal/models"

	"golang.org/x/text/unicode/norm"
)

// Namespace 基于前缀匹配的命名空间解析器
type Namespace struct {
	user     string
	elements []NamespaceElement
}

// NewNamespace 创建命名空间解析器
func NewNamespace(user string, elements []NamespaceElement) *Namespace {
	sorted := make([]NamespaceElement, len(elements))
	copy(sorted, elements)
	// 最长前缀优先匹配
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})

	return &Namespace{
		user:     NormalizeUser(user),
		elements: sorted,
	}
}

// DefaultNamespace 标准Kolab命名空间布局
func DefaultNamespace(user string) *Namespace {
	return NewNamespace(user, []NamespaceElement{
		{Type: models.NamespacePersonal, Prefix: "", Delimiter: "/"},
		{Type: models.NamespaceOther, Prefix: "user/", Delimiter: "/"},
		{Type: models.NamespaceShared, Prefix: "shared/", Delimiter: "/"},
	})
}

// User 当前登录用户
func (n *Namespace) User() string {
	return n.user
}

// Elements 命名空间定义
func (n *Namespace) Elements() []NamespaceElement {
	return n.elements
}

// Match 文件夹所属的命名空间类型
func (n *Namespace) Match(folder string) models.NamespaceType {
	if element, ok := n.match(folder); ok {
		return element.Type
	}
	return models.NamespacePersonal
}

// Owner 文件夹所有者
func (n *Namespace) Owner(folder string) (string, bool) {
	element, ok := n.match(folder)
	if !ok {
		return n.user, true
	}

	switch element.Type {
	case models.NamespacePersonal:
		return n.user, true
	case models.NamespaceOther:
		return n.otherOwner(folder, element)
	default:
		return "", false
	}
}

func (n *Namespace) match(folder string) (NamespaceElement, bool) {
	if strings.EqualFold(folder, "INBOX") {
		for _, element := range n.elements {
			if element.Type == models.NamespacePersonal {
				return element, true
			}
		}
	}

	for _, element := range n.elements {
		if element.Prefix == "" {
			return element, true
		}
		bare := strings.TrimSuffix(element.Prefix, element.Delimiter)
		if folder == bare || strings.HasPrefix(folder, element.Prefix) {
			return element, true
		}
	}
	return NamespaceElement{}, false
}

func (n *Namespace) otherOwner(folder string, element NamespaceElement) (string, bool) {
	rest := strings.TrimPrefix(folder, element.Prefix)
	if element.Delimiter != "" {
		rest, _, _ = strings.Cut(rest, element.Delimiter)
	}
	if rest == "" {
		return "", false
	}

	owner := rest
	if !strings.Contains(owner, "@") {
		if _, domain, ok := strings.Cut(n.user, "@"); ok {
			owner += "@" + domain
		}
	}
	return NormalizeUser(owner), true
}

// NormalizeUser 用户名规范化（NFC）
func NormalizeUser(user string) string {
	return norm.NFC.String(user)
}

// SameUser 比较两个用户名是否相同
func SameUser(a, b string) bool {
	return NormalizeUser(a) == NormalizeUser(b)
}
