package models

import "strings"

// FolderTypeAnnotation 文件夹类型注解的键名
const FolderTypeAnnotation = "/shared/vendor/kolab/folder-type"

// 文件夹类型常量
const (
	FolderTypeMail          = "mail"
	FolderTypeEvent         = "event"
	FolderTypeContact       = "contact"
	FolderTypeNote          = "note"
	FolderTypeTask          = "task"
	FolderTypeJournal       = "journal"
	FolderTypeConfiguration = "configuration"
	FolderTypeFreebusy      = "freebusy"
	FolderTypeFile          = "file"
	FolderTypePreferences   = "h-prefs"
	FolderTypeLedger        = "h-ledger"
)

// 文件夹子类型常量
const (
	FolderSubtypeDefault     = "default"
	FolderSubtypeInbox       = "inbox"
	FolderSubtypeSentItems   = "sentitems"
	FolderSubtypeDrafts      = "drafts"
	FolderSubtypeWasteBasket = "wastebasket"
	FolderSubtypeJunkEmail   = "junkemail"
	FolderSubtypeOutbox      = "outbox"
)

// FolderType 解析后的文件夹类型注解
type FolderType struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Default bool   `json:"default"`
}

// ParseFolderType 解析 "<type>[.<subtype>]" 格式的注解值
func ParseFolderType(raw string) FolderType {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FolderType{Type: FolderTypeMail}
	}

	typ, subtype, _ := strings.Cut(raw, ".")
	if typ == "" {
		typ = FolderTypeMail
	}

	return FolderType{
		Type:    typ,
		Subtype: subtype,
		Default: subtype == FolderSubtypeDefault,
	}
}

// String 还原为注解格式
func (t FolderType) String() string {
	if t.Subtype == "" {
		return t.Type
	}
	return t.Type + "." + t.Subtype
}

// IsGroupware 检查是否为非邮件类型的文件夹
func (t FolderType) IsGroupware() bool {
	return t.Type != FolderTypeMail
}

// NamespaceType 命名空间类型
type NamespaceType string

const (
	NamespacePersonal NamespaceType = "personal"
	NamespaceOther    NamespaceType = "other"
	NamespaceShared   NamespaceType = "shared"
)
