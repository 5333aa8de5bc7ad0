package query

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"foldermeta/internal/metrics"
	"foldermeta/internal/models"
	"foldermeta/internal/providers"

	"github.com/cespare/xxhash/v2"
)

// 索引在缓存中的键名
const (
	keyTypes            = "types"
	keyByType           = "by_type"
	keyOwners           = "owners"
	keyDefaults         = "defaults"
	keyPersonalDefaults = "personal_defaults"
)

var indexKeys = []string{keyTypes, keyByType, keyOwners, keyDefaults, keyPersonalDefaults}

// IndexSnapshot 一次同步得到的派生索引
type IndexSnapshot struct {
	User             string                       `json:"user"`
	Types            map[string]string            `json:"types"`
	ByType           map[string][]string          `json:"by_type"`
	Owners           map[string]string            `json:"owners"`
	Defaults         map[string]map[string]string `json:"defaults"`
	PersonalDefaults map[string]string            `json:"personal_defaults"`
}

func newIndexSnapshot(user string) *IndexSnapshot {
	return &IndexSnapshot{
		User:             user,
		Types:            make(map[string]string),
		ByType:           make(map[string][]string),
		Owners:           make(map[string]string),
		Defaults:         make(map[string]map[string]string),
		PersonalDefaults: make(map[string]string),
	}
}

// BuildSnapshot 从后端完整计算派生索引
func BuildSnapshot(ctx context.Context, source providers.FolderSource) (*IndexSnapshot, error) {
	annotations, err := source.ListFolderTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder types: %w", err)
	}
	folders, err := source.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	resolver, err := source.Namespace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve namespace: %w", err)
	}

	// 没有类型注解的文件夹视为邮件文件夹
	parsed := make(map[string]models.FolderType, len(folders))
	for folder, raw := range annotations {
		parsed[folder] = models.ParseFolderType(raw)
	}
	for _, folder := range folders {
		if _, ok := parsed[folder]; !ok {
			parsed[folder] = models.ParseFolderType("")
		}
	}

	// 按路径排序，保证冲突报告和输出稳定
	typed := make([]string, 0, len(parsed))
	for folder := range parsed {
		typed = append(typed, folder)
	}
	sort.Strings(typed)

	snapshot := newIndexSnapshot(resolver.User())

	for _, folder := range typed {
		folderType := parsed[folder].Type
		snapshot.Types[folder] = folderType
		snapshot.ByType[folderType] = append(snapshot.ByType[folderType], folder)
	}

	for _, folder := range folders {
		if owner, ok := resolver.Owner(folder); ok {
			snapshot.Owners[folder] = owner
		}
	}

	for _, folder := range typed {
		folderType := parsed[folder]
		if !folderType.Default {
			continue
		}

		owner, _ := resolver.Owner(folder)
		if err := snapshot.addDefault(owner, folderType.Type, folder); err != nil {
			return nil, err
		}

		if resolver.Match(folder) == models.NamespacePersonal {
			if err := snapshot.addPersonalDefault(folderType.Type, folder); err != nil {
				return nil, err
			}
		}
	}

	return snapshot, nil
}

func (s *IndexSnapshot) addDefault(owner, folderType, folder string) error {
	defaults, ok := s.Defaults[owner]
	if !ok {
		defaults = make(map[string]string)
		s.Defaults[owner] = defaults
	}

	if existing, ok := defaults[folderType]; ok && existing != folder {
		metrics.DefaultConflict()
		return &ConflictError{Owner: owner, Type: folderType, Existing: existing, Conflicting: folder}
	}
	defaults[folderType] = folder
	return nil
}

func (s *IndexSnapshot) addPersonalDefault(folderType, folder string) error {
	if existing, ok := s.PersonalDefaults[folderType]; ok && existing != folder {
		metrics.DefaultConflict()
		return &ConflictError{Owner: s.User, Type: folderType, Existing: existing, Conflicting: folder, Personal: true}
	}
	s.PersonalDefaults[folderType] = folder
	return nil
}

// ListByType 指定类型的文件夹副本
func (s *IndexSnapshot) ListByType(folderType string) []string {
	folders := s.ByType[folderType]
	result := make([]string, len(folders))
	copy(result, folders)
	return result
}

// Default 操作用户的默认文件夹
func (s *IndexSnapshot) Default(actingUser, folderType string) (string, bool) {
	if actingUser == "" || providers.SameUser(actingUser, s.User) {
		folder, ok := s.PersonalDefaults[folderType]
		return folder, ok
	}
	return s.ForeignDefault(actingUser, folderType)
}

// ForeignDefault 指定所有者的默认文件夹
func (s *IndexSnapshot) ForeignDefault(owner, folderType string) (string, bool) {
	folder, ok := s.Defaults[providers.NormalizeUser(owner)][folderType]
	return folder, ok
}

// Generation 快照内容的哈希，相同内容得到相同结果
func (s *IndexSnapshot) Generation() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

func copyStrings(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// indexEnvelope 单个索引键的持久化格式
type indexEnvelope struct {
	Generation string          `json:"generation"`
	User       string          `json:"user"`
	Data       json.RawMessage `json:"data"`
}

// parts 按键名拆分快照
func (s *IndexSnapshot) parts() map[string]interface{} {
	return map[string]interface{}{
		keyTypes:            s.Types,
		keyByType:           s.ByType,
		keyOwners:           s.Owners,
		keyDefaults:         s.Defaults,
		keyPersonalDefaults: s.PersonalDefaults,
	}
}

// encodeSnapshot 编码为每个键一个信封
func encodeSnapshot(s *IndexSnapshot) (map[string][]byte, error) {
	generation, err := s.Generation()
	if err != nil {
		return nil, fmt.Errorf("failed to hash index snapshot: %w", err)
	}

	encoded := make(map[string][]byte, len(indexKeys))
	for key, part := range s.parts() {
		data, err := json.Marshal(part)
		if err != nil {
			return nil, fmt.Errorf("failed to encode index %s: %w", key, err)
		}
		envelope, err := json.Marshal(indexEnvelope{Generation: generation, User: s.User, Data: data})
		if err != nil {
			return nil, fmt.Errorf("failed to encode index %s: %w", key, err)
		}
		encoded[key] = envelope
	}
	return encoded, nil
}

// decodeSnapshot 从各键信封还原快照，代数不一致时返回false
func decodeSnapshot(raw map[string][]byte) (*IndexSnapshot, bool, error) {
	var generation string
	snapshot := newIndexSnapshot("")

	for i, key := range indexKeys {
		var envelope indexEnvelope
		if err := json.Unmarshal(raw[key], &envelope); err != nil {
			return nil, false, fmt.Errorf("failed to decode index %s: %w", key, err)
		}
		if i == 0 {
			generation = envelope.Generation
			snapshot.User = envelope.User
		} else if envelope.Generation != generation {
			return nil, false, nil
		}

		var target interface{}
		switch key {
		case keyTypes:
			target = &snapshot.Types
		case keyByType:
			target = &snapshot.ByType
		case keyOwners:
			target = &snapshot.Owners
		case keyDefaults:
			target = &snapshot.Defaults
		case keyPersonalDefaults:
			target = &snapshot.PersonalDefaults
		}
		if err := json.Unmarshal(envelope.Data, target); err != nil {
			return nil, false, fmt.Errorf("failed to decode index %s: %w", key, err)
		}
	}

	// 写入过程中断会留下不同代的键
	if actual, err := snapshot.Generation(); err != nil || actual != generation {
		return nil, false, nil
	}
	return snapshot, true, nil
}
