package storage

import (
	"fmt"
	"os"

	"foldermeta/internal/cache"
	"foldermeta/internal/models"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"

	"gopkg.in/yaml.v3"
)

// 预置查询集
const (
	PresetBasic = "basic"
	PresetHorde = "horde"
)

// 查询实现名称
const (
	ImplListCached      = "list.cached"
	ImplListLive        = "list.live"
	ImplACLCached       = "acl.cached"
	ImplACLLive         = "acl.live"
	ImplShareCached     = "share.cached"
	ImplShareLive       = "share.live"
	ImplActiveSyncLive  = "activesync.live"
	ImplPreferencesLive = "preferences.live"
	ImplHistoryCached   = "history.cached"
)

// ConfigError 查询集配置错误
type ConfigError struct {
	Reason string
	Value  string
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid query set configuration: %s %q", e.Reason, e.Value)
}

// ListParams 构造列表查询所需的参数
type ListParams struct {
	Backend providers.Backend
	Cache   *cache.ListCache
}

// DataParams 构造数据查询所需的参数
type DataParams struct {
	Backend     providers.Backend
	Cache       *cache.ListCache
	Recorder    query.HistoryRecorder
	SearchCache cache.Store
}

// implementation 一个查询实现的静态描述
type implementation struct {
	tag        query.Tag
	needsCache bool
	appliesTo  string // 数据查询适用的文件夹类型，空表示全部
	newList    func(list *List, params ListParams) query.Query
	newData    func(data *Data, params DataParams) query.Query
}

// implementations 标签到构造函数的静态注册表
var implementations = map[string]implementation{
	ImplListCached: {
		tag:        query.TagList,
		needsCache: true,
		newList: func(list *List, params ListParams) query.Query {
			index := query.NewCachedIndex(params.Backend, params.Cache)
			index.SetLoader(list.Synchronize)
			return index
		},
	},
	ImplListLive: {
		tag: query.TagList,
		newList: func(list *List, params ListParams) query.Query {
			return query.NewLiveIndex(params.Backend)
		},
	},
	ImplACLCached: {
		tag:        query.TagACL,
		needsCache: true,
		newList: func(list *List, params ListParams) query.Query {
			return query.NewCachedACL(params.Backend, list.User(), params.Cache)
		},
	},
	ImplACLLive: {
		tag: query.TagACL,
		newList: func(list *List, params ListParams) query.Query {
			return query.NewLiveACL(params.Backend, list.User())
		},
	},
	ImplShareCached: {
		tag:        query.TagShare,
		needsCache: true,
		newList: func(list *List, params ListParams) query.Query {
			return query.NewCachedShare(params.Backend, params.Cache)
		},
	},
	ImplShareLive: {
		tag: query.TagShare,
		newList: func(list *List, params ListParams) query.Query {
			return query.NewLiveShare(params.Backend)
		},
	},
	ImplActiveSyncLive: {
		tag: query.TagActiveSync,
		newList: func(list *List, params ListParams) query.Query {
			return query.NewLiveActiveSync(params.Backend)
		},
	},
	ImplPreferencesLive: {
		tag:       query.TagPreferences,
		appliesTo: models.FolderTypePreferences,
		newData: func(data *Data, params DataParams) query.Query {
			return query.NewLivePreferences(params.Backend, data.Folder(), params.SearchCache)
		},
	},
	ImplHistoryCached: {
		tag:        query.TagHistory,
		needsCache: true,
		newData: func(data *Data, params DataParams) query.Query {
			return query.NewCachedHistory(params.Backend, data.Folder(), params.Cache, params.Recorder)
		},
	},
}

// presets 预置查询集包含的标签
var presets = map[string]struct {
	list []query.Tag
	data []query.Tag
}{
	PresetBasic: {
		list: []query.Tag{query.TagList, query.TagACL},
	},
	PresetHorde: {
		list: []query.Tag{query.TagList, query.TagACL, query.TagShare},
		data: []query.Tag{query.TagPreferences, query.TagHistory},
	},
}

// defaultMapping 标签的默认实现
func defaultMapping(cached bool) map[query.Tag]string {
	mapping := map[query.Tag]string{
		query.TagList:        ImplListLive,
		query.TagACL:         ImplACLLive,
		query.TagShare:       ImplShareLive,
		query.TagActiveSync:  ImplActiveSyncLive,
		query.TagPreferences: ImplPreferencesLive,
		query.TagHistory:     ImplHistoryCached,
	}
	if cached {
		mapping[query.TagList] = ImplListCached
		mapping[query.TagACL] = ImplACLCached
		mapping[query.TagShare] = ImplShareCached
	}
	return mapping
}

// SetConfig 列表或数据查询集的配置
type SetConfig struct {
	Queries   []query.Tag          `yaml:"queries" json:"queries"`
	Overrides map[query.Tag]string `yaml:"overrides" json:"overrides"`
}

// QuerySetConfig 查询集配置
type QuerySetConfig struct {
	Preset string    `yaml:"preset" json:"preset"`
	List   SetConfig `yaml:"list" json:"list"`
	Data   SetConfig `yaml:"data" json:"data"`
}

// ParseQuerySetConfig 解析YAML格式的查询集配置
func ParseQuerySetConfig(data []byte) (QuerySetConfig, error) {
	var cfg QuerySetConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse query set configuration: %w", err)
	}
	return cfg, nil
}

// LoadQuerySetConfig 从文件读取查询集配置
func LoadQuerySetConfig(path string) (QuerySetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QuerySetConfig{}, fmt.Errorf("failed to read query set configuration: %w", err)
	}
	return ParseQuerySetConfig(data)
}

// binding 标签与实现的绑定
type binding struct {
	tag  query.Tag
	name string
	impl implementation
}

// QuerySet 解析完成的查询集
type QuerySet struct {
	list []binding
	data []binding
}

// NewQuerySet 解析配置，cached表示是否配置了缓存
func NewQuerySet(cfg QuerySetConfig, cached bool) (*QuerySet, error) {
	preset := cfg.Preset
	if preset == "" {
		preset = PresetBasic
	}
	tags, ok := presets[preset]
	if !ok {
		return nil, &ConfigError{Reason: "unknown preset", Value: preset}
	}

	list, err := resolve(tags.list, cfg.List, cached, func(impl implementation) bool { return impl.newList != nil })
	if err != nil {
		return nil, err
	}
	data, err := resolve(tags.data, cfg.Data, cached, func(impl implementation) bool { return impl.newData != nil })
	if err != nil {
		return nil, err
	}
	return &QuerySet{list: list, data: data}, nil
}

func resolve(preset []query.Tag, cfg SetConfig, cached bool, fits func(implementation) bool) ([]binding, error) {
	mapping := defaultMapping(cached)
	for tag, name := range cfg.Overrides {
		impl, ok := implementations[name]
		if !ok {
			return nil, &ConfigError{Reason: "unknown implementation", Value: name}
		}
		if impl.tag != tag {
			return nil, &ConfigError{Reason: "implementation does not serve tag " + string(tag), Value: name}
		}
		mapping[tag] = name
	}

	var bindings []binding
	seen := make(map[query.Tag]bool)
	for _, tag := range append(append([]query.Tag{}, preset...), cfg.Queries...) {
		if seen[tag] {
			continue
		}
		seen[tag] = true

		name, ok := mapping[tag]
		if !ok {
			return nil, &ConfigError{Reason: "no implementation mapped for tag", Value: string(tag)}
		}
		impl := implementations[name]
		if !fits(impl) {
			return nil, &ConfigError{Reason: "tag not available on this handle", Value: string(tag)}
		}
		if impl.needsCache && !cached {
			return nil, &ConfigError{Reason: "implementation requires a cache", Value: name}
		}
		bindings = append(bindings, binding{tag: tag, name: name, impl: impl})
	}
	return bindings, nil
}

// ListTags 列表查询集的标签
func (qs *QuerySet) ListTags() []query.Tag {
	return bindingTags(qs.list)
}

// DataTags 数据查询集的标签
func (qs *QuerySet) DataTags() []query.Tag {
	return bindingTags(qs.data)
}

// Implementation 标签绑定的实现名称
func (qs *QuerySet) Implementation(tag query.Tag) (string, bool) {
	for _, b := range append(append([]binding{}, qs.list...), qs.data...) {
		if b.tag == tag {
			return b.name, true
		}
	}
	return "", false
}

func bindingTags(bindings []binding) []query.Tag {
	tags := make([]query.Tag, 0, len(bindings))
	for _, b := range bindings {
		tags = append(tags, b.tag)
	}
	return tags
}

// AddListQuerySet 构造并注册列表查询
func (qs *QuerySet) AddListQuerySet(list *List, params ListParams) error {
	for _, b := range qs.list {
		if b.impl.needsCache && params.Cache == nil {
			return &ConfigError{Reason: "implementation requires a cache", Value: b.name}
		}
		list.RegisterQuery(b.tag, b.impl.newList(list, params))
	}
	return nil
}

// AddDataQuerySet 构造并注册适用于该文件夹类型的数据查询
func (qs *QuerySet) AddDataQuerySet(data *Data, params DataParams) error {
	for _, b := range qs.data {
		if b.impl.appliesTo != "" && b.impl.appliesTo != data.Type() {
			continue
		}
		if b.impl.needsCache && params.Cache == nil {
			return &ConfigError{Reason: "implementation requires a cache", Value: b.name}
		}
		data.RegisterQuery(b.tag, b.impl.newData(data, params))
	}
	return nil
}
