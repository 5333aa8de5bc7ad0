package storage

import (
	"context"
	"errors"
	"testing"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend() *providers.MemoryBackend {
	backend := providers.NewMemoryBackend("alice")
	backend.AddFolder("INBOX", "")
	backend.AddFolder("Calendar", "event.default")
	backend.AddFolder("Preferences", "h-prefs.default")
	backend.AddFolder("user/bob/Calendar", "event.default")
	backend.SetMyRights("Calendar", "lrswipkxtecda")
	backend.AddObject("Preferences", 4, map[string]string{query.ApplicationHeader: "kronolith"})
	return backend
}

func TestNewQuerySet(t *testing.T) {
	t.Run("basic预置", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{Preset: PresetBasic}, true)
		require.NoError(t, err)
		assert.Equal(t, []query.Tag{query.TagList, query.TagACL}, qs.ListTags())
		assert.Empty(t, qs.DataTags())
	})

	t.Run("basic预置加share", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{
			Preset: PresetBasic,
			List:   SetConfig{Queries: []query.Tag{query.TagShare}},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, []query.Tag{query.TagList, query.TagACL, query.TagShare}, qs.ListTags())
	})

	t.Run("默认使用basic", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{}, false)
		require.NoError(t, err)
		assert.Len(t, qs.ListTags(), 2)
	})

	t.Run("重复标签只注册一次", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{
			List: SetConfig{Queries: []query.Tag{query.TagACL, query.TagActiveSync}},
		}, true)
		require.NoError(t, err)
		assert.Equal(t, []query.Tag{query.TagList, query.TagACL, query.TagActiveSync}, qs.ListTags())
	})

	t.Run("horde预置", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{Preset: PresetHorde}, true)
		require.NoError(t, err)
		assert.Equal(t, []query.Tag{query.TagList, query.TagACL, query.TagShare}, qs.ListTags())
		assert.Equal(t, []query.Tag{query.TagPreferences, query.TagHistory}, qs.DataTags())
	})

	t.Run("有无缓存的默认实现", func(t *testing.T) {
		cached, err := NewQuerySet(QuerySetConfig{}, true)
		require.NoError(t, err)
		name, ok := cached.Implementation(query.TagList)
		assert.True(t, ok)
		assert.Equal(t, ImplListCached, name)

		live, err := NewQuerySet(QuerySetConfig{}, false)
		require.NoError(t, err)
		name, _ = live.Implementation(query.TagList)
		assert.Equal(t, ImplListLive, name)
	})

	t.Run("覆盖实现", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{
			List: SetConfig{Overrides: map[query.Tag]string{query.TagACL: ImplACLLive}},
		}, true)
		require.NoError(t, err)
		name, _ := qs.Implementation(query.TagACL)
		assert.Equal(t, ImplACLLive, name)
	})

	errorTests := []struct {
		name   string
		cfg    QuerySetConfig
		cached bool
		value  string
	}{
		{
			name:   "未知预置",
			cfg:    QuerySetConfig{Preset: "advanced"},
			cached: true,
			value:  "advanced",
		},
		{
			name:   "未映射的标签",
			cfg:    QuerySetConfig{List: SetConfig{Queries: []query.Tag{"quota"}}},
			cached: true,
			value:  "quota",
		},
		{
			name:   "未知实现",
			cfg:    QuerySetConfig{List: SetConfig{Overrides: map[query.Tag]string{query.TagList: "list.memcache"}}},
			cached: true,
			value:  "list.memcache",
		},
		{
			name:   "实现与标签不符",
			cfg:    QuerySetConfig{List: SetConfig{Overrides: map[query.Tag]string{query.TagList: ImplACLLive}}},
			cached: true,
			value:  ImplACLLive,
		},
		{
			name:   "数据标签用于列表",
			cfg:    QuerySetConfig{List: SetConfig{Queries: []query.Tag{query.TagHistory}}},
			cached: true,
			value:  string(query.TagHistory),
		},
		{
			name:   "缓存实现缺少缓存",
			cfg:    QuerySetConfig{List: SetConfig{Overrides: map[query.Tag]string{query.TagList: ImplListCached}}},
			cached: false,
			value:  ImplListCached,
		},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			qs, err := NewQuerySet(tt.cfg, tt.cached)
			assert.Nil(t, qs)

			var configErr *ConfigError
			require.True(t, errors.As(err, &configErr))
			assert.Equal(t, tt.value, configErr.Value)
		})
	}
}

func TestParseQuerySetConfig(t *testing.T) {
	cfg, err := ParseQuerySetConfig([]byte(`
preset: basic
list:
  queries: [share, activesync]
  overrides:
    acl: acl.live
data:
  queries: [history]
`))
	require.NoError(t, err)
	assert.Equal(t, PresetBasic, cfg.Preset)
	assert.Equal(t, []query.Tag{query.TagShare, query.TagActiveSync}, cfg.List.Queries)
	assert.Equal(t, ImplACLLive, cfg.List.Overrides[query.TagACL])
	assert.Equal(t, []query.Tag{query.TagHistory}, cfg.Data.Queries)

	_, err = ParseQuerySetConfig([]byte("preset: [unclosed"))
	assert.Error(t, err)
}

func TestHandle_Registration(t *testing.T) {
	list := NewList(map[string]string{"user": "alice"}, "alice")
	backend := newTestBackend()

	_, err := list.GetQuery(query.TagACL)
	assert.ErrorIs(t, err, query.ErrQueryNotRegistered)
	_, err = list.ACLQuery()
	assert.ErrorIs(t, err, query.ErrQueryNotRegistered)

	first := query.NewLiveACL(backend, "alice")
	second := query.NewLiveACL(backend, "alice")
	list.RegisterQuery(query.TagACL, first)
	list.RegisterQuery(query.TagACL, second)

	got, err := list.GetQuery(query.TagACL)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, []query.Tag{query.TagACL}, list.Tags())

	// 标签下注册了错误类型的查询
	list.RegisterQuery(query.TagList, second)
	_, err = list.MetadataQuery()
	assert.Error(t, err)
}

func TestAddListQuerySet(t *testing.T) {
	ctx := context.Background()

	t.Run("basic预置注册两个查询", func(t *testing.T) {
		backend := newTestBackend()
		qs, err := NewQuerySet(QuerySetConfig{Preset: PresetBasic}, true)
		require.NoError(t, err)

		list := NewList(backend.Parameters(), "alice")
		require.NoError(t, qs.AddListQuerySet(list, ListParams{
			Backend: backend,
			Cache:   cache.NewListCache(cache.NewMemoryStore(0), list.ID()),
		}))
		assert.Equal(t, []query.Tag{query.TagACL, query.TagList}, list.Tags())

		metadata, err := list.MetadataQuery()
		require.NoError(t, err)
		assert.IsType(t, &query.CachedIndex{}, metadata)

		_, err = list.ShareQuery()
		assert.ErrorIs(t, err, query.ErrQueryNotRegistered)
	})

	t.Run("缓存索引的加载器同步整个列表", func(t *testing.T) {
		backend := newTestBackend()
		qs, err := NewQuerySet(QuerySetConfig{Preset: PresetBasic}, true)
		require.NoError(t, err)

		store := cache.NewMemoryStore(0)
		list := NewList(backend.Parameters(), "alice")
		listCache := cache.NewListCache(store, list.ID())
		require.NoError(t, qs.AddListQuerySet(list, ListParams{Backend: backend, Cache: listCache}))

		acl, err := list.ACLQuery()
		require.NoError(t, err)
		_, err = acl.GetACL(ctx, "", "Calendar")
		require.NoError(t, err)
		_, ok, _ := listCache.LoadRaw(ctx, "acl")
		require.True(t, ok)

		metadata, err := list.MetadataQuery()
		require.NoError(t, err)
		folder, ok, err := metadata.GetDefault(ctx, "", "event")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Calendar", folder)

		// 同步会清空ACL缓存
		_, ok, _ = listCache.LoadRaw(ctx, "acl")
		assert.False(t, ok)
	})

	t.Run("缺少缓存", func(t *testing.T) {
		qs, err := NewQuerySet(QuerySetConfig{}, true)
		require.NoError(t, err)

		list := NewList(map[string]string{}, "alice")
		err = qs.AddListQuerySet(list, ListParams{Backend: newTestBackend()})
		var configErr *ConfigError
		assert.True(t, errors.As(err, &configErr))
	})
}

func TestAddDataQuerySet(t *testing.T) {
	backend := newTestBackend()
	qs, err := NewQuerySet(QuerySetConfig{Preset: PresetHorde}, true)
	require.NoError(t, err)

	list := NewList(backend.Parameters(), "alice")
	params := DataParams{
		Backend: backend,
		Cache:   cache.NewListCache(cache.NewMemoryStore(0), list.ID()),
	}

	t.Run("偏好文件夹", func(t *testing.T) {
		data := NewData(list, "Preferences", "h-prefs")
		require.NoError(t, qs.AddDataQuerySet(data, params))
		assert.Equal(t, []query.Tag{query.TagHistory, query.TagPreferences}, data.Tags())
	})

	t.Run("其他类型只有历史", func(t *testing.T) {
		data := NewData(list, "Calendar", "event")
		require.NoError(t, qs.AddDataQuerySet(data, params))
		assert.Equal(t, []query.Tag{query.TagHistory}, data.Tags())

		_, err := data.PreferencesQuery()
		assert.ErrorIs(t, err, query.ErrQueryNotRegistered)
	})
}

type countingRecorder struct {
	added int
}

func (r *countingRecorder) Record(ctx context.Context, listID, folder string, added, deleted []uint32) error {
	r.added += len(added)
	return nil
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend()
	qs, err := NewQuerySet(QuerySetConfig{Preset: PresetHorde}, true)
	require.NoError(t, err)
	recorder := &countingRecorder{}
	s := New(backend, cache.NewMemoryStore(0), qs, recorder)

	t.Run("列表句柄只创建一次", func(t *testing.T) {
		first, err := s.List(ctx)
		require.NoError(t, err)
		second, err := s.List(ctx)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, "alice", first.User())
		assert.Equal(t, cache.ListID(backend.Parameters()), first.ID())
	})

	t.Run("数据句柄按索引确定类型", func(t *testing.T) {
		data, err := s.Data(ctx, "Preferences")
		require.NoError(t, err)
		assert.Equal(t, "h-prefs", data.Type())

		prefs, err := data.PreferencesQuery()
		require.NoError(t, err)
		uid, ok, err := prefs.GetApplicationPreferences(ctx, "kronolith")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint32(4), uid)

		require.NoError(t, data.Synchronize(ctx))
		assert.Equal(t, 1, recorder.added)
	})

	t.Run("未知文件夹", func(t *testing.T) {
		_, err := s.Data(ctx, "Missing")
		assert.True(t, providers.IsNotFound(err))
	})

	t.Run("同步", func(t *testing.T) {
		backend.AddFolder("Tasks", "task.default")
		require.NoError(t, s.Synchronize(ctx))

		data, err := s.Data(ctx, "Tasks")
		require.NoError(t, err)
		assert.Equal(t, "task", data.Type())
	})

	t.Run("冲突使同步失败", func(t *testing.T) {
		backend.AddFolder("Calendar2", "event.default")
		defer backend.RemoveFolder("Calendar2")

		err := s.Synchronize(ctx)
		assert.True(t, query.IsConflict(err))
	})
}

func TestStorage_Uncached(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend()
	qs, err := NewQuerySet(QuerySetConfig{Preset: PresetBasic, List: SetConfig{Queries: []query.Tag{query.TagShare}}}, false)
	require.NoError(t, err)
	s := New(backend, nil, qs, nil)

	list, err := s.List(ctx)
	require.NoError(t, err)

	metadata, err := list.MetadataQuery()
	require.NoError(t, err)
	assert.IsType(t, &query.LiveIndex{}, metadata)

	share, err := list.ShareQuery()
	require.NoError(t, err)
	require.NoError(t, share.SetDescription(ctx, "Calendar", "Mine"))
	description, err := share.GetDescription(ctx, "Calendar")
	require.NoError(t, err)
	assert.Equal(t, "Mine", description)

	require.NoError(t, s.Synchronize(ctx))
}
