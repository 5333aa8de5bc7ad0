package query

import (
	"context"
	"errors"
	"testing"

	"foldermeta/internal/cache"
	"foldermeta/internal/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newACLBackend() *providers.MemoryBackend {
	backend := providers.NewMemoryBackend("alice")
	backend.AddFolder("Calendar", "event.default")
	backend.AddFolder("user/bob/Calendar", "event.default")
	backend.SetMyRights("Calendar", "lrswipkxtecda")
	backend.SetMyRights("user/bob/Calendar", "lrs")
	return backend
}

func TestHasAdminRight(t *testing.T) {
	assert.True(t, HasAdminRight("lrswipkxtecda"))
	assert.False(t, HasAdminRight("lrs"))
	assert.False(t, HasAdminRight(""))
}

func TestLiveACL_GetACL(t *testing.T) {
	ctx := context.Background()

	t.Run("非管理员只查询自身权限", func(t *testing.T) {
		backend := newACLBackend()
		acl := NewLiveACL(backend, "alice")

		result, err := acl.GetACL(ctx, "alice", "user/bob/Calendar")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"alice": "lrs"}, result)
		assert.Equal(t, 1, backend.Calls("myrights"))
		assert.Equal(t, 0, backend.Calls("getacl"))
	})

	t.Run("管理员读取完整ACL", func(t *testing.T) {
		backend := newACLBackend()
		acl := NewLiveACL(backend, "alice")
		require.NoError(t, acl.SetACL(ctx, "Calendar", "alice", "lrswipkxtecda"))
		require.NoError(t, acl.SetACL(ctx, "Calendar", "bob", "lr"))

		result, err := acl.GetACL(ctx, "", "Calendar")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"alice": "lrswipkxtecda", "bob": "lr"}, result)
		assert.Equal(t, 1, backend.Calls("myrights"))
		assert.Equal(t, 1, backend.Calls("getacl"))
	})

	t.Run("其他操作用户不继承登录用户的权限", func(t *testing.T) {
		backend := newACLBackend()
		acl := NewLiveACL(backend, "alice")

		result, err := acl.GetACL(ctx, "mallory", "user/bob/Calendar")
		require.NoError(t, err)
		assert.Empty(t, result)
		assert.Equal(t, 0, backend.Calls("getacl"))
	})

	t.Run("其他操作用户在管理员登录时读取完整ACL", func(t *testing.T) {
		backend := newACLBackend()
		acl := NewLiveACL(backend, "alice")
		require.NoError(t, acl.SetACL(ctx, "Calendar", "alice", "lrswipkxtecda"))
		require.NoError(t, acl.SetACL(ctx, "Calendar", "carol", "lrs"))

		result, err := acl.GetACL(ctx, "carol", "Calendar")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"alice": "lrswipkxtecda", "carol": "lrs"}, result)
		assert.Equal(t, 1, backend.Calls("getacl"))
	})

	t.Run("登录用户的等价写法", func(t *testing.T) {
		backend := providers.NewMemoryBackend("jos\u00e9")
		backend.AddFolder("Notes", "note.default")
		backend.SetMyRights("Notes", "lr")
		acl := NewLiveACL(backend, "jos\u00e9")

		result, err := acl.GetACL(ctx, "jose\u0301", "Notes")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"jose\u0301": "lr"}, result)
	})

	t.Run("不支持ACL", func(t *testing.T) {
		backend := newACLBackend()
		backend.SetACLSupport(false)
		acl := NewLiveACL(backend, "alice")

		result, err := acl.GetACL(ctx, "carol", "Calendar")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"carol": DefaultRights}, result)
		assert.Equal(t, 0, backend.Calls("myrights"))

		rights, err := acl.GetMyACL(ctx, "Calendar")
		require.NoError(t, err)
		assert.Equal(t, DefaultRights, rights)

		all, err := acl.GetAllACL(ctx, "Calendar")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"alice": DefaultRights}, all)

		err = acl.SetACL(ctx, "Calendar", "bob", "lr")
		var pe *providers.ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, providers.ErrorTypeUnsupported, pe.Type)
	})

	t.Run("文件夹不存在", func(t *testing.T) {
		acl := NewLiveACL(newACLBackend(), "alice")

		rights, err := acl.GetMyACL(ctx, "Missing")
		require.NoError(t, err)
		assert.Empty(t, rights)

		all, err := acl.GetAllACL(ctx, "Missing")
		require.NoError(t, err)
		assert.Empty(t, all)

		result, err := acl.GetACL(ctx, "", "Missing")
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("后端错误向上传递", func(t *testing.T) {
		backend := newACLBackend()
		backend.FailOn("myrights", errors.New("connection reset"))
		acl := NewLiveACL(backend, "alice")

		_, err := acl.GetACL(ctx, "", "Calendar")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestLiveACL_DeleteACL(t *testing.T) {
	ctx := context.Background()
	backend := newACLBackend()
	acl := NewLiveACL(backend, "alice")

	require.NoError(t, acl.SetACL(ctx, "Calendar", "bob", "lr"))
	require.NoError(t, acl.DeleteACL(ctx, "Calendar", "bob"))

	all, err := acl.GetAllACL(ctx, "Calendar")
	require.NoError(t, err)
	assert.NotContains(t, all, "bob")
}

func TestCachedACL(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(0)
	backend := newACLBackend()
	listCache := cache.NewListCache(store, cache.ListID(backend.Parameters()))
	acl := NewCachedACL(backend, "alice", listCache)

	require.NoError(t, acl.SetACL(ctx, "Calendar", "bob", "lr"))

	t.Run("重复读取使用缓存", func(t *testing.T) {
		backend.ResetCalls()
		for i := 0; i < 3; i++ {
			result, err := acl.GetACL(ctx, "", "Calendar")
			require.NoError(t, err)
			assert.Equal(t, "lr", result["bob"])
		}
		assert.Equal(t, 1, backend.Calls("myrights"))
		assert.Equal(t, 1, backend.Calls("getacl"))
		assert.Equal(t, 1, backend.Calls("capability"))
	})

	t.Run("缓存在新实例间共享", func(t *testing.T) {
		backend.ResetCalls()
		other := NewCachedACL(backend, "alice", listCache)
		result, err := other.GetACL(ctx, "", "Calendar")
		require.NoError(t, err)
		assert.Equal(t, "lr", result["bob"])
		assert.Equal(t, 0, backend.Calls("myrights"))
		assert.Equal(t, 0, backend.Calls("getacl"))
	})

	t.Run("写操作使文件夹失效", func(t *testing.T) {
		require.NoError(t, acl.SetACL(ctx, "Calendar", "bob", "lrs"))

		backend.ResetCalls()
		result, err := acl.GetACL(ctx, "", "Calendar")
		require.NoError(t, err)
		assert.Equal(t, "lrs", result["bob"])
		assert.Equal(t, 1, backend.Calls("getacl"))

		require.NoError(t, acl.DeleteACL(ctx, "Calendar", "bob"))
		result, err = acl.GetACL(ctx, "", "Calendar")
		require.NoError(t, err)
		assert.NotContains(t, result, "bob")
	})

	t.Run("非管理员不读取完整ACL", func(t *testing.T) {
		backend.ResetCalls()
		result, err := acl.GetACL(ctx, "alice", "user/bob/Calendar")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"alice": "lrs"}, result)
		assert.Equal(t, 0, backend.Calls("getacl"))
	})

	t.Run("其他操作用户不使用缓存的自身权限", func(t *testing.T) {
		result, err := acl.GetACL(ctx, "mallory", "user/bob/Calendar")
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("同步清空缓存", func(t *testing.T) {
		require.NoError(t, acl.Synchronize(ctx))
		_, ok, err := listCache.LoadRaw(ctx, keyACL)
		require.NoError(t, err)
		assert.False(t, ok)

		backend.ResetCalls()
		_, err = acl.GetMyACL(ctx, "Calendar")
		require.NoError(t, err)
		assert.Equal(t, 1, backend.Calls("myrights"))
		assert.Equal(t, 1, backend.Calls("capability"))
	})
}
