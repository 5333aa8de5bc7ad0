package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"foldermeta/internal/cache"
	"foldermeta/internal/config"
	"foldermeta/internal/database"
	"foldermeta/internal/middleware"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"
	"foldermeta/internal/services"
	"foldermeta/internal/storage"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
}

type testServer struct {
	router  *gin.Engine
	backend *providers.MemoryBackend
}

func setupTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	backend := providers.NewMemoryBackend("alice")
	backend.AddFolder("INBOX", "")
	backend.AddFolder("Calendar", "event.default")
	backend.AddFolder("Preferences", "h-prefs.default")
	backend.AddFolder("user/bob/Calendar", "event.default")
	backend.AddFolder("shared/Resources", "event")
	backend.AddObject("Preferences", 4, map[string]string{query.ApplicationHeader: "kronolith"})
	backend.AddObject("Calendar", 1, nil)
	backend.AddObject("Calendar", 2, nil)

	db, err := database.InitializeWithOptions(database.Options{Path: database.MemoryPath, LogLevel: logger.Silent})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	qs, err := storage.NewQuerySet(storage.QuerySetConfig{
		Preset: storage.PresetHorde,
		List:   storage.SetConfig{Queries: []query.Tag{query.TagActiveSync}},
	}, true)
	require.NoError(t, err)

	history := services.NewDatabaseHistoryService(db)
	s := storage.New(backend, cache.NewMemoryStore(0), qs, history)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.ActingUser(nil))
	New(config.Load(), s, history).RegisterRoutes(router)

	return &testServer{router: router, backend: backend}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, apiResponse) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w.Code, response
}

func decodeData(t *testing.T, response apiResponse, dest interface{}) {
	require.NoError(t, json.Unmarshal(response.Data, dest))
}

func TestHealthCheck(t *testing.T) {
	s := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "foldermeta")

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "imap", body["backend"])
	assert.Equal(t, "basic", body["preset"])
}

func TestFolderMetadataRoutes(t *testing.T) {
	s := setupTestServer(t)

	t.Run("同步", func(t *testing.T) {
		code, response := s.do(t, http.MethodPost, "/api/v1/folders/sync", nil)
		require.Equal(t, http.StatusOK, code)

		var result struct {
			User    string   `json:"user"`
			Queries []string `json:"queries"`
		}
		decodeData(t, response, &result)
		assert.Equal(t, "alice", result.User)
		assert.Equal(t, []string{"acl", "activesync", "list", "share"}, result.Queries)
	})

	t.Run("文件夹类型", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/types", nil)
		require.Equal(t, http.StatusOK, code)

		var types map[string]string
		decodeData(t, response, &types)
		assert.Equal(t, "mail", types["INBOX"])
		assert.Equal(t, "event", types["Calendar"])
		assert.Equal(t, "h-prefs", types["Preferences"])
	})

	t.Run("按类型列出", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/by-type/event", nil)
		require.Equal(t, http.StatusOK, code)

		var folders []string
		decodeData(t, response, &folders)
		assert.Equal(t, []string{"Calendar", "shared/Resources", "user/bob/Calendar"}, folders)
	})

	t.Run("所有者", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/owners", nil)
		require.Equal(t, http.StatusOK, code)

		var owners map[string]string
		decodeData(t, response, &owners)
		assert.Equal(t, "alice", owners["Calendar"])
		assert.Equal(t, "bob", owners["user/bob/Calendar"])
		assert.NotContains(t, owners, "shared/Resources")
	})

	t.Run("默认文件夹", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/defaults/event", nil)
		require.Equal(t, http.StatusOK, code)

		var result map[string]string
		decodeData(t, response, &result)
		assert.Equal(t, "Calendar", result["folder"])

		code, response = s.do(t, http.MethodGet, "/api/v1/folders/defaults/event?owner=bob", nil)
		require.Equal(t, http.StatusOK, code)
		decodeData(t, response, &result)
		assert.Equal(t, "user/bob/Calendar", result["folder"])
	})

	t.Run("默认文件夹不存在", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/defaults/note", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "NOT_FOUND", response.Code)
	})

	t.Run("默认文件夹冲突", func(t *testing.T) {
		s.backend.AddFolder("Calendar2", "event.default")
		defer s.backend.RemoveFolder("Calendar2")

		code, response := s.do(t, http.MethodPost, "/api/v1/folders/sync", nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "CONFLICT", response.Code)

		// 失败的同步不影响已有索引
		code, response = s.do(t, http.MethodGet, "/api/v1/folders/defaults/event", nil)
		require.Equal(t, http.StatusOK, code)
		var result map[string]string
		decodeData(t, response, &result)
		assert.Equal(t, "Calendar", result["folder"])
	})
}

func TestACLRoutes(t *testing.T) {
	s := setupTestServer(t)
	s.backend.SetMyRights("Calendar", "lrswipkxtea")

	t.Run("缺少文件夹参数", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/acl", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "VALIDATION_ERROR", response.Code)
	})

	t.Run("设置并读取完整ACL", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPut, "/api/v1/folders/acl?folder=Calendar", SetACLRequest{Principal: "bob", Rights: "lr"})
		require.Equal(t, http.StatusOK, code)

		code, response := s.do(t, http.MethodGet, "/api/v1/folders/acl?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)

		var result struct {
			Supported bool              `json:"supported"`
			ACL       map[string]string `json:"acl"`
		}
		decodeData(t, response, &result)
		assert.True(t, result.Supported)
		assert.Equal(t, "lr", result.ACL["bob"])
	})

	t.Run("自身权限", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/folders/acl?folder=Calendar&mode=my", nil)
		require.Equal(t, http.StatusOK, code)

		var result map[string]interface{}
		decodeData(t, response, &result)
		assert.Equal(t, "lrswipkxtea", result["rights"])
	})

	t.Run("删除ACL条目", func(t *testing.T) {
		code, _ := s.do(t, http.MethodDelete, "/api/v1/folders/acl?folder=Calendar&principal=bob", nil)
		require.Equal(t, http.StatusOK, code)

		code, response := s.do(t, http.MethodGet, "/api/v1/folders/acl?folder=Calendar&mode=all", nil)
		require.Equal(t, http.StatusOK, code)
		var result struct {
			ACL map[string]string `json:"acl"`
		}
		decodeData(t, response, &result)
		assert.NotContains(t, result.ACL, "bob")
	})

	t.Run("其他操作用户看不到登录用户的权限", func(t *testing.T) {
		s.backend.SetMyRights("user/bob/Calendar", "lrs")

		req := httptest.NewRequest(http.MethodGet, "/api/v1/folders/acl?folder=user/bob/Calendar", nil)
		req.Header.Set(middleware.ActingUserHeader, "mallory")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var response apiResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		var result struct {
			ACL map[string]string `json:"acl"`
		}
		decodeData(t, response, &result)
		assert.Empty(t, result.ACL)
	})

	t.Run("非法模式", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/v1/folders/acl?folder=Calendar&mode=other", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestShareAndActiveSyncRoutes(t *testing.T) {
	s := setupTestServer(t)

	t.Run("共享描述", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPut, "/api/v1/folders/share/description?folder=Calendar", SetDescriptionRequest{Description: "Team calendar"})
		require.Equal(t, http.StatusOK, code)

		code, response := s.do(t, http.MethodGet, "/api/v1/folders/share/description?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)
		var result map[string]string
		decodeData(t, response, &result)
		assert.Equal(t, "Team calendar", result["description"])
	})

	t.Run("共享参数", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPut, "/api/v1/folders/share/parameters?folder=Calendar", map[string]string{"color": "#ff0000"})
		require.Equal(t, http.StatusOK, code)

		code, response := s.do(t, http.MethodGet, "/api/v1/folders/share/parameters?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)
		var result struct {
			Parameters map[string]string `json:"parameters"`
		}
		decodeData(t, response, &result)
		assert.Equal(t, "#ff0000", result.Parameters["color"])
	})

	t.Run("ActiveSync设置", func(t *testing.T) {
		settings := query.ActiveSyncData{Devices: map[string]query.DeviceSettings{"phone": {Sync: 1}}}
		code, _ := s.do(t, http.MethodPut, "/api/v1/folders/activesync?folder=Calendar", settings)
		require.Equal(t, http.StatusOK, code)

		code, response := s.do(t, http.MethodGet, "/api/v1/folders/activesync?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)
		var result struct {
			ActiveSync query.ActiveSyncData `json:"activesync"`
		}
		decodeData(t, response, &result)
		assert.True(t, result.ActiveSync.Syncs("phone"))
		assert.False(t, result.ActiveSync.Syncs("tablet"))
	})

	t.Run("文件夹不存在", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPut, "/api/v1/folders/share/description?folder=Missing", SetDescriptionRequest{Description: "x"})
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestDataRoutes(t *testing.T) {
	s := setupTestServer(t)

	t.Run("应用偏好设置", func(t *testing.T) {
		code, response := s.do(t, http.MethodGet, "/api/v1/data/preferences/kronolith?folder=Preferences", nil)
		require.Equal(t, http.StatusOK, code)

		var result struct {
			UID uint32 `json:"uid"`
		}
		decodeData(t, response, &result)
		assert.Equal(t, uint32(4), result.UID)
	})

	t.Run("应用偏好设置不存在", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/v1/data/preferences/turba?folder=Preferences", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("非偏好文件夹没有偏好查询", func(t *testing.T) {
		code, _ := s.do(t, http.MethodGet, "/api/v1/data/preferences/kronolith?folder=Calendar", nil)
		assert.Equal(t, http.StatusNotImplemented, code)
	})

	t.Run("未知文件夹", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/v1/data/history/sync?folder=Missing", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("历史同步", func(t *testing.T) {
		code, _ := s.do(t, http.MethodPost, "/api/v1/data/history/sync?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)

		s.backend.RemoveObject("Calendar", 1)
		code, _ = s.do(t, http.MethodPost, "/api/v1/data/history/sync?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)

		code, response := s.do(t, http.MethodGet, "/api/v1/data/history?folder=Calendar", nil)
		require.Equal(t, http.StatusOK, code)
		var entries []struct {
			UID    uint32 `json:"uid"`
			Action string `json:"action"`
		}
		decodeData(t, response, &entries)
		assert.Len(t, entries, 3)
	})
}
