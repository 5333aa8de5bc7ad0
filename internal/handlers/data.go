package handlers

import (
	"net/http"

	"foldermeta/internal/middleware"

	"github.com/gin-gonic/gin"
)

// GetApplicationPreferences 查找应用偏好设置对象
func (h *Handler) GetApplicationPreferences(c *gin.Context) {
	data, ok := h.data(c)
	if !ok {
		return
	}
	preferences, err := data.PreferencesQuery()
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	application := c.Param("app")
	uid, found, err := preferences.GetApplicationPreferences(c.Request.Context(), application)
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}
	if !found {
		middleware.HandleNotFoundError(c, "preferences of application", application)
		return
	}

	h.respondWithSuccess(c, gin.H{
		"folder":      data.Folder(),
		"application": application,
		"uid":         uid,
	})
}

// SyncHistory 同步文件夹历史
func (h *Handler) SyncHistory(c *gin.Context) {
	data, ok := h.data(c)
	if !ok {
		return
	}
	history, err := data.HistoryQuery()
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	if err := history.Synchronize(c.Request.Context()); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": data.Folder(), "type": data.Type()}, "Folder history synchronized")
}

// GetHistory 获取文件夹历史记录
func (h *Handler) GetHistory(c *gin.Context) {
	if h.historyService == nil {
		h.respondWithError(c, http.StatusNotImplemented, "folder history is not enabled")
		return
	}
	data, ok := h.data(c)
	if !ok {
		return
	}

	limit := h.parseIntQuery(c, "limit", 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	entries, err := h.historyService.GetHistory(c.Request.Context(), data.List().ID(), data.Folder(), limit)
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, entries)
}
