package handlers

import (
	"fmt"
	"net/http"

	"foldermeta/internal/config"
	"foldermeta/internal/middleware"
	"foldermeta/internal/services"
	"foldermeta/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler HTTP处理器
type Handler struct {
	config         *config.Config
	storage        *storage.Storage
	historyService services.HistoryService
}

// New 创建处理器实例，historyService为nil时不提供历史查询
func New(cfg *config.Config, store *storage.Storage, historyService services.HistoryService) *Handler {
	return &Handler{
		config:         cfg,
		storage:        store,
		historyService: historyService,
	}
}

// RegisterRoutes 注册API路由
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")

	folders := api.Group("/folders")
	{
		folders.POST("/sync", h.SyncFolders)
		folders.GET("/types", h.GetFolderTypes)
		folders.GET("/owners", h.GetFolderOwners)
		folders.GET("/by-type/:type", h.GetFoldersByType)
		folders.GET("/defaults/:type", h.GetDefaultFolder)

		folders.GET("/acl", h.GetACL)
		folders.PUT("/acl", h.SetACL)
		folders.DELETE("/acl", h.DeleteACL)

		folders.GET("/share/description", h.GetShareDescription)
		folders.PUT("/share/description", h.SetShareDescription)
		folders.GET("/share/parameters", h.GetShareParameters)
		folders.PUT("/share/parameters", h.SetShareParameters)

		folders.GET("/activesync", h.GetActiveSync)
		folders.PUT("/activesync", h.SetActiveSync)
	}

	data := api.Group("/data")
	{
		data.GET("/preferences/:app", h.GetApplicationPreferences)
		data.POST("/history/sync", h.SyncHistory)
		data.GET("/history", h.GetHistory)
	}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "foldermeta",
		"version": "1.0.0",
		"backend": h.config.Backend.Driver,
		"cache":   h.config.Cache.Driver,
		"preset":  h.config.QuerySet.Preset,
	})
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// respondWithError 返回错误响应
func (h *Handler) respondWithError(c *gin.Context, statusCode int, message string) {
	middleware.HandleError(c, fmt.Errorf("%s", message), statusCode)
}

// respondWithSuccess 返回成功响应
func (h *Handler) respondWithSuccess(c *gin.Context, data interface{}, message ...string) {
	response := SuccessResponse{
		Success: true,
		Data:    data,
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// bindJSON 绑定JSON请求体
func (h *Handler) bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.respondWithError(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// requireQuery 读取必需的查询参数
func (h *Handler) requireQuery(c *gin.Context, queryName string) (string, bool) {
	value := c.Query(queryName)
	if value == "" {
		middleware.HandleValidationError(c, queryName, "parameter is required")
		return "", false
	}
	return value, true
}

// parseIntQuery 解析int查询参数
func (h *Handler) parseIntQuery(c *gin.Context, queryName string, defaultValue int) int {
	queryStr := c.Query(queryName)
	if queryStr == "" {
		return defaultValue
	}

	var queryValue int
	if _, err := fmt.Sscanf(queryStr, "%d", &queryValue); err != nil {
		return defaultValue
	}

	return queryValue
}

// list 获取列表句柄，失败时写入错误响应
func (h *Handler) list(c *gin.Context) (*storage.List, bool) {
	list, err := h.storage.List(c.Request.Context())
	if err != nil {
		middleware.HandleQueryError(c, err)
		return nil, false
	}
	return list, true
}

// data 获取文件夹数据句柄，失败时写入错误响应
func (h *Handler) data(c *gin.Context) (*storage.Data, bool) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return nil, false
	}
	data, err := h.storage.Data(c.Request.Context(), folder)
	if err != nil {
		middleware.HandleQueryError(c, err)
		return nil, false
	}
	return data, true
}
