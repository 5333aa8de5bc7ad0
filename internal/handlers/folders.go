package handlers

import (
	"log"
	"time"

	"foldermeta/internal/middleware"
	"foldermeta/internal/query"

	"github.com/gin-gonic/gin"
)

// SyncFolders 同步列表句柄，重新计算全部索引
func (h *Handler) SyncFolders(c *gin.Context) {
	start := time.Now()
	if err := h.storage.Synchronize(c.Request.Context()); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	list, ok := h.list(c)
	if !ok {
		return
	}

	log.Printf("Folder list %s synchronized in %v", list.ID(), time.Since(start))
	h.respondWithSuccess(c, gin.H{
		"list_id":  list.ID(),
		"user":     list.User(),
		"queries":  list.Tags(),
		"duration": time.Since(start).String(),
	}, "Folder list synchronized")
}

// metadata 获取元数据查询，失败时写入错误响应
func (h *Handler) metadata(c *gin.Context) (query.MetadataQuery, bool) {
	list, ok := h.list(c)
	if !ok {
		return nil, false
	}
	metadata, err := list.MetadataQuery()
	if err != nil {
		middleware.HandleQueryError(c, err)
		return nil, false
	}
	return metadata, true
}

// GetFolderTypes 获取文件夹类型映射
func (h *Handler) GetFolderTypes(c *gin.Context) {
	metadata, ok := h.metadata(c)
	if !ok {
		return
	}

	types, err := metadata.ListTypes(c.Request.Context())
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, types)
}

// GetFolderOwners 获取文件夹所有者映射
func (h *Handler) GetFolderOwners(c *gin.Context) {
	metadata, ok := h.metadata(c)
	if !ok {
		return
	}

	owners, err := metadata.ListOwners(c.Request.Context())
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, owners)
}

// GetFoldersByType 获取指定类型的文件夹
func (h *Handler) GetFoldersByType(c *gin.Context) {
	metadata, ok := h.metadata(c)
	if !ok {
		return
	}

	folders, err := metadata.ListByType(c.Request.Context(), c.Param("type"))
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, folders)
}

// GetDefaultFolder 获取默认文件夹，指定owner时查询该所有者的默认文件夹
func (h *Handler) GetDefaultFolder(c *gin.Context) {
	metadata, ok := h.metadata(c)
	if !ok {
		return
	}

	folderType := c.Param("type")
	owner, foreign := c.GetQuery("owner")

	var (
		folder string
		found  bool
		err    error
	)
	if foreign {
		folder, found, err = metadata.GetForeignDefault(c.Request.Context(), owner, folderType)
	} else {
		owner = middleware.GetActingUser(c)
		folder, found, err = metadata.GetDefault(c.Request.Context(), owner, folderType)
	}
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}
	if !found {
		middleware.HandleNotFoundError(c, "default "+folderType+" folder", owner)
		return
	}

	h.respondWithSuccess(c, gin.H{
		"owner":  owner,
		"type":   folderType,
		"folder": folder,
	})
}

// aclQuery 获取ACL查询，失败时写入错误响应
func (h *Handler) aclQuery(c *gin.Context) (query.ACLQuery, bool) {
	list, ok := h.list(c)
	if !ok {
		return nil, false
	}
	acl, err := list.ACLQuery()
	if err != nil {
		middleware.HandleQueryError(c, err)
		return nil, false
	}
	return acl, true
}

// GetACL 获取文件夹ACL，mode为my、all或effective（默认）
func (h *Handler) GetACL(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	acl, ok := h.aclQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	mode := c.DefaultQuery("mode", "effective")
	response := gin.H{
		"folder":    folder,
		"mode":      mode,
		"supported": acl.HasACLSupport(ctx),
	}

	switch mode {
	case "my":
		rights, err := acl.GetMyACL(ctx, folder)
		if err != nil {
			middleware.HandleQueryError(c, err)
			return
		}
		response["rights"] = rights
	case "all":
		rights, err := acl.GetAllACL(ctx, folder)
		if err != nil {
			middleware.HandleQueryError(c, err)
			return
		}
		response["acl"] = rights
	case "effective":
		rights, err := acl.GetACL(ctx, middleware.GetActingUser(c), folder)
		if err != nil {
			middleware.HandleQueryError(c, err)
			return
		}
		response["acl"] = rights
	default:
		middleware.HandleValidationError(c, "mode", "must be one of my, all, effective")
		return
	}

	h.respondWithSuccess(c, response)
}

// SetACLRequest 设置ACL请求
type SetACLRequest struct {
	Principal string `json:"principal" binding:"required"`
	Rights    string `json:"rights" binding:"required"`
}

// SetACL 设置文件夹ACL
func (h *Handler) SetACL(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	var req SetACLRequest
	if !h.bindJSON(c, &req) {
		return
	}
	acl, ok := h.aclQuery(c)
	if !ok {
		return
	}

	if err := acl.SetACL(c.Request.Context(), folder, req.Principal, req.Rights); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "principal": req.Principal, "rights": req.Rights}, "ACL updated")
}

// DeleteACL 删除文件夹ACL条目
func (h *Handler) DeleteACL(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	principal, ok := h.requireQuery(c, "principal")
	if !ok {
		return
	}
	acl, ok := h.aclQuery(c)
	if !ok {
		return
	}

	if err := acl.DeleteACL(c.Request.Context(), folder, principal); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "principal": principal}, "ACL entry deleted")
}

// shareQuery 获取共享查询，失败时写入错误响应
func (h *Handler) shareQuery(c *gin.Context) (query.ShareQuery, bool) {
	list, ok := h.list(c)
	if !ok {
		return nil, false
	}
	share, err := list.ShareQuery()
	if err != nil {
		middleware.HandleQueryError(c, err)
		return nil, false
	}
	return share, true
}

// GetShareDescription 获取共享描述
func (h *Handler) GetShareDescription(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	share, ok := h.shareQuery(c)
	if !ok {
		return
	}

	description, err := share.GetDescription(c.Request.Context(), folder)
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "description": description})
}

// SetDescriptionRequest 设置共享描述请求
type SetDescriptionRequest struct {
	Description string `json:"description"`
}

// SetShareDescription 设置共享描述
func (h *Handler) SetShareDescription(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	var req SetDescriptionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	share, ok := h.shareQuery(c)
	if !ok {
		return
	}

	if err := share.SetDescription(c.Request.Context(), folder, req.Description); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "description": req.Description}, "Share description updated")
}

// GetShareParameters 获取共享参数
func (h *Handler) GetShareParameters(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	share, ok := h.shareQuery(c)
	if !ok {
		return
	}

	parameters, err := share.GetParameters(c.Request.Context(), folder)
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "parameters": parameters})
}

// SetShareParameters 设置共享参数，请求体为参数映射
func (h *Handler) SetShareParameters(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	var parameters map[string]string
	if !h.bindJSON(c, &parameters) {
		return
	}
	share, ok := h.shareQuery(c)
	if !ok {
		return
	}

	if err := share.SetParameters(c.Request.Context(), folder, parameters); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "parameters": parameters}, "Share parameters updated")
}

// activeSyncQuery 获取ActiveSync查询，失败时写入错误响应
func (h *Handler) activeSyncQuery(c *gin.Context) (query.ActiveSyncQuery, bool) {
	list, ok := h.list(c)
	if !ok {
		return nil, false
	}
	activeSync, err := list.ActiveSyncQuery()
	if err != nil {
		middleware.HandleQueryError(c, err)
		return nil, false
	}
	return activeSync, true
}

// GetActiveSync 获取文件夹的设备同步设置
func (h *Handler) GetActiveSync(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	activeSync, ok := h.activeSyncQuery(c)
	if !ok {
		return
	}

	data, err := activeSync.GetActiveSync(c.Request.Context(), folder)
	if err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "activesync": data})
}

// SetActiveSync 设置文件夹的设备同步设置
func (h *Handler) SetActiveSync(c *gin.Context) {
	folder, ok := h.requireQuery(c, "folder")
	if !ok {
		return
	}
	var data query.ActiveSyncData
	if !h.bindJSON(c, &data) {
		return
	}
	activeSync, ok := h.activeSyncQuery(c)
	if !ok {
		return
	}

	if err := activeSync.SetActiveSync(c.Request.Context(), folder, &data); err != nil {
		middleware.HandleQueryError(c, err)
		return
	}

	h.respondWithSuccess(c, gin.H{"folder": folder, "activesync": data}, "ActiveSync settings updated")
}
