// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"docvault-go/internal/model"
	"docvault-go/internal/service"

	"github.com/gin-gonic/gin"
)

// FolderHandler 负责处理文件夹树与文件夹权限相关的 API 请求。
type FolderHandler struct {
	folderService service.FolderService
	permService   service.PermissionService
}

// NewFolderHandler 创建一个新的 FolderHandler 实例。
func NewFolderHandler(folderService service.FolderService, permService service.PermissionService) *FolderHandler {
	return &FolderHandler{folderService: folderService, permService: permService}
}

// CreateFolderRequest 定义了创建文件夹的请求体。
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	ScopeID  *string `json:"scope_id"`
}

// RenameFolderRequest 定义了重命名文件夹的请求体。
type RenameFolderRequest struct {
	Name string `json:"name"`
}

// SetPermissionRequest 定义了设置文件夹权限的请求体。
type SetPermissionRequest struct {
	IsPublic         bool     `json:"is_public"`
	AllowedUserIDs   []string `json:"allowed_user_ids"`
	AllowedDivisions []string `json:"allowed_divisions"`
}

// Create 处理创建文件夹的请求。
func (h *FolderHandler) Create(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	folder, err := h.folderService.Create(c.Request.Context(), req.Name, req.ParentID, req.ScopeID)
	if err != nil {
		respondError(c, "CreateFolder", err)
		return
	}
	respondOK(c, "文件夹创建成功", folder)
}

// List 列出子文件夹，只返回当前用户可访问的文件夹。
func (h *FolderHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	folders, err := h.folderService.ListChildren(ctx, optionalQuery(c, "parent_id"), optionalQuery(c, "scope_id"))
	if err != nil {
		respondError(c, "ListFolders", err)
		return
	}
	visible, err := h.permService.FilterAccessible(ctx, folders, principalFromContext(c))
	if err != nil {
		respondError(c, "ListFolders", err)
		return
	}
	respondOK(c, "获取文件夹列表成功", visible)
}

// Path 返回从根到指定文件夹的路径。
func (h *FolderHandler) Path(c *gin.Context) {
	path, err := h.folderService.Path(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "FolderPath", err)
		return
	}
	respondOK(c, "获取文件夹路径成功", path)
}

// Rename 处理重命名文件夹的请求。
func (h *FolderHandler) Rename(c *gin.Context) {
	var req RenameFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	folder, err := h.folderService.Rename(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, "RenameFolder", err)
		return
	}
	respondOK(c, "文件夹重命名成功", folder)
}

// Delete 处理删除文件夹的请求，非空文件夹返回 409。
func (h *FolderHandler) Delete(c *gin.Context) {
	if err := h.folderService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "DeleteFolder", err)
		return
	}
	respondOK(c, "文件夹删除成功", nil)
}

// GetPermission 返回文件夹的权限记录。
func (h *FolderHandler) GetPermission(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.folderService.Get(ctx, id); err != nil {
		respondError(c, "GetPermission", err)
		return
	}
	perm, err := h.permService.Get(ctx, id)
	if err != nil {
		respondError(c, "GetPermission", err)
		return
	}
	respondOK(c, "获取文件夹权限成功", perm)
}

// SetPermission 整体替换文件夹的权限记录。
func (h *FolderHandler) SetPermission(c *gin.Context) {
	var req SetPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	perm, err := h.permService.Set(c.Request.Context(), c.Param("id"), req.IsPublic, req.AllowedUserIDs, req.AllowedDivisions)
	if err != nil {
		respondError(c, "SetPermission", err)
		return
	}
	respondOK(c, "文件夹权限更新成功", perm)
}

// Access 返回当前用户能否访问该文件夹。
func (h *FolderHandler) Access(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if !model.IsRootFolder(id) {
		if _, err := h.folderService.Get(ctx, id); err != nil {
			respondError(c, "ResolveAccess", err)
			return
		}
	}
	allowed, err := h.permService.ResolveAccess(ctx, id, principalFromContext(c))
	if err != nil {
		respondError(c, "ResolveAccess", err)
		return
	}
	respondOK(c, "success", gin.H{"folder_id": id, "allowed": allowed})
}
