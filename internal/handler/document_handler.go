// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"docvault-go/internal/model"
	"docvault-go/internal/service"
	"strings"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService  service.DocumentService
	permService service.PermissionService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService, permService service.PermissionService) *DocumentHandler {
	return &DocumentHandler{docService: docService, permService: permService}
}

// CreateDocumentRequest 定义了登记文档的请求体。
type CreateDocumentRequest struct {
	FolderID string `json:"folder_id"`
	Title    string `json:"title"`
	FileID   string `json:"file_id"`
}

// UpdateDocumentRequest 定义了更新文档标题或备注的请求体，缺省字段保持不变。
type UpdateDocumentRequest struct {
	Title *string `json:"title"`
	Notes *string `json:"notes"`
}

// MoveDocumentRequest 定义了移动文档的请求体，folder_id 为空表示移动到根目录。
type MoveDocumentRequest struct {
	FolderID *string `json:"folder_id"`
}

// Create 处理登记文档的请求。
func (h *DocumentHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	if !checkFolderAccess(c, h.permService, req.FolderID, "CreateDocument") {
		return
	}
	doc, err := h.docService.Create(c.Request.Context(), req.FolderID, req.Title, req.FileID)
	if err != nil {
		respondError(c, "CreateDocument", err)
		return
	}
	respondOK(c, "文档创建成功", doc)
}

// List 列出文件夹中的文档，folder_id 缺省或为 all 时列出根目录。
func (h *DocumentHandler) List(c *gin.Context) {
	folderID := optionalQuery(c, "folder_id")
	if folderID != nil && !checkFolderAccess(c, h.permService, *folderID, "ListDocuments") {
		return
	}
	docs, err := h.docService.ListByFolder(c.Request.Context(), folderID)
	if err != nil {
		respondError(c, "ListDocuments", err)
		return
	}
	respondOK(c, "获取文档列表成功", docs)
}

// Get 返回单个文档。
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, ok := h.documentWithAccess(c, c.Param("id"), "GetDocument")
	if !ok {
		return
	}
	respondOK(c, "获取文档成功", doc)
}

// documentWithAccess 读取文档并校验当前用户能否访问其所在文件夹。
// 根目录下的文档对所有人可见。
func (h *DocumentHandler) documentWithAccess(c *gin.Context, id, op string) (*model.Document, bool) {
	doc, err := h.docService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, op, err)
		return nil, false
	}
	if doc.FolderID != nil && !checkFolderAccess(c, h.permService, *doc.FolderID, op) {
		return nil, false
	}
	return doc, true
}

// Update 处理重命名文档或修改备注的请求。
func (h *DocumentHandler) Update(c *gin.Context) {
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	if req.Title == nil && req.Notes == nil {
		respondBadRequest(c, "title 与 notes 至少需要提供一个")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	if _, ok := h.documentWithAccess(c, id, "UpdateDocument"); !ok {
		return
	}
	var (
		doc *model.Document
		err error
	)
	if req.Title != nil {
		if doc, err = h.docService.Rename(ctx, id, *req.Title); err != nil {
			respondError(c, "RenameDocument", err)
			return
		}
	}
	if req.Notes != nil {
		if doc, err = h.docService.SetNotes(ctx, id, *req.Notes); err != nil {
			respondError(c, "SetDocumentNotes", err)
			return
		}
	}
	respondOK(c, "文档更新成功", doc)
}

// Move 处理移动文档的请求。
func (h *DocumentHandler) Move(c *gin.Context) {
	var req MoveDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	if _, ok := h.documentWithAccess(c, c.Param("id"), "MoveDocument"); !ok {
		return
	}
	if req.FolderID != nil {
		if target := strings.TrimSpace(*req.FolderID); target != "" && !checkFolderAccess(c, h.permService, target, "MoveDocument") {
			return
		}
	}
	doc, err := h.docService.Move(c.Request.Context(), c.Param("id"), req.FolderID)
	if err != nil {
		respondError(c, "MoveDocument", err)
		return
	}
	respondOK(c, "文档移动成功", doc)
}

// Delete 处理删除文档的请求，存储中的文件由后台异步清理。
func (h *DocumentHandler) Delete(c *gin.Context) {
	if _, ok := h.documentWithAccess(c, c.Param("id"), "DeleteDocument"); !ok {
		return
	}
	if err := h.docService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "DeleteDocument", err)
		return
	}
	respondOK(c, "文档删除成功", nil)
}

// Download 返回文档的临时下载链接。
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, ok := h.documentWithAccess(c, c.Param("id"), "DownloadDocument")
	if !ok {
		return
	}
	info, err := h.docService.DownloadURL(c.Request.Context(), doc.ID)
	if err != nil {
		respondError(c, "DownloadDocument", err)
		return
	}
	respondOK(c, "文件下载链接生成成功", info)
}

// checkFolderAccess 校验当前用户能否访问文件夹，无权限时写入 403 并返回 false。
func checkFolderAccess(c *gin.Context, permService service.PermissionService, folderID, op string) bool {
	allowed, err := permService.ResolveAccess(c.Request.Context(), folderID, principalFromContext(c))
	if err != nil {
		respondError(c, op, err)
		return false
	}
	if !allowed {
		respondError(c, op, &model.PermissionDeniedError{FolderID: folderID})
		return false
	}
	return true
}
