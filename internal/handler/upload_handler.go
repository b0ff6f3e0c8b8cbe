// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"docvault-go/internal/model"
	"docvault-go/internal/service"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理上传协议相关的 API 请求（init / confirm / proxy）。
type UploadHandler struct {
	uploadService service.UploadService
	maxFileSize   int64
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{uploadService: uploadService, maxFileSize: maxFileSize}
}

// Init 为直传生成预签名 URL。
func (h *UploadHandler) Init(c *gin.Context) {
	var req model.InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	resp, err := h.uploadService.InitUpload(c.Request.Context(), req)
	if err != nil {
		respondError(c, "InitUpload", err)
		return
	}
	respondOK(c, "上传初始化成功", resp)
}

// Confirm 确认直传完成并返回文件 id。
func (h *UploadHandler) Confirm(c *gin.Context) {
	var req model.ConfirmUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "无效的请求负载")
		return
	}
	resp, err := h.uploadService.ConfirmUpload(c.Request.Context(), req)
	if err != nil {
		respondError(c, "ConfirmUpload", err)
		return
	}
	respondOK(c, "上传确认成功", resp)
}

// Proxy 接收 multipart 表单中的文件字节与元数据，由服务器写入存储。
func (h *UploadHandler) Proxy(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "缺少文件")
		return
	}
	data, err := readFormFile(fh, h.maxFileSize)
	if err != nil {
		respondError(c, "ProxyUpload", err)
		return
	}

	name := c.PostForm("original_name")
	if strings.TrimSpace(name) == "" {
		name = fh.Filename
	}
	contentType := c.PostForm("content_type")
	if contentType == "" {
		contentType = fh.Header.Get("Content-Type")
	}

	resp, err := h.uploadService.ProxyUpload(c.Request.Context(), model.ProxyUploadRequest{
		OriginalName: name,
		ContentType:  contentType,
		ContextIDs:   c.PostFormArray("context_ids"),
		CategoryID:   c.PostForm("category_id"),
		Data:         data,
	})
	if err != nil {
		respondError(c, "ProxyUpload", err)
		return
	}
	respondOK(c, "代理上传成功", resp)
}

// readFormFile 读取 multipart 文件内容，超过大小限制时返回 ValidationError。
func readFormFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && fh.Size > limit {
		return nil, model.NewValidationError("file %s is %d bytes, limit is %d", fh.Filename, fh.Size, limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
