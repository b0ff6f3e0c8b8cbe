// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/pipeline"
	"docvault-go/internal/service"
	"docvault-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 来源由 CORS 中间件与 token 共同约束
		},
	}
)

// QueueHandler 负责拖放上传与上传队列相关的 API 请求。
type QueueHandler struct {
	pipeline      *pipeline.Pipeline
	folderService service.FolderService
	permService   service.PermissionService
	maxFileSize   int64
	// runCtx 是后台批量上传使用的上下文，服务停机时被取消。
	runCtx context.Context
}

// NewQueueHandler 创建一个新的 QueueHandler 实例。
func NewQueueHandler(runCtx context.Context, p *pipeline.Pipeline, folderService service.FolderService, permService service.PermissionService, maxFileSize int64) *QueueHandler {
	return &QueueHandler{
		pipeline:      p,
		folderService: folderService,
		permService:   permService,
		maxFileSize:   maxFileSize,
		runCtx:        runCtx,
	}
}

// checkTarget 校验上传目标文件夹存在且当前用户可访问，失败时写入响应并返回 false。
func (h *QueueHandler) checkTarget(c *gin.Context, folderID, op string) bool {
	if model.IsRootFolder(folderID) {
		respondError(c, op, model.NewValidationError("uploads must target a folder, not the root view"))
		return false
	}
	if _, err := h.folderService.Get(c.Request.Context(), folderID); err != nil {
		respondError(c, op, err)
		return false
	}
	return checkFolderAccess(c, h.permService, folderID, op)
}

// Drop 接收拖放到文件夹上的一组文件，全部入队后立即返回 202，上传在后台顺序执行。
func (h *QueueHandler) Drop(c *gin.Context) {
	folderID := c.Param("id")
	if !h.checkTarget(c, folderID, "DropFiles") {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "无效的 multipart 表单")
		return
	}
	var files []model.UploadFile
	for _, fh := range form.File["files"] {
		data, err := readFormFile(fh, h.maxFileSize)
		if err != nil {
			respondError(c, "DropFiles", err)
			return
		}
		files = append(files, model.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	batch, err := h.pipeline.EnqueueBatch(files, folderID, principalFromContext(c).ID)
	if err != nil {
		respondError(c, "DropFiles", err)
		return
	}
	// 快照必须在后台处理开始前取出，响应中的任务都是 pending。
	tasks := make([]model.UploadTask, 0, len(batch.TaskIDs))
	for _, id := range batch.TaskIDs {
		if t, ok := h.pipeline.Queue().Get(id); ok {
			tasks = append(tasks, t)
		}
	}
	go h.pipeline.RunBatch(h.runCtx, batch)

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "文件已加入上传队列",
		"data":    tasks,
	})
}

// Upload 同步上传单个文件并登记为文档，表单字段 title 缺省时使用文件名。
func (h *QueueHandler) Upload(c *gin.Context) {
	folderID := c.Param("id")
	if !h.checkTarget(c, folderID, "UploadFile") {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "缺少上传文件")
		return
	}
	data, err := readFormFile(fh, h.maxFileSize)
	if err != nil {
		respondError(c, "UploadFile", err)
		return
	}

	doc, err := h.pipeline.UploadOne(c.Request.Context(), pipeline.UploadRequest{
		File: model.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		},
		FolderID: folderID,
		Title:    c.PostForm("title"),
		Owner:    principalFromContext(c).ID,
	})
	if err != nil {
		respondError(c, "UploadFile", err)
		return
	}
	respondOK(c, "文件上传成功", doc)
}

// List 返回当前用户的上传队列。
func (h *QueueHandler) List(c *gin.Context) {
	respondOK(c, "获取上传队列成功", h.pipeline.Queue().Tasks(principalFromContext(c).ID))
}

// Clear 从队列中移除当前用户的一个已结束任务。
func (h *QueueHandler) Clear(c *gin.Context) {
	if err := h.pipeline.Queue().Clear(principalFromContext(c).ID, c.Param("id")); err != nil {
		respondError(c, "ClearUploadTask", err)
		return
	}
	respondOK(c, "任务已移除", nil)
}

// ClearFinished 移除当前用户所有已结束的任务。
func (h *QueueHandler) ClearFinished(c *gin.Context) {
	n := h.pipeline.Queue().ClearFinished(principalFromContext(c).ID)
	respondOK(c, "已结束的任务已移除", gin.H{"removed": n})
}

// Events 通过 WebSocket 推送当前用户任务的变化。连接建立后先发送一次完整快照。
func (h *QueueHandler) Events(c *gin.Context) {
	owner := principalFromContext(c).ID
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	events, cancel := h.pipeline.Queue().Subscribe(16)
	defer cancel()

	if err := conn.WriteJSON(gin.H{"kind": "snapshot", "tasks": h.pipeline.Queue().Tasks(owner)}); err != nil {
		log.Warnf("[QueueEvents] 发送队列快照失败: %v", err)
		return
	}

	// 客户端不发送业务消息，读循环只用于感知连接关闭。
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Task.OwnerID != owner {
				continue
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Warnf("[QueueEvents] 推送队列事件失败: %v", err)
				return
			}
		case <-closed:
			return
		case <-h.runCtx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
