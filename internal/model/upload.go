package model

import "time"

// StoredFile 对应于数据库中的 'stored_files' 表。
// 它记录了一次上传确认后得到的持久文件 id 与对象存储中的位置。
type StoredFile struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	ObjectKey      string    `gorm:"type:varchar(512);not null;uniqueIndex" json:"objectKey"`
	OriginalName   string    `gorm:"type:varchar(255);not null" json:"originalName"`
	ContentType    string    `gorm:"type:varchar(255)" json:"contentType"`
	SizeBytes      int64     `gorm:"not null" json:"sizeBytes"`
	ChecksumSHA256 string    `gorm:"type:varchar(64)" json:"checksumSha256"`
	CategoryID     string    `gorm:"type:varchar(64)" json:"categoryId"`
	ContextIDs     []string  `gorm:"type:json;serializer:json" json:"contextIds"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (StoredFile) TableName() string {
	return "stored_files"
}

// UploadSession 是 init 之后、confirm 之前保存在 Redis 中的待确认上传信息。
type UploadSession struct {
	Key          string   `json:"key"`
	OriginalName string   `json:"original_name"`
	ContentType  string   `json:"content_type"`
	ContextIDs   []string `json:"context_ids"`
	CategoryID   string   `json:"category_id"`
}

// InitUploadRequest 是 init-upload 接口的请求体。
type InitUploadRequest struct {
	OriginalName string   `json:"original_name"`
	ContentType  string   `json:"content_type"`
	ContextIDs   []string `json:"context_ids"`
	CategoryID   string   `json:"category_id"`
}

// InitUploadResponse 是 init-upload 接口的响应体，两个字段都是必填的。
type InitUploadResponse struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
}

// ConfirmUploadRequest 是 confirm-upload 接口的请求体。
type ConfirmUploadRequest struct {
	Key            string `json:"key"`
	SizeBytes      int64  `json:"size_bytes"`
	ChecksumSHA256 string `json:"checksum_sha256"`
	ContentType    string `json:"content_type"`
}

// FileIDResponse 是 confirm-upload 与 proxy-upload 共用的响应体。
type FileIDResponse struct {
	ID string `json:"id"`
}

// ProxyUploadRequest 是代理上传（回退路径）的请求，字节与元数据一起发送到应用服务器。
type ProxyUploadRequest struct {
	OriginalName string
	ContentType  string
	ContextIDs   []string
	CategoryID   string
	Data         []byte
}

// UploadStatus 表示单个上传任务的状态。
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadSuccess   UploadStatus = "success"
	UploadError     UploadStatus = "error"
)

// rank 用于判断状态只能前进不能后退。
func (s UploadStatus) rank() int {
	switch s {
	case UploadPending:
		return 0
	case UploadUploading:
		return 1
	case UploadSuccess, UploadError:
		return 2
	default:
		return -1
	}
}

// IsTerminal 判断状态是否为终态。
func (s UploadStatus) IsTerminal() bool {
	return s == UploadSuccess || s == UploadError
}

// CanTransition 判断 from → to 是否为合法的单调迁移。
// 合法序列只有 pending → uploading → success | error，终态只能从 uploading 到达。
// 同状态更新（仅刷新进度）只允许在 uploading 状态下发生。
func CanTransition(from, to UploadStatus) bool {
	if from.IsTerminal() || to.rank() < 0 {
		return false
	}
	if from == to {
		return from == UploadUploading
	}
	if to.IsTerminal() {
		return from == UploadUploading
	}
	return to.rank() > from.rank()
}

// UploadFile 是待上传文件的内容与元数据。
type UploadFile struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Size 返回文件字节数。
func (f UploadFile) Size() int64 {
	return int64(len(f.Data))
}

// UploadTask 描述一个文件在上传管道中的完整过程。
// OwnerID 是发起上传的用户，队列的查看与清理都按用户隔离。
type UploadTask struct {
	ID             string       `json:"id"`
	FileName       string       `json:"fileName"`
	ContentType    string       `json:"contentType"`
	SizeBytes      int64        `json:"sizeBytes"`
	TargetFolderID string       `json:"targetFolderId"`
	OwnerID        string       `json:"ownerId,omitempty"`
	Title          string       `json:"title,omitempty"`
	Status         UploadStatus `json:"status"`
	Progress       int          `json:"progress"`
	ErrorMessage   string       `json:"errorMessage,omitempty"`
	DocumentID     string       `json:"documentId,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
