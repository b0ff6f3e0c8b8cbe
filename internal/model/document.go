package model

import "time"

// Document 对应于数据库中的 'documents' 表。
// 它引用一个外部存储的文件，并且同一时刻只属于一个文件夹（FolderID 为 nil 表示根目录）。
type Document struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FolderID  *string   `gorm:"type:varchar(36);index" json:"folderId"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	FileID    string    `gorm:"type:varchar(36);not null" json:"fileId"`
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// DownloadInfo 封装了一次性下载链接。
type DownloadInfo struct {
	DocumentID  string `json:"documentId"`
	Title       string `json:"title"`
	DownloadURL string `json:"download_url"`
}
