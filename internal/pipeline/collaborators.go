// Package pipeline 实现了文件上传管道：初始化、传输（直传失败时回退到代理）、确认与登记。
package pipeline

import (
	"context"
	"docvault-go/internal/model"
)

// UploadAPI 是上传协议的三个后端接口。
// 服务端进程内由 service.UploadService 实现，CLI 中由 apiclient.Client 通过 HTTP 实现。
type UploadAPI interface {
	InitUpload(ctx context.Context, req model.InitUploadRequest) (*model.InitUploadResponse, error)
	ConfirmUpload(ctx context.Context, req model.ConfirmUploadRequest) (*model.FileIDResponse, error)
	ProxyUpload(ctx context.Context, req model.ProxyUploadRequest) (*model.FileIDResponse, error)
}

// Transferer 把原始字节直接 PUT 到预签名 URL。
type Transferer interface {
	Put(ctx context.Context, url string, data []byte, headers map[string]string) error
}

// DocumentRegistrar 在文件上传完成后登记文档记录。
type DocumentRegistrar interface {
	Create(ctx context.Context, folderID, title, fileID string) (*model.Document, error)
}
