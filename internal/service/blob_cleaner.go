// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"docvault-go/internal/repository"
	"docvault-go/pkg/events"
	"docvault-go/pkg/log"
)

// BlobCleaner 消费文档删除事件，清理对象存储中不再被引用的文件。
// 失败次数记录在 Redis 中，达到上限后放弃并提交 offset。
type BlobCleaner struct {
	uploads     UploadService
	uploadRepo  repository.UploadRepository
	maxAttempts int64
}

// NewBlobCleaner 创建一个新的 BlobCleaner。
func NewBlobCleaner(uploads UploadService, uploadRepo repository.UploadRepository, maxAttempts int64) *BlobCleaner {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &BlobCleaner{uploads: uploads, uploadRepo: uploadRepo, maxAttempts: maxAttempts}
}

// Process 实现 kafka.EventProcessor。
func (c *BlobCleaner) Process(ctx context.Context, event events.DocumentEvent) (bool, error) {
	if event.Type != events.DocumentDeleted || event.FileID == "" {
		return true, nil
	}

	log.Infof("[BlobCleaner] 开始清理文件, documentID: %s, fileID: %s", event.DocumentID, event.FileID)
	err := c.uploads.RemoveFile(ctx, event.FileID)
	if err == nil {
		if rErr := c.uploadRepo.ResetCleanupAttempts(ctx, event.FileID); rErr != nil {
			log.Warnf("[BlobCleaner] 重置清理计数失败, fileID: %s, error: %v", event.FileID, rErr)
		}
		log.Infof("[BlobCleaner] 文件清理完成, fileID: %s", event.FileID)
		return true, nil
	}

	attempts, incrErr := c.uploadRepo.IncrCleanupAttempts(ctx, event.FileID)
	if incrErr != nil {
		log.Errorf("[BlobCleaner] 记录清理失败次数失败, fileID: %s, error: %v", event.FileID, incrErr)
		return false, err
	}
	if attempts >= c.maxAttempts {
		log.Errorf("[BlobCleaner] 清理失败次数达到上限 %d，放弃重试, fileID: %s, error: %v", c.maxAttempts, event.FileID, err)
		return true, err
	}
	log.Warnf("[BlobCleaner] 清理失败，等待重试 (%d/%d), fileID: %s, error: %v", attempts, c.maxAttempts, event.FileID, err)
	return false, err
}
