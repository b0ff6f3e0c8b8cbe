// Package service 包含了应用的业务逻辑层。
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"docvault-go/internal/config"
	"docvault-go/internal/model"
	"docvault-go/internal/repository"
	"docvault-go/pkg/log"
	"docvault-go/pkg/storage"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadService 接口定义了上传管道依赖的三个后端接口，以及下载和清理操作。
type UploadService interface {
	// InitUpload 为直传生成预签名 URL 和对象 key，并在 Redis 中保存待确认的会话。
	InitUpload(ctx context.Context, req model.InitUploadRequest) (*model.InitUploadResponse, error)
	// ConfirmUpload 校验直传结果并生成持久的文件 id。
	ConfirmUpload(ctx context.Context, req model.ConfirmUploadRequest) (*model.FileIDResponse, error)
	// ProxyUpload 是回退路径：字节经由应用服务器写入对象存储。
	ProxyUpload(ctx context.Context, req model.ProxyUploadRequest) (*model.FileIDResponse, error)
	DownloadURL(ctx context.Context, fileID string) (string, error)
	RemoveFile(ctx context.Context, fileID string) error
}

type uploadService struct {
	uploadRepo repository.UploadRepository
	store      storage.BlobStore
	uploadCfg  config.UploadConfig
	presignTTL time.Duration
	now        func() time.Time
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(uploadRepo repository.UploadRepository, store storage.BlobStore, uploadCfg config.UploadConfig, minioCfg config.MinIOConfig) UploadService {
	return &uploadService{
		uploadRepo: uploadRepo,
		store:      store,
		uploadCfg:  uploadCfg,
		presignTTL: minioCfg.PresignExpiry(),
		now:        time.Now,
	}
}

func (s *uploadService) InitUpload(ctx context.Context, req model.InitUploadRequest) (*model.InitUploadResponse, error) {
	name, err := requireText("original name", req.OriginalName, MaxDocumentTitleLength)
	if err != nil {
		return nil, err
	}
	log.Infof("[InitUpload] 开始初始化直传, 文件名: %s", name)

	key := objectKey(name)
	uploadURL, err := s.store.PresignedPutURL(ctx, key, s.presignTTL)
	if err != nil {
		log.Errorf("[InitUpload] 生成预签名 URL 失败, key: %s, error: %v", key, err)
		return nil, err
	}

	session := &model.UploadSession{
		Key:          key,
		OriginalName: name,
		ContentType:  resolveContentType(name, req.ContentType),
		ContextIDs:   req.ContextIDs,
		CategoryID:   s.categoryOrDefault(req.CategoryID),
	}
	if err := s.uploadRepo.SaveSession(ctx, session, s.uploadCfg.SessionTTL); err != nil {
		log.Errorf("[InitUpload] 保存上传会话到 Redis 失败, key: %s, error: %v", key, err)
		return nil, err
	}

	log.Infof("[InitUpload] 直传初始化成功, key: %s", key)
	return &model.InitUploadResponse{UploadURL: uploadURL, Key: key}, nil
}

func (s *uploadService) ConfirmUpload(ctx context.Context, req model.ConfirmUploadRequest) (*model.FileIDResponse, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, model.NewValidationError("key must not be blank")
	}
	log.Infof("[ConfirmUpload] 开始确认直传, key: %s, 声明大小: %d", key, req.SizeBytes)

	session, err := s.uploadRepo.GetSession(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			log.Warnf("[ConfirmUpload] 上传会话不存在或已过期, key: %s", key)
			return nil, model.NewNotFoundError("upload session", key)
		}
		return nil, err
	}

	actual, err := s.store.Stat(ctx, key)
	if err != nil {
		log.Warnf("[ConfirmUpload] 对象存储中找不到已上传的对象, key: %s, error: %v", key, err)
		return nil, model.NewNotFoundError("uploaded object", key)
	}
	if actual != req.SizeBytes {
		log.Warnf("[ConfirmUpload] 声明大小与实际大小不一致, key: %s, 声明: %d, 实际: %d", key, req.SizeBytes, actual)
		return nil, model.NewValidationError("declared size %d does not match stored size %d", req.SizeBytes, actual)
	}
	if err := s.checkSize(actual); err != nil {
		_ = s.store.Remove(ctx, key)
		return nil, err
	}

	contentType := session.ContentType
	if ct := strings.TrimSpace(req.ContentType); ct != "" {
		contentType = ct
	}
	file := &model.StoredFile{
		ID:             uuid.NewString(),
		ObjectKey:      key,
		OriginalName:   session.OriginalName,
		ContentType:    contentType,
		SizeBytes:      actual,
		ChecksumSHA256: strings.ToLower(strings.TrimSpace(req.ChecksumSHA256)),
		CategoryID:     session.CategoryID,
		ContextIDs:     session.ContextIDs,
		CreatedAt:      s.now(),
	}
	if err := s.uploadRepo.CreateStoredFile(ctx, file); err != nil {
		log.Errorf("[ConfirmUpload] 创建文件记录失败, key: %s, error: %v", key, err)
		return nil, err
	}
	if err := s.uploadRepo.DeleteSession(ctx, key); err != nil {
		log.Warnf("[ConfirmUpload] 删除上传会话失败, key: %s, error: %v", key, err)
	}

	log.Infof("[ConfirmUpload] 直传确认成功, 文件ID: %s", file.ID)
	return &model.FileIDResponse{ID: file.ID}, nil
}

func (s *uploadService) ProxyUpload(ctx context.Context, req model.ProxyUploadRequest) (*model.FileIDResponse, error) {
	name, err := requireText("original name", req.OriginalName, MaxDocumentTitleLength)
	if err != nil {
		return nil, err
	}
	size := int64(len(req.Data))
	if err := s.checkSize(size); err != nil {
		return nil, err
	}
	log.Infof("[ProxyUpload] 开始代理上传, 文件名: %s, 大小: %d", name, size)

	key := objectKey(name)
	contentType := resolveContentType(name, req.ContentType)
	if err := s.store.Put(ctx, key, bytes.NewReader(req.Data), size, contentType); err != nil {
		log.Errorf("[ProxyUpload] 写入对象存储失败, key: %s, error: %v", key, err)
		return nil, err
	}

	sum := sha256.Sum256(req.Data)
	file := &model.StoredFile{
		ID:             uuid.NewString(),
		ObjectKey:      key,
		OriginalName:   name,
		ContentType:    contentType,
		SizeBytes:      size,
		ChecksumSHA256: hex.EncodeToString(sum[:]),
		CategoryID:     s.categoryOrDefault(req.CategoryID),
		ContextIDs:     req.ContextIDs,
		CreatedAt:      s.now(),
	}
	if err := s.uploadRepo.CreateStoredFile(ctx, file); err != nil {
		log.Errorf("[ProxyUpload] 创建文件记录失败, key: %s, error: %v", key, err)
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			log.Warnf("[ProxyUpload] 回滚对象失败, key: %s, error: %v", key, rmErr)
		}
		return nil, err
	}

	log.Infof("[ProxyUpload] 代理上传成功, 文件ID: %s", file.ID)
	return &model.FileIDResponse{ID: file.ID}, nil
}

// DownloadURL 返回文件的预签名下载链接。
func (s *uploadService) DownloadURL(ctx context.Context, fileID string) (string, error) {
	file, err := s.uploadRepo.FindStoredFile(ctx, fileID)
	if err != nil {
		return "", notFoundOr(err, "file", fileID)
	}
	return s.store.PresignedGetURL(ctx, file.ObjectKey, s.presignTTL)
}

// RemoveFile 删除对象与文件记录。记录已不存在时视为成功。
func (s *uploadService) RemoveFile(ctx context.Context, fileID string) error {
	file, err := s.uploadRepo.FindStoredFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := s.store.Remove(ctx, file.ObjectKey); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", file.ObjectKey, err)
	}
	return s.uploadRepo.DeleteStoredFile(ctx, fileID)
}

func (s *uploadService) checkSize(size int64) error {
	limit := s.uploadCfg.MaxFileSize()
	if limit > 0 && size > limit {
		return model.NewValidationError("file size %d exceeds limit %d", size, limit)
	}
	return nil
}

func (s *uploadService) categoryOrDefault(categoryID string) string {
	if c := strings.TrimSpace(categoryID); c != "" {
		return c
	}
	return s.uploadCfg.CategoryID
}

// objectKey 生成对象存储 key：uploads/<uuid>/<文件名>。
func objectKey(originalName string) string {
	name := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == ".." {
		name = "file"
	}
	return "uploads/" + uuid.NewString() + "/" + name
}

// resolveContentType 优先使用调用方声明的类型，否则根据扩展名推断。
func resolveContentType(name, declared string) string {
	if ct := strings.TrimSpace(declared); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
