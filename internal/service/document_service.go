// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/repository"
	"docvault-go/pkg/events"
	"docvault-go/pkg/log"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	// Create 在一个真实存在的文件夹中登记文档，根视图不允许直接创建。
	Create(ctx context.Context, folderID, title, fileID string) (*model.Document, error)
	Get(ctx context.Context, documentID string) (*model.Document, error)
	Rename(ctx context.Context, documentID, newTitle string) (*model.Document, error)
	SetNotes(ctx context.Context, documentID, notes string) (*model.Document, error)
	// Move 把文档移动到目标文件夹，targetFolderID 为 nil 表示移动到根目录。
	Move(ctx context.Context, documentID string, targetFolderID *string) (*model.Document, error)
	Delete(ctx context.Context, documentID string) error
	ListByFolder(ctx context.Context, folderID *string) ([]model.Document, error)
	CountByFolder(ctx context.Context, folderID string) (int64, error)
	// DownloadURL 返回文档对应文件的临时下载链接。
	DownloadURL(ctx context.Context, documentID string) (*model.DownloadInfo, error)
}

// FileLinker 根据文件 id 生成下载链接，UploadService 实现了该接口。
type FileLinker interface {
	DownloadURL(ctx context.Context, fileID string) (string, error)
}

type documentService struct {
	docRepo    repository.DocumentRepository
	folderRepo repository.FolderRepository
	files      FileLinker
	publisher  events.Publisher
	now        func() time.Time
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(docRepo repository.DocumentRepository, folderRepo repository.FolderRepository, files FileLinker, publisher events.Publisher) DocumentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &documentService{
		docRepo:    docRepo,
		folderRepo: folderRepo,
		files:      files,
		publisher:  publisher,
		now:        time.Now,
	}
}

func (s *documentService) Create(ctx context.Context, folderID, title, fileID string) (*model.Document, error) {
	folderID = strings.TrimSpace(folderID)
	if model.IsRootFolder(folderID) {
		return nil, model.NewValidationError("documents must be created inside a folder, not the root view")
	}
	title, err := requireText("document title", title, MaxDocumentTitleLength)
	if err != nil {
		return nil, err
	}
	fileID, err = requireText("file id", fileID, 36)
	if err != nil {
		return nil, err
	}

	if _, err := s.folderRepo.FindByID(ctx, folderID); err != nil {
		return nil, notFoundOr(err, "folder", folderID)
	}

	doc := &model.Document{
		ID:        uuid.NewString(),
		FolderID:  &folderID,
		Title:     title,
		FileID:    fileID,
		CreatedAt: s.now(),
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		log.Errorf("[DocumentService.Create] 创建文档记录失败, folderID: %s, error: %v", folderID, err)
		return nil, err
	}

	log.Infow("document created", "id", doc.ID, "folderId", folderID, "fileId", fileID)
	s.publish(ctx, events.DocumentCreated, doc)
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, documentID string) (*model.Document, error) {
	doc, err := s.docRepo.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFoundOr(err, "document", documentID)
	}
	return doc, nil
}

func (s *documentService) Rename(ctx context.Context, documentID, newTitle string) (*model.Document, error) {
	newTitle, err := requireText("document title", newTitle, MaxDocumentTitleLength)
	if err != nil {
		return nil, err
	}
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	doc.Title = newTitle
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.publish(ctx, events.DocumentRenamed, doc)
	return doc, nil
}

func (s *documentService) SetNotes(ctx context.Context, documentID, notes string) (*model.Document, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc.Notes = strings.TrimSpace(notes)
	if err := s.docRepo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *documentService) Move(ctx context.Context, documentID string, targetFolderID *string) (*model.Document, error) {
	targetFolderID = normalizeID(targetFolderID)
	if targetFolderID != nil && model.IsRootFolder(*targetFolderID) {
		targetFolderID = nil
	}

	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if targetFolderID != nil {
		if _, err := s.folderRepo.FindByID(ctx, *targetFolderID); err != nil {
			return nil, notFoundOr(err, "folder", *targetFolderID)
		}
	}

	doc.FolderID = targetFolderID
	if err := s.docRepo.Update(ctx, doc); err != nil {
		log.Errorf("[DocumentService.Move] 移动文档失败, id: %s, error: %v", documentID, err)
		return nil, err
	}

	log.Infow("document moved", "id", doc.ID, "folderId", doc.FolderID)
	s.publish(ctx, events.DocumentMoved, doc)
	return doc, nil
}

func (s *documentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.docRepo.Delete(ctx, documentID); err != nil {
		return err
	}

	log.Infow("document deleted", "id", doc.ID, "fileId", doc.FileID)
	s.publish(ctx, events.DocumentDeleted, doc)
	return nil
}

func (s *documentService) ListByFolder(ctx context.Context, folderID *string) ([]model.Document, error) {
	folderID = normalizeID(folderID)
	if folderID != nil && model.IsRootFolder(*folderID) {
		folderID = nil
	}
	return s.docRepo.ListByFolder(ctx, folderID)
}

func (s *documentService) CountByFolder(ctx context.Context, folderID string) (int64, error) {
	return s.docRepo.CountByFolder(ctx, folderID)
}

func (s *documentService) DownloadURL(ctx context.Context, documentID string) (*model.DownloadInfo, error) {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	url, err := s.files.DownloadURL(ctx, doc.FileID)
	if err != nil {
		log.Errorf("[DocumentService.DownloadURL] 生成下载链接失败, documentID: %s, fileID: %s, error: %v", documentID, doc.FileID, err)
		return nil, err
	}
	return &model.DownloadInfo{DocumentID: doc.ID, Title: doc.Title, DownloadURL: url}, nil
}

// publish 发送文档事件。数据库记录已经提交，发送失败只记录日志。
func (s *documentService) publish(ctx context.Context, typ events.Type, doc *model.Document) {
	event := events.DocumentEvent{
		Type:       typ,
		DocumentID: doc.ID,
		FolderID:   doc.FolderID,
		FileID:     doc.FileID,
		Title:      doc.Title,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnf("[DocumentService] 发送文档事件失败, type: %s, documentID: %s, error: %v", typ, doc.ID, err)
	}
}
