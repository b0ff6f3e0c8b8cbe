// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"docvault-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档数据的持久化操作。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id string) (*model.Document, error)
	// ListByFolder 列出文件夹内的文档，folderID 为 nil 时列出根目录文档。
	ListByFolder(ctx context.Context, folderID *string) ([]model.Document, error)
	CountByFolder(ctx context.Context, folderID string) (int64, error)
	Update(ctx context.Context, doc *model.Document) error
	Delete(ctx context.Context, id string) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByFolder 以 created_at、id 排序，保证无修改时多次调用顺序一致。
func (r *documentRepository) ListByFolder(ctx context.Context, folderID *string) ([]model.Document, error) {
	var docs []model.Document
	q := r.db.WithContext(ctx)
	if folderID == nil {
		q = q.Where("folder_id IS NULL")
	} else {
		q = q.Where("folder_id = ?", *folderID)
	}
	err := q.Order("created_at asc").Order("id asc").Find(&docs).Error
	return docs, err
}

func (r *documentRepository) CountByFolder(ctx context.Context, folderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).Where("folder_id = ?", folderID).Count(&count).Error
	return count, err
}

func (r *documentRepository) Update(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id).Error
}
