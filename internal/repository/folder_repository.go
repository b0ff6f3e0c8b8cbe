// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"database/sql"
	"docvault-go/internal/model"

	"gorm.io/gorm"
)

// FolderRepository 接口定义了文件夹数据的持久化操作。
type FolderRepository interface {
	Create(ctx context.Context, folder *model.Folder) error
	FindByID(ctx context.Context, id string) (*model.Folder, error)
	// ListChildren 列出 parentID 的直接子文件夹；parentID 为 nil 时列出 scopeID 下的根文件夹。
	ListChildren(ctx context.Context, parentID, scopeID *string) ([]model.Folder, error)
	MaxSortIndex(ctx context.Context, parentID, scopeID *string) (int, error)
	CountChildren(ctx context.Context, id string) (int64, error)
	Update(ctx context.Context, folder *model.Folder) error
	Delete(ctx context.Context, id string) error
}

type folderRepository struct {
	db *gorm.DB
}

// NewFolderRepository 创建一个新的 FolderRepository 实例。
func NewFolderRepository(db *gorm.DB) FolderRepository {
	return &folderRepository{db: db}
}

// Create 在数据库中插入一个新的文件夹记录。
func (r *folderRepository) Create(ctx context.Context, folder *model.Folder) error {
	return r.db.WithContext(ctx).Create(folder).Error
}

// FindByID 根据 id 查找文件夹，未找到时返回 gorm.ErrRecordNotFound。
func (r *folderRepository) FindByID(ctx context.Context, id string) (*model.Folder, error) {
	var folder model.Folder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&folder).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// siblings 构造同一层级的查询条件。
func (r *folderRepository) siblings(ctx context.Context, parentID, scopeID *string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Folder{})
	if parentID != nil {
		return q.Where("parent_id = ?", *parentID)
	}
	q = q.Where("parent_id IS NULL")
	if scopeID != nil {
		return q.Where("scope_id = ?", *scopeID)
	}
	return q.Where("scope_id IS NULL")
}

// ListChildren 按 sort_index、name 排序返回子文件夹，每次调用都会重新查询。
func (r *folderRepository) ListChildren(ctx context.Context, parentID, scopeID *string) ([]model.Folder, error) {
	var folders []model.Folder
	err := r.siblings(ctx, parentID, scopeID).Order("sort_index asc").Order("name asc").Find(&folders).Error
	return folders, err
}

// MaxSortIndex 返回同层级最大的 sort_index，没有兄弟节点时返回 -1。
func (r *folderRepository) MaxSortIndex(ctx context.Context, parentID, scopeID *string) (int, error) {
	var max sql.NullInt64
	err := r.siblings(ctx, parentID, scopeID).Select("MAX(sort_index)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if !max.Valid {
		return -1, nil
	}
	return int(max.Int64), nil
}

// CountChildren 统计直接子文件夹的数量。
func (r *folderRepository) CountChildren(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Folder{}).Where("parent_id = ?", id).Count(&count).Error
	return count, err
}

// Update 更新数据库中一个已存在的文件夹记录。
func (r *folderRepository) Update(ctx context.Context, folder *model.Folder) error {
	return r.db.WithContext(ctx).Save(folder).Error
}

// Delete 删除一个文件夹记录。
func (r *folderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Folder{}, "id = ?", id).Error
}
