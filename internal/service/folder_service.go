// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/repository"
	"docvault-go/pkg/log"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxFolderDepth 限制 Path 的遍历深度，防止数据异常时无限循环。
const maxFolderDepth = 256

// FolderService 接口定义了文件夹树相关的业务操作。
type FolderService interface {
	Create(ctx context.Context, name string, parentID, scopeID *string) (*model.Folder, error)
	Get(ctx context.Context, folderID string) (*model.Folder, error)
	Rename(ctx context.Context, folderID, newName string) (*model.Folder, error)
	Delete(ctx context.Context, folderID string) error
	ListChildren(ctx context.Context, parentID, scopeID *string) ([]model.Folder, error)
	Path(ctx context.Context, folderID string) ([]model.Folder, error)
}

// DocumentCounter 统计文件夹中的文档数，删除文件夹前用于判断是否为空。
type DocumentCounter interface {
	CountByFolder(ctx context.Context, folderID string) (int64, error)
}

type folderService struct {
	folderRepo repository.FolderRepository
	docs       DocumentCounter
	permRepo   repository.PermissionRepository
	now        func() time.Time
}

// NewFolderService 创建一个新的 FolderService 实例。
func NewFolderService(folderRepo repository.FolderRepository, docs DocumentCounter, permRepo repository.PermissionRepository) FolderService {
	return &folderService{
		folderRepo: folderRepo,
		docs:       docs,
		permRepo:   permRepo,
		now:        time.Now,
	}
}

// Create 创建一个文件夹。
// 指定了 parentID 时作用域由父级隐式决定，scopeID 不会保存在子文件夹上。
func (s *folderService) Create(ctx context.Context, name string, parentID, scopeID *string) (*model.Folder, error) {
	name, err := requireText("folder name", name, MaxFolderNameLength)
	if err != nil {
		return nil, err
	}
	parentID = normalizeID(parentID)
	if parentID != nil && model.IsRootFolder(*parentID) {
		parentID = nil
	}
	scopeID = normalizeID(scopeID)

	if parentID != nil {
		if _, err := s.folderRepo.FindByID(ctx, *parentID); err != nil {
			return nil, notFoundOr(err, "folder", *parentID)
		}
		scopeID = nil
	}

	maxIndex, err := s.folderRepo.MaxSortIndex(ctx, parentID, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sort index: %w", err)
	}

	now := s.now()
	folder := &model.Folder{
		ID:           uuid.NewString(),
		Name:         name,
		ParentID:     parentID,
		ScopeID:      scopeID,
		SortIndex:    maxIndex + 1,
		CreatedAt:    now,
		LastModified: now,
	}
	if err := s.folderRepo.Create(ctx, folder); err != nil {
		log.Errorf("[FolderService.Create] 创建文件夹失败, name: %s, error: %v", name, err)
		return nil, err
	}

	log.Infow("folder created", "id", folder.ID, "name", folder.Name, "parentId", folder.ParentID, "scopeId", folder.ScopeID)
	return folder, nil
}

// Get 根据 id 获取文件夹。
func (s *folderService) Get(ctx context.Context, folderID string) (*model.Folder, error) {
	folder, err := s.folderRepo.FindByID(ctx, folderID)
	if err != nil {
		return nil, notFoundOr(err, "folder", folderID)
	}
	return folder, nil
}

// Rename 重命名文件夹。名称为空时直接拒绝，文件夹与 LastModified 都保持不变。
func (s *folderService) Rename(ctx context.Context, folderID, newName string) (*model.Folder, error) {
	newName, err := requireText("folder name", newName, MaxFolderNameLength)
	if err != nil {
		return nil, err
	}

	folder, err := s.Get(ctx, folderID)
	if err != nil {
		return nil, err
	}

	folder.Name = newName
	folder.LastModified = s.now()
	if err := s.folderRepo.Update(ctx, folder); err != nil {
		log.Errorf("[FolderService.Rename] 更新文件夹失败, id: %s, error: %v", folderID, err)
		return nil, err
	}
	return folder, nil
}

// Delete 删除一个空文件夹。
// 仍包含子文件夹或文档时返回 model.ErrFolderNotEmpty，不做级联删除。
func (s *folderService) Delete(ctx context.Context, folderID string) error {
	if _, err := s.Get(ctx, folderID); err != nil {
		return err
	}

	children, err := s.folderRepo.CountChildren(ctx, folderID)
	if err != nil {
		return fmt.Errorf("failed to count child folders: %w", err)
	}
	docs, err := s.docs.CountByFolder(ctx, folderID)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if children > 0 || docs > 0 {
		log.Warnf("[FolderService.Delete] 拒绝删除非空文件夹, id: %s, 子文件夹: %d, 文档: %d", folderID, children, docs)
		return model.ErrFolderNotEmpty
	}

	if err := s.folderRepo.Delete(ctx, folderID); err != nil {
		return err
	}
	if err := s.permRepo.Delete(ctx, folderID); err != nil {
		log.Warnf("[FolderService.Delete] 删除文件夹权限记录失败, id: %s, error: %v", folderID, err)
	}

	log.Infow("folder deleted", "id", folderID)
	return nil
}

// ListChildren 列出子文件夹，按 sort_index、name 排序。
// parentID 为 nil 时列出 scopeID 对应树的根文件夹（scopeID 为 nil 即公司级目录树）。
func (s *folderService) ListChildren(ctx context.Context, parentID, scopeID *string) ([]model.Folder, error) {
	parentID = normalizeID(parentID)
	if parentID != nil && model.IsRootFolder(*parentID) {
		parentID = nil
	}
	if parentID != nil {
		if _, err := s.Get(ctx, *parentID); err != nil {
			return nil, err
		}
	}
	return s.folderRepo.ListChildren(ctx, parentID, normalizeID(scopeID))
}

// Path 返回从根到指定文件夹的路径（面包屑）。
func (s *folderService) Path(ctx context.Context, folderID string) ([]model.Folder, error) {
	var reversed []model.Folder
	visited := make(map[string]struct{})

	currentID := folderID
	for {
		if _, seen := visited[currentID]; seen || len(visited) >= maxFolderDepth {
			return nil, fmt.Errorf("folder %q: parent chain does not terminate", folderID)
		}
		visited[currentID] = struct{}{}

		folder, err := s.folderRepo.FindByID(ctx, currentID)
		if err != nil {
			return nil, notFoundOr(err, "folder", currentID)
		}
		reversed = append(reversed, *folder)
		if folder.ParentID == nil {
			break
		}
		currentID = *folder.ParentID
	}

	path := make([]model.Folder, len(reversed))
	for i, f := range reversed {
		path[len(reversed)-1-i] = f
	}
	return path, nil
}
