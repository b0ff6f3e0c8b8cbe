// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/repository"
	"docvault-go/pkg/log"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// PermissionService 接口定义了文件夹权限相关的业务操作。
// 权限按文件夹独立计算，不从父文件夹继承。
type PermissionService interface {
	Get(ctx context.Context, folderID string) (*model.FolderPermission, error)
	Set(ctx context.Context, folderID string, isPublic bool, userIDs, divisions []string) (*model.FolderPermission, error)
	ResolveAccess(ctx context.Context, folderID string, user model.Principal) (bool, error)
	FilterAccessible(ctx context.Context, folders []model.Folder, user model.Principal) ([]model.Folder, error)
}

type permissionService struct {
	permRepo   repository.PermissionRepository
	folderRepo repository.FolderRepository
}

// NewPermissionService 创建一个新的 PermissionService 实例。
func NewPermissionService(permRepo repository.PermissionRepository, folderRepo repository.FolderRepository) PermissionService {
	return &permissionService{permRepo: permRepo, folderRepo: folderRepo}
}

// Get 返回文件夹的权限记录，没有记录时返回默认的公开权限。
func (s *permissionService) Get(ctx context.Context, folderID string) (*model.FolderPermission, error) {
	perm, err := s.permRepo.FindByFolderID(ctx, folderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DefaultPermission(folderID), nil
		}
		return nil, err
	}
	return perm, nil
}

// Set 整体替换文件夹的权限记录。公开时白名单被清空。
func (s *permissionService) Set(ctx context.Context, folderID string, isPublic bool, userIDs, divisions []string) (*model.FolderPermission, error) {
	if _, err := s.folderRepo.FindByID(ctx, folderID); err != nil {
		return nil, notFoundOr(err, "folder", folderID)
	}

	perm := &model.FolderPermission{
		FolderID:         folderID,
		IsPublic:         isPublic,
		AllowedUserIDs:   []string{},
		AllowedDivisions: []string{},
	}
	if !isPublic {
		perm.AllowedUserIDs = cleanList(userIDs)
		perm.AllowedDivisions = cleanList(divisions)
	}

	if err := s.permRepo.Save(ctx, perm); err != nil {
		log.Errorf("[PermissionService.Set] 保存文件夹权限失败, folderID: %s, error: %v", folderID, err)
		return nil, err
	}
	log.Infow("folder permission updated", "folderId", folderID, "isPublic", isPublic,
		"users", len(perm.AllowedUserIDs), "divisions", len(perm.AllowedDivisions))
	return perm, nil
}

// ResolveAccess 判断用户能否访问文件夹。根视图始终可访问。
func (s *permissionService) ResolveAccess(ctx context.Context, folderID string, user model.Principal) (bool, error) {
	if model.IsRootFolder(folderID) {
		return true, nil
	}
	perm, err := s.Get(ctx, folderID)
	if err != nil {
		return false, err
	}
	return perm.Allows(user), nil
}

// FilterAccessible 过滤掉用户无权访问的文件夹，保持原有顺序。
func (s *permissionService) FilterAccessible(ctx context.Context, folders []model.Folder, user model.Principal) ([]model.Folder, error) {
	visible := make([]model.Folder, 0, len(folders))
	for _, f := range folders {
		ok, err := s.ResolveAccess(ctx, f.ID, user)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, f)
		}
	}
	return visible, nil
}

// cleanList 去除空白项与重复项，保持首次出现的顺序。
func cleanList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
