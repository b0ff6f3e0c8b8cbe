// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/pkg/log"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PermissionRepository 接口定义了文件夹权限记录的持久化操作。
type PermissionRepository interface {
	// FindByFolderID 查找权限记录，不存在时返回 gorm.ErrRecordNotFound。
	FindByFolderID(ctx context.Context, folderID string) (*model.FolderPermission, error)
	Save(ctx context.Context, perm *model.FolderPermission) error
	Delete(ctx context.Context, folderID string) error
}

// permissionRepository 是 PermissionRepository 接口的 GORM+Redis 实现。
// Redis 只作为读缓存，写操作总是先落库再删除缓存。
type permissionRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
	ttl         time.Duration
}

// NewPermissionRepository 创建一个新的 PermissionRepository 实例。redisClient 为 nil 时不使用缓存。
func NewPermissionRepository(db *gorm.DB, redisClient *redis.Client, ttl time.Duration) PermissionRepository {
	return &permissionRepository{db: db, redisClient: redisClient, ttl: ttl}
}

func (r *permissionRepository) cacheKey(folderID string) string {
	return "folder:perm:" + folderID
}

// FindByFolderID 优先读取 Redis 缓存，未命中时查询数据库并回填。
func (r *permissionRepository) FindByFolderID(ctx context.Context, folderID string) (*model.FolderPermission, error) {
	if r.redisClient != nil {
		raw, err := r.redisClient.Get(ctx, r.cacheKey(folderID)).Bytes()
		if err == nil {
			var cached model.FolderPermission
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Warnf("[PermissionRepository] 读取权限缓存失败, folderID: %s, error: %v", folderID, err)
		}
	}

	var perm model.FolderPermission
	if err := r.db.WithContext(ctx).Where("folder_id = ?", folderID).First(&perm).Error; err != nil {
		return nil, err
	}

	if r.redisClient != nil {
		if raw, err := json.Marshal(&perm); err == nil {
			if err := r.redisClient.Set(ctx, r.cacheKey(folderID), raw, r.ttl).Err(); err != nil {
				log.Warnf("[PermissionRepository] 写入权限缓存失败, folderID: %s, error: %v", folderID, err)
			}
		}
	}
	return &perm, nil
}

// Save 以 upsert 的方式保存权限记录，并使缓存失效。
func (r *permissionRepository) Save(ctx context.Context, perm *model.FolderPermission) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "folder_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_public", "allowed_user_ids", "allowed_divisions", "updated_at"}),
	}).Create(perm).Error
	if err != nil {
		return err
	}
	r.invalidate(ctx, perm.FolderID)
	return nil
}

// Delete 删除权限记录，并使缓存失效。
func (r *permissionRepository) Delete(ctx context.Context, folderID string) error {
	if err := r.db.WithContext(ctx).Delete(&model.FolderPermission{}, "folder_id = ?", folderID).Error; err != nil {
		return err
	}
	r.invalidate(ctx, folderID)
	return nil
}

func (r *permissionRepository) invalidate(ctx context.Context, folderID string) {
	if r.redisClient == nil {
		return
	}
	if err := r.redisClient.Del(ctx, r.cacheKey(folderID)).Err(); err != nil {
		log.Warnf("[PermissionRepository] 删除权限缓存失败, folderID: %s, error: %v", folderID, err)
	}
}
