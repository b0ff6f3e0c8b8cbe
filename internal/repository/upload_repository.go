// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"docvault-go/internal/model"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ErrSessionNotFound 表示 Redis 中没有对应的上传会话（从未 init 或已过期）。
var ErrSessionNotFound = errors.New("upload session not found")

// UploadRepository 接口定义了文件上传相关的数据持久化操作。
type UploadRepository interface {
	// StoredFile operations (GORM)
	CreateStoredFile(ctx context.Context, file *model.StoredFile) error
	FindStoredFile(ctx context.Context, id string) (*model.StoredFile, error)
	DeleteStoredFile(ctx context.Context, id string) error

	// Upload session operations (Redis)
	SaveSession(ctx context.Context, session *model.UploadSession, ttl time.Duration) error
	GetSession(ctx context.Context, key string) (*model.UploadSession, error)
	DeleteSession(ctx context.Context, key string) error

	// Cleanup retry counters (Redis)
	IncrCleanupAttempts(ctx context.Context, fileID string) (int64, error)
	ResetCleanupAttempts(ctx context.Context, fileID string) error
}

// uploadRepository 是 UploadRepository 接口的 GORM+Redis 实现。
type uploadRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB, redisClient *redis.Client) UploadRepository {
	return &uploadRepository{db: db, redisClient: redisClient}
}

func (r *uploadRepository) sessionKey(key string) string {
	return "upload:session:" + key
}

func (r *uploadRepository) attemptsKey(fileID string) string {
	return "cleanup:attempts:" + fileID
}

// CreateStoredFile 在数据库中创建一条持久文件记录。
func (r *uploadRepository) CreateStoredFile(ctx context.Context, file *model.StoredFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// FindStoredFile 根据文件 id 查找持久文件记录。
func (r *uploadRepository) FindStoredFile(ctx context.Context, id string) (*model.StoredFile, error) {
	var file model.StoredFile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteStoredFile 删除持久文件记录。
func (r *uploadRepository) DeleteStoredFile(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.StoredFile{}, "id = ?", id).Error
}

// SaveSession 保存 init 阶段生成的上传会话。
func (r *uploadRepository) SaveSession(ctx context.Context, session *model.UploadSession, ttl time.Duration) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.redisClient.Set(ctx, r.sessionKey(session.Key), raw, ttl).Err()
}

// GetSession 读取上传会话，不存在时返回 ErrSessionNotFound。
func (r *uploadRepository) GetSession(ctx context.Context, key string) (*model.UploadSession, error) {
	raw, err := r.redisClient.Get(ctx, r.sessionKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session model.UploadSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession 删除上传会话。
func (r *uploadRepository) DeleteSession(ctx context.Context, key string) error {
	return r.redisClient.Del(ctx, r.sessionKey(key)).Err()
}

// IncrCleanupAttempts 增加某个文件清理失败的次数，计数 24 小时后过期。
func (r *uploadRepository) IncrCleanupAttempts(ctx context.Context, fileID string) (int64, error) {
	key := r.attemptsKey(fileID)
	attempts, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = r.redisClient.Expire(ctx, key, 24*time.Hour).Err()
	return attempts, nil
}

// ResetCleanupAttempts 清除失败计数。
func (r *uploadRepository) ResetCleanupAttempts(ctx context.Context, fileID string) error {
	return r.redisClient.Del(ctx, r.attemptsKey(fileID)).Err()
}
