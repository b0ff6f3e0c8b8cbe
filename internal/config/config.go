// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
	// RetryBackoff 是同一条消息处理失败后的首次重试间隔，之后按倍数增长到 RetryBackoffMax。
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint             string `mapstructure:"endpoint"`
	AccessKeyID          string `mapstructure:"access_key_id"`
	SecretAccessKey      string `mapstructure:"secret_access_key"`
	UseSSL               bool   `mapstructure:"use_ssl"`
	BucketName           string `mapstructure:"bucket_name"`
	PresignExpireMinutes int    `mapstructure:"presign_expire_minutes"`
}

// PresignExpiry 返回预签名 URL 的有效期。
func (c MinIOConfig) PresignExpiry() time.Duration {
	return time.Duration(c.PresignExpireMinutes) * time.Minute
}

// UploadConfig 存储上传管道相关的配置。
type UploadConfig struct {
	// BatchDelay 是批量上传中两个任务之间的固定间隔。
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	// PurgeDelay 是批量完成后成功任务从队列中移除前的等待时间。
	PurgeDelay      time.Duration `mapstructure:"purge_delay"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	MaxFileSizeMB   int64         `mapstructure:"max_file_size_mb"`
	BlobTypeHeader  string        `mapstructure:"blob_type_header"`
	BlobTypeValue   string        `mapstructure:"blob_type_value"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	PermissionTTL   time.Duration `mapstructure:"permission_cache_ttl"`
	CategoryID      string        `mapstructure:"category_id"`
	CleanupAttempts int64         `mapstructure:"cleanup_attempts"`
	// SeedDir 中的文件会在启动时导入到 SeedFolderID，两者任一为空则跳过。
	SeedDir      string `mapstructure:"seed_dir"`
	SeedFolderID string `mapstructure:"seed_folder_id"`
}

// MaxFileSize 返回单个文件允许的最大字节数，0 表示不限制。
func (c UploadConfig) MaxFileSize() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// SetDefaults 为可选配置项注册默认值。
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.group_id", "docvault-go-consumer")
	v.SetDefault("kafka.retry_backoff", time.Second)
	v.SetDefault("kafka.retry_backoff_max", 30*time.Second)
	v.SetDefault("minio.presign_expire_minutes", 15)
	v.SetDefault("upload.batch_delay", 300*time.Millisecond)
	v.SetDefault("upload.purge_delay", 2500*time.Millisecond)
	v.SetDefault("upload.http_timeout", time.Duration(0))
	v.SetDefault("upload.max_file_size_mb", 100)
	v.SetDefault("upload.blob_type_header", "x-ms-blob-type")
	v.SetDefault("upload.blob_type_value", "BlockBlob")
	v.SetDefault("upload.session_ttl", time.Hour)
	v.SetDefault("upload.permission_cache_ttl", 10*time.Minute)
	v.SetDefault("upload.cleanup_attempts", 3)
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := v.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
