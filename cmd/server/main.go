// Package main 是应用程序的入口点。
package main

import (
	"context"
	"docvault-go/internal/config"
	"docvault-go/internal/handler"
	"docvault-go/internal/middleware"
	"docvault-go/internal/model"
	"docvault-go/internal/pipeline"
	"docvault-go/internal/repository"
	"docvault-go/internal/service"
	"docvault-go/pkg/database"
	"docvault-go/pkg/kafka"
	"docvault-go/pkg/log"
	"docvault-go/pkg/storage"
	"docvault-go/pkg/token"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if cfg.Database.MySQL.AutoMigrate {
		database.AutoMigrate()
	}
	database.InitRedis(cfg.Database.Redis)
	blobStore := storage.InitMinIO(cfg.MinIO)
	producer := kafka.NewProducer(cfg.Kafka)

	// 4. 初始化 Repository
	folderRepo := repository.NewFolderRepository(database.DB)
	documentRepo := repository.NewDocumentRepository(database.DB)
	permissionRepo := repository.NewPermissionRepository(database.DB, database.RDB, cfg.Upload.PermissionTTL)
	uploadRepo := repository.NewUploadRepository(database.DB, database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	uploadService := service.NewUploadService(uploadRepo, blobStore, cfg.Upload, cfg.MinIO)
	documentService := service.NewDocumentService(documentRepo, folderRepo, uploadService, producer)
	folderService := service.NewFolderService(folderRepo, documentService, permissionRepo)
	permissionService := service.NewPermissionService(permissionRepo, folderRepo)

	// runCtx 覆盖整个服务生命周期，停机时取消后台上传与消费者。
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	// 6. 初始化上传管道，服务端进程内直接调用 UploadService 与 DocumentService
	uploadPipeline := pipeline.New(
		uploadService,
		pipeline.NewHTTPTransferer(cfg.Upload.HTTPTimeout),
		documentService,
		pipeline.NewUploadQueue(),
		pipeline.Options{
			BatchDelay:     cfg.Upload.BatchDelay,
			PurgeDelay:     cfg.Upload.PurgeDelay,
			CategoryID:     cfg.Upload.CategoryID,
			BlobTypeHeader: cfg.Upload.BlobTypeHeader,
			BlobTypeValue:  cfg.Upload.BlobTypeValue,
			MaxFileSize:    cfg.Upload.MaxFileSize(),
		},
	)

	// 7. 启动后台 Kafka 消费者，负责删除文档后的对象清理
	cleaner := service.NewBlobCleaner(uploadService, uploadRepo, cfg.Upload.CleanupAttempts)
	go kafka.StartConsumer(runCtx, cfg.Kafka, cleaner)

	// 7.1 把种子目录中的文件导入到指定文件夹
	go importSeedFiles(runCtx, cfg.Upload.SeedDir, cfg.Upload.SeedFolderID, folderService, uploadPipeline)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.Server.CORSOrigins))

	folderHandler := handler.NewFolderHandler(folderService, permissionService)
	documentHandler := handler.NewDocumentHandler(documentService, permissionService)
	uploadHandler := handler.NewUploadHandler(uploadService, cfg.Upload.MaxFileSize())
	queueHandler := handler.NewQueueHandler(runCtx, uploadPipeline, folderService, permissionService, cfg.Upload.MaxFileSize())

	// 9. 注册路由，全部需要认证
	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(jwtManager))
	{
		folders := apiV1.Group("/folders")
		{
			folders.POST("", folderHandler.Create)
			folders.GET("", folderHandler.List)
			folders.GET("/:id/path", folderHandler.Path)
			folders.PUT("/:id", folderHandler.Rename)
			folders.DELETE("/:id", folderHandler.Delete)
			folders.GET("/:id/permission", folderHandler.GetPermission)
			folders.PUT("/:id/permission", middleware.RequireRole(model.RoleAdmin), folderHandler.SetPermission)
			folders.GET("/:id/access", folderHandler.Access)
			folders.POST("/:id/drop", queueHandler.Drop)
			folders.POST("/:id/files", queueHandler.Upload)
		}

		documents := apiV1.Group("/documents")
		{
			documents.POST("", documentHandler.Create)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.PUT("/:id", documentHandler.Update)
			documents.PUT("/:id/move", documentHandler.Move)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.GET("/:id/download", documentHandler.Download)
		}

		uploads := apiV1.Group("/uploads")
		{
			uploads.POST("/init", uploadHandler.Init)
			uploads.POST("/confirm", uploadHandler.Confirm)
			uploads.POST("/proxy", uploadHandler.Proxy)
			uploads.GET("/queue", queueHandler.List)
			uploads.DELETE("/queue", queueHandler.ClearFinished)
			uploads.DELETE("/queue/:id", queueHandler.Clear)
			uploads.GET("/events", queueHandler.Events)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先取消后台任务，未开始的上传会被标记为 error，消费者退出读循环。
	cancelRun()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	if err := producer.Close(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

// seedOwner 是种子导入任务在上传队列中的归属，不对应任何登录用户。
const seedOwner = "system"

// importSeedFiles 扫描目录下的文件并通过上传管道导入到 folderID。
// 目录或文件夹任一未配置时跳过。
func importSeedFiles(ctx context.Context, dir, folderID string, folderService service.FolderService, p *pipeline.Pipeline) {
	if dir == "" || folderID == "" {
		log.Info("importSeedFiles: 未配置种子目录或目标文件夹，跳过初始化导入")
		return
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("importSeedFiles: 目录 '%s' 不存在或不可用，跳过初始化导入", dir)
		return
	}
	if _, err := folderService.Get(ctx, folderID); err != nil {
		log.Warnf("importSeedFiles: 目标文件夹不可用, folderID: %s, error: %v", folderID, err)
		return
	}

	var files []model.UploadFile
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("importSeedFiles: 读取文件失败: %s, err=%v", path, err)
			return nil
		}
		if len(data) == 0 {
			log.Infof("importSeedFiles: 空文件跳过: %s", path)
			return nil
		}
		files = append(files, model.UploadFile{
			Name:        info.Name(),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		})
		return nil
	})
	if walkErr != nil {
		log.Warnf("importSeedFiles: 遍历目录发生错误: %v", walkErr)
	}
	if len(files) == 0 {
		return
	}

	tasks, err := p.UploadMultiple(ctx, files, folderID, seedOwner)
	if err != nil {
		log.Warnf("importSeedFiles: 导入失败: %v", err)
		return
	}
	failed := 0
	for _, t := range tasks {
		if t.Status != model.UploadSuccess {
			failed++
		}
	}
	log.Infof("importSeedFiles: 导入完成, 文件数: %d, 失败: %d", len(tasks), failed)
}
