// Package main 是命令行上传工具的入口，把一组本地文件批量上传到远端服务的某个文件夹。
//
//	uploader --server http://localhost:8080 --token $TOKEN --folder <folder-id> a.pdf b.docx
//	uploader --folder <folder-id> --title "Q3 合同" contract.pdf
//
// 未提供 --token 但配置了 --jwt-secret 时，会用共享密钥为 --user-id 签发一个临时令牌。
package main

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/pipeline"
	"docvault-go/pkg/apiclient"
	"docvault-go/pkg/log"
	"docvault-go/pkg/token"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	flags := pflag.NewFlagSet("uploader", pflag.ExitOnError)
	flags.String("server", "http://localhost:8080", "服务端地址")
	flags.String("token", "", "JWT 访问令牌")
	flags.String("jwt-secret", "", "与服务端共享的 JWT 密钥，未提供 --token 时用于签发令牌")
	flags.String("user-id", "uploader", "签发令牌使用的用户 id")
	flags.String("division", "", "签发令牌使用的部门")
	flags.String("role", "USER", "签发令牌使用的角色")
	flags.String("title", "", "单文件上传时的文档标题，设置后只能传一个文件")
	flags.String("folder", "", "目标文件夹 id")
	flags.String("category", "documents", "文件分类 id")
	flags.StringSlice("context", nil, "额外的上下文 id，目标文件夹 id 会自动追加")
	flags.Duration("timeout", 0, "单次 HTTP 请求超时，0 表示不限制")
	flags.Duration("batch-delay", 300*time.Millisecond, "相邻两个文件之间的间隔")
	flags.Int64("max-file-size-mb", 100, "单个文件大小上限 (MB)，0 表示不限制")
	flags.String("blob-type-header", "x-ms-blob-type", "直传时附加的存储类型请求头")
	flags.String("blob-type-value", "BlockBlob", "存储类型请求头的值")
	flags.String("log-level", "info", "日志级别")
	_ = flags.Parse(os.Args[1:])

	v := viper.New()
	v.SetEnvPrefix("UPLOADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "绑定命令行参数失败: %v\n", err)
		os.Exit(2)
	}

	log.Init(v.GetString("log-level"), "console", "")
	defer log.Sync()

	folderID := v.GetString("folder")
	paths := flags.Args()
	if folderID == "" || len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "用法: uploader --folder <folder-id> [flags] <file>...")
		flags.PrintDefaults()
		os.Exit(2)
	}

	title := strings.TrimSpace(v.GetString("title"))
	if title != "" && len(paths) != 1 {
		fmt.Fprintln(os.Stderr, "--title 只能与单个文件一起使用")
		os.Exit(2)
	}

	files, err := readFiles(paths)
	if err != nil {
		log.Fatal("读取本地文件失败", err)
	}

	accessToken, err := resolveToken(v)
	if err != nil {
		log.Fatal("签发访问令牌失败", err)
	}
	client := apiclient.New(v.GetString("server"), accessToken, v.GetDuration("timeout"))
	p := pipeline.New(
		client,
		pipeline.NewHTTPTransferer(v.GetDuration("timeout")),
		client,
		pipeline.NewUploadQueue(),
		pipeline.Options{
			BatchDelay:     v.GetDuration("batch-delay"),
			CategoryID:     v.GetString("category"),
			ContextIDs:     v.GetStringSlice("context"),
			BlobTypeHeader: v.GetString("blob-type-header"),
			BlobTypeValue:  v.GetString("blob-type-value"),
			MaxFileSize:    v.GetInt64("max-file-size-mb") * 1024 * 1024,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if title != "" {
		doc, err := p.UploadOne(ctx, pipeline.UploadRequest{File: files[0], FolderID: folderID, Title: title})
		if err != nil {
			fmt.Printf("FAIL  %s: %v\n", files[0].Name, err)
			os.Exit(1)
		}
		fmt.Printf("OK    %s -> %s\n", files[0].Name, doc.ID)
		return
	}

	events, cancel := p.Queue().Subscribe(len(files) * 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			if ev.Kind != pipeline.EventUpdated {
				continue
			}
			fmt.Printf("%-40s %-9s %3d%%\n", ev.Task.FileName, ev.Task.Status, ev.Task.Progress)
		}
	}()

	tasks, err := p.UploadMultiple(ctx, files, folderID, "")
	cancel()
	<-done
	if err != nil {
		log.Fatal("上传失败", err)
	}

	failed := 0
	for _, t := range tasks {
		if t.Status == model.UploadSuccess {
			fmt.Printf("OK    %s -> %s\n", t.FileName, t.DocumentID)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s: %s\n", t.FileName, t.ErrorMessage)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// resolveToken 优先使用 --token，否则在配置了 --jwt-secret 时签发一个一小时有效的令牌。
func resolveToken(v *viper.Viper) (string, error) {
	if t := v.GetString("token"); t != "" {
		return t, nil
	}
	secret := v.GetString("jwt-secret")
	if secret == "" {
		return "", nil
	}
	userID := v.GetString("user-id")
	return token.NewJWTManager(secret, 1).GenerateToken(userID, userID, v.GetString("division"), v.GetString("role"))
}

func readFiles(paths []string) ([]model.UploadFile, error) {
	files := make([]model.UploadFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取 %s: %w", path, err)
		}
		files = append(files, model.UploadFile{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		})
	}
	return files, nil
}
