package pipeline

import (
	"context"
	"crypto/sha256"
	"docvault-go/internal/model"
	"docvault-go/pkg/log"
	"encoding/hex"
	"strings"
	"time"
)

// 各阶段完成后的进度。
const (
	progressStarted     = 5
	progressInitialized = 20
	progressTransferred = 70
	progressStored      = 90
)

// Options 是上传管道的可调参数。
type Options struct {
	// BatchDelay 是批量上传中相邻两个任务之间的间隔。
	BatchDelay time.Duration
	// PurgeDelay 之后成功的任务会从队列中移除，失败的任务保留到被 Clear。
	PurgeDelay     time.Duration
	CategoryID     string
	ContextIDs     []string
	BlobTypeHeader string
	BlobTypeValue  string
	// MaxFileSize 为 0 表示不限制。
	MaxFileSize int64
}

// UploadRequest 描述一次单文件上传。
type UploadRequest struct {
	File     model.UploadFile
	FolderID string
	// Title 为空时使用文件名。
	Title string
	// Owner 是发起上传的用户 id，任务按它归属。
	Owner string
}

// Batch 是已入队、等待 RunBatch 处理的一组任务。
type Batch struct {
	FolderID string
	Owner    string
	TaskIDs  []string
	files    map[string]model.UploadFile
}

// Pipeline 按顺序执行上传的四个阶段，并把每一步的状态写入 UploadQueue。
type Pipeline struct {
	api        UploadAPI
	transferer Transferer
	registrar  DocumentRegistrar
	queue      *UploadQueue
	opts       Options

	sleep     func(ctx context.Context, d time.Duration) error
	afterFunc func(d time.Duration, f func())
}

// New 创建一个新的 Pipeline。queue 为 nil 时使用一个新的空队列。
func New(api UploadAPI, transferer Transferer, registrar DocumentRegistrar, queue *UploadQueue, opts Options) *Pipeline {
	if queue == nil {
		queue = NewUploadQueue()
	}
	return &Pipeline{
		api:        api,
		transferer: transferer,
		registrar:  registrar,
		queue:      queue,
		opts:       opts,
		sleep:      sleepContext,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Queue 返回管道使用的任务队列。
func (p *Pipeline) Queue() *UploadQueue {
	return p.queue
}

// UploadOne 上传单个文件并登记文档，失败时直接返回错误。
func (p *Pipeline) UploadOne(ctx context.Context, req UploadRequest) (*model.Document, error) {
	if err := validateTarget(req.FolderID); err != nil {
		return nil, err
	}
	if err := p.validateFile(req.File); err != nil {
		return nil, err
	}

	task := p.queue.Enqueue(newTask(req.File, req.FolderID, req.Title, req.Owner))
	doc, err := p.process(ctx, task.ID, req)
	if err == nil {
		p.schedulePurge([]string{task.ID})
	}
	return doc, err
}

// EnqueueBatch 校验输入并把所有文件以 pending 状态入队，任务归属 owner。
// 校验在任何网络调用之前完成。单个文件的校验失败不会拒绝整个批次，
// 该任务会在 RunBatch 中经过 uploading 后进入 error。
func (p *Pipeline) EnqueueBatch(files []model.UploadFile, folderID, owner string) (*Batch, error) {
	if err := validateTarget(folderID); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, model.NewValidationError("at least one file is required")
	}

	b := &Batch{
		FolderID: strings.TrimSpace(folderID),
		Owner:    owner,
		TaskIDs:  make([]string, 0, len(files)),
		files:    make(map[string]model.UploadFile, len(files)),
	}
	for _, f := range files {
		task := p.queue.Enqueue(newTask(f, b.FolderID, "", owner))
		b.TaskIDs = append(b.TaskIDs, task.ID)
		b.files[task.ID] = f
	}
	log.Infof("[Pipeline.EnqueueBatch] 已入队 %d 个文件, 目标文件夹: %s", len(files), b.FolderID)
	return b, nil
}

// RunBatch 严格顺序地处理批次中的任务，单个失败不影响其他任务。
// ctx 结束时尚未开始的任务会被标记为 error，因此每个任务都恰好到达一次终态。
func (p *Pipeline) RunBatch(ctx context.Context, b *Batch) []model.UploadTask {
	succeeded := 0
	for i, id := range b.TaskIDs {
		if i > 0 && p.opts.BatchDelay > 0 {
			if err := p.sleep(ctx, p.opts.BatchDelay); err != nil {
				p.abandon(b.TaskIDs[i:], err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			p.abandon(b.TaskIDs[i:], err)
			break
		}

		req := UploadRequest{File: b.files[id], FolderID: b.FolderID, Owner: b.Owner}
		if _, err := p.process(ctx, id, req); err == nil {
			succeeded++
		}
	}
	log.Infof("[Pipeline.RunBatch] 批量上传结束, 成功: %d, 总数: %d", succeeded, len(b.TaskIDs))

	results := make([]model.UploadTask, 0, len(b.TaskIDs))
	var done []string
	for _, id := range b.TaskIDs {
		if task, ok := p.queue.Get(id); ok {
			results = append(results, task)
			if task.Status == model.UploadSuccess {
				done = append(done, id)
			}
		}
	}
	p.schedulePurge(done)
	return results
}

// UploadMultiple 是 EnqueueBatch 与 RunBatch 的组合，用于把一组文件拖放到文件夹上。
func (p *Pipeline) UploadMultiple(ctx context.Context, files []model.UploadFile, folderID, owner string) ([]model.UploadTask, error) {
	b, err := p.EnqueueBatch(files, folderID, owner)
	if err != nil {
		return nil, err
	}
	return p.RunBatch(ctx, b), nil
}

// process 执行 init → transfer → confirm → register，并在失败时把任务标记为 error。
// 任务总是先进入 uploading，终态只能从 uploading 到达。
func (p *Pipeline) process(ctx context.Context, taskID string, req UploadRequest) (*model.Document, error) {
	p.update(taskID, TaskUpdate{Status: model.UploadUploading, Progress: progressStarted})
	doc, err := p.run(ctx, taskID, req)
	if err != nil {
		log.Warnf("[Pipeline] 上传失败, 文件: %s, error: %v", req.File.Name, err)
		p.update(taskID, TaskUpdate{Status: model.UploadError, Error: err.Error()})
		return nil, err
	}
	p.update(taskID, TaskUpdate{Status: model.UploadSuccess, Progress: 100, DocumentID: doc.ID})
	log.Infof("[Pipeline] 上传完成, 文件: %s, 文档ID: %s", req.File.Name, doc.ID)
	return doc, nil
}

func (p *Pipeline) run(ctx context.Context, taskID string, req UploadRequest) (*model.Document, error) {
	file := req.File
	if err := p.validateFile(file); err != nil {
		return nil, err
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	initResp, err := p.api.InitUpload(ctx, model.InitUploadRequest{
		OriginalName: file.Name,
		ContentType:  contentType,
		ContextIDs:   p.contextIDs(req.FolderID),
		CategoryID:   p.opts.CategoryID,
	})
	if err != nil {
		return nil, err
	}
	if initResp == nil || initResp.UploadURL == "" || initResp.Key == "" {
		return nil, model.NewServerError("init upload", "response is missing upload_url or key")
	}
	p.update(taskID, TaskUpdate{Status: model.UploadUploading, Progress: progressInitialized})

	fileID, err := p.transfer(ctx, taskID, req, contentType, initResp)
	if err != nil {
		return nil, err
	}
	p.update(taskID, TaskUpdate{Status: model.UploadUploading, Progress: progressStored})

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = file.Name
	}
	return p.registrar.Create(ctx, req.FolderID, title, fileID)
}

// transfer 先尝试直传，失败时由 nextTransport 决定是否回退到代理上传。
func (p *Pipeline) transfer(ctx context.Context, taskID string, req UploadRequest, contentType string, initResp *model.InitUploadResponse) (string, error) {
	file := req.File
	headers := map[string]string{"Content-Type": contentType}
	if p.opts.BlobTypeHeader != "" {
		headers[p.opts.BlobTypeHeader] = p.opts.BlobTypeValue
	}

	err := p.transferer.Put(ctx, initResp.UploadURL, file.Data, headers)
	if err == nil {
		p.update(taskID, TaskUpdate{Status: model.UploadUploading, Progress: progressTransferred})
		return p.confirm(ctx, file, contentType, initResp.Key)
	}

	next, retry := nextTransport(TransportDirect, err)
	if !retry {
		return "", err
	}
	log.Warnf("[Pipeline] 直传失败，改用%s上传, 文件: %s, error: %v", next, file.Name, err)

	resp, proxyErr := p.api.ProxyUpload(ctx, model.ProxyUploadRequest{
		OriginalName: file.Name,
		ContentType:  contentType,
		ContextIDs:   p.contextIDs(req.FolderID),
		CategoryID:   p.opts.CategoryID,
		Data:         file.Data,
	})
	if proxyErr != nil {
		return "", proxyErr
	}
	if resp == nil || resp.ID == "" {
		return "", model.NewServerError("proxy upload", "response is missing id")
	}
	return resp.ID, nil
}

func (p *Pipeline) confirm(ctx context.Context, file model.UploadFile, contentType, key string) (string, error) {
	sum := sha256.Sum256(file.Data)
	resp, err := p.api.ConfirmUpload(ctx, model.ConfirmUploadRequest{
		Key:            key,
		SizeBytes:      file.Size(),
		ChecksumSHA256: hex.EncodeToString(sum[:]),
		ContentType:    contentType,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.ID == "" {
		return "", model.NewServerError("confirm upload", "response is missing id")
	}
	return resp.ID, nil
}

func (p *Pipeline) update(taskID string, u TaskUpdate) {
	if _, err := p.queue.UpdateStatus(taskID, u); err != nil {
		log.Warnf("[Pipeline] 更新任务状态失败, taskID: %s, error: %v", taskID, err)
	}
}

// abandon 结束尚未开始的任务，和普通失败一样先经过 uploading。
func (p *Pipeline) abandon(ids []string, cause error) {
	for _, id := range ids {
		p.update(id, TaskUpdate{Status: model.UploadUploading})
		p.update(id, TaskUpdate{Status: model.UploadError, Error: cause.Error()})
	}
}

func (p *Pipeline) schedulePurge(ids []string) {
	if len(ids) == 0 {
		return
	}
	p.afterFunc(p.opts.PurgeDelay, func() {
		p.queue.Purge(ids...)
	})
}

func (p *Pipeline) contextIDs(folderID string) []string {
	ids := make([]string, 0, len(p.opts.ContextIDs)+1)
	ids = append(ids, p.opts.ContextIDs...)
	return append(ids, folderID)
}

func (p *Pipeline) validateFile(f model.UploadFile) error {
	if strings.TrimSpace(f.Name) == "" {
		return model.NewValidationError("file name must not be blank")
	}
	if p.opts.MaxFileSize > 0 && f.Size() > p.opts.MaxFileSize {
		return model.NewValidationError("file %s is %d bytes, limit is %d", f.Name, f.Size(), p.opts.MaxFileSize)
	}
	return nil
}

func validateTarget(folderID string) error {
	if model.IsRootFolder(strings.TrimSpace(folderID)) {
		return model.NewValidationError("uploads must target a folder, not the root view")
	}
	return nil
}

func newTask(f model.UploadFile, folderID, title, owner string) model.UploadTask {
	return model.UploadTask{
		FileName:       f.Name,
		ContentType:    f.ContentType,
		SizeBytes:      f.Size(),
		TargetFolderID: strings.TrimSpace(folderID),
		Title:          title,
		OwnerID:        owner,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
