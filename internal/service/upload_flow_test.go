package service

import (
	"bytes"
	"context"
	"docvault-go/internal/config"
	"docvault-go/internal/model"
	"docvault-go/internal/pipeline"
	"path"
	"strings"
	"testing"
	"time"
)

// blobTransferer 把直传请求写入 memBlobStore，rejected 中的文件名返回 403。
type blobTransferer struct {
	store    *memBlobStore
	rejected map[string]bool
}

func (t *blobTransferer) Put(ctx context.Context, url string, data []byte, headers map[string]string) error {
	key := strings.TrimSuffix(strings.TrimPrefix(url, "https://blob.example.test/"), "?sig=put")
	if t.rejected[path.Base(key)] {
		return &model.TransportError{Status: 403}
	}
	return t.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), headers["Content-Type"])
}

func TestDropOntoFolder_RegistersSuccessfulUploads(t *testing.T) {
	ctx := context.Background()
	folders := newMemFolderRepo()
	folders.folders["contracts"] = model.Folder{ID: "contracts", Name: "Contracts"}
	store := newMemBlobStore()
	pub := &recordingPublisher{}

	uploads := NewUploadService(newMemUploadRepo(), store, config.UploadConfig{MaxFileSizeMB: 1, CategoryID: "docs"}, config.MinIOConfig{PresignExpireMinutes: 15})
	docs := NewDocumentService(newMemDocumentRepo(), folders, uploads, pub)

	if _, err := docs.Create(ctx, "contracts", "Existing", "file-0"); err != nil {
		t.Fatalf("seed document: %v", err)
	}
	before, _ := docs.ListByFolder(ctx, strPtr("contracts"))

	p := pipeline.New(uploads, &blobTransferer{store: store, rejected: map[string]bool{"scan.pdf": true}}, docs, pipeline.NewUploadQueue(), pipeline.Options{})
	files := []model.UploadFile{
		{Name: "nda.pdf", ContentType: "application/pdf", Data: []byte("%PDF nda")},
		{Name: "scan.pdf", ContentType: "application/pdf", Data: []byte("%PDF scan")},
		{Name: "huge.pdf", ContentType: "application/pdf", Data: make([]byte, 1<<20+1)},
	}
	results, err := p.UploadMultiple(ctx, files, "contracts", "U1")
	if err != nil {
		t.Fatalf("UploadMultiple: %v", err)
	}

	succeeded := 0
	for _, r := range results {
		if r.Status == model.UploadSuccess {
			succeeded++
		}
	}
	if succeeded != 2 || results[2].Status != model.UploadError {
		t.Fatalf("results = %+v, want nda and scan to succeed and huge to fail", results)
	}

	after, _ := docs.ListByFolder(ctx, strPtr("contracts"))
	if len(after)-len(before) != succeeded {
		t.Errorf("folder grew by %d documents, want %d", len(after)-len(before), succeeded)
	}
	titles := map[string]bool{}
	for _, d := range after {
		titles[d.Title] = true
	}
	if !titles["nda.pdf"] || !titles["scan.pdf"] || titles["huge.pdf"] {
		t.Errorf("registered titles = %v", titles)
	}
	if n, _ := docs.CountByFolder(ctx, "contracts"); int(n) != len(after) {
		t.Errorf("CountByFolder = %d, want %d", n, len(after))
	}

	// 成功的任务在清理延迟后移除，失败的任务保留到用户清除。
	deadline := time.Now().Add(2 * time.Second)
	var remaining []model.UploadTask
	for time.Now().Before(deadline) {
		remaining = p.Queue().Tasks("U1")
		if len(remaining) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(remaining) != 1 || remaining[0].FileName != "huge.pdf" || remaining[0].Status != model.UploadError {
		t.Fatalf("remaining tasks = %+v, want only the failed upload", remaining)
	}
	if !strings.Contains(remaining[0].ErrorMessage, "exceeds limit") {
		t.Errorf("error message = %q", remaining[0].ErrorMessage)
	}
}
