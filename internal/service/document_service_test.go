package service

import (
	"context"
	"docvault-go/internal/model"
	"docvault-go/pkg/events"
	"errors"
	"testing"
	"time"
)

type stubLinker map[string]string

func (l stubLinker) DownloadURL(_ context.Context, fileID string) (string, error) {
	url, ok := l[fileID]
	if !ok {
		return "", model.NewNotFoundError("file", fileID)
	}
	return url, nil
}

func newTestDocumentService() (*documentService, *memFolderRepo, *recordingPublisher) {
	folders := newMemFolderRepo()
	pub := &recordingPublisher{}
	linker := stubLinker{"file-1": "https://blob.example.test/file-1?sig=get"}
	svc := NewDocumentService(newMemDocumentRepo(), folders, linker, pub).(*documentService)
	return svc, folders, pub
}

func TestDocumentService_CreateValidation(t *testing.T) {
	svc, folders, _ := newTestDocumentService()
	ctx := context.Background()
	_ = folders.Create(ctx, &model.Folder{ID: "f1", Name: "Docs"})

	tests := []struct {
		name     string
		folderID string
		title    string
		fileID   string
		want     error
	}{
		{"root sentinel empty", "", "Report", "file-1", model.ErrValidation},
		{"root sentinel all", "all", "Report", "file-1", model.ErrValidation},
		{"blank title", "f1", "  ", "file-1", model.ErrValidation},
		{"blank file id", "f1", "Report", "", model.ErrValidation},
		{"missing folder", "ghost", "Report", "file-1", model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.folderID, tt.title, tt.fileID)
			if !errors.Is(err, tt.want) {
				t.Errorf("Create error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDocumentService_LifecyclePublishesEvents(t *testing.T) {
	svc, folders, pub := newTestDocumentService()
	ctx := context.Background()
	_ = folders.Create(ctx, &model.Folder{ID: "f1", Name: "A"})
	_ = folders.Create(ctx, &model.Folder{ID: "f2", Name: "B"})

	doc, err := svc.Create(ctx, "f1", "Report", "file-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Rename(ctx, doc.ID, "Report v2"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	moved, err := svc.Move(ctx, doc.ID, strPtr("f2"))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.FolderID == nil || *moved.FolderID != "f2" {
		t.Errorf("folder after move = %v, want f2", moved.FolderID)
	}
	if err := svc.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []events.Type{events.DocumentCreated, events.DocumentRenamed, events.DocumentMoved, events.DocumentDeleted}
	got := pub.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if pub.events[3].FileID != "file-1" {
		t.Errorf("delete event file id = %q", pub.events[3].FileID)
	}
}

func TestDocumentService_MoveToRootAndMissingTarget(t *testing.T) {
	svc, folders, _ := newTestDocumentService()
	ctx := context.Background()
	_ = folders.Create(ctx, &model.Folder{ID: "f1", Name: "A"})
	doc, _ := svc.Create(ctx, "f1", "Report", "file-1")

	if _, err := svc.Move(ctx, doc.ID, strPtr("ghost")); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Move to missing folder error = %v", err)
	}
	moved, err := svc.Move(ctx, doc.ID, nil)
	if err != nil {
		t.Fatalf("Move to root: %v", err)
	}
	if moved.FolderID != nil {
		t.Errorf("folder = %v, want nil", *moved.FolderID)
	}

	rootDocs, _ := svc.ListByFolder(ctx, strPtr("all"))
	if len(rootDocs) != 1 {
		t.Errorf("root listing = %d docs, want 1", len(rootDocs))
	}
}

func TestDocumentService_ListOrderedByCreation(t *testing.T) {
	svc, folders, _ := newTestDocumentService()
	ctx := context.Background()
	_ = folders.Create(ctx, &model.Folder{ID: "f1", Name: "A"})

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return at }
		if _, err := svc.Create(ctx, "f1", title, "file"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	docs, err := svc.ListByFolder(ctx, strPtr("f1"))
	if err != nil {
		t.Fatalf("ListByFolder: %v", err)
	}
	if len(docs) != 3 || docs[0].Title != "first" || docs[2].Title != "third" {
		t.Errorf("unexpected order: %+v", docs)
	}
}

func TestDocumentService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, folders, pub := newTestDocumentService()
	pub.err = errBoom
	ctx := context.Background()
	_ = folders.Create(ctx, &model.Folder{ID: "f1", Name: "A"})

	doc, err := svc.Create(ctx, "f1", "Report", "file-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Get(ctx, doc.ID); err != nil {
		t.Errorf("document not stored: %v", err)
	}
}

func TestDocumentService_DownloadURL(t *testing.T) {
	svc, folders, _ := newTestDocumentService()
	ctx := context.Background()
	_ = folders.Create(ctx, &model.Folder{ID: "f1", Name: "A"})
	doc, _ := svc.Create(ctx, "f1", "Report", "file-1")

	info, err := svc.DownloadURL(ctx, doc.ID)
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if info.DocumentID != doc.ID || info.DownloadURL == "" {
		t.Errorf("download info = %+v", info)
	}
	if _, err := svc.DownloadURL(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("missing document error = %v", err)
	}

	n, _ := svc.CountByFolder(ctx, "f1")
	if n != 1 {
		t.Errorf("CountByFolder = %d, want 1", n)
	}
}
