package service

import (
	"bytes"
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/repository"
	"docvault-go/pkg/events"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type memFolderRepo struct {
	mu      sync.Mutex
	folders map[string]model.Folder
	calls   int
}

func newMemFolderRepo() *memFolderRepo {
	return &memFolderRepo{folders: make(map[string]model.Folder)}
}

func (r *memFolderRepo) Create(_ context.Context, f *model.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.folders[f.ID] = *f
	return nil
}

func (r *memFolderRepo) FindByID(_ context.Context, id string) (*model.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	f, ok := r.folders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &f, nil
}

func (r *memFolderRepo) siblings(parentID, scopeID *string) []model.Folder {
	var out []model.Folder
	for _, f := range r.folders {
		if parentID != nil {
			if sameParent(f.ParentID, parentID) {
				out = append(out, f)
			}
			continue
		}
		if f.ParentID == nil && sameParent(f.ScopeID, scopeID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortIndex != out[j].SortIndex {
			return out[i].SortIndex < out[j].SortIndex
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *memFolderRepo) ListChildren(_ context.Context, parentID, scopeID *string) ([]model.Folder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.siblings(parentID, scopeID), nil
}

func (r *memFolderRepo) MaxSortIndex(_ context.Context, parentID, scopeID *string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	max := -1
	for _, f := range r.siblings(parentID, scopeID) {
		if f.SortIndex > max {
			max = f.SortIndex
		}
	}
	return max, nil
}

func (r *memFolderRepo) CountChildren(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, f := range r.folders {
		if f.ParentID != nil && *f.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *memFolderRepo) Update(_ context.Context, f *model.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.folders[f.ID] = *f
	return nil
}

func (r *memFolderRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.folders, id)
	return nil
}

type memDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]model.Document
}

func newMemDocumentRepo() *memDocumentRepo {
	return &memDocumentRepo{docs: make(map[string]model.Document)}
}

func (r *memDocumentRepo) Create(_ context.Context, d *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[d.ID] = *d
	return nil
}

func (r *memDocumentRepo) FindByID(_ context.Context, id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (r *memDocumentRepo) ListByFolder(_ context.Context, folderID *string) ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Document
	for _, d := range r.docs {
		if sameParent(d.FolderID, folderID) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memDocumentRepo) CountByFolder(ctx context.Context, folderID string) (int64, error) {
	docs, _ := r.ListByFolder(ctx, &folderID)
	return int64(len(docs)), nil
}

func (r *memDocumentRepo) Update(_ context.Context, d *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[d.ID] = *d
	return nil
}

func (r *memDocumentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type memPermissionRepo struct {
	mu    sync.Mutex
	perms map[string]model.FolderPermission
}

func newMemPermissionRepo() *memPermissionRepo {
	return &memPermissionRepo{perms: make(map[string]model.FolderPermission)}
}

func (r *memPermissionRepo) FindByFolderID(_ context.Context, folderID string) (*model.FolderPermission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.perms[folderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memPermissionRepo) Save(_ context.Context, p *model.FolderPermission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms[p.FolderID] = *p
	return nil
}

func (r *memPermissionRepo) Delete(_ context.Context, folderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.perms, folderID)
	return nil
}

type memUploadRepo struct {
	mu       sync.Mutex
	files    map[string]model.StoredFile
	sessions map[string]model.UploadSession
	attempts map[string]int64
	incrErr  error
}

func newMemUploadRepo() *memUploadRepo {
	return &memUploadRepo{
		files:    make(map[string]model.StoredFile),
		sessions: make(map[string]model.UploadSession),
		attempts: make(map[string]int64),
	}
}

func (r *memUploadRepo) CreateStoredFile(_ context.Context, f *model.StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[f.ID] = *f
	return nil
}

func (r *memUploadRepo) FindStoredFile(_ context.Context, id string) (*model.StoredFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &f, nil
}

func (r *memUploadRepo) DeleteStoredFile(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

func (r *memUploadRepo) SaveSession(_ context.Context, s *model.UploadSession, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Key] = *s
	return nil
}

func (r *memUploadRepo) GetSession(_ context.Context, key string) (*model.UploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &s, nil
}

func (r *memUploadRepo) DeleteSession(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
	return nil
}

func (r *memUploadRepo) IncrCleanupAttempts(_ context.Context, fileID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incrErr != nil {
		return 0, r.incrErr
	}
	r.attempts[fileID]++
	return r.attempts[fileID], nil
}

func (r *memUploadRepo) ResetCleanupAttempts(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, fileID)
	return nil
}

type memBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removeErr error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) PresignedPutURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.example.test/" + key + "?sig=put", nil
}

func (s *memBlobStore) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blob.example.test/" + key + "?sig=get", nil
}

func (s *memBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	return nil
}

func (s *memBlobStore) Stat(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("object %s does not exist", key)
	}
	return int64(len(data)), nil
}

func (s *memBlobStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.objects, key)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DocumentEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DocumentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")
