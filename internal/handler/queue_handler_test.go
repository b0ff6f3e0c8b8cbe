package handler

import (
	"bytes"
	"context"
	"docvault-go/internal/model"
	"docvault-go/internal/pipeline"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type stubUploadAPI struct {
	// release 非 nil 时，InitUpload 会阻塞直到它被关闭。
	release chan struct{}
}

func (a *stubUploadAPI) InitUpload(ctx context.Context, req model.InitUploadRequest) (*model.InitUploadResponse, error) {
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &model.InitUploadResponse{UploadURL: "https://blob.test/" + req.OriginalName, Key: "k/" + req.OriginalName}, nil
}

func (a *stubUploadAPI) ConfirmUpload(_ context.Context, req model.ConfirmUploadRequest) (*model.FileIDResponse, error) {
	return &model.FileIDResponse{ID: "file-" + req.Key}, nil
}

func (a *stubUploadAPI) ProxyUpload(context.Context, model.ProxyUploadRequest) (*model.FileIDResponse, error) {
	return nil, errors.New("proxy disabled")
}

type okTransferer struct{}

func (okTransferer) Put(context.Context, string, []byte, map[string]string) error { return nil }

type stubRegistrar struct{}

func (stubRegistrar) Create(_ context.Context, folderID, title, fileID string) (*model.Document, error) {
	return &model.Document{ID: "doc-" + title, FolderID: &folderID, Title: title, FileID: fileID}, nil
}

type queueFixture struct {
	router   *gin.Engine
	pipeline *pipeline.Pipeline
}

// newQueueFixture 创建挂载了 QueueHandler 的路由，请求头 X-User 决定当前用户。
func newQueueFixture(t *testing.T, api *stubUploadAPI, perms *stubPermissionService) *queueFixture {
	t.Helper()
	runCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	p := pipeline.New(api, okTransferer{}, stubRegistrar{}, pipeline.NewUploadQueue(), pipeline.Options{PurgeDelay: time.Hour})
	folders := &stubFolderService{folders: map[string]model.Folder{
		"contracts": {ID: "contracts", Name: "Contracts"},
		"secret":    {ID: "secret", Name: "Secret"},
	}}
	h := NewQueueHandler(runCtx, p, folders, perms, 1<<20)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		user := c.GetHeader("X-User")
		if user == "" {
			user = "U1"
		}
		c.Set("principal", model.Principal{ID: user, Division: "Sales"})
		c.Next()
	})
	r.POST("/folders/:id/drop", h.Drop)
	r.POST("/folders/:id/files", h.Upload)
	r.GET("/uploads/queue", h.List)
	r.DELETE("/uploads/queue/:id", h.Clear)
	r.GET("/uploads/events", h.Events)
	return &queueFixture{router: r, pipeline: p}
}

type formFile struct {
	name, body string
}

func multipartRequest(t *testing.T, path, field string, files []formFile, values map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write([]byte(f.body))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid json %q", req.Method, req.URL.Path, w.Body.String())
	}
	return w, env
}

func TestQueueHandler_DropRejections(t *testing.T) {
	perms := &stubPermissionService{restricted: map[string]bool{"secret": true}}
	tests := []struct {
		name, folder string
		want         int
	}{
		{"root view", "all", http.StatusBadRequest},
		{"unknown folder", "ghost", http.StatusNotFound},
		{"restricted folder", "secret", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newQueueFixture(t, &stubUploadAPI{}, perms)
			req := multipartRequest(t, "/folders/"+tt.folder+"/drop", "files", []formFile{{"a.txt", "1"}}, nil)
			w, env := serve(t, fx.router, req)
			if w.Code != tt.want || env.Code != tt.want {
				t.Errorf("status = %d (code %d), want %d", w.Code, env.Code, tt.want)
			}
			if n := len(fx.pipeline.Queue().Tasks("U1")); n != 0 {
				t.Errorf("%d tasks enqueued for a rejected drop", n)
			}
		})
	}
}

func TestQueueHandler_DropAcceptsAndEnqueues(t *testing.T) {
	api := &stubUploadAPI{release: make(chan struct{})}
	fx := newQueueFixture(t, api, &stubPermissionService{})

	files := []formFile{{"a.pdf", "1"}, {"b.pdf", "22"}, {"c.pdf", "333"}}
	w, env := serve(t, fx.router, multipartRequest(t, "/folders/contracts/drop", "files", files, nil))
	if w.Code != http.StatusAccepted || env.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var tasks []model.UploadTask
	if err := json.Unmarshal(env.Data, &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(tasks))
	}
	for i, task := range tasks {
		if task.Status != model.UploadPending || task.FileName != files[i].name {
			t.Errorf("task %d = %s/%s, want pending %s", i, task.FileName, task.Status, files[i].name)
		}
		if task.OwnerID != "U1" || task.TargetFolderID != "contracts" {
			t.Errorf("task %d owner/folder = %s/%s", i, task.OwnerID, task.TargetFolderID)
		}
	}

	list := httptest.NewRequest(http.MethodGet, "/uploads/queue", nil)
	_, env = serve(t, fx.router, list)
	var mine []model.UploadTask
	_ = json.Unmarshal(env.Data, &mine)
	if len(mine) != 3 {
		t.Errorf("U1 queue = %d tasks, want 3", len(mine))
	}

	other := httptest.NewRequest(http.MethodGet, "/uploads/queue", nil)
	other.Header.Set("X-User", "U2")
	_, env = serve(t, fx.router, other)
	var theirs []model.UploadTask
	_ = json.Unmarshal(env.Data, &theirs)
	if len(theirs) != 0 {
		t.Errorf("U2 sees %d of U1's tasks", len(theirs))
	}

	clearReq := httptest.NewRequest(http.MethodDelete, "/uploads/queue/"+tasks[0].ID, nil)
	clearReq.Header.Set("X-User", "U2")
	if w, _ := serve(t, fx.router, clearReq); w.Code != http.StatusNotFound {
		t.Errorf("U2 clearing U1's task: status = %d, want 404", w.Code)
	}
	close(api.release)
}

func TestQueueHandler_UploadSingleFile(t *testing.T) {
	fx := newQueueFixture(t, &stubUploadAPI{}, &stubPermissionService{restricted: map[string]bool{"secret": true}})

	req := multipartRequest(t, "/folders/contracts/files", "file", []formFile{{"scan.pdf", "%PDF"}}, map[string]string{"title": "Signed contract"})
	w, env := serve(t, fx.router, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var doc model.Document
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Title != "Signed contract" || doc.FileID != "file-k/scan.pdf" || doc.FolderID == nil || *doc.FolderID != "contracts" {
		t.Errorf("document = %+v", doc)
	}

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"missing file", multipartRequest(t, "/folders/contracts/files", "other", []formFile{{"a", "1"}}, nil), http.StatusBadRequest},
		{"restricted folder", multipartRequest(t, "/folders/secret/files", "file", []formFile{{"a", "1"}}, nil), http.StatusForbidden},
		{"root view", multipartRequest(t, "/folders/all/files", "file", []formFile{{"a", "1"}}, nil), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w, _ := serve(t, fx.router, tt.req); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

type wsMessage struct {
	Kind  string             `json:"kind"`
	Tasks []model.UploadTask `json:"tasks"`
	Task  model.UploadTask   `json:"task"`
}

func TestQueueHandler_EventsSnapshotThenOwnEvents(t *testing.T) {
	fx := newQueueFixture(t, &stubUploadAPI{}, &stubPermissionService{})
	queue := fx.pipeline.Queue()
	mine := queue.Enqueue(model.UploadTask{FileName: "mine.txt", OwnerID: "U1"})
	theirs := queue.Enqueue(model.UploadTask{FileName: "theirs.txt", OwnerID: "U2"})

	srv := httptest.NewServer(fx.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/uploads/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"X-User": []string{"U1"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot wsMessage
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Kind != "snapshot" || len(snapshot.Tasks) != 1 || snapshot.Tasks[0].ID != mine.ID {
		t.Fatalf("snapshot = %+v", snapshot)
	}

	if _, err := queue.UpdateStatus(theirs.ID, pipeline.TaskUpdate{Status: model.UploadUploading, Progress: 10}); err != nil {
		t.Fatal(err)
	}
	if _, err := queue.UpdateStatus(mine.ID, pipeline.TaskUpdate{Status: model.UploadUploading, Progress: 30}); err != nil {
		t.Fatal(err)
	}

	var ev wsMessage
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != string(pipeline.EventUpdated) || ev.Task.ID != mine.ID || ev.Task.Progress != 30 {
		t.Errorf("event = %+v, want the update of the caller's own task", ev)
	}
}
