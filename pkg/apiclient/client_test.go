package apiclient

import (
	"context"
	"docvault-go/internal/model"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": status, "message": message, "data": data})
}

func TestClient_InitAndConfirm(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/uploads/init", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req model.InitUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeEnvelope(w, http.StatusBadRequest, "bad body", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "ok", model.InitUploadResponse{UploadURL: "http://blob/put", Key: "uploads/k/" + req.OriginalName})
	})
	mux.HandleFunc("/api/v1/uploads/confirm", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "ok", model.FileIDResponse{ID: "file-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL+"/", "tok", time.Second)
	initResp, err := c.InitUpload(context.Background(), model.InitUploadRequest{OriginalName: "a.pdf"})
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if initResp.Key != "uploads/k/a.pdf" || initResp.UploadURL != "http://blob/put" {
		t.Errorf("init response = %+v", initResp)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	confirmed, err := c.ConfirmUpload(context.Background(), model.ConfirmUploadRequest{Key: initResp.Key})
	if err != nil || confirmed.ID != "file-1" {
		t.Fatalf("ConfirmUpload = %+v, %v", confirmed, err)
	}
}

func TestClient_ProxyUploadSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeEnvelope(w, http.StatusBadRequest, "not multipart", nil)
			return
		}
		f, fh, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, "missing file", nil)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		if string(body) != "hello" || fh.Filename != "notes.txt" {
			writeEnvelope(w, http.StatusBadRequest, "unexpected file", nil)
			return
		}
		if got := r.MultipartForm.Value["context_ids"]; len(got) != 2 || got[1] != "folder-1" {
			writeEnvelope(w, http.StatusBadRequest, "unexpected context ids", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "ok", model.FileIDResponse{ID: "file-9"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	resp, err := c.ProxyUpload(context.Background(), model.ProxyUploadRequest{
		OriginalName: "notes.txt",
		ContentType:  "text/plain",
		ContextIDs:   []string{"ctx", "folder-1"},
		Data:         []byte("hello"),
	})
	if err != nil {
		t.Fatalf("ProxyUpload: %v", err)
	}
	if resp.ID != "file-9" {
		t.Errorf("id = %q", resp.ID)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"validation", http.StatusBadRequest, `{"code":400,"message":"folder name must not be blank"}`, model.ErrValidation},
		{"not found", http.StatusNotFound, `{"code":404,"message":"folder missing"}`, model.ErrNotFound},
		{"server", http.StatusInternalServerError, `{"code":500,"message":"服务器内部错误"}`, model.ErrServer},
		{"malformed", http.StatusOK, `<html>`, model.ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New(srv.URL, "", time.Second).Create(context.Background(), "f1", "Title", "file-1")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
