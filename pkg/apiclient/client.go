// Package apiclient 是 docvault-go 服务端 API 的 HTTP 客户端，
// 实现了上传管道需要的 UploadAPI 与 DocumentRegistrar。
package apiclient

import (
	"bytes"
	"context"
	"docvault-go/internal/model"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// Client 通过 /api/v1 调用服务端。
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New 创建一个客户端。timeout 为 0 表示不设超时。
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// envelope 是服务端统一的响应结构。
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) InitUpload(ctx context.Context, req model.InitUploadRequest) (*model.InitUploadResponse, error) {
	var resp model.InitUploadResponse
	if err := c.postJSON(ctx, "init upload", "/api/v1/uploads/init", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ConfirmUpload(ctx context.Context, req model.ConfirmUploadRequest) (*model.FileIDResponse, error) {
	var resp model.FileIDResponse
	if err := c.postJSON(ctx, "confirm upload", "/api/v1/uploads/confirm", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProxyUpload 以 multipart 表单发送文件字节与元数据。
func (c *Client) ProxyUpload(ctx context.Context, req model.ProxyUploadRequest) (*model.FileIDResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	_ = w.WriteField("original_name", req.OriginalName)
	_ = w.WriteField("content_type", req.ContentType)
	_ = w.WriteField("category_id", req.CategoryID)
	for _, id := range req.ContextIDs {
		_ = w.WriteField("context_ids", id)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.OriginalName))
	h.Set("Content-Type", req.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/uploads/proxy", &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	var resp model.FileIDResponse
	if err := c.do(httpReq, "proxy upload", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Create 登记文档，实现 pipeline.DocumentRegistrar。
func (c *Client) Create(ctx context.Context, folderID, title, fileID string) (*model.Document, error) {
	var doc model.Document
	body := map[string]string{"folder_id": folderID, "title": title, "file_id": fileID}
	if err := c.postJSON(ctx, "create document", "/api/v1/documents", body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

// do 发送请求并解析统一响应。4xx 映射为对应的领域错误，其余失败为 ServerError。
func (c *Client) do(req *http.Request, op string, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.NewServerError(op, "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.NewServerError(op, "read response: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.NewServerError(op, "status %d: malformed response", resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return model.NewValidationError("%s", env.Message)
	case resp.StatusCode == http.StatusNotFound:
		return &model.NotFoundError{Resource: op, ID: env.Message}
	case resp.StatusCode == http.StatusForbidden:
		return model.NewServerError(op, "forbidden: %s", env.Message)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return model.NewServerError(op, "status %d: %s", resp.StatusCode, env.Message)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return model.NewServerError(op, "decode data: %v", err)
	}
	return nil
}
