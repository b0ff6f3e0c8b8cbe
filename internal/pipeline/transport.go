package pipeline

import (
	"bytes"
	"context"
	"docvault-go/internal/model"
	"io"
	"net/http"
	"time"
)

// Transport 表示文件字节到达存储的方式。
type Transport int

const (
	// TransportDirect 客户端直接 PUT 到预签名 URL。
	TransportDirect Transport = iota
	// TransportProxied 字节经由应用服务器转存。
	TransportProxied
)

func (t Transport) String() string {
	switch t {
	case TransportDirect:
		return "direct"
	case TransportProxied:
		return "proxied"
	default:
		return "unknown"
	}
}

// nextTransport 根据本次传输的结果决定下一步。
// 直传的任何失败都会回退到代理一次；代理失败后不再重试。
func nextTransport(current Transport, err error) (Transport, bool) {
	if err == nil {
		return current, false
	}
	if current == TransportDirect {
		return TransportProxied, true
	}
	return current, false
}

// HTTPTransferer 是基于 net/http 的 Transferer 实现。
type HTTPTransferer struct {
	client *http.Client
}

// NewHTTPTransferer 创建一个 HTTPTransferer，timeout 为 0 表示不设超时。
func NewHTTPTransferer(timeout time.Duration) *HTTPTransferer {
	return &HTTPTransferer{client: &http.Client{Timeout: timeout}}
}

// Put 执行直传。网络错误与非 2xx 状态码都返回 *model.TransportError。
func (t *HTTPTransferer) Put(ctx context.Context, url string, data []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return &model.TransportError{Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &model.TransportError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.TransportError{Status: resp.StatusCode}
	}
	return nil
}
