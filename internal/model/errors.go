package model

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError 描述可以映射为 HTTP 状态码的错误。
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors，配合 errors.Is 使用。
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrTransport        = errors.New("transport failed")
	ErrServer           = errors.New("server error")
	ErrPermissionDenied = errors.New("permission denied")
)

type (
	// ValidationError 表示输入不合法，在任何网络调用之前被拒绝。
	ValidationError struct {
		Message string
	}

	// NotFoundError 表示文件夹或文档 id 无法解析。
	NotFoundError struct {
		Resource string
		ID       string
	}

	// ConflictError 表示操作与当前状态冲突，例如删除非空文件夹。
	ConflictError struct {
		Message string
	}

	// TransportError 表示直传存储失败（网络错误、CORS、非 2xx 状态）。
	TransportError struct {
		Status int
		Err    error
	}

	// ServerError 表示 init/confirm/proxy 等后端接口返回了失败或不完整的响应。
	ServerError struct {
		Op      string
		Message string
	}

	// PermissionDeniedError 仅用于界面层的能力判断，真正的权限校验在服务端。
	PermissionDeniedError struct {
		FolderID string
	}
)

func (e *ValidationError) Error() string { return e.Message }
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}
func (e *ConflictError) Error() string { return e.Message }
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("direct transfer failed: %v", e.Err)
	}
	return fmt.Sprintf("direct transfer failed: status %d", e.Status)
}
func (e *ServerError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Message) }
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("access to folder %q denied", e.FolderID)
}

func (e *ValidationError) StatusCode() int       { return http.StatusBadRequest }
func (e *NotFoundError) StatusCode() int         { return http.StatusNotFound }
func (e *ConflictError) StatusCode() int         { return http.StatusConflict }
func (e *TransportError) StatusCode() int        { return http.StatusBadGateway }
func (e *ServerError) StatusCode() int           { return http.StatusBadGateway }
func (e *PermissionDeniedError) StatusCode() int { return http.StatusForbidden }

func (e *ValidationError) Is(target error) bool       { return target == ErrValidation }
func (e *NotFoundError) Is(target error) bool         { return target == ErrNotFound }
func (e *ConflictError) Is(target error) bool         { return target == ErrConflict }
func (e *TransportError) Is(target error) bool        { return target == ErrTransport }
func (e *ServerError) Is(target error) bool           { return target == ErrServer }
func (e *PermissionDeniedError) Is(target error) bool { return target == ErrPermissionDenied }

func (e *TransportError) Unwrap() error { return e.Err }

// ErrFolderNotEmpty 在删除仍包含子文件夹或文档的文件夹时返回。
var ErrFolderNotEmpty = &ConflictError{Message: "folder is not empty"}

// NewValidationError 构造一个 ValidationError。
func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError 构造一个 NotFoundError。
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewServerError 构造一个 ServerError。
func NewServerError(op, format string, args ...interface{}) error {
	return &ServerError{Op: op, Message: fmt.Sprintf(format, args...)}
}
