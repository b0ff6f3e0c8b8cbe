// Package service 包含了应用的业务逻辑层。
package service

import (
	"docvault-go/internal/model"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

const (
	MaxFolderNameLength    = 255
	MaxDocumentTitleLength = 255
)

// requireText 校验必填文本字段，返回去除首尾空白后的值。
// 校验失败时返回 model.ValidationError，调用方必须在访问任何仓库之前调用。
func requireText(field, value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	err := validation.Validate(trimmed,
		validation.Required.Error("must not be blank"),
		validation.RuneLength(1, maxLen),
	)
	if err != nil {
		return "", model.NewValidationError("%s %v", field, err)
	}
	return trimmed, nil
}

// normalizeID 把空白 id 视为 nil。
func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// notFoundOr 把 gorm.ErrRecordNotFound 转换为 model.NotFoundError。
func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.NewNotFoundError(resource, id)
	}
	return err
}
