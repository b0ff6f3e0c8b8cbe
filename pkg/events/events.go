// Package events defines the document lifecycle events that are sent to Kafka.
package events

import (
	"context"
	"time"
)

// Type 表示文档事件的类型。
type Type string

const (
	DocumentCreated Type = "document.created"
	DocumentRenamed Type = "document.renamed"
	DocumentMoved   Type = "document.moved"
	DocumentDeleted Type = "document.deleted"
)

// DocumentEvent represents a change to a document record.
type DocumentEvent struct {
	Type       Type      `json:"type"`
	DocumentID string    `json:"document_id"`
	FolderID   *string   `json:"folder_id"`
	FileID     string    `json:"file_id"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 发布文档事件。
type Publisher interface {
	Publish(ctx context.Context, event DocumentEvent) error
}

// NopPublisher 丢弃所有事件，用于未配置 Kafka 的环境和测试。
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DocumentEvent) error { return nil }
