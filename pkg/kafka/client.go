// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"docvault-go/internal/config"
	"docvault-go/pkg/events"
	"docvault-go/pkg/log"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventProcessor defines the interface for any service that can process a document event.
// This decouples the Kafka consumer from the concrete cleanup implementation.
type EventProcessor interface {
	// Process 返回 commit=true 表示该消息可以提交 offset（成功或放弃重试）。
	Process(ctx context.Context, event events.DocumentEvent) (commit bool, err error)
}

// Producer 是 events.Publisher 的 Kafka 实现。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Publish 发送一个文档事件到 Kafka，使用文档 id 作为消息 key 以保证同一文档的事件有序。
func (p *Producer) Publish(ctx context.Context, event events.DocumentEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.DocumentID),
		Value: value,
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理文档事件，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	retry := retryPolicy{initial: cfg.RetryBackoff, max: cfg.RetryBackoffMax, sleep: sleepContext}

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var event events.DocumentEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		// 未提交的消息必须原地重试，否则后续消息的提交会越过它。
		if !processUntilCommitted(ctx, processor, event, retry) {
			break
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// retryPolicy 描述同一条消息两次处理之间的指数退避。
type retryPolicy struct {
	initial time.Duration
	max     time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// processUntilCommitted 反复处理同一个事件，直到 processor 返回 commit=true。
// ctx 结束时返回 false，消息保持未提交，重启后会从该 offset 重新消费。
func processUntilCommitted(ctx context.Context, processor EventProcessor, event events.DocumentEvent, p retryPolicy) bool {
	delay := p.initial
	if delay <= 0 {
		delay = time.Second
	}
	for attempt := 1; ; attempt++ {
		commit, err := processor.Process(ctx, event)
		if err != nil {
			log.Errorf("处理文档事件失败: type=%s, documentID=%s, attempt=%d, error: %v", event.Type, event.DocumentID, attempt, err)
		}
		if commit {
			return true
		}
		if err := p.sleep(ctx, delay); err != nil {
			log.Warnf("停止重试文档事件, documentID: %s, error: %v", event.DocumentID, err)
			return false
		}
		delay *= 2
		if p.max > 0 && delay > p.max {
			delay = p.max
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
