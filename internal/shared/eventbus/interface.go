// Package eventbus 事件总线抽象接口
//
// 提供文档变更事件的发布/订阅能力，当前由 Redis Streams 实现。
package eventbus

import (
	"context"
)

// DocumentEventBus 文档事件总线接口
type DocumentEventBus interface {
	// PublishDocumentEvent 发布事件到 event.Collection 对应的流
	PublishDocumentEvent(ctx context.Context, event *DocumentEvent) error
	// GetDocumentEvents 按流 ID 顺序读取事件；fromID 为空时从头开始（含 fromID 本身）
	GetDocumentEvents(ctx context.Context, collection, fromID string, count int64) ([]*DocumentEvent, error)
	// SubscribeDocumentEvents 订阅新事件，ctx 取消后关闭通道
	SubscribeDocumentEvents(ctx context.Context, collection string) (<-chan *DocumentEvent, error)
}

// EventBus 事件总线组合接口
type EventBus interface {
	DocumentEventBus
	Close() error
}
