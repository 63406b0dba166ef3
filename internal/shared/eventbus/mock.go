// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"
)

// NoOpEventBus 是一个丢弃所有事件的 EventBus 实现
type NoOpEventBus struct{}

var _ EventBus = (*NoOpEventBus)(nil)

// NewNoOpEventBus 创建 NoOpEventBus 实例
func NewNoOpEventBus() *NoOpEventBus {
	return &NoOpEventBus{}
}

func (b *NoOpEventBus) PublishDocumentEvent(ctx context.Context, event *DocumentEvent) error {
	return nil
}

func (b *NoOpEventBus) GetDocumentEvents(ctx context.Context, collection, fromID string, count int64) ([]*DocumentEvent, error) {
	return []*DocumentEvent{}, nil
}

// SubscribeDocumentEvents 返回的通道在 ctx 取消后关闭
func (b *NoOpEventBus) SubscribeDocumentEvents(ctx context.Context, collection string) (<-chan *DocumentEvent, error) {
	ch := make(chan *DocumentEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Close 关闭事件总线
func (b *NoOpEventBus) Close() error {
	return nil
}
