// Package cache 缓存层 mock 实现
package cache

import (
	"context"
)

// NoOpCache 是一个不做任何操作的 RenderCache 实现，始终未命中
type NoOpCache struct{}

var _ RenderCache = (*NoOpCache)(nil)

// NewNoOpCache 创建 NoOpCache 实例
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetRendered(ctx context.Context, kind, id string) (string, bool, error) {
	return "", false, nil
}

func (c *NoOpCache) SetRendered(ctx context.Context, kind, id, text string) error {
	return nil
}

func (c *NoOpCache) InvalidateRendered(ctx context.Context, kind, id string) error {
	return nil
}

// Close 关闭缓存
func (c *NoOpCache) Close() error {
	return nil
}
