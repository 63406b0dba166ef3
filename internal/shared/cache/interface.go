// Package cache 缓存层抽象接口
//
// 提供渲染结果缓存能力，当前由 Redis 实现。
package cache

import (
	"context"
)

// RenderCache 渲染文本缓存接口
//
// kind 区分实体类型（如 task_response、message），id 为实体 ID。
// 未命中时返回 ("", false, nil)。
type RenderCache interface {
	GetRendered(ctx context.Context, kind, id string) (string, bool, error)
	SetRendered(ctx context.Context, kind, id, text string) error
	InvalidateRendered(ctx context.Context, kind, id string) error
	Close() error
}
