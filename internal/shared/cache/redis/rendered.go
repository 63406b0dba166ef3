// Package redis 渲染结果缓存操作
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"agents-workflow/internal/shared/cache"
)

// GetRendered 获取渲染结果
func (s *Store) GetRendered(ctx context.Context, kind, id string) (string, bool, error) {
	text, err := s.client.Get(ctx, cache.RenderedKey(kind, id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// SetRendered 写入渲染结果
func (s *Store) SetRendered(ctx context.Context, kind, id, text string) error {
	return s.client.Set(ctx, cache.RenderedKey(kind, id), text, s.ttl).Err()
}

// InvalidateRendered 删除渲染结果
func (s *Store) InvalidateRendered(ctx context.Context, kind, id string) error {
	return s.client.Del(ctx, cache.RenderedKey(kind, id)).Err()
}
