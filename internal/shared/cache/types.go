// Package cache 缓存层常量定义
package cache

import (
	"fmt"
	"time"
)

const (
	// KeyRendered 渲染结果 Key 前缀
	KeyRendered = "rendered:"

	// TTLRendered 默认渲染结果 TTL
	TTLRendered = 10 * time.Minute
)

// RenderedKey 生成渲染结果缓存 Key
func RenderedKey(kind, id string) string {
	return fmt.Sprintf("%s%s:%s", KeyRendered, kind, id)
}
