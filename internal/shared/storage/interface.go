// Package storage 定义文档持久化层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖 DocumentStore 接口，不知道具体实现
//   - 具体实现在子包中：memory/, repository/ (SQLite/PostgreSQL), mongostore/, etcd/
//   - 初始化时通过依赖注入传入实现（见 infra.New）
//
// 存储单元是 model.Document：JSON 兼容的无类型文档，
// 由 model 包负责与强类型实体之间的转换。
package storage

import (
	"context"
	"fmt"
	"sort"

	"agents-workflow/internal/shared/model"
)

// Collection 名称常量
const (
	CollectionTaskResponses = "task_responses"
	CollectionMessages      = "messages"
)

// DocumentStore 文档存储接口
//
// 所有实现需满足：
//   - Put 为 upsert 语义，同一 (collection, id) 覆盖写
//   - Get/Delete 在文档不存在时返回 ErrNotFound
//   - List 按 id 升序返回，空结果为非 nil 空切片
//   - 返回的文档与存储内容互不共享内存
type DocumentStore interface {
	Put(ctx context.Context, collection, id string, doc model.Document) error
	Get(ctx context.Context, collection, id string) (model.Document, error)
	List(ctx context.Context, collection string, opts ListOptions) ([]model.Document, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

// ListOptions 列表查询参数
type ListOptions struct {
	// Filter 顶层字符串字段等值过滤，如 {"task_id": "t-1"}
	Filter map[string]string
	Limit  int
	Offset int
}

// ValidateKey 校验 collection 与 id
func ValidateKey(collection, id string) error {
	if collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidKey)
	}
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidKey)
	}
	return nil
}

// MatchFilter 判断文档是否满足等值过滤条件
func MatchFilter(doc model.Document, filter map[string]string) bool {
	for k, want := range filter {
		got, ok := doc[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Paginate 对已排序结果应用 Offset/Limit
func Paginate[T any](items []T, opts ListOptions) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return []T{}
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

// SortByID 按 id 字段升序排序
func SortByID(docs []model.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].String("id") < docs[j].String("id")
	})
}
