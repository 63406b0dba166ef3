// Package eventbus 事件总线类型定义
package eventbus

import (
	"time"
)

// 事件类型
const (
	EventDocumentSaved   = "document.saved"
	EventDocumentDeleted = "document.deleted"
)

// DocumentEvent 文档变更事件
type DocumentEvent struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Collection string                 `json:"collection"`
	DocumentID string                 `json:"document_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

const (
	// KeyDocumentEvents Stream Key 前缀
	KeyDocumentEvents = "document_events:"

	// MaxStreamLength Stream 最大长度
	MaxStreamLength = 1000
)

// StreamKey 返回 collection 对应的 Stream Key
func StreamKey(collection string) string {
	return KeyDocumentEvents + collection
}
