// Package model 定义核心数据模型
//
// reference.go 包含消息引用容器的定义：
//   - ReferenceType：引用类型枚举（封闭集合）
//   - Reference：可挂载到消息上的引用对象
//   - References：按类型分组、保持插入顺序的引用容器
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// ReferenceType - 引用类型枚举
// ============================================================================

// ReferenceType 引用类型
type ReferenceType string

const (
	// ReferenceTypeMessages 引用其他消息
	ReferenceTypeMessages ReferenceType = "messages"

	// ReferenceTypeFiles 引用文件
	ReferenceTypeFiles ReferenceType = "files"

	// ReferenceTypeTaskResponses 引用任务执行结果
	ReferenceTypeTaskResponses ReferenceType = "task_responses"

	// ReferenceTypeSearchResults 引用搜索结果
	ReferenceTypeSearchResults ReferenceType = "search_results"

	// ReferenceTypeStringOutputs 引用纯文本输出
	ReferenceTypeStringOutputs ReferenceType = "string_outputs"
)

// referenceTypes 引用类型的固定顺序，摘要与序列化均按此顺序输出
var referenceTypes = []ReferenceType{
	ReferenceTypeMessages,
	ReferenceTypeFiles,
	ReferenceTypeTaskResponses,
	ReferenceTypeSearchResults,
	ReferenceTypeStringOutputs,
}

// IsValid 判断是否属于已知的引用类型
func (t ReferenceType) IsValid() bool {
	for _, known := range referenceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Reference 引用对象
//
// 每个引用对象声明自己的引用类型，并提供自身的字符串形式。
type Reference interface {
	ReferenceType() ReferenceType
	String() string
}

// ============================================================================
// References - 引用容器
// ============================================================================

// References 引用容器
//
// 由 Message 持有，不单独持久化；随消息内联序列化为
// {"files": [...], "task_responses": [...]}。
// 同一类型内保持插入顺序，不做去重。
type References struct {
	items map[ReferenceType][]Reference
}

// NewReferences 创建空的引用容器
func NewReferences() *References {
	return &References{items: make(map[ReferenceType][]Reference)}
}

// AddReference 追加引用到其声明类型的序列末尾
func (r *References) AddReference(ref Reference) {
	if ref == nil {
		return
	}
	if r.items == nil {
		r.items = make(map[ReferenceType][]Reference)
	}
	t := ref.ReferenceType()
	r.items[t] = append(r.items[t], ref)
}

// GetReferences 返回指定类型的引用，不存在时返回空切片
func (r *References) GetReferences(t ReferenceType) []Reference {
	if r == nil || len(r.items[t]) == 0 {
		return []Reference{}
	}
	out := make([]Reference, len(r.items[t]))
	copy(out, r.items[t])
	return out
}

// Len 返回引用总数
func (r *References) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, refs := range r.items {
		n += len(refs)
	}
	return n
}

// IsEmpty 是否没有任何引用
func (r *References) IsEmpty() bool {
	return r.Len() == 0
}

// Summary 单行摘要，如 "files: 2, task_responses: 1"
func (r *References) Summary() string {
	if r.IsEmpty() {
		return "No references"
	}
	var parts []string
	for _, t := range referenceTypes {
		if n := len(r.items[t]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", t, n))
		}
	}
	return strings.Join(parts, ", ")
}

// DetailedSummary 多行摘要，逐个列出引用的字符串形式
func (r *References) DetailedSummary() string {
	if r.IsEmpty() {
		return ""
	}
	var lines []string
	for _, t := range referenceTypes {
		refs := r.items[t]
		if len(refs) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s:", t))
		for _, ref := range refs {
			lines = append(lines, ref.String())
		}
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON 按固定类型顺序输出非空分组
func (r *References) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, t := range referenceTypes {
		if r == nil || len(r.items[t]) == 0 {
			continue
		}
		data, err := json.Marshal(r.items[t])
		if err != nil {
			return nil, fmt.Errorf("marshal %s references: %w", t, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(string(t))
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON 按类型名还原具体的引用对象，未知类型返回 ValidationError
func (r *References) UnmarshalJSON(data []byte) error {
	r.items = make(map[ReferenceType][]Reference)
	if string(bytes.TrimSpace(data)) == "null" {
		return nil
	}
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return newValidationError("references", "must be a mapping of reference lists: %v", err)
	}
	for _, t := range referenceTypes {
		for i, elem := range raw[string(t)] {
			ref, err := decodeReference(t, elem)
			if err != nil {
				return fmt.Errorf("references.%s[%d]: %w", t, i, err)
			}
			r.items[t] = append(r.items[t], ref)
		}
	}
	for key := range raw {
		if !ReferenceType(key).IsValid() {
			return newValidationError("references", "unknown reference type %q", key)
		}
	}
	return nil
}

// decodeReference 引用类型 → 具体类型的固定映射
func decodeReference(t ReferenceType, data json.RawMessage) (Reference, error) {
	var ref Reference
	switch t {
	case ReferenceTypeMessages:
		ref = &Message{}
	case ReferenceTypeFiles:
		ref = &FileReference{}
	case ReferenceTypeTaskResponses:
		ref = &TaskResponse{}
	case ReferenceTypeSearchResults:
		ref = &SearchResult{}
	case ReferenceTypeStringOutputs:
		ref = &StringOutput{}
	default:
		return nil, newValidationError("references", "unknown reference type %q", t)
	}
	if err := json.Unmarshal(data, ref); err != nil {
		return nil, err
	}
	return ref, nil
}
