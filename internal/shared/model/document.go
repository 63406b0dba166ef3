// Package model 定义核心数据模型
//
// document.go 包含无类型文档（Document）的定义与转换工具：
//   - Document：持久化层交换的通用键值文档
//   - ToDocument：任意可 JSON 序列化的值 → Document
//   - DecodeDocument：Document → 具体结构体
package model

import (
	"encoding/json"
	"fmt"
)

// Document 无类型文档
//
// 持久化层只认识 Document，不关心具体的模型结构。
// 嵌套值同样是 JSON 兼容的基础类型（map[string]any、[]any、string、float64 等）。
type Document map[string]any

// ToDocument 通过 JSON 编码把任意值转换为 Document
func ToDocument(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("model: encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("model: encode document: %w", err)
	}
	return doc, nil
}

// DecodeDocument 把 Document 解码到 out（out 必须为指针）
//
// 解码经过 out 类型自身的 UnmarshalJSON，因此模型的构造期校验同样生效。
func DecodeDocument(doc Document, out any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("model: decode document: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("model: decode document: %w", err)
	}
	return nil
}

// NormalizeMap 把 map 中的值统一为 JSON 原生类型（数值为 float64，切片为 []any）
//
// 结果与持久化后读回的值一致；nil 保持为 nil。
func NormalizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	doc, err := ToDocument(m)
	if err != nil {
		return nil, err
	}
	return map[string]any(doc), nil
}

// String 读取字符串字段，不存在或类型不符时返回空串
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Clone 浅拷贝顶层字段
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
