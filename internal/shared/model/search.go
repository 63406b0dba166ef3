// Package model 定义核心数据模型
//
// search.go 包含搜索结果模型：
//   - SearchResult：单条搜索结果
//   - SanitizeMetadata：元数据值统一转换为字符串
package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"time"

	"agents-workflow/pkg/logging"
)

// UnserializableValue 元数据无法转换为字符串时的占位值
const UnserializableValue = "Unserializable value"

var modelLog = logging.Default("model")

// SearchResult 搜索结果
type SearchResult struct {
	Title    string            `json:"title"`
	URL      string            `json:"url"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewSearchResult 创建搜索结果，元数据在构造时统一转换为字符串
func NewSearchResult(title, url, content string, metadata map[string]any) *SearchResult {
	return &SearchResult{
		Title:    title,
		URL:      url,
		Content:  content,
		Metadata: SanitizeMetadata(metadata),
	}
}

// ReferenceType 实现 Reference 接口
func (s *SearchResult) ReferenceType() ReferenceType {
	return ReferenceTypeSearchResults
}

func (s *SearchResult) String() string {
	return fmt.Sprintf("Title: %s\nURL: %s\nContent: %s", s.Title, s.URL, s.Content)
}

// UnmarshalJSON 反序列化时同样执行元数据转换（存储中的数值会被还原为字符串）
func (s *SearchResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title    string         `json:"title"`
		URL      string         `json:"url"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SearchResult{
		Title:    raw.Title,
		URL:      raw.URL,
		Content:  raw.Content,
		Metadata: SanitizeMetadata(raw.Metadata),
	}
	return nil
}

// SanitizeMetadata 把任意元数据值转换为字符串
//
// 时间值转换为 RFC 3339 格式；无法转换的值替换为 UnserializableValue 并记录告警，
// 不会导致整个对象构造失败。
func SanitizeMetadata(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for key, val := range metadata {
		s, err := metadataString(val)
		if err != nil {
			modelLog.Warn("metadata value is not serializable",
				slog.String("key", key),
				slog.String("type", fmt.Sprintf("%T", val)),
				slog.String("error", err.Error()),
			)
			s = UnserializableValue
		}
		out[key] = s
	}
	return out
}

func metadataString(val any) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during conversion: %v", r)
		}
	}()

	switch v := val.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case *time.Time:
		if v == nil {
			return "", nil
		}
		return v.Format(time.RFC3339Nano), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case error:
		return v.Error(), nil
	}

	switch reflect.TypeOf(val).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return "", fmt.Errorf("unsupported kind %s", reflect.TypeOf(val).Kind())
	}
	data, err := json.Marshal(val)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
