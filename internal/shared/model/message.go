// Package model 定义核心数据模型
//
// message.go 包含对话消息相关的数据模型定义：
//   - Role / GeneratedBy / ContentType：消息枚举
//   - ToolCall：工具调用记录
//   - Message：对话中的一轮消息（携带引用容器）
//
// 注意：Message 的字符串渲染按 Type 分派，规则集中在 String() 中。
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// 枚举
// ============================================================================

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// GeneratedBy 消息生成者
type GeneratedBy string

const (
	GeneratedByUser GeneratedBy = "user"
	GeneratedByLLM  GeneratedBy = "llm"
	GeneratedByTool GeneratedBy = "tool"
)

// ContentType 消息内容类型
type ContentType string

const (
	ContentTypeText         ContentType = "text"
	ContentTypeImage        ContentType = "image"
	ContentTypeVideo        ContentType = "video"
	ContentTypeAudio        ContentType = "audio"
	ContentTypeFile         ContentType = "file"
	ContentTypeTaskResponse ContentType = "task_response"
	ContentTypeMultiple     ContentType = "multiple"
)

// ============================================================================
// ToolCall - 工具调用
// ============================================================================

// ToolCall 工具调用记录（OpenAI 兼容格式）
type ToolCall struct {
	// ID 工具调用 ID
	ID string `json:"id"`

	// Type 调用类型，目前只有 function
	Type string `json:"type" validate:"oneof=function"`

	// Function 被调用的函数
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction 工具调用的函数部分
type ToolCallFunction struct {
	// Name 函数名
	Name string `json:"name" validate:"required"`

	// Arguments JSON 编码的参数
	Arguments string `json:"arguments"`
}

// UnmarshalJSON 兼容 arguments 为对象的写法（统一转换为 JSON 字符串）
func (f *ToolCallFunction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Name = raw.Name
	f.Arguments = ""
	if len(raw.Arguments) > 0 && string(raw.Arguments) != "null" {
		var s string
		if err := json.Unmarshal(raw.Arguments, &s); err == nil {
			f.Arguments = s
		} else {
			f.Arguments = string(raw.Arguments)
		}
	}
	return nil
}

// NormalizeToolCalls 把异构的工具调用列表统一转换为 ToolCall
//
// 支持的元素类型：ToolCall、*ToolCall、map[string]any（或 Document）。
// 其他类型直接返回 ValidationError。nil 输入返回 nil。
func NormalizeToolCalls(items []any) ([]ToolCall, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]ToolCall, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("tool_calls[%d]", i)
		var tc ToolCall
		switch v := item.(type) {
		case ToolCall:
			tc = v
		case *ToolCall:
			if v == nil {
				return nil, newValidationError(field, "nil tool call")
			}
			tc = *v
		case map[string]any:
			if err := DecodeDocument(Document(v), &tc); err != nil {
				return nil, newValidationError(field, "cannot convert mapping to tool call: %v", err)
			}
		case Document:
			if err := DecodeDocument(v, &tc); err != nil {
				return nil, newValidationError(field, "cannot convert mapping to tool call: %v", err)
			}
		default:
			return nil, newValidationError(field, "invalid tool call type: %T", item)
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		if err := validateStruct(&tc); err != nil {
			return nil, newValidationError(field, "%v", err)
		}
		out = append(out, tc)
	}
	return out, nil
}

// ============================================================================
// Message - 对话消息
// ============================================================================

// Message 对话消息
//
// Message 在用户、Agent 或工具产生一轮对话时创建，创建后除追加引用外不再修改。
// 引用容器随消息一起内联序列化。
type Message struct {
	// ID 消息 ID，未持久化时为空
	ID string `json:"id"`

	// Role 角色（user, assistant, system, tool）
	Role Role `json:"role" validate:"oneof=user assistant system tool"`

	// Content 消息内容
	Content string `json:"content"`

	// GeneratedBy 生成者（user, llm, tool）
	GeneratedBy GeneratedBy `json:"generated_by" validate:"oneof=user llm tool"`

	// Step 产生该消息的步骤，通常是任务名或工具名
	Step string `json:"step"`

	// AssistantName 助手名称
	AssistantName string `json:"assistant_name"`

	// Context 消息上下文
	Context map[string]any `json:"context"`

	// Type 内容类型
	Type ContentType `json:"type" validate:"oneof=text image video audio file task_response multiple"`

	// ToolCalls 工具调用列表
	ToolCalls []ToolCall `json:"tool_calls"`

	// ToolCallID 产生该消息的工具调用 ID
	ToolCallID string `json:"tool_call_id"`

	// FunctionCall 函数调用
	FunctionCall map[string]any `json:"function_call"`

	// RequestType 请求类型（approval, confirmation 等）
	RequestType string `json:"request_type"`

	// References 引用容器
	References *References `json:"references"`

	// CreationMetadata 生成元数据（费用、token 数、结束原因等）
	CreationMetadata map[string]any `json:"creation_metadata"`

	// === 时间戳与操作者 ===

	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
	CreatedBy string     `json:"created_by"`
	UpdatedBy string     `json:"updated_by"`
}

// NewMessage 创建消息：填充默认值并执行构造期校验
func NewMessage(m Message) (*Message, error) {
	msg := m
	if err := msg.normalize(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// normalize 填充默认值、初始化引用容器并校验
func (m *Message) normalize() error {
	if m.Role == "" {
		m.Role = RoleUser
	}
	if m.GeneratedBy == "" {
		m.GeneratedBy = GeneratedByUser
	}
	if m.Type == "" {
		m.Type = ContentTypeText
	}
	if m.References == nil {
		m.References = NewReferences()
	}
	for field, ptr := range map[string]*map[string]any{
		"context":           &m.Context,
		"function_call":     &m.FunctionCall,
		"creation_metadata": &m.CreationMetadata,
	} {
		normalized, err := NormalizeMap(*ptr)
		if err != nil {
			return newValidationError(field, "%v", err)
		}
		*ptr = normalized
	}
	for i := range m.ToolCalls {
		if m.ToolCalls[i].Type == "" {
			m.ToolCalls[i].Type = "function"
		}
		if err := validateStruct(&m.ToolCalls[i]); err != nil {
			return newValidationError(fmt.Sprintf("tool_calls[%d]", i), "%v", err)
		}
	}
	return validateStruct(m)
}

// Validate 校验消息的枚举字段与工具调用
func (m *Message) Validate() error {
	if err := validateStruct(m); err != nil {
		return err
	}
	for i := range m.ToolCalls {
		if err := validateStruct(&m.ToolCalls[i]); err != nil {
			return newValidationError(fmt.Sprintf("tool_calls[%d]", i), "%v", err)
		}
	}
	return nil
}

// UnmarshalJSON 反序列化并执行与 NewMessage 相同的规范化
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		*plain
		ToolCalls []any `json:"tool_calls"`
	}
	raw.plain = (*plain)(m)
	*m = Message{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	toolCalls, err := NormalizeToolCalls(raw.ToolCalls)
	if err != nil {
		return err
	}
	m.ToolCalls = toolCalls
	return m.normalize()
}

// ReferenceType 消息本身也可以被其他消息引用
func (m *Message) ReferenceType() ReferenceType {
	return ReferenceTypeMessages
}

// AddReference 追加引用
func (m *Message) AddReference(ref Reference) {
	if m.References == nil {
		m.References = NewReferences()
	}
	m.References.AddReference(ref)
}

// GetReferencesByType 按类型获取引用
func (m *Message) GetReferencesByType(t ReferenceType) []Reference {
	return m.References.GetReferences(t)
}

// HasContent 内容是否非空
func (m *Message) HasContent() bool {
	return m != nil && m.Content != ""
}

// String 按内容类型渲染消息
func (m *Message) String() string {
	var parts []string

	switch m.Type {
	case ContentTypeImage, ContentTypeAudio, ContentTypeVideo, ContentTypeFile:
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, m.Content))
		for _, ref := range m.References.GetReferences(ReferenceTypeFiles) {
			parts = append(parts, ref.String())
		}
	case ContentTypeText:
		parts = append(parts, fmt.Sprintf("%s%s: %s", m.Role, m.assistantSuffix(), m.Content))
		if !m.References.IsEmpty() {
			parts = append(parts, "References: "+m.References.Summary())
		}
	case ContentTypeTaskResponse:
		generatedBy := ""
		if m.GeneratedBy == GeneratedByUser || m.GeneratedBy == GeneratedByLLM {
			generatedBy = fmt.Sprintf("(generated by %s)", m.GeneratedBy)
		}
		parts = append(parts, fmt.Sprintf("%s - Step: %s %s: %s", m.Role, m.Step, generatedBy, m.Content))
		for _, ref := range m.References.GetReferences(ReferenceTypeTaskResponses) {
			parts = append(parts, ref.String())
		}
	case ContentTypeMultiple:
		parts = append(parts, fmt.Sprintf("%s%s: %s", m.Role, m.assistantSuffix(), m.Content))
		if detail := m.References.DetailedSummary(); detail != "" {
			parts = append(parts, detail)
		}
	default:
		parts = append(parts, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	return strings.Join(parts, "\n")
}

func (m *Message) assistantSuffix() string {
	if m.AssistantName == "" {
		return ""
	}
	return " (" + m.AssistantName + ")"
}
