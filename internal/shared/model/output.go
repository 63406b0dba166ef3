// Package model 定义核心数据模型
//
// output.go 包含任务输出的标签联合（tagged union）定义：
//   - OutputKind：输出种类标签（封闭集合）
//   - Output：所有输出变体的公共接口
//   - StringOutput / ChatOutput / SearchOutput / WorkflowOutput：四种输出变体
//   - OutputToDocument / OutputFromDocument：与无类型文档之间的转换
//
// 序列化格式：{"kind": "<变体名>", "content": [...]}
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// OutputKind - 输出种类
// ============================================================================

// OutputKind 输出种类标签
type OutputKind string

const (
	OutputKindString   OutputKind = "StringOutput"
	OutputKindChat     OutputKind = "ChatOutput"
	OutputKindSearch   OutputKind = "SearchOutput"
	OutputKindWorkflow OutputKind = "WorkflowOutput"

	// OutputKindLegacyChat 旧版本写入的对话输出标签，按 ChatOutput 解析
	OutputKindLegacyChat OutputKind = "LLMChatOutput"
)

// KindField 文档中携带种类标签的字段名
const KindField = "kind"

// Output 任务输出
//
// 每种变体暴露自己的种类标签和字符串渲染规则。
type Output interface {
	Kind() OutputKind
	String() string
}

// outputFactories 种类标签 → 构造函数
//
// 解析只走这张表，未登记的标签一律回退为 StringOutput。
var outputFactories = map[OutputKind]func() Output{
	OutputKindString:     func() Output { return &StringOutput{} },
	OutputKindChat:       func() Output { return &ChatOutput{} },
	OutputKindLegacyChat: func() Output { return &ChatOutput{} },
	OutputKindSearch:     func() Output { return &SearchOutput{} },
	OutputKindWorkflow:   func() Output { return &WorkflowOutput{} },
}

// NewOutput 按种类标签创建空的输出变体
func NewOutput(kind OutputKind) (Output, bool) {
	factory, ok := outputFactories[kind]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// ============================================================================
// StringOutput
// ============================================================================

// StringOutput 纯文本输出
type StringOutput struct {
	Content []string `json:"content"`
}

func (o *StringOutput) Kind() OutputKind { return OutputKindString }

// ReferenceType 纯文本输出也可作为消息引用
func (o *StringOutput) ReferenceType() ReferenceType { return ReferenceTypeStringOutputs }

func (o *StringOutput) String() string {
	return strings.Join(o.Content, "\n")
}

func (o *StringOutput) MarshalJSON() ([]byte, error) {
	type plain StringOutput
	return marshalWithKind(o.Kind(), (*plain)(o))
}

func (o *StringOutput) UnmarshalJSON(data []byte) error {
	type plain StringOutput
	return json.Unmarshal(data, (*plain)(o))
}

// ============================================================================
// ChatOutput
// ============================================================================

// ChatOutput 对话记录输出
type ChatOutput struct {
	Content []*Message `json:"content"`
}

func (o *ChatOutput) Kind() OutputKind { return OutputKindChat }

func (o *ChatOutput) String() string {
	lines := make([]string, 0, len(o.Content))
	for _, m := range o.Content {
		if m == nil {
			continue
		}
		line := string(m.Role) + ": "
		if m.AssistantName != "" {
			line += m.AssistantName + "\n"
		}
		lines = append(lines, line+m.Content)
	}
	return strings.Join(lines, "\n")
}

func (o *ChatOutput) MarshalJSON() ([]byte, error) {
	type plain ChatOutput
	return marshalWithKind(o.Kind(), (*plain)(o))
}

func (o *ChatOutput) UnmarshalJSON(data []byte) error {
	type plain ChatOutput
	return json.Unmarshal(data, (*plain)(o))
}

// ============================================================================
// SearchOutput
// ============================================================================

// SearchOutput 搜索结果输出
type SearchOutput struct {
	Content []*SearchResult `json:"content"`
}

func (o *SearchOutput) Kind() OutputKind { return OutputKindSearch }

func (o *SearchOutput) String() string {
	blocks := make([]string, 0, len(o.Content))
	for _, r := range o.Content {
		if r == nil {
			continue
		}
		blocks = append(blocks, r.String())
	}
	return strings.Join(blocks, "\n")
}

func (o *SearchOutput) MarshalJSON() ([]byte, error) {
	type plain SearchOutput
	return marshalWithKind(o.Kind(), (*plain)(o))
}

func (o *SearchOutput) UnmarshalJSON(data []byte) error {
	type plain SearchOutput
	return json.Unmarshal(data, (*plain)(o))
}

// ============================================================================
// WorkflowOutput
// ============================================================================

// WorkflowOutput 工作流输出，包含各子任务的执行结果
type WorkflowOutput struct {
	Content []*TaskResponse `json:"content"`
}

func (o *WorkflowOutput) Kind() OutputKind { return OutputKindWorkflow }

func (o *WorkflowOutput) String() string {
	blocks := make([]string, 0, len(o.Content))
	for _, t := range o.Content {
		if t == nil {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%s: %s\nTask Output:%s", t.TaskName, t.TaskDescription, t.TaskOutputs))
	}
	return strings.Join(blocks, "\n")
}

func (o *WorkflowOutput) MarshalJSON() ([]byte, error) {
	type plain WorkflowOutput
	return marshalWithKind(o.Kind(), (*plain)(o))
}

func (o *WorkflowOutput) UnmarshalJSON(data []byte) error {
	type plain WorkflowOutput
	return json.Unmarshal(data, (*plain)(o))
}

// ============================================================================
// 文档转换
// ============================================================================

// marshalWithKind 在变体自身字段之外注入 kind 字段
func marshalWithKind(kind OutputKind, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if string(fields["content"]) == "null" {
		fields["content"] = json.RawMessage("[]")
	}
	fields[KindField], _ = json.Marshal(string(kind))
	return json.Marshal(fields)
}

// OutputToDocument 把输出变体序列化为携带 kind 的文档
func OutputToDocument(o Output) (Document, error) {
	if o == nil {
		return nil, nil
	}
	return ToDocument(o)
}

// OutputFromDocument 按 kind 标签还原输出变体
//
// 以下情况返回错误，由调用方决定回退策略：
//   - kind 缺失或不是字符串
//   - kind 未登记
//   - 文档包含变体不认识的字段，或 content 形状不符
func OutputFromDocument(doc Document) (Output, error) {
	if doc == nil {
		return nil, fmt.Errorf("output document is empty")
	}
	rawKind, ok := doc[KindField]
	if !ok {
		return nil, fmt.Errorf("output document has no %q field", KindField)
	}
	kind, ok := rawKind.(string)
	if !ok {
		return nil, fmt.Errorf("output kind must be a string, got %T", rawKind)
	}
	out, ok := NewOutput(OutputKind(kind))
	if !ok {
		return nil, fmt.Errorf("unknown output kind %q", kind)
	}

	fields := doc.Clone()
	delete(fields, KindField)
	for key := range fields {
		if key != "content" {
			return nil, fmt.Errorf("%s has no field %q", kind, key)
		}
	}
	if err := DecodeDocument(fields, out); err != nil {
		return nil, fmt.Errorf("construct %s: %w", kind, err)
	}
	return out, nil
}
