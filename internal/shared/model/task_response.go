// Package model 定义核心数据模型
//
// task_response.go 包含任务执行结果的两种表示：
//   - TaskResponse：运行时形态（TaskContent 为具体的 Output 变体）
//   - StoredTaskResponse：存储形态（TaskContent 为携带 kind 的无类型文档）
//
// 转换关系：
//
//	TaskResponse --ToStored()--> StoredTaskResponse --ToLive()--> TaskResponse
//
// 存储形态的 kind 缺失或无法识别时，还原为 StringOutput{[task_outputs]}，
// 还原过程永不失败。
package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// ============================================================================
// TaskResponseStatus - 执行结果状态
// ============================================================================

// TaskResponseStatus 任务执行结果状态
type TaskResponseStatus string

const (
	TaskResponseStatusPending  TaskResponseStatus = "pending"
	TaskResponseStatusComplete TaskResponseStatus = "complete"
	TaskResponseStatusFailed   TaskResponseStatus = "failed"
)

// ============================================================================
// TaskResponseBase - 两种形态共享的标量字段
// ============================================================================

// TaskResponseBase 任务执行结果的公共字段
type TaskResponseBase struct {
	// ID 执行结果 ID
	ID string `json:"id"`

	// TaskID 任务 ID
	TaskID string `json:"task_id"`

	// TaskName 任务名称
	TaskName string `json:"task_name" validate:"required"`

	// TaskDescription 任务描述
	TaskDescription string `json:"task_description"`

	// Status 状态（pending, complete, failed）
	Status TaskResponseStatus `json:"status" validate:"oneof=pending complete failed"`

	// ResultCode 结果码，0 表示成功
	ResultCode int `json:"result_code"`

	// ResultDiagnostic 诊断信息
	ResultDiagnostic string `json:"result_diagnostic"`

	// TaskInputs 任务输入
	TaskInputs map[string]any `json:"task_inputs"`

	// UsageMetrics 用量指标（token 数、耗时、费用等）
	UsageMetrics map[string]any `json:"usage_metrics"`

	// ExecutionHistory 执行历史
	ExecutionHistory []map[string]any `json:"execution_history"`

	// TaskOutputs 渲染后的输出文本
	TaskOutputs string `json:"task_outputs"`
}

// Normalize 把映射类字段统一为 JSON 原生类型，使其与存储读回的值一致
func (b *TaskResponseBase) Normalize() error {
	inputs, err := NormalizeMap(b.TaskInputs)
	if err != nil {
		return newValidationError("task_inputs", "%v", err)
	}
	metrics, err := NormalizeMap(b.UsageMetrics)
	if err != nil {
		return newValidationError("usage_metrics", "%v", err)
	}
	var history []map[string]any
	if b.ExecutionHistory != nil {
		history = make([]map[string]any, len(b.ExecutionHistory))
		for i, step := range b.ExecutionHistory {
			if history[i], err = NormalizeMap(step); err != nil {
				return newValidationError(fmt.Sprintf("execution_history[%d]", i), "%v", err)
			}
		}
	}
	b.TaskInputs = inputs
	b.UsageMetrics = metrics
	b.ExecutionHistory = history
	return nil
}

// ============================================================================
// TaskResponse - 运行时形态
// ============================================================================

// TaskResponse 任务执行结果（运行时形态）
type TaskResponse struct {
	TaskResponseBase

	// TaskContent 结构化输出
	TaskContent Output `json:"-"`
}

// NewTaskResponse 创建运行时形态：规范化映射字段并校验
func NewTaskResponse(base TaskResponseBase, content Output) (*TaskResponse, error) {
	if err := base.Normalize(); err != nil {
		return nil, err
	}
	resp := &TaskResponse{TaskResponseBase: base, TaskContent: content}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Validate 校验状态枚举与必填字段
func (t *TaskResponse) Validate() error {
	return validateStruct(&t.TaskResponseBase)
}

// ReferenceType 执行结果可作为消息引用
func (t *TaskResponse) ReferenceType() ReferenceType {
	return ReferenceTypeTaskResponses
}

func (t *TaskResponse) String() string {
	return fmt.Sprintf("%s: %s\nTask Output:\n%s", t.TaskName, t.TaskDescription, t.TaskOutputs)
}

// ToStored 转换为存储形态，TaskContent 序列化为携带 kind 的文档
func (t *TaskResponse) ToStored() (*StoredTaskResponse, error) {
	content, err := OutputToDocument(t.TaskContent)
	if err != nil {
		return nil, fmt.Errorf("task response %q: %w", t.TaskName, err)
	}
	return &StoredTaskResponse{
		TaskResponseBase: t.TaskResponseBase,
		TaskContent:      content,
	}, nil
}

// MarshalJSON 运行时形态的 JSON 与存储形态一致
func (t *TaskResponse) MarshalJSON() ([]byte, error) {
	stored, err := t.ToStored()
	if err != nil {
		return nil, err
	}
	return json.Marshal(stored)
}

// UnmarshalJSON 解析存储形态并还原 TaskContent，保留原有的 task_outputs
func (t *TaskResponse) UnmarshalJSON(data []byte) error {
	var stored StoredTaskResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	t.TaskResponseBase = stored.TaskResponseBase
	t.TaskContent = nil
	if stored.TaskContent != nil {
		t.TaskContent = stored.ReconstructOutput()
	}
	return nil
}

// ============================================================================
// StoredTaskResponse - 存储形态
// ============================================================================

// StoredTaskResponse 任务执行结果（存储形态）
//
// TaskContent 是对运行时 Output 序列化后的文档，包含 kind 字段和变体自身字段。
type StoredTaskResponse struct {
	TaskResponseBase

	// TaskContent 无类型的输出文档
	TaskContent Document `json:"task_content"`
}

// NewStoredTaskResponse 创建存储形态
//
// content 允许直接传入 Output 变体：会先序列化为文档再赋值，
// 保证存储形态中的 TaskContent 始终是统一的文档格式。
func NewStoredTaskResponse(base TaskResponseBase, content any) (*StoredTaskResponse, error) {
	doc, err := NormalizeTaskContent(content)
	if err != nil {
		return nil, err
	}
	if err := base.Normalize(); err != nil {
		return nil, err
	}
	stored := &StoredTaskResponse{TaskResponseBase: base, TaskContent: doc}
	if err := stored.Validate(); err != nil {
		return nil, err
	}
	return stored, nil
}

// NormalizeTaskContent 把 task_content 的各种输入统一为 Document
func NormalizeTaskContent(content any) (Document, error) {
	switch v := content.(type) {
	case nil:
		return nil, nil
	case Document:
		return v, nil
	case map[string]any:
		return Document(v), nil
	case Output:
		doc, err := OutputToDocument(v)
		if err != nil {
			return nil, newValidationError("task_content", "%v", err)
		}
		return doc, nil
	default:
		return nil, newValidationError("task_content", "unsupported content type %T", content)
	}
}

// Validate 校验状态枚举与必填字段
func (s *StoredTaskResponse) Validate() error {
	return validateStruct(&s.TaskResponseBase)
}

// Kind 返回文档中的 kind 标签（可能为空）
func (s *StoredTaskResponse) Kind() OutputKind {
	return OutputKind(s.TaskContent.String(KindField))
}

// TryReconstructOutput 还原输出变体
//
// 总是返回可用的 Output；发生回退时第二个返回值说明原因。
func (s *StoredTaskResponse) TryReconstructOutput() (Output, error) {
	out, err := OutputFromDocument(s.TaskContent)
	if err != nil {
		return s.fallbackOutput(), err
	}
	return out, nil
}

// ReconstructOutput 还原输出变体，失败时回退为 StringOutput 并记录告警
func (s *StoredTaskResponse) ReconstructOutput() Output {
	out, err := s.TryReconstructOutput()
	if err != nil && s.TaskContent != nil {
		modelLog.Warn("task content reconstruction fell back to string output",
			slog.String("task_response_id", s.ID),
			slog.String("kind", string(s.Kind())),
			slog.String("error", err.Error()),
		)
	}
	return out
}

func (s *StoredTaskResponse) fallbackOutput() Output {
	return &StringOutput{Content: []string{s.TaskOutputs}}
}

// ToLive 转换为运行时形态
//
// 标量字段原样复制；TaskOutputs 为还原后输出的渲染文本，TaskContent 为还原后的输出。
func (s *StoredTaskResponse) ToLive() *TaskResponse {
	return s.ToLiveWith(s.ReconstructOutput())
}

// ToLiveWith 用已还原的输出构造运行时形态，调用方自行负责还原与回退记录
func (s *StoredTaskResponse) ToLiveWith(out Output) *TaskResponse {
	live := &TaskResponse{
		TaskResponseBase: s.TaskResponseBase,
		TaskContent:      out,
	}
	live.TaskOutputs = out.String()
	return live
}

// ToDocument 转换为持久化文档
func (s *StoredTaskResponse) ToDocument() (Document, error) {
	return ToDocument(s)
}

// StoredTaskResponseFromDocument 从持久化文档解析存储形态
func StoredTaskResponseFromDocument(doc Document) (*StoredTaskResponse, error) {
	var s StoredTaskResponse
	if err := DecodeDocument(doc, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
