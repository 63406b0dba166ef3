// Package agenttask 基于 Agent 的任务执行
//
// Task 调用一次 Agent 生成新一轮对话，把生成的消息包装为 ChatOutput，
// 并根据最后一条消息计算结果码。
package agenttask

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agents-workflow/internal/shared/model"
	"agents-workflow/pkg/logging"
)

// TerminateToken Agent 在最后一条消息中给出的终止标记
const TerminateToken = "TERMINATE"

// 结果诊断信息
const (
	DiagnosticSuccess = "Task executed successfully."
	DiagnosticFailure = "Task execution failed."
)

// Agent 对话生成方
type Agent interface {
	// Chat 基于已有消息生成最多 maxTurns 轮新消息
	Chat(ctx context.Context, messages []*model.Message, maxTurns int) ([]*model.Message, error)
}

// AgentFunc 函数适配器
type AgentFunc func(ctx context.Context, messages []*model.Message, maxTurns int) ([]*model.Message, error)

func (f AgentFunc) Chat(ctx context.Context, messages []*model.Message, maxTurns int) ([]*model.Message, error) {
	return f(ctx, messages, maxTurns)
}

// Task Agent 任务
type Task struct {
	ID          string
	Name        string
	Description string
	Agent       Agent

	// MaxTurns 单次执行的最大轮数，<=0 时为 1
	MaxTurns int

	log *logging.Logger
	now func() time.Time
}

// New 创建任务
func New(id, name, description string, agent Agent) *Task {
	return &Task{
		ID:          id,
		Name:        name,
		Description: description,
		Agent:       agent,
		MaxTurns:    1,
	}
}

func (t *Task) logger() *logging.Logger {
	if t.log == nil {
		t.log = logging.Default("agenttask")
	}
	return t.log
}

func (t *Task) clock() time.Time {
	if t.now == nil {
		return time.Now()
	}
	return t.now()
}

// Run 执行任务
//
// inputs 记录到 TaskInputs，history 记录到 ExecutionHistory，二者与用量指标一样
// 被规范化为 JSON 原生类型。Agent 生成的每条消息都经过 NewMessage 校验，
// 校验失败与 Agent 错误一样直接向上传递。
func (t *Task) Run(ctx context.Context, messages []*model.Message, inputs map[string]any, history []map[string]any) (*model.TaskResponse, error) {
	if t.Agent == nil {
		return nil, fmt.Errorf("agenttask: task %q has no agent", t.Name)
	}
	// TaskLog 自带 task_id，日志上下文只取追踪信息
	log := t.logger().WithContext(ctx)
	ctx = logging.ContextWithTaskID(ctx, t.ID)

	maxTurns := t.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 1
	}

	start := t.clock()
	generated, err := t.Agent.Chat(ctx, messages, maxTurns)
	if err != nil {
		log.WithTaskID(t.ID).WithError(err).Error("agent chat failed", "task_name", t.Name)
		return nil, fmt.Errorf("agenttask: %s: %w", t.Name, err)
	}
	duration := t.clock().Sub(start)

	turns, err := normalizeTurns(generated)
	if err != nil {
		return nil, fmt.Errorf("agenttask: %s: %w", t.Name, err)
	}

	terminated := IsTerminated(turns)
	code := ExitCode(turns)

	output := &model.ChatOutput{Content: turns}
	status := model.TaskResponseStatusComplete
	diagnostic := DiagnosticSuccess
	if code != 0 {
		status = model.TaskResponseStatusFailed
		diagnostic = DiagnosticFailure
	}

	resp, err := model.NewTaskResponse(model.TaskResponseBase{
		TaskID:           t.ID,
		TaskName:         t.Name,
		TaskDescription:  t.Description,
		Status:           status,
		ResultCode:       code,
		ResultDiagnostic: diagnostic,
		TaskInputs:       inputs,
		UsageMetrics: map[string]any{
			"turns":       len(turns),
			"terminated":  terminated,
			"duration_ms": duration.Milliseconds(),
		},
		ExecutionHistory: history,
		TaskOutputs:      output.String(),
	}, output)
	if err != nil {
		return nil, err
	}

	log.WithDuration(duration).TaskLog("completed", t.ID, t.Name,
		"status", string(status), "result_code", code, "terminated", terminated)
	return resp, nil
}

// normalizeTurns 对 Agent 生成的消息执行与 NewMessage 相同的默认值填充和校验
func normalizeTurns(turns []*model.Message) ([]*model.Message, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	out := make([]*model.Message, len(turns))
	for i, turn := range turns {
		if turn == nil {
			return nil, &model.ValidationError{Field: fmt.Sprintf("turns[%d]", i), Reason: "must not be nil"}
		}
		msg, err := model.NewMessage(*turn)
		if err != nil {
			return nil, fmt.Errorf("turns[%d]: %w", i, err)
		}
		out[i] = msg
	}
	return out, nil
}

// IsTerminated 最后一条消息是否包含终止标记
func IsTerminated(turns []*model.Message) bool {
	last := lastTurn(turns)
	return last != nil && strings.Contains(last.Content, TerminateToken)
}

// ExitCode 最后一条消息有内容时为 0，否则为 1
func ExitCode(turns []*model.Message) int {
	if lastTurn(turns).HasContent() {
		return 0
	}
	return 1
}

func lastTurn(turns []*model.Message) *model.Message {
	if len(turns) == 0 {
		return nil
	}
	return turns[len(turns)-1]
}

// BuildTaskResponseMessage 生成引用任务结果的 task_response 消息
func BuildTaskResponseMessage(resp *model.TaskResponse) (*model.Message, error) {
	if resp == nil {
		return nil, &model.ValidationError{Field: "task_response", Reason: "must not be nil"}
	}
	msg, err := model.NewMessage(model.Message{
		Role:        model.RoleAssistant,
		Content:     resp.TaskOutputs,
		GeneratedBy: model.GeneratedByLLM,
		Step:        resp.TaskName,
		Type:        model.ContentTypeTaskResponse,
	})
	if err != nil {
		return nil, err
	}
	msg.AddReference(resp)
	return msg, nil
}
