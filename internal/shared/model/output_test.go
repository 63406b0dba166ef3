package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMessage(t *testing.T, m Message) *Message {
	t.Helper()
	msg, err := NewMessage(m)
	require.NoError(t, err)
	return msg
}

func sampleOutputs(t *testing.T) []Output {
	t.Helper()
	nested, err := NewTaskResponse(TaskResponseBase{
		ID:               "tr-nested",
		TaskName:         "search",
		TaskDescription:  "find docs",
		Status:           TaskResponseStatusComplete,
		TaskOutputs:      "found 2",
		TaskInputs:       map[string]any{"query": "golang", "limit": 2},
		UsageMetrics:     map[string]any{"turns": 1, "tokens": int64(12), "cost": 0.25},
		ExecutionHistory: []map[string]any{{"step": 1, "tools": []string{"search"}}},
	}, &StringOutput{Content: []string{"found 2"}})
	require.NoError(t, err)
	return []Output{
		&StringOutput{Content: []string{"line one", "line two"}},
		&ChatOutput{Content: []*Message{
			mustMessage(t, Message{Role: RoleUser, Content: "hello"}),
			mustMessage(t, Message{
				Role:             RoleAssistant,
				Content:          "hi there",
				AssistantName:    "Bot",
				GeneratedBy:      GeneratedByLLM,
				CreationMetadata: map[string]any{"prompt_tokens": 30, "completion_tokens": 7, "finish_reason": "stop"},
				Context:          map[string]any{"attempt": 2},
			}),
		}},
		&SearchOutput{Content: []*SearchResult{
			NewSearchResult("Go", "https://go.dev", "The Go language", map[string]any{"rank": 1}),
		}},
		&WorkflowOutput{Content: []*TaskResponse{nested}},
	}
}

func TestOutputKinds(t *testing.T) {
	tests := []struct {
		output Output
		want   OutputKind
	}{
		{&StringOutput{}, "StringOutput"},
		{&ChatOutput{}, "ChatOutput"},
		{&SearchOutput{}, "SearchOutput"},
		{&WorkflowOutput{}, "WorkflowOutput"},
	}

	for _, tt := range tests {
		if got := tt.output.Kind(); got != tt.want {
			t.Errorf("Kind() = %v, want %v", got, tt.want)
		}
	}
}

func TestOutputRendering(t *testing.T) {
	outputs := sampleOutputs(t)

	assert.Equal(t, "line one\nline two", outputs[0].String())
	assert.Equal(t, "user: hello\nassistant: Bot\nhi there", outputs[1].String())
	assert.Equal(t, "Title: Go\nURL: https://go.dev\nContent: The Go language", outputs[2].String())
	assert.Equal(t, "search: find docs\nTask Output:found 2", outputs[3].String())

	// 渲染是内容的纯函数
	for _, o := range outputs {
		assert.Equal(t, o.String(), o.String())
	}
}

func TestOutputDocumentCarriesKind(t *testing.T) {
	doc, err := OutputToDocument(&StringOutput{Content: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "StringOutput", doc[KindField])
	assert.Equal(t, []any{"a"}, doc["content"])
	assert.Len(t, doc, 2)
}

func TestOutputRoundTrip(t *testing.T) {
	for _, original := range sampleOutputs(t) {
		t.Run(string(original.Kind()), func(t *testing.T) {
			doc, err := OutputToDocument(original)
			require.NoError(t, err)

			restored, err := OutputFromDocument(doc)
			require.NoError(t, err)
			assert.Equal(t, original, restored)
			assert.Equal(t, original.String(), restored.String())
		})
	}
}

func TestConstructorsNormalizeNumbers(t *testing.T) {
	msg := mustMessage(t, Message{CreationMetadata: map[string]any{"tokens": 12, "cost": int64(3)}})
	assert.Equal(t, map[string]any{"tokens": float64(12), "cost": float64(3)}, msg.CreationMetadata)

	resp, err := NewTaskResponse(TaskResponseBase{
		TaskName:     "t",
		Status:       TaskResponseStatusComplete,
		UsageMetrics: map[string]any{"turns": 4, "nested": map[string]int{"a": 1}},
	}, &StringOutput{})
	require.NoError(t, err)
	assert.Equal(t, float64(4), resp.UsageMetrics["turns"])
	assert.Equal(t, map[string]any{"a": float64(1)}, resp.UsageMetrics["nested"])
	assert.Nil(t, resp.TaskInputs)
	assert.Nil(t, resp.ExecutionHistory)

	_, err = NewTaskResponse(TaskResponseBase{TaskName: "t", Status: "done"}, &StringOutput{})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestOutputFromDocumentLegacyChatKind(t *testing.T) {
	doc := Document{
		KindField: "LLMChatOutput",
		"content": []any{map[string]any{"role": "assistant", "content": "done"}},
	}
	out, err := OutputFromDocument(doc)
	require.NoError(t, err)
	chat, ok := out.(*ChatOutput)
	require.True(t, ok, "legacy kind should decode as ChatOutput, got %T", out)
	require.Len(t, chat.Content, 1)
	assert.Equal(t, "assistant: done", chat.String())
}

func TestOutputFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
	}{
		{"nil document", nil},
		{"missing kind", Document{"content": []any{"x"}}},
		{"non-string kind", Document{KindField: 3, "content": []any{"x"}}},
		{"unknown kind", Document{KindField: "ImageOutput", "content": []any{"x"}}},
		{"unexpected field", Document{KindField: "StringOutput", "content": []any{"x"}, "extra": true}},
		{"wrong element type", Document{KindField: "StringOutput", "content": []any{map[string]any{"a": 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := OutputFromDocument(tt.doc)
			assert.Error(t, err)
			assert.Nil(t, out)
		})
	}
}

func TestOutputJSONNilContent(t *testing.T) {
	data, err := json.Marshal(&StringOutput{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"StringOutput","content":[]}`, string(data))
}
