// Package storagetest 提供 DocumentStore 实现共用的契约测试
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory 为每个子测试创建一个空的 store
type Factory func(t *testing.T) storage.DocumentStore

// Run 对 DocumentStore 实现执行完整契约测试
func Run(t *testing.T, newStore Factory) {
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newStore(t)) })
	t.Run("InvalidKey", func(t *testing.T) { testInvalidKey(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, newStore(t)) })
	t.Run("StoredTaskResponse", func(t *testing.T) { testStoredTaskResponse(t, newStore(t)) })
}

func testPutGet(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()
	doc := model.Document{
		"task_name": "summarize",
		"result_code": float64(0),
		"task_content": map[string]any{
			"kind":    "StringOutput",
			"content": []any{"a", "b"},
		},
	}
	require.NoError(t, s.Put(ctx, storage.CollectionTaskResponses, "tr-1", doc))

	got, err := s.Get(ctx, storage.CollectionTaskResponses, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, "tr-1", got["id"])
	assert.Equal(t, "summarize", got["task_name"])
	assert.Equal(t, float64(0), got["result_code"])
	assert.Equal(t, map[string]any{"kind": "StringOutput", "content": []any{"a", "b"}}, got["task_content"])
}

func testGetMissing(t *testing.T, s storage.DocumentStore) {
	_, err := s.Get(context.Background(), storage.CollectionMessages, "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func testOverwrite(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storage.CollectionMessages, "m-1", model.Document{"content": "v1"}))
	require.NoError(t, s.Put(ctx, storage.CollectionMessages, "m-1", model.Document{"content": "v2"}))

	got, err := s.Get(ctx, storage.CollectionMessages, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got["content"])

	all, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testInvalidKey(t *testing.T, s storage.DocumentStore) {
	err := s.Put(context.Background(), storage.CollectionMessages, "", model.Document{"content": "x"})
	assert.True(t, errors.Is(err, storage.ErrInvalidKey), "got %v", err)
}

func testList(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()

	empty, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, i := range []int{3, 1, 4, 2, 5} {
		role := "user"
		if i%2 == 0 {
			role = "assistant"
		}
		id := fmt.Sprintf("m-%d", i)
		require.NoError(t, s.Put(ctx, storage.CollectionMessages, id, model.Document{"role": role, "step": i}))
	}

	all, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, doc := range all {
		assert.Equal(t, fmt.Sprintf("m-%d", i+1), doc["id"])
	}

	page, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m-2", page[0]["id"])
	assert.Equal(t, "m-3", page[1]["id"])

	filtered, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{
		Filter: map[string]string{"role": "assistant"},
	})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "m-2", filtered[0]["id"])
	assert.Equal(t, "m-4", filtered[1]["id"])

	beyond, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testDelete(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storage.CollectionMessages, "m-1", model.Document{"content": "bye"}))
	require.NoError(t, s.Delete(ctx, storage.CollectionMessages, "m-1"))

	_, err := s.Get(ctx, storage.CollectionMessages, "m-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	err = s.Delete(ctx, storage.CollectionMessages, "m-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testIsolation(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storage.CollectionMessages, "same", model.Document{"content": "message"}))
	require.NoError(t, s.Put(ctx, storage.CollectionTaskResponses, "same", model.Document{"task_name": "tr"}))

	msg, err := s.Get(ctx, storage.CollectionMessages, "same")
	require.NoError(t, err)
	assert.Equal(t, "message", msg["content"])

	// 修改返回值不影响已存储的文档
	msg["content"] = "mutated"
	again, err := s.Get(ctx, storage.CollectionMessages, "same")
	require.NoError(t, err)
	assert.Equal(t, "message", again["content"])

	msgs, err := s.List(ctx, storage.CollectionMessages, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func testStoredTaskResponse(t *testing.T, s storage.DocumentStore) {
	ctx := context.Background()
	output := &model.SearchOutput{Content: []*model.SearchResult{
		model.NewSearchResult("Go", "https://go.dev", "The Go language", map[string]any{"rank": 1}),
	}}
	live := &model.TaskResponse{
		TaskResponseBase: model.TaskResponseBase{
			ID:          "tr-search",
			TaskName:    "search",
			Status:      model.TaskResponseStatusComplete,
			TaskOutputs: output.String(),
		},
		TaskContent: output,
	}

	stored, err := live.ToStored()
	require.NoError(t, err)
	doc, err := stored.ToDocument()
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, storage.CollectionTaskResponses, live.ID, doc))

	loadedDoc, err := s.Get(ctx, storage.CollectionTaskResponses, live.ID)
	require.NoError(t, err)
	loaded, err := model.StoredTaskResponseFromDocument(loadedDoc)
	require.NoError(t, err)

	assert.Equal(t, model.OutputKindSearch, loaded.Kind())
	assert.Equal(t, output, loaded.ReconstructOutput())
	assert.Equal(t, live.TaskOutputs, loaded.ToLive().TaskOutputs)
}
