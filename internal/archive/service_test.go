package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agents-workflow/internal/shared/eventbus"
	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/internal/shared/storage/memory"
	"agents-workflow/pkg/logging"
)

// ============================================================================
// 测试替身
// ============================================================================

type recordingBus struct {
	eventbus.NoOpEventBus
	mu     sync.Mutex
	events []*eventbus.DocumentEvent
}

func (b *recordingBus) PublishDocumentEvent(_ context.Context, event *eventbus.DocumentEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]string)}
}

func (c *mapCache) GetRendered(_ context.Context, kind, id string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return "", false, errors.New("cache down")
	}
	text, ok := c.entries[kind+":"+id]
	return text, ok, nil
}

func (c *mapCache) SetRendered(_ context.Context, kind, id, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind+":"+id] = text
	return nil
}

func (c *mapCache) InvalidateRendered(_ context.Context, kind, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, kind+":"+id)
	return nil
}

func (c *mapCache) Close() error { return nil }

type memFiles struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemFiles() *memFiles {
	return &memFiles{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *memFiles) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.objects[key] = data
	f.types[key] = contentType
	return int64(len(data)), nil
}

func (f *memFiles) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *memFiles) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

// failingPuts 在 failPut 置位后拒绝所有写入
type failingPuts struct {
	storage.DocumentStore
	failPut bool
}

func (s *failingPuts) Put(ctx context.Context, collection, id string, doc model.Document) error {
	if s.failPut {
		return errors.New("disk full")
	}
	return s.DocumentStore.Put(ctx, collection, id, doc)
}

type countingRecorder struct {
	reconstructions []string
	statuses        []string
	cache           []string
}

func (r *countingRecorder) RecordReconstruction(kind string, fallback bool) {
	result := "ok"
	if fallback {
		result = "fallback"
	}
	r.reconstructions = append(r.reconstructions, kind+"/"+result)
}

func (r *countingRecorder) RecordTaskResponse(status string) { r.statuses = append(r.statuses, status) }
func (r *countingRecorder) RecordRenderCache(result string)  { r.cache = append(r.cache, result) }

type fixture struct {
	svc      *Service
	store    *memory.Store
	bus      *recordingBus
	cache    *mapCache
	files    *memFiles
	recorder *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		bus:      &recordingBus{},
		cache:    newMapCache(),
		files:    newMemFiles(),
		recorder: &countingRecorder{},
	}
	seq := 0
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc = NewService(f.store,
		WithCache(f.cache),
		WithEventBus(f.bus),
		WithFiles(f.files),
		WithRecorder(f.recorder),
		WithClock(
			func() string {
				seq++
				return "id-" + string(rune('0'+seq))
			},
			func() time.Time { return clock },
		),
	)
	return f
}

func searchResponse() *model.TaskResponse {
	out := &model.SearchOutput{Content: []*model.SearchResult{
		model.NewSearchResult("Go", "https://go.dev", "The Go language", map[string]any{"rank": 1}),
	}}
	return &model.TaskResponse{
		TaskResponseBase: model.TaskResponseBase{
			TaskID:          "task-1",
			TaskName:        "search",
			TaskDescription: "Search the web",
			Status:          model.TaskResponseStatusComplete,
			TaskOutputs:     out.String(),
		},
		TaskContent: out,
	}
}

// ============================================================================
// TaskResponse
// ============================================================================

func TestSaveAndLoadTaskResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := searchResponse()
	stored, err := f.svc.SaveTaskResponse(ctx, resp)
	require.NoError(t, err)
	assert.Equal(t, "id-1", stored.ID)
	assert.Equal(t, "id-1", resp.ID)
	assert.Equal(t, model.OutputKindSearch, stored.Kind())

	loaded, err := f.svc.LoadTaskResponse(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.TaskContent, loaded.TaskContent)
	assert.Equal(t, resp.TaskOutputs, loaded.TaskOutputs)

	assert.Equal(t, []string{eventbus.EventDocumentSaved}, f.bus.types())
	assert.Equal(t, storage.CollectionTaskResponses, f.bus.events[0].Collection)
	assert.Equal(t, "SearchOutput", f.bus.events[0].Data["kind"])
	assert.Equal(t, []string{"complete"}, f.recorder.statuses)
	assert.Equal(t, []string{"SearchOutput/ok"}, f.recorder.reconstructions)
}

func TestSaveTaskResponseRejectsInvalid(t *testing.T) {
	f := newFixture(t)

	resp := searchResponse()
	resp.Status = "done"
	_, err := f.svc.SaveTaskResponse(context.Background(), resp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = f.svc.SaveTaskResponse(context.Background(), nil)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Empty(t, f.bus.types())
}

func TestLoadTaskResponseFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, storage.CollectionTaskResponses, "legacy", model.Document{
		"task_name":    "old",
		"status":       "failed",
		"task_outputs": "plain text",
		"task_content": map[string]any{"kind": "RetiredOutput", "payload": 1},
	}))

	live, err := f.svc.LoadTaskResponse(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, &model.StringOutput{Content: []string{"plain text"}}, live.TaskContent)
	assert.Equal(t, "plain text", live.TaskOutputs)
	assert.Equal(t, []string{"RetiredOutput/fallback"}, f.recorder.reconstructions)
}

func TestLoadTaskResponseFallbackLoggedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var buf bytes.Buffer
	f.svc.log = logging.NewWithWriter(&buf, slog.LevelWarn, "json", "archive")

	require.NoError(t, f.store.Put(ctx, storage.CollectionTaskResponses, "legacy", model.Document{
		"task_name":    "old",
		"status":       "failed",
		"task_outputs": "plain text",
		"task_content": map[string]any{"kind": "RetiredOutput"},
	}))

	_, err := f.svc.LoadTaskResponse(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), "reconstruction fell back"))
	assert.Len(t, f.recorder.reconstructions, 1)
}

func TestSaveTaskResponseNormalizesMetrics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := searchResponse()
	resp.UsageMetrics = map[string]any{"tokens": 42, "duration_ms": int64(7)}
	resp.TaskInputs = map[string]any{"limit": 10}
	_, err := f.svc.SaveTaskResponse(ctx, resp)
	require.NoError(t, err)

	loaded, err := f.svc.LoadTaskResponse(ctx, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.UsageMetrics, loaded.UsageMetrics)
	assert.Equal(t, resp.TaskInputs, loaded.TaskInputs)
	assert.Equal(t, float64(42), loaded.UsageMetrics["tokens"])
}

func TestLoadTaskResponseMissing(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.LoadTaskResponse(context.Background(), "nope")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRenderTaskResponseUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.SaveTaskResponse(ctx, searchResponse())
	require.NoError(t, err)

	first, err := f.svc.RenderTaskResponse(ctx, stored.ID)
	require.NoError(t, err)
	assert.Contains(t, first, "search: Search the web\nTask Output:\nTitle: Go")

	second, err := f.svc.RenderTaskResponse(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"miss", "hit"}, f.recorder.cache)

	// 重新保存会失效缓存
	live, err := f.svc.LoadTaskResponse(ctx, stored.ID)
	require.NoError(t, err)
	live.TaskDescription = "Search again"
	_, err = f.svc.SaveTaskResponse(ctx, live)
	require.NoError(t, err)

	third, err := f.svc.RenderTaskResponse(ctx, stored.ID)
	require.NoError(t, err)
	assert.Contains(t, third, "search: Search again")
	assert.Equal(t, []string{"miss", "hit", "miss"}, f.recorder.cache)
}

func TestRenderCacheErrorFallsThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.SaveTaskResponse(ctx, searchResponse())
	require.NoError(t, err)
	f.cache.failGet = true

	text, err := f.svc.RenderTaskResponse(ctx, stored.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.Equal(t, []string{"error"}, f.recorder.cache)
}

func TestListAndDeleteTaskResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp := searchResponse()
		if i == 1 {
			resp.Status = model.TaskResponseStatusFailed
		}
		_, err := f.svc.SaveTaskResponse(ctx, resp)
		require.NoError(t, err)
	}

	all, err := f.svc.ListTaskResponses(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	failed, err := f.svc.ListTaskResponses(ctx, storage.ListOptions{Filter: map[string]string{"status": "failed"}})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "id-2", failed[0].ID)

	require.NoError(t, f.svc.DeleteTaskResponse(ctx, "id-2"))
	assert.True(t, errors.Is(f.svc.DeleteTaskResponse(ctx, "id-2"), storage.ErrNotFound))

	all, err = f.svc.ListTaskResponses(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, eventbus.EventDocumentDeleted, f.bus.events[len(f.bus.events)-1].Type)
}

func TestPutStoredTaskResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := model.NewStoredTaskResponse(model.TaskResponseBase{
		ID:       "tr-x",
		TaskName: "notes",
		Status:   model.TaskResponseStatusPending,
	}, &model.StringOutput{Content: []string{"draft"}})
	require.NoError(t, err)
	require.NoError(t, f.svc.PutStoredTaskResponse(ctx, stored))

	loaded, err := f.svc.LoadStoredTaskResponse(ctx, "tr-x")
	require.NoError(t, err)
	assert.Equal(t, model.OutputKindString, loaded.Kind())
	assert.Equal(t, "draft", loaded.ReconstructOutput().String())
}

// ============================================================================
// Message
// ============================================================================

func TestSaveAndLoadMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &model.Message{Role: model.RoleAssistant, AssistantName: "Bot", Content: "hello"}
	saved, err := f.svc.SaveMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "id-1", saved.ID)
	assert.Equal(t, model.GeneratedByUser, saved.GeneratedBy)
	require.NotNil(t, saved.CreatedAt)
	require.NotNil(t, saved.UpdatedAt)

	loaded, err := f.svc.LoadMessage(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "assistant (Bot): hello", loaded.String())
	assert.True(t, saved.CreatedAt.Equal(*loaded.CreatedAt))

	text, err := f.svc.RenderMessage(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "assistant (Bot): hello", text)
}

func TestSaveMessageRejectsInvalidRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveMessage(context.Background(), &model.Message{Role: "robot"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestMessageWithTaskResponseReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := searchResponse()
	msg := &model.Message{
		Role:        model.RoleAssistant,
		Type:        model.ContentTypeTaskResponse,
		Step:        "search",
		GeneratedBy: model.GeneratedByLLM,
		Content:     "found it",
	}
	f.svc.AttachTaskResponse(msg, resp)
	saved, err := f.svc.SaveMessage(ctx, msg)
	require.NoError(t, err)

	loaded, err := f.svc.LoadMessage(ctx, saved.ID)
	require.NoError(t, err)
	refs := loaded.GetReferencesByType(model.ReferenceTypeTaskResponses)
	require.Len(t, refs, 1)
	assert.Equal(t, resp.TaskContent, refs[0].(*model.TaskResponse).TaskContent)
	assert.Equal(t, saved.String(), loaded.String())
}

func TestAttachFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := &model.Message{Role: model.RoleUser, Type: model.ContentTypeImage, Content: "look"}
	ref, err := f.svc.AttachFile(ctx, msg, "cat.png", "image/png", bytes.NewReader([]byte("png-bytes")), 9)
	require.NoError(t, err)
	assert.Equal(t, model.FileTypeImage, ref.Type)
	assert.Equal(t, int64(9), ref.FileSize)
	assert.Equal(t, "files/id-1/cat.png", ref.StorageKey)
	assert.Equal(t, []byte("png-bytes"), f.files.objects[ref.StorageKey])

	saved, err := f.svc.SaveMessage(ctx, msg)
	require.NoError(t, err)
	text, err := f.svc.RenderMessage(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "user: look\nFile: cat.png (image, 9 bytes)", text)
}

func TestAttachFileErrors(t *testing.T) {
	ctx := context.Background()

	svc := NewService(memory.NewStore())
	assert.False(t, svc.FilesEnabled())
	_, err := svc.AttachFile(ctx, &model.Message{}, "a.txt", "text/plain", bytes.NewReader(nil), 0)
	assert.True(t, errors.Is(err, ErrFilesDisabled))

	f := newFixture(t)
	_, err = f.svc.AttachFile(ctx, &model.Message{}, "", "text/plain", bytes.NewReader(nil), 0)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Empty(t, f.files.objects)
}

func TestUploadFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.svc.SaveMessage(ctx, &model.Message{Content: "see attached"})
	require.NoError(t, err)

	ref, msg, err := f.svc.UploadFile(ctx, saved.ID, "notes.txt", "text/plain", bytes.NewReader([]byte("hello")), 5)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, msg.ID)
	assert.Equal(t, []byte("hello"), f.files.objects[ref.StorageKey])

	got, rc, err := f.svc.OpenFile(ctx, saved.ID, ref.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "notes.txt", got.Filename)

	_, _, err = f.svc.OpenFile(ctx, saved.ID, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, _, err = f.svc.UploadFile(ctx, "nope", "a.txt", "text/plain", bytes.NewReader(nil), 0)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestUploadFileRemovesObjectWhenSaveFails(t *testing.T) {
	store := &failingPuts{DocumentStore: memory.NewStore()}
	files := newMemFiles()
	svc := NewService(store, WithFiles(files))
	ctx := context.Background()

	saved, err := svc.SaveMessage(ctx, &model.Message{Content: "x"})
	require.NoError(t, err)

	store.failPut = true
	_, _, err = svc.UploadFile(ctx, saved.ID, "a.txt", "text/plain", bytes.NewReader([]byte("data")), 4)
	require.Error(t, err)
	assert.Empty(t, files.objects)

	loaded, err := svc.LoadMessage(ctx, saved.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.GetReferencesByType(model.ReferenceTypeFiles))
}

func TestDeleteMessageRemovesAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.svc.SaveMessage(ctx, &model.Message{Content: "files"})
	require.NoError(t, err)
	for _, name := range []string{"a.txt", "b.txt"} {
		_, _, err := f.svc.UploadFile(ctx, saved.ID, name, "text/plain", bytes.NewReader([]byte(name)), int64(len(name)))
		require.NoError(t, err)
	}
	require.Len(t, f.files.objects, 2)

	require.NoError(t, f.svc.DeleteMessage(ctx, saved.ID))
	assert.Empty(t, f.files.objects)
	assert.True(t, errors.Is(f.svc.DeleteMessage(ctx, saved.ID), storage.ErrNotFound))
}

func TestListAndDeleteMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, role := range []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser} {
		_, err := f.svc.SaveMessage(ctx, &model.Message{Role: role, Content: "x"})
		require.NoError(t, err)
	}

	users, err := f.svc.ListMessages(ctx, storage.ListOptions{Filter: map[string]string{"role": "user"}})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	page, err := f.svc.ListMessages(ctx, storage.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "id-2", page[0].ID)

	require.NoError(t, f.svc.DeleteMessage(ctx, "id-1"))
	_, err = f.svc.LoadMessage(ctx, "id-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
