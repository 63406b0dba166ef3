// Package archive 任务执行结果与消息的持久化服务
//
// Service 负责运行时形态与存储文档之间的转换，并在写入/删除时
// 维护渲染缓存、发布文档事件。附件内容写入对象存储，消息只保存引用。
package archive

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"agents-workflow/internal/shared/cache"
	"agents-workflow/internal/shared/eventbus"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/pkg/logging"
)

// 渲染缓存的实体类型
const (
	renderKindTaskResponse = "task_response"
	renderKindMessage      = "message"
)

// ErrFilesDisabled 未配置对象存储
var ErrFilesDisabled = errors.New("archive: file storage not configured")

// FileStore 附件对象存储（由 objstore.Client 实现）
type FileStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (int64, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Recorder 业务指标（由 metrics.Metrics 实现）
type Recorder interface {
	RecordReconstruction(kind string, fallback bool)
	RecordTaskResponse(status string)
	RecordRenderCache(result string)
}

// Service 持久化服务
type Service struct {
	store   storage.DocumentStore
	cache   cache.RenderCache
	events  eventbus.EventBus
	files   FileStore
	metrics Recorder
	log     *logging.Logger

	newID func() string
	now   func() time.Time
}

// Option 服务选项
type Option func(*Service)

// WithCache 设置渲染缓存
func WithCache(c cache.RenderCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithEventBus 设置事件总线
func WithEventBus(b eventbus.EventBus) Option {
	return func(s *Service) { s.events = b }
}

// WithFiles 设置附件存储
func WithFiles(f FileStore) Option {
	return func(s *Service) { s.files = f }
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock 替换 ID 生成与时钟（测试用）
func WithClock(newID func() string, now func() time.Time) Option {
	return func(s *Service) {
		s.newID = newID
		s.now = now
	}
}

// NewService 创建持久化服务
func NewService(store storage.DocumentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		cache:   cache.NewNoOpCache(),
		events:  eventbus.NewNoOpEventBus(),
		metrics: noopRecorder{},
		log:     logging.Default("archive"),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FilesEnabled 是否配置了附件存储
func (s *Service) FilesEnabled() bool {
	return s.files != nil
}

// render 渲染缓存旁路读取：命中直接返回，未命中时调用 load 并回填
func (s *Service) render(ctx context.Context, kind, id string, load func() (string, error)) (string, error) {
	text, ok, err := s.cache.GetRendered(ctx, kind, id)
	switch {
	case err != nil:
		s.metrics.RecordRenderCache("error")
		s.log.WithContext(ctx).WithError(err).Warn("render cache read failed", "kind", kind, "id", id)
	case ok:
		s.metrics.RecordRenderCache("hit")
		return text, nil
	default:
		s.metrics.RecordRenderCache("miss")
	}

	text, err = load()
	if err != nil {
		return "", err
	}
	if err := s.cache.SetRendered(ctx, kind, id, text); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("render cache write failed", "kind", kind, "id", id)
	}
	return text, nil
}

// afterWrite 写入/删除后失效缓存并发布事件；失败只记录日志
func (s *Service) afterWrite(ctx context.Context, eventType, collection, kind, id string, data map[string]interface{}) {
	if err := s.cache.InvalidateRendered(ctx, kind, id); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("render cache invalidation failed", "kind", kind, "id", id)
	}
	event := &eventbus.DocumentEvent{
		Type:       eventType,
		Collection: collection,
		DocumentID: id,
		Timestamp:  s.now(),
		Data:       data,
	}
	if err := s.events.PublishDocumentEvent(ctx, event); err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("publish document event failed", "collection", collection, "id", id)
	}
}

type noopRecorder struct{}

func (noopRecorder) RecordReconstruction(string, bool) {}
func (noopRecorder) RecordTaskResponse(string)         {}
func (noopRecorder) RecordRenderCache(string)          {}
