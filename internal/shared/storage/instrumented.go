package storage

import (
	"context"
	"errors"
	"time"

	"agents-workflow/internal/shared/model"
	"agents-workflow/pkg/logging"
)

// OpObserver 接收文档操作的观测数据（由 metrics 包实现）
type OpObserver interface {
	ObserveDocumentOp(backend, collection, op string, d time.Duration, err error)
}

// Instrumented 为 DocumentStore 附加日志与指标
type Instrumented struct {
	next     DocumentStore
	backend  string
	observer OpObserver
	log      *logging.Logger
}

var _ DocumentStore = (*Instrumented)(nil)

// NewInstrumented 包装 store；observer 可为 nil
func NewInstrumented(next DocumentStore, backend string, observer OpObserver) *Instrumented {
	return &Instrumented{
		next:     next,
		backend:  backend,
		observer: observer,
		log:      logging.Default("storage"),
	}
}

// Backend 返回后端名称
func (s *Instrumented) Backend() string {
	return s.backend
}

func (s *Instrumented) observe(ctx context.Context, op, collection string, start time.Time, err error) {
	d := time.Since(start)
	// 不存在属于正常业务结果，不按失败记录日志
	logErr := err
	if errors.Is(logErr, ErrNotFound) {
		logErr = nil
	}
	s.log.WithContext(ctx).DocumentOpLog(s.backend, op, collection, d, logErr)
	if s.observer != nil {
		s.observer.ObserveDocumentOp(s.backend, collection, op, d, err)
	}
}

func (s *Instrumented) Put(ctx context.Context, collection, id string, doc model.Document) error {
	start := time.Now()
	err := s.next.Put(ctx, collection, id, doc)
	s.observe(ctx, "put", collection, start, err)
	return err
}

func (s *Instrumented) Get(ctx context.Context, collection, id string) (model.Document, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, collection, id)
	s.observe(ctx, "get", collection, start, err)
	return doc, err
}

func (s *Instrumented) List(ctx context.Context, collection string, opts ListOptions) ([]model.Document, error) {
	start := time.Now()
	docs, err := s.next.List(ctx, collection, opts)
	s.observe(ctx, "list", collection, start, err)
	return docs, err
}

func (s *Instrumented) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, collection, id)
	s.observe(ctx, "delete", collection, start, err)
	return err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
