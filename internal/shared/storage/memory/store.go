// Package memory 进程内 DocumentStore 实现
//
// 文档以 JSON 字节保存，读写都会复制，适用于开发与测试。
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
)

// Store 内存文档存储
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ storage.DocumentStore = (*Store)(nil)

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Put(_ context.Context, collection, id string, doc model.Document) error {
	if err := storage.ValidateKey(collection, id); err != nil {
		return err
	}
	doc = doc.Clone()
	if doc == nil {
		doc = model.Document{}
	}
	doc["id"] = id

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memory: encode %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.data[collection]
	if !ok {
		col = make(map[string][]byte)
		s.data[collection] = col
	}
	col[id] = raw
	return nil
}

func (s *Store) Get(_ context.Context, collection, id string) (model.Document, error) {
	s.mu.RLock()
	raw, ok := s.data[collection][id]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return decode(raw)
}

func (s *Store) List(_ context.Context, collection string, opts storage.ListOptions) ([]model.Document, error) {
	s.mu.RLock()
	raws := make([][]byte, 0, len(s.data[collection]))
	for _, raw := range s.data[collection] {
		raws = append(raws, raw)
	}
	s.mu.RUnlock()

	docs := make([]model.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		if storage.MatchFilter(doc, opts.Filter) {
			docs = append(docs, doc)
		}
	}
	storage.SortByID(docs)
	return storage.Paginate(docs, opts), nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[collection][id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data[collection], id)
	return nil
}

// Close 无资源需要释放
func (s *Store) Close() error {
	return nil
}

func decode(raw []byte) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("memory: decode document: %w", err)
	}
	return doc, nil
}
