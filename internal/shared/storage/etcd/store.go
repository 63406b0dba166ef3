// Package etcd etcd 文档存储实现
//
// 文档以 JSON 形式保存在 {prefix}/{collection}/{id} 键下，
// 适合与已有 etcd 集群共用的小规模部署。
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
)

// Store etcd 存储客户端
type Store struct {
	client *clientv3.Client
	prefix string
}

var _ storage.DocumentStore = (*Store)(nil)

// Config etcd 配置
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

// NewStore 创建 etcd 存储客户端
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd: no endpoints configured")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/agents-workflow"
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err = client.Status(ctx, cfg.Endpoints[0])
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	log.Printf("[etcd] Connected to %v", cfg.Endpoints)
	return NewStoreFromClient(client, cfg.Prefix), nil
}

// NewStoreFromClient 使用已有客户端创建存储
func NewStoreFromClient(client *clientv3.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Client 返回底层 etcd 客户端
func (s *Store) Client() *clientv3.Client {
	return s.client
}

// Prefix 返回 key 前缀
func (s *Store) Prefix() string {
	return s.prefix
}

func (s *Store) collectionPrefix(collection string) string {
	return fmt.Sprintf("%s/%s/", s.prefix, collection)
}

func (s *Store) key(collection, id string) string {
	return s.collectionPrefix(collection) + id
}

func (s *Store) Put(ctx context.Context, collection, id string, doc model.Document) error {
	if err := storage.ValidateKey(collection, id); err != nil {
		return err
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("%w: id must not contain '/'", storage.ErrInvalidKey)
	}
	doc = doc.Clone()
	if doc == nil {
		doc = model.Document{}
	}
	doc["id"] = id

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("etcd: encode %s/%s: %w", collection, id, err)
	}
	if _, err := s.client.Put(ctx, s.key(collection, id), string(data)); err != nil {
		return fmt.Errorf("etcd: put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	resp, err := s.client.Get(ctx, s.key(collection, id))
	if err != nil {
		return nil, fmt.Errorf("etcd: get %s/%s: %w", collection, id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, storage.ErrNotFound
	}
	return decode(resp.Kvs[0].Value)
}

// List etcd 按 key 字典序返回，与 id 升序一致
func (s *Store) List(ctx context.Context, collection string, opts storage.ListOptions) ([]model.Document, error) {
	resp, err := s.client.Get(ctx, s.collectionPrefix(collection),
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend),
	)
	if err != nil {
		return nil, fmt.Errorf("etcd: list %s: %w", collection, err)
	}

	docs := make([]model.Document, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		doc, err := decode(kv.Value)
		if err != nil {
			log.Printf("[etcd] Failed to decode document at %s: %v", string(kv.Key), err)
			continue
		}
		if storage.MatchFilter(doc, opts.Filter) {
			docs = append(docs, doc)
		}
	}
	return storage.Paginate(docs, opts), nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	resp, err := s.client.Delete(ctx, s.key(collection, id))
	if err != nil {
		return fmt.Errorf("etcd: delete %s/%s: %w", collection, id, err)
	}
	if resp.Deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func decode(raw []byte) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("etcd: decode document: %w", err)
	}
	return doc, nil
}
