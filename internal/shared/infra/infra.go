// Package infra 基础设施聚合层
//
// 提供统一的基础设施初始化和依赖注入，包括：
//   - Storage：文档存储（memory / SQLite / PostgreSQL / MongoDB / etcd）
//   - Cache：渲染结果缓存（Redis，未配置时为 NoOp）
//   - EventBus：文档事件总线（Redis Streams，未配置时为 NoOp）
//   - Files：附件对象存储（MinIO，未配置时为 nil）
package infra

import (
	"context"
	"fmt"
	"log"
	"strings"

	"agents-workflow/internal/config"
	"agents-workflow/internal/shared/cache"
	"agents-workflow/internal/shared/eventbus"
	objstore "agents-workflow/internal/shared/minio"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/internal/shared/storage/dbutil"
	"agents-workflow/internal/shared/storage/etcd"
	"agents-workflow/internal/shared/storage/memory"
	"agents-workflow/internal/shared/storage/mongostore"
	"agents-workflow/internal/shared/storage/repository"
)

// Infrastructure 基础设施聚合结构
type Infrastructure struct {
	// Storage 文档存储（已附加日志与指标）
	Storage storage.DocumentStore

	// Cache 渲染结果缓存
	Cache cache.RenderCache

	// EventBus 文档事件总线
	EventBus eventbus.EventBus

	// Files 附件对象存储，可能为 nil
	Files *objstore.Client

	redis *RedisInfra
}

// New 按配置创建全部基础设施；任一组件失败时释放已创建的组件
func New(ctx context.Context, cfg *config.Config, observer storage.OpObserver) (*Infrastructure, error) {
	infra := NewNoOpInfrastructure()

	store, err := OpenDocumentStore(cfg)
	if err != nil {
		return nil, err
	}
	infra.Storage = storage.NewInstrumented(store, cfg.StorageDriver, observer)

	if cfg.RedisEnabled() {
		r, err := NewRedisInfra(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.redis = r
		infra.Cache = r.Cache()
		infra.EventBus = r.EventBus()
	}

	if cfg.MinIOEnabled() {
		files, err := objstore.NewClient(cfg.MinIO)
		if err != nil {
			infra.Close()
			return nil, err
		}
		if err := files.EnsureBucket(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("minio: %w", err)
		}
		infra.Files = files
	}

	return infra, nil
}

// OpenDocumentStore 按 StorageDriver 创建文档存储
func OpenDocumentStore(cfg *config.Config) (storage.DocumentStore, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory, "":
		log.Printf("[Storage] Using in-memory document store")
		return memory.NewStore(), nil
	case config.DriverSQLite:
		return repository.Open(dbutil.DriverSQLite, strings.TrimPrefix(cfg.StorageURL, "sqlite://"))
	case config.DriverPostgres:
		return repository.Open(dbutil.DriverPostgres, cfg.StorageURL)
	case config.DriverMongoDB:
		return mongostore.NewStore(cfg.StorageURL, cfg.StorageDBName)
	case config.DriverEtcd:
		return etcd.NewStore(etcd.Config{
			Endpoints: cfg.EtcdEndpoints,
			Prefix:    cfg.EtcdPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}

// Close 关闭所有基础设施连接
func (i *Infrastructure) Close() error {
	var lastErr error

	if i.Storage != nil {
		if err := i.Storage.Close(); err != nil {
			lastErr = err
		}
	}

	// Cache 与 EventBus 共用同一 Redis 连接，只关闭一次
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// NewNoOpInfrastructure 创建空操作的基础设施（用于测试）
func NewNoOpInfrastructure() *Infrastructure {
	return &Infrastructure{
		Storage:  memory.NewStore(),
		Cache:    cache.NewNoOpCache(),
		EventBus: eventbus.NewNoOpEventBus(),
	}
}
