// Package repository SQLite 集成测试
//
// 使用 SQLite 内存数据库验证 documents 表上的存取逻辑。
// 无需外部数据库依赖，可在任何环境下运行。
package repository

import (
	"context"
	"os"
	"testing"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/internal/shared/storage/dbutil"
	pgdriver "agents-workflow/internal/shared/storage/driver/postgres"
	sqlitedriver "agents-workflow/internal/shared/storage/driver/sqlite"
	"agents-workflow/internal/shared/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore 创建用于测试的 SQLite 内存数据库 Store
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })
	return store
}

// ============================================================================
// Dialect 基础测试
// ============================================================================

func TestDialectTypes(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, dbutil.DriverSQLite, d.DriverType())
	assert.Equal(t, "datetime('now')", d.CurrentTimestamp())
	assert.Equal(t, "json_extract(data, '$.task_id')", d.JSONField("data", "task_id"))

	pg := pgdriver.NewDialect()
	assert.Equal(t, dbutil.DriverPostgres, pg.DriverType())
	assert.Equal(t, "NOW()", pg.CurrentTimestamp())
	assert.Equal(t, "data->>'task_id'", pg.JSONField("data", "task_id"))
}

func TestRebind(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t, "SELECT data FROM documents WHERE collection = ? AND id = ?",
		d.Rebind("SELECT data FROM documents WHERE collection = $1 AND id = $2"))
	// 应去除 PG 类型转换
	assert.Equal(t, "VALUES (?, ?, ?)",
		d.Rebind("VALUES ($1, $2, $3::jsonb)"))

	pg := pgdriver.NewDialect()
	assert.Equal(t, "VALUES ($1, $2, $3::jsonb)", pg.Rebind("VALUES ($1, $2, $3::jsonb)"))
}

func TestUpsertConflict(t *testing.T) {
	d := sqlitedriver.NewDialect()
	assert.Equal(t,
		"ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at",
		d.UpsertConflict("collection, id", []string{"data = EXCLUDED.data", "updated_at = EXCLUDED.updated_at"}))
}

// ============================================================================
// Document 测试
// ============================================================================

func TestSQLiteDocumentStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.DocumentStore {
		return newTestStore(t)
	})
}

func TestPostgresDocumentStoreContract(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.DocumentStore {
		db, err := pgdriver.Open(url)
		if err != nil {
			t.Skipf("PostgreSQL not available: %v", err)
		}
		dialect := pgdriver.NewDialect()
		require.NoError(t, dialect.AutoMigrate(db))
		_, err = db.Exec(`DELETE FROM documents`)
		require.NoError(t, err)
		store := NewStore(db, dialect)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestListRejectsUnsafeFilterKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.List(context.Background(), storage.CollectionMessages, storage.ListOptions{
		Filter: map[string]string{"role') OR 1=1 --": "x"},
	})
	assert.Error(t, err)
}

func TestUpdatedAtChangesOnOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, storage.CollectionMessages, "m-1", model.Document{"content": "a"}))
	require.NoError(t, s.Put(ctx, storage.CollectionMessages, "m-1", model.Document{"content": "b"}))

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM documents WHERE id = 'm-1'`).Scan(&count))
	assert.Equal(t, 1, count)

	var createdAt, updatedAt string
	require.NoError(t, s.DB().QueryRow(`SELECT created_at, updated_at FROM documents WHERE id = 'm-1'`).Scan(&createdAt, &updatedAt))
	assert.NotEmpty(t, createdAt)
	assert.NotEmpty(t, updatedAt)
}

func TestOpen(t *testing.T) {
	s, err := Open(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, dbutil.DriverSQLite, s.Dialect().DriverType())

	require.NoError(t, s.Put(context.Background(), storage.CollectionMessages, "m-1", model.Document{"content": "x"}))

	_, err = Open("mysql", "whatever")
	assert.Error(t, err)
}
