package repository

import (
	"database/sql"
	"fmt"
	"log"

	"agents-workflow/internal/shared/storage/dbutil"
	pgdriver "agents-workflow/internal/shared/storage/driver/postgres"
	sqlitedriver "agents-workflow/internal/shared/storage/driver/sqlite"
)

// Open 按驱动类型打开数据库、执行 Schema 迁移并返回 Store
func Open(driverType dbutil.DriverType, dsn string) (*Store, error) {
	var (
		db      *sql.DB
		dialect dbutil.Dialect
		err     error
	)
	switch driverType {
	case dbutil.DriverSQLite:
		db, err = sqlitedriver.Open(dsn)
		dialect = sqlitedriver.NewDialect()
	case dbutil.DriverPostgres:
		db, err = pgdriver.Open(dsn)
		dialect = pgdriver.NewDialect()
	default:
		return nil, fmt.Errorf("repository: unsupported driver %q", driverType)
	}
	if err != nil {
		return nil, err
	}

	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: migrate %s: %w", driverType, err)
	}

	log.Printf("[%s] Connected, documents table ready", driverType)
	return NewStore(db, dialect), nil
}
