package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"agents-workflow/internal/shared/model"
	"agents-workflow/internal/shared/storage"
	"agents-workflow/internal/shared/storage/dbutil"
)

func (s *Store) Put(ctx context.Context, collection, id string, doc model.Document) error {
	if err := storage.ValidateKey(collection, id); err != nil {
		return err
	}
	doc = doc.Clone()
	if doc == nil {
		doc = model.Document{}
	}
	doc["id"] = id

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("repository: encode %s/%s: %w", collection, id, err)
	}

	query := `INSERT INTO documents (collection, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, ` + s.now() + `, ` + s.now() + `) ` +
		s.dialect.UpsertConflict("collection, id", []string{
			"data = EXCLUDED.data",
			"updated_at = EXCLUDED.updated_at",
		})
	if _, err := s.db.ExecContext(ctx, s.rebind(query), collection, id, string(data)); err != nil {
		return fmt.Errorf("repository: put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var data []byte
	err := s.db.QueryRowContext(ctx, s.rebind(query), collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(data)
}

func (s *Store) List(ctx context.Context, collection string, opts storage.ListOptions) ([]model.Document, error) {
	conditions := []string{"collection = $1"}
	args := []interface{}{collection}

	// 过滤键排序，保证生成的 SQL 稳定
	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !dbutil.ValidJSONKey(k) {
			return nil, fmt.Errorf("repository: invalid filter key %q", k)
		}
		args = append(args, opts.Filter[k])
		conditions = append(conditions, fmt.Sprintf("%s = $%d", s.dialect.JSONField("data", k), len(args)))
	}

	query, args := dbutil.BuildDynamicQuery(s.dialect, `SELECT data FROM documents`, conditions, args)
	query += " ORDER BY id ASC"
	if opts.Limit > 0 || opts.Offset > 0 {
		// OFFSET 必须跟在 LIMIT 之后
		limit := opts.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		args = append(args, limit, opts.Offset)
		query += s.rebind(fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: list %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, s.rebind(query), collection, id)
	if err != nil {
		return fmt.Errorf("repository: delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func decodeDocument(data []byte) (model.Document, error) {
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("repository: decode document: %w", err)
	}
	return doc, nil
}
