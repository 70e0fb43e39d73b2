// Package sqlitestore keeps documents as JSON rows in a SQLite table.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
)

// tsLayout is fixed width so the ts column orders lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open database that already has the documents schema applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if collection == "" {
		return "", store.ErrEmptyName
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	var ts sql.NullString
	if t, ok := store.TimestampOf(fields); ok {
		ts = sql.NullString{String: t.Format(tsLayout), Valid: true}
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, ts, body) VALUES (?, ?, ?, ?)`,
		id, collection, ts, string(body),
	)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if collection == "" {
		return nil, store.ErrEmptyName
	}

	var (
		sb   strings.Builder
		args = []any{collection}
	)
	sb.WriteString(`SELECT id, body FROM documents WHERE collection = ?`)
	if !q.Since.IsZero() {
		sb.WriteString(` AND ts >= ?`)
		args = append(args, q.Since.UTC().Format(tsLayout))
	}
	if !q.Until.IsZero() {
		sb.WriteString(` AND ts <= ?`)
		args = append(args, q.Until.UTC().Format(tsLayout))
	}
	sb.WriteString(` ORDER BY ts IS NULL, ts DESC, rowid DESC`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var (
			id   string
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		fields := map[string]any{}
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		out = append(out, store.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}
