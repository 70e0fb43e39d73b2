// Package pgstore keeps documents as jsonb rows in PostgreSQL.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id          uuid PRIMARY KEY,
    collection  text        NOT NULL,
    ts          timestamptz,
    body        jsonb       NOT NULL,
    created_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_collection_ts ON documents (collection, ts DESC);
`

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects a pool to dsn and verifies it with a ping. maxConns 0
// keeps pgx's default pool size (or pool_max_conns from the DSN).
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := poolConfig(dsn, maxConns)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func poolConfig(dsn string, maxConns int) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	return cfg, nil
}

// EnsureSchema creates the documents table and index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if collection == "" {
		return "", store.ErrEmptyName
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	var ts any
	if t, ok := store.TimestampOf(fields); ok {
		ts = t
	}

	id := uuid.New()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (id, collection, ts, body) VALUES ($1, $2, $3, $4)`,
		id, collection, ts, body,
	)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return id.String(), nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]store.Document, error) {
	if collection == "" {
		return nil, store.ErrEmptyName
	}

	query, args := buildFind(collection, q)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Document, error) {
		var (
			id   uuid.UUID
			body []byte
		)
		if err := row.Scan(&id, &body); err != nil {
			return store.Document{}, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(body, &fields); err != nil {
			return store.Document{}, fmt.Errorf("decode document %s: %w", id, err)
		}
		return store.Document{ID: id.String(), Fields: fields}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return docs, nil
}

func buildFind(collection string, q store.Query) (string, []any) {
	var sb strings.Builder
	args := []any{collection}
	sb.WriteString(`SELECT id, body FROM documents WHERE collection = $1`)
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		fmt.Fprintf(&sb, ` AND ts >= $%d`, len(args))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until.UTC())
		fmt.Fprintf(&sb, ` AND ts <= $%d`, len(args))
	}
	sb.WriteString(` ORDER BY ts DESC NULLS LAST, created_at DESC`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	return sb.String(), args
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
