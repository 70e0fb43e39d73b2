// Package store defines the schemaless document store shared by the
// ingestor and the dashboard.
package store

import (
	"context"
	"errors"
	"time"
)

// TimestampField is the document field the store orders and windows on.
const TimestampField = "timestamp"

var (
	ErrUnknownDriver = errors.New("store: unknown driver")
	ErrEmptyName     = errors.New("store: empty collection name")
)

// Document is one stored record. Fields holds the decoded body; ID is
// assigned by the store on insert.
type Document struct {
	ID     string
	Fields map[string]any
}

// Query selects a window of a collection. Zero Since/Until are unbounded;
// Limit 0 returns every matching document.
type Query struct {
	Since time.Time
	Until time.Time
	Limit int
}

// Windowed reports whether the query restricts by time.
func (q Query) Windowed() bool {
	return !q.Since.IsZero() || !q.Until.IsZero()
}

// Store is implemented by every backend. Find returns newest documents
// first; documents without a usable timestamp come last and are skipped by
// windowed queries.
type Store interface {
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
	Find(ctx context.Context, collection string, q Query) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// TimestampOf extracts the ordering time of a document body, accepting a
// time.Time or an RFC 3339 string.
func TimestampOf(fields map[string]any) (time.Time, bool) {
	switch v := fields[TimestampField].(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}
