// Package db opens the SQLite database backing the sqlite document store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
)

const driverName = "sqlite3"

// Open returns a pinged *sql.DB. With cfg.LogSQL every statement is logged at
// debug level through logger.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if cfg.LogSQL {
		connector, err := NewLoggingConnector(&sqlite3.SQLiteDriver{}, dsn, logger)
		if err != nil {
			return nil, fmt.Errorf("db connector: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	db.SetMaxOpenConns(maxOpenConns(cfg.MaxOpenConns))
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// maxOpenConns defaults to one connection, since SQLite serialises writers.
func maxOpenConns(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// buildDSN prefers an explicit STORE_DSN and otherwise derives a file DSN
// from SQLitePath, creating the parent directory.
func buildDSN(cfg config.Config) (string, error) {
	if cfg.StoreDSN != "" {
		return cfg.StoreDSN, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// busy_timeout covers the ingestor and dashboard sharing one file;
	// WAL lets the dashboard read while the ingestor writes.
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=on",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
