// Package backend opens the document store selected by STORE_DRIVER.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
	"github.com/anisahjamin/CPC357-Assignment2/internal/db"
	"github.com/anisahjamin/CPC357-Assignment2/internal/migrate"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store/mongostore"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store/pgstore"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store/sqlitestore"
)

// Open connects the configured backend and prepares its schema or indexes
// for the reading and quarantine collections.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		sqlDB, err := db.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if _, err := migrate.Run(ctx, sqlDB, logger); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return sqlitestore.New(sqlDB), nil

	case config.DriverPostgres:
		s, err := pgstore.Open(ctx, cfg.StoreDSN, cfg.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.StoreDSN, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx, cfg.Collection, cfg.QuarantineCollection()); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownDriver, cfg.StoreDriver)
	}
}
