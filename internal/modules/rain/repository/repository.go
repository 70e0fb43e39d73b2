package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
)

// RainRepository reads stored readings for the dashboard.
type RainRepository interface {
	// Window returns the dashboard window oldest first.
	Window(ctx context.Context) ([]types.Reading, error)
	// Readings returns up to limit readings between from and to, newest
	// first. Zero from or to is unbounded.
	Readings(ctx context.Context, from, to time.Time, limit int) ([]types.Reading, error)
	Collection() string
}

// Window bounds the dashboard query: the newest Limit documents (0 = all),
// no older than MaxAge (0 = unbounded).
type Window struct {
	Limit  int
	MaxAge time.Duration
}

type repositoryImpl struct {
	store      store.Store
	collection string
	window     Window
	now        func() time.Time
}

func NewRepository(st store.Store, collection string, window Window) RainRepository {
	return &repositoryImpl{
		store:      st,
		collection: collection,
		window:     window,
		now:        time.Now,
	}
}

func (r *repositoryImpl) Collection() string {
	return r.collection
}

func (r *repositoryImpl) Window(ctx context.Context) ([]types.Reading, error) {
	q := store.Query{Limit: r.window.Limit}
	if r.window.MaxAge > 0 {
		q.Since = r.now().UTC().Add(-r.window.MaxAge)
	}
	readings, err := r.find(ctx, q)
	if err != nil {
		return nil, err
	}
	slices.Reverse(readings)
	return readings, nil
}

func (r *repositoryImpl) Readings(ctx context.Context, from, to time.Time, limit int) ([]types.Reading, error) {
	return r.find(ctx, store.Query{Since: from, Until: to, Limit: limit})
}

func (r *repositoryImpl) find(ctx context.Context, q store.Query) ([]types.Reading, error) {
	docs, err := r.store.Find(ctx, r.collection, q)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", r.collection, err)
	}
	readings := make([]types.Reading, 0, len(docs))
	for _, d := range docs {
		readings = append(readings, types.Reading{ID: d.ID, Fields: d.Fields})
	}
	return readings, nil
}
