package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/anisahjamin/CPC357-Assignment2/internal/migrate"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store/sqlitestore"
)

func setupStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "rain.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := migrate.Run(context.Background(), db, nil); err != nil {
		_ = db.Close()
		t.Fatalf("migrate: %v", err)
	}
	s := sqlitestore.New(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, st store.Store, base time.Time, n int) {
	t.Helper()
	for i := range n {
		_, err := st.Insert(context.Background(), "rain_data", map[string]any{
			"rain_value": float64(i),
			"status":     "rain",
			"timestamp":  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
}

func TestWindow_OldestFirstAndLimited(t *testing.T) {
	st := setupStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, st, base, 5)

	repo := NewRepository(st, "rain_data", Window{Limit: 3})
	got, err := repo.Window(context.Background())
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d; want 3", len(got))
	}
	for i, want := range []float64{2, 3, 4} {
		if v := got[i].RainValue(); v == nil || *v != want {
			t.Errorf("got[%d].rain_value = %v; want %v", i, v, want)
		}
	}
	if got[0].ID == "" {
		t.Error("reading ID is empty")
	}
}

func TestWindow_MaxAge(t *testing.T) {
	st := setupStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, st, base, 5)

	r := NewRepository(st, "rain_data", Window{MaxAge: 90 * time.Second}).(*repositoryImpl)
	r.now = func() time.Time { return base.Add(4 * time.Minute) }

	got, err := r.Window(context.Background())
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d; want 2 readings inside 90s", len(got))
	}
	if v := got[1].RainValue(); v == nil || *v != 4 {
		t.Errorf("last reading = %v; want 4", v)
	}
}

func TestReadings_NewestFirst(t *testing.T) {
	st := setupStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seed(t, st, base, 5)

	repo := NewRepository(st, "rain_data", Window{})
	got, err := repo.Readings(context.Background(), base.Add(time.Minute), base.Add(3*time.Minute), 10)
	if err != nil {
		t.Fatalf("Readings() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d; want 3", len(got))
	}
	if v := got[0].RainValue(); v == nil || *v != 3 {
		t.Errorf("first reading = %v; want 3", v)
	}
	if repo.Collection() != "rain_data" {
		t.Errorf("Collection() = %q", repo.Collection())
	}
}

type failingStore struct{ store.Store }

func (failingStore) Find(context.Context, string, store.Query) ([]store.Document, error) {
	return nil, errors.New("connection refused")
}

func TestWindow_StoreError(t *testing.T) {
	repo := NewRepository(failingStore{}, "rain_data", Window{})
	if _, err := repo.Window(context.Background()); err == nil {
		t.Fatal("Window() error = nil; want store error")
	}
}
