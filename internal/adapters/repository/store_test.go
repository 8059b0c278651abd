package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/nebula/internal/domain/model"
)

type backend struct {
	name   string
	scores ScoreStore
	conns  ConnectionStore
}

func backends(t *testing.T) []backend {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nebula.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return []backend{
		{name: "memory", scores: NewMemoryScoreStore(), conns: NewMemoryConnectionStore()},
		{name: "sqlite", scores: NewSQLiteScoreStore(db), conns: NewSQLiteConnectionStore(db)},
	}
}

func TestScoreStore_PutScanDelete(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			entries, err := b.scores.Scan(ctx)
			if err != nil {
				t.Fatalf("scan empty: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("expected empty store, got %d", len(entries))
			}

			// Same user twice: no uniqueness across user_id.
			in := []model.ScoreEntry{
				{ID: "a", UserID: "u1", UserName: "ada", Score: 10, Timestamp: 1},
				{ID: "b", UserID: "u1", UserName: "ada", Score: 500.5, Timestamp: 2},
				{ID: "c", UserID: "u2", UserName: "bob", Score: 7, Timestamp: 3},
			}
			for _, e := range in {
				if err := b.scores.Put(ctx, e); err != nil {
					t.Fatalf("put %s: %v", e.ID, err)
				}
			}

			entries, err = b.scores.Scan(ctx)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(entries) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(entries))
			}
			byID := map[string]model.ScoreEntry{}
			for _, e := range entries {
				byID[e.ID] = e
			}
			if byID["b"] != in[1] {
				t.Errorf("round trip mismatch: got %+v want %+v", byID["b"], in[1])
			}

			if err := b.scores.Delete(ctx, "a"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := b.scores.Delete(ctx, "missing"); err != nil {
				t.Fatalf("delete missing should be a no-op: %v", err)
			}
			entries, _ = b.scores.Scan(ctx)
			if len(entries) != 2 {
				t.Errorf("expected 2 entries after delete, got %d", len(entries))
			}
		})
	}
}

func TestScoreStore_RejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			err := b.scores.Put(ctx, model.ScoreEntry{UserID: "u1", Score: 1})
			if !errors.Is(err, ErrEmptyID) {
				t.Errorf("expected ErrEmptyID, got %v", err)
			}
		})
	}
}

func TestScoreStore_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			const n = 50
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- b.scores.Put(ctx, model.ScoreEntry{ID: fmt.Sprintf("id-%d", i), UserID: "u", Score: float64(i)})
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("concurrent put: %v", err)
				}
			}
			entries, err := b.scores.Scan(ctx)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(entries) != n {
				t.Errorf("expected %d entries, got %d", n, len(entries))
			}
		})
	}
}

func TestConnectionStore_RegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			rec := model.ConnectionRecord{ConnectionID: "c1", ConnectedAt: 1}
			for i := 0; i < 3; i++ {
				if err := b.conns.Register(ctx, rec); err != nil {
					t.Fatalf("register: %v", err)
				}
			}
			// Upsert updates the owner in place.
			if err := b.conns.Register(ctx, model.ConnectionRecord{ConnectionID: "c1", UserID: "u1", ConnectedAt: 2}); err != nil {
				t.Fatalf("register upsert: %v", err)
			}
			if err := b.conns.Register(ctx, model.ConnectionRecord{ConnectionID: "c2", ConnectedAt: 3}); err != nil {
				t.Fatalf("register c2: %v", err)
			}

			recs, err := b.conns.ListAll(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(recs) != 2 {
				t.Fatalf("expected 2 records, got %d", len(recs))
			}
			for _, r := range recs {
				if r.ConnectionID == "c1" && r.UserID != "u1" {
					t.Errorf("expected c1 owned by u1, got %q", r.UserID)
				}
			}
		})
	}
}

func TestConnectionStore_Evict(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			_ = b.conns.Register(ctx, model.ConnectionRecord{ConnectionID: "c1"})
			_ = b.conns.Register(ctx, model.ConnectionRecord{ConnectionID: "c2"})

			if err := b.conns.Evict(ctx, "c1"); err != nil {
				t.Fatalf("evict: %v", err)
			}
			// Concurrent evictions of the same key are idempotent.
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := b.conns.Evict(ctx, "c1"); err != nil {
						t.Errorf("repeat evict: %v", err)
					}
				}()
			}
			wg.Wait()

			recs, _ := b.conns.ListAll(ctx)
			if len(recs) != 1 || recs[0].ConnectionID != "c2" {
				t.Errorf("expected only c2 to remain, got %+v", recs)
			}
		})
	}
}

func TestConnectionStore_RejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends(t) {
		t.Run(b.name, func(t *testing.T) {
			if err := b.conns.Register(ctx, model.ConnectionRecord{}); !errors.Is(err, ErrEmptyID) {
				t.Errorf("expected ErrEmptyID, got %v", err)
			}
		})
	}
}

func TestMigrate_IsRepeatable(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "again.db"), WithBusyTimeout(1000), WithMaxOpenConns(1))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
	if err := Migrate(nil); !errors.Is(err, ErrNilDB) {
		t.Errorf("expected ErrNilDB, got %v", err)
	}
}

func TestMemoryStores_HonorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewMemoryScoreStore().Put(ctx, model.ScoreEntry{ID: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := NewMemoryConnectionStore().ListAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
