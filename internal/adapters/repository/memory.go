package repository

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/okian/nebula/internal/domain/model"
	"github.com/okian/nebula/pkg/metrics"
)

const memoryStoreLabel = "memory"

// MemoryScoreStore keeps scores in a concurrent map. Contents are lost on
// restart; use it for tests and local runs.
type MemoryScoreStore struct {
	entries *xsync.Map[string, model.ScoreEntry]
}

// NewMemoryScoreStore returns an empty in-memory score store.
func NewMemoryScoreStore() *MemoryScoreStore {
	return &MemoryScoreStore{entries: xsync.NewMap[string, model.ScoreEntry]()}
}

// Put stores e under its ID.
func (s *MemoryScoreStore) Put(ctx context.Context, e model.ScoreEntry) error {
	defer observe(memoryStoreLabel, "put", time.Now())
	if e.ID == "" {
		return ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entries.Store(e.ID, e)
	return nil
}

// Scan returns a snapshot of all entries.
func (s *MemoryScoreStore) Scan(ctx context.Context) ([]model.ScoreEntry, error) {
	defer observe(memoryStoreLabel, "scan", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.ScoreEntry, 0, s.entries.Size())
	s.entries.Range(func(_ string, e model.ScoreEntry) bool {
		out = append(out, e)
		return true
	})
	return out, nil
}

// Delete removes the entry with id.
func (s *MemoryScoreStore) Delete(ctx context.Context, id string) error {
	defer observe(memoryStoreLabel, "delete", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	s.entries.Delete(id)
	return nil
}

// MemoryConnectionStore keeps connection records in a concurrent map.
type MemoryConnectionStore struct {
	conns *xsync.Map[string, model.ConnectionRecord]
}

// NewMemoryConnectionStore returns an empty in-memory registry.
func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{conns: xsync.NewMap[string, model.ConnectionRecord]()}
}

// Register upserts rec.
func (s *MemoryConnectionStore) Register(ctx context.Context, rec model.ConnectionRecord) error {
	defer observe(memoryStoreLabel, "register", time.Now())
	if rec.ConnectionID == "" {
		return ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.conns.Store(rec.ConnectionID, rec)
	return nil
}

// ListAll returns a snapshot of every record.
func (s *MemoryConnectionStore) ListAll(ctx context.Context) ([]model.ConnectionRecord, error) {
	defer observe(memoryStoreLabel, "list", time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.ConnectionRecord, 0, s.conns.Size())
	s.conns.Range(func(_ string, rec model.ConnectionRecord) bool {
		out = append(out, rec)
		return true
	})
	return out, nil
}

// Evict removes the record for connectionID if present.
func (s *MemoryConnectionStore) Evict(ctx context.Context, connectionID string) error {
	defer observe(memoryStoreLabel, "evict", time.Now())
	if err := ctx.Err(); err != nil {
		return err
	}
	s.conns.Delete(connectionID)
	return nil
}

func observe(store, op string, start time.Time) {
	metrics.RecordStoreLatency(store, op, float64(time.Since(start).Microseconds())/1000)
}
