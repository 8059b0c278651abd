// Package repository holds the score store and connection registry backends.
package repository

import (
	"context"

	"github.com/okian/nebula/internal/domain/model"
)

// ScoreStore is the durable table of submitted scores. It is append-only apart
// from Delete, which exists for administrative bulk clears.
type ScoreStore interface {
	// Put persists a new entry. The caller supplies a fresh unique ID.
	Put(ctx context.Context, e model.ScoreEntry) error
	// Scan returns every stored entry. Order is backend-defined.
	Scan(ctx context.Context) ([]model.ScoreEntry, error)
	// Delete removes one entry. Deleting an absent ID is not an error.
	Delete(ctx context.Context, id string) error
}

// ConnectionStore is the durable table of socket connections.
type ConnectionStore interface {
	// Register upserts a record keyed by ConnectionID.
	Register(ctx context.Context, rec model.ConnectionRecord) error
	// ListAll returns every record without filtering.
	ListAll(ctx context.Context) ([]model.ConnectionRecord, error)
	// Evict removes one record. Evicting an absent ID is a no-op.
	Evict(ctx context.Context, connectionID string) error
}
