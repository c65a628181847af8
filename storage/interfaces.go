package storage

import (
	"context"

	"github.com/poiesic/vecingest/core"
)

// VectorStore persists embedded records in one collection and answers
// similarity queries over them. Implementations must be thread-safe and
// support concurrent access.
type VectorStore interface {
	// Upsert inserts or replaces records keyed by (namespace, id).
	// A call that returns nil has written every record. Backends that split
	// large writes may leave part of the records written when a call fails.
	// InsertedAt is preserved for records that already exist; UpdatedAt is
	// always set to the write time.
	Upsert(ctx context.Context, records ...*core.Record) error

	// FindSimilar returns records in namespace whose similarity to vector is
	// at least minSimilarity, up to limit results, highest score first.
	FindSimilar(ctx context.Context, namespace string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Count returns the number of records stored in namespace.
	Count(ctx context.Context, namespace string) (int, error)

	// Close releases the backend's resources. Further calls return ErrStorageClosed.
	Close() error
}
