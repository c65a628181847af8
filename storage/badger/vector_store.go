// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/storage"
)

// VectorStore implements storage.VectorStore for one collection using BadgerDB.
// Vectors are normalized on write so similarity is a plain dot product.
type VectorStore struct {
	backend     *Backend
	collection  string
	ownsBackend bool
	closed      atomic.Bool
	logger      *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// newVectorStore is an internal constructor that returns the concrete type.
func newVectorStore(backend *Backend, collection string, ownsBackend bool) (*VectorStore, error) {
	if collection == "" || strings.Contains(collection, ":") {
		return nil, fmt.Errorf("%w: invalid collection name %q", storage.ErrInvalidQuery, collection)
	}
	return &VectorStore{
		backend:     backend,
		collection:  collection,
		ownsBackend: ownsBackend,
		logger:      slog.Default().With("component", "badger-vector-store", "collection", collection),
	}, nil
}

// NewVectorStore creates a store for collection on an open backend.
// Closing the store leaves the backend open.
func NewVectorStore(backend *Backend, collection string) (storage.VectorStore, error) {
	return newVectorStore(backend, collection, false)
}

// Open opens (or creates) a database directory and returns a store for
// collection that closes the database when it is closed.
func Open(path, collection string) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	store, err := newVectorStore(backend, collection, true)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// NewMemoryVectorStore creates a store on a private in-memory database.
func NewMemoryVectorStore(collection string) (storage.VectorStore, error) {
	backend, err := NewMemoryBackend()
	if err != nil {
		return nil, err
	}
	store, err := newVectorStore(backend, collection, true)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

func (s *VectorStore) checkOpen() error {
	if s.closed.Load() || s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Upsert writes records through a write batch, so large loads are not bound
// by badger's transaction size limit. Writes are not atomic across records.
// The first write to a collection fixes its vector length; later records
// with a different length fail with storage.ErrDimensionMismatch.
func (s *VectorStore) Upsert(ctx context.Context, records ...*core.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
	}
	dim := len(records[0].Vector)
	for _, record := range records[1:] {
		if len(record.Vector) != dim {
			return fmt.Errorf("%w: got %d, want %d", storage.ErrDimensionMismatch, len(record.Vector), dim)
		}
	}

	keys := make([][]byte, len(records))
	insertedAt := make([]time.Time, len(records))
	var newCollection bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		stored, err := s.dimension(tx)
		if err != nil {
			return err
		}
		if stored != 0 && stored != dim {
			return fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, dim, stored)
		}
		newCollection = stored == 0

		for i, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys[i] = makeRecordKey(s.collection, record.Namespace, record.Id)
			insertedAt[i], err = s.existingInsertedAt(tx, keys[i])
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	// Stored timestamps have microsecond precision.
	now := time.Now().UTC().Truncate(time.Microsecond)
	err = s.backend.WithWriteBatch(func(wb *badger.WriteBatch) error {
		if newCollection {
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(dim))
			if err := wb.Set(makeDimensionKey(s.collection), buf); err != nil {
				return err
			}
		}

		for i, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if insertedAt[i].IsZero() {
				insertedAt[i] = now
			}

			stored := *record
			stored.Vector = core.NormalizeVector(record.Vector)
			stored.InsertedAt = insertedAt[i]
			stored.UpdatedAt = now

			if err := wb.Set(keys[i], storage.MarshalRecord(&stored)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, record := range records {
		record.InsertedAt = insertedAt[i]
		record.UpdatedAt = now
	}
	s.logger.Debug("upserted records", "count", len(records))
	return nil
}

// dimension returns the collection's vector length, or 0 if nothing was written yet.
func (s *VectorStore) dimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get(makeDimensionKey(s.collection))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var dim int
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return storage.ErrSerializationFailed
		}
		dim = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return dim, err
}

func (s *VectorStore) existingInsertedAt(tx *badger.Txn, key []byte) (time.Time, error) {
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	var insertedAt time.Time
	err = item.Value(func(val []byte) error {
		existing, err := storage.UnmarshalRecord(val)
		if err != nil {
			return err
		}
		insertedAt = existing.InsertedAt
		return nil
	})
	return insertedAt, err
}

// FindSimilar scans every record of namespace and scores it against vector.
func (s *VectorStore) FindSimilar(ctx context.Context, namespace string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	query := core.NormalizeVector(vector)

	var results []*core.SearchResult
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := s.dimension(tx)
		if err != nil {
			return err
		}
		if dim != 0 && dim != len(query) {
			return fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, len(query), dim)
		}

		prefix := makeNamespacePrefix(s.collection, namespace)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			if !inNamespace(item.Key(), prefix) {
				continue
			}

			var record *core.Record
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			similarity := core.DotProduct(query, record.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Record: record,
					Score:  similarity,
				})
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of records in namespace, reading keys only.
func (s *VectorStore) Count(ctx context.Context, namespace string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeNamespacePrefix(s.collection, namespace)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if inNamespace(iter.Item().Key(), prefix) {
				count++
			}
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Close marks the store closed and closes the backend if the store opened it.
func (s *VectorStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.ownsBackend {
		return s.backend.Close()
	}
	return nil
}
