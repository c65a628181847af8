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

// Package pgvector implements storage.VectorStore on PostgreSQL with the
// pgvector extension. Each collection is a table keyed by (namespace, id).
package pgvector

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/storage"
)

// Config describes the database and table to use.
type Config struct {
	// DSN is a libpq connection string or postgres:// URL.
	DSN        string
	Collection string
	// Dimensions is the vector column size used when the table is created.
	Dimensions int
}

// VectorStore implements storage.VectorStore on a pgx connection pool.
type VectorStore struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
	closed     atomic.Bool
	logger     *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// New enables the vector extension, creates the collection table if needed
// and opens a pool whose connections understand the vector type.
func New(ctx context.Context, cfg Config) (storage.VectorStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", storage.ErrInvalidQuery)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidQuery)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector: DSN is required")
	}

	table := tableName(cfg.Collection)
	if err := prepareSchema(ctx, cfg.DSN, table, cfg.Dimensions); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return &VectorStore{
		pool:       pool,
		table:      table,
		dimensions: cfg.Dimensions,
		logger:     slog.Default().With("component", "pgvector-vector-store", "table", table),
	}, nil
}

// prepareSchema runs on a plain connection: the vector type must exist
// before pooled connections can register it.
func prepareSchema(ctx context.Context, dsn, table string, dimensions int) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	if _, err := conn.Exec(ctx, createTableSQL(table, dimensions)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// tableName returns the quoted identifier for a collection's table.
func tableName(collection string) string {
	return pgx.Identifier{collection}.Sanitize()
}

func createTableSQL(table string, dimensions int) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	namespace   text        NOT NULL,
	id          bigint      NOT NULL,
	content     text        NOT NULL,
	metadata    jsonb       NOT NULL DEFAULT '{}',
	embedding   vector(%d)  NOT NULL,
	inserted_at timestamptz NOT NULL,
	updated_at  timestamptz NOT NULL,
	PRIMARY KEY (namespace, id)
)`, table, dimensions)
}

// upsertSQL keeps inserted_at of existing rows and returns the effective value.
func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (namespace, id, content, metadata, embedding, inserted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (namespace, id) DO UPDATE SET
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding,
	updated_at = EXCLUDED.updated_at
RETURNING inserted_at`, table)
}

func searchSQL(table string) string {
	return fmt.Sprintf(`SELECT id, namespace, content, metadata, inserted_at, updated_at, 1 - (embedding <=> $1) AS score
FROM %s
WHERE namespace = $2 AND 1 - (embedding <=> $1) >= $3
ORDER BY embedding <=> $1
LIMIT $4`, table)
}

func countSQL(table string) string {
	return fmt.Sprintf("SELECT count(*) FROM %s WHERE namespace = $1", table)
}

// IDs are unsigned; the bigint column stores the same 64 bits.
func toColumnID(id core.ID) int64 { return int64(id) }
func fromColumnID(v int64) core.ID { return core.ID(v) }

func (s *VectorStore) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// Upsert writes all records in one transaction using a single batch round trip.
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
		if len(record.Vector) != s.dimensions {
			return fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, len(record.Vector), s.dimensions)
		}
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	query := upsertSQL(s.table)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, record := range records {
			metadata := record.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			batch.Queue(query,
				record.Namespace,
				toColumnID(record.Id),
				record.Content,
				metadata,
				pgvector.NewVector(record.Vector),
				now,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, record := range records {
			var insertedAt time.Time
			if err := results.QueryRow().Scan(&insertedAt); err != nil {
				results.Close()
				return err
			}
			record.InsertedAt = insertedAt.UTC()
			record.UpdatedAt = now
		}
		return results.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to upsert records: %w", err)
	}

	s.logger.Debug("upserted records", "count", len(records))
	return nil
}

// FindSimilar orders by cosine distance and reports 1 - distance as the score.
func (s *VectorStore) FindSimilar(ctx context.Context, namespace string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, len(vector), s.dimensions)
	}

	rows, err := s.pool.Query(ctx, searchSQL(s.table),
		pgvector.NewVector(vector), namespace, float64(minSimilarity), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []*core.SearchResult
	for rows.Next() {
		var (
			id     int64
			score  float64
			record core.Record
		)
		if err := rows.Scan(&id, &record.Namespace, &record.Content, &record.Metadata,
			&record.InsertedAt, &record.UpdatedAt, &score); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.Id = fromColumnID(id)
		results = append(results, &core.SearchResult{Record: &record, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of rows in namespace.
func (s *VectorStore) Count(ctx context.Context, namespace string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, countSQL(s.table), namespace).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(n), nil
}

// Close closes the pool.
func (s *VectorStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}
