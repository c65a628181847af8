package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.VectorStore {
	t.Helper()
	store, err := NewMemoryVectorStore("reviews")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(namespace, content string, vector ...float32) *core.Record {
	return &core.Record{
		Id:        core.DocumentID(core.Document{Content: content}, 0),
		Namespace: namespace,
		Content:   content,
		Metadata:  map[string]string{"product_name": "phone"},
		Vector:    vector,
	}
}

func TestNewVectorStore_InvalidCollection(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	for _, name := range []string{"", "a:b"} {
		_, err := NewVectorStore(backend, name)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery, name)
	}
}

func TestVectorStore_UpsertAndCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	count, err := store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Zero(t, count)

	err = store.Upsert(ctx,
		testRecord("default", "great battery", 1, 0, 0),
		testRecord("default", "poor sound", 0, 1, 0),
		testRecord("other", "fast delivery", 0, 0, 1),
	)
	require.NoError(t, err)

	count, err = store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.Count(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVectorStore_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := testRecord("default", "great battery", 1, 0)
	require.NoError(t, store.Upsert(ctx, first))
	insertedAt := first.InsertedAt
	require.False(t, insertedAt.IsZero())

	time.Sleep(2 * time.Millisecond)
	second := testRecord("default", "great battery", 0, 1)
	require.NoError(t, store.Upsert(ctx, second))

	count, err := store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.True(t, insertedAt.Equal(second.InsertedAt))
	assert.True(t, second.UpdatedAt.After(insertedAt))

	results, err := store.FindSimilar(ctx, "default", []float32{0, 1}, 0.9, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestVectorStore_UpsertLargeBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const n, dims = 1200, 3072
	records := make([]*core.Record, n)
	for i := range records {
		vector := make([]float32, dims)
		vector[i%dims] = 1
		vector[(i+1)%dims] = float32(i)
		content := fmt.Sprintf("review %d", i)
		records[i] = &core.Record{
			Id:        core.IDFromContent(content),
			Namespace: "default",
			Content:   content,
			Vector:    vector,
		}
	}

	require.NoError(t, store.Upsert(ctx, records...))

	count, err := store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, n, count)
	for _, record := range records {
		assert.False(t, record.InsertedAt.IsZero())
	}

	// A second pass over the same keys overwrites instead of adding.
	require.NoError(t, store.Upsert(ctx, records...))
	count, err = store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestVectorStore_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.Upsert(ctx, &core.Record{Namespace: "default", Content: "x"})
	assert.ErrorIs(t, err, core.ErrEmptyVector)

	err = store.Upsert(ctx, testRecord("default", "a", 1, 0), testRecord("default", "b", 1, 0, 0))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	count, err := store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Zero(t, count, "a failed upsert writes nothing")
}

func TestVectorStore_DimensionFixedByFirstWrite(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, testRecord("default", "a", 1, 0, 0)))

	err := store.Upsert(ctx, testRecord("default", "b", 1, 0))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	_, err = store.FindSimilar(ctx, "default", []float32{1, 0}, 0, 5)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestVectorStore_EmptyUpsert(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Upsert(context.Background()))
}

func TestVectorStore_FindSimilar(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx,
		testRecord("default", "exact", 1, 0),
		testRecord("default", "close", 0.8, 0.6),
		testRecord("default", "orthogonal", 0, 1),
		testRecord("elsewhere", "exact elsewhere", 1, 0),
	))

	results, err := store.FindSimilar(ctx, "default", []float32{2, 0}, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Record.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "close", results[1].Record.Content)
	assert.InDelta(t, 0.8, results[1].Score, 1e-6)
	assert.Equal(t, "phone", results[0].Record.Metadata["product_name"])

	results, err = store.FindSimilar(ctx, "default", []float32{1, 0}, -1, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "exact", results[0].Record.Content)
}

func TestVectorStore_FindSimilar_NoRecords(t *testing.T) {
	store := newTestStore(t)

	results, err := store.FindSimilar(context.Background(), "default", []float32{0.1, 0.2, 0.3}, 0.5, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_FindSimilar_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.FindSimilar(ctx, "default", nil, 0, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = store.FindSimilar(ctx, "default", []float32{1}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestVectorStore_Closed(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryVectorStore("reviews")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Upsert(ctx, testRecord("default", "a", 1)), storage.ErrStorageClosed)
	_, err = store.Count(ctx, "default")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = store.FindSimilar(ctx, "default", []float32{1}, 0, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestVectorStore_SharedBackend(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	a, err := NewVectorStore(backend, "a")
	require.NoError(t, err)
	b, err := NewVectorStore(backend, "b")
	require.NoError(t, err)

	require.NoError(t, a.Upsert(ctx, testRecord("default", "x", 1, 0)))
	require.NoError(t, b.Upsert(ctx, testRecord("default", "y", 1, 0, 0)))

	countA, err := a.Count(ctx, "default")
	require.NoError(t, err)
	countB, err := b.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, countA)
	assert.Equal(t, 1, countB)

	require.NoError(t, a.Close())
	assert.False(t, backend.IsClosed())
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(dir, "reviews")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, testRecord("default", "kept", 1, 0)))
	require.NoError(t, store.Close())

	store, err = Open(dir, "reviews")
	require.NoError(t, err)
	defer store.Close()

	count, err := store.Count(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
