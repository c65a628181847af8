package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/vecingest/ai/mock"
	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/storage"
	"github.com/poiesic/vecingest/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore is a storage.VectorStore that remembers every call.
type recordingStore struct {
	mu        sync.Mutex
	upserts   [][]*core.Record
	upsertErr error
}

func (s *recordingStore) Upsert(ctx context.Context, records ...*core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, records)
	return s.upsertErr
}

func (s *recordingStore) FindSimilar(ctx context.Context, namespace string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return nil, nil
}

func (s *recordingStore) Count(ctx context.Context, namespace string) (int, error) {
	return 0, nil
}

func (s *recordingStore) Close() error { return nil }

func docs(n int) []core.Document {
	out := make([]core.Document, n)
	for i := range out {
		out[i] = core.Document{
			Content:  fmt.Sprintf("review number %d", i),
			Metadata: map[string]string{"id": fmt.Sprint(i)},
		}
	}
	return out
}

func TestNew(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	store := &recordingStore{}

	idx, err := New("reviews", "", embedder, store, WithEmbeddingModel("text-embedding-3-large"))
	require.NoError(t, err)
	assert.Equal(t, "reviews", idx.Collection())
	assert.Equal(t, DefaultNamespace, idx.Namespace())
	assert.Equal(t, "text-embedding-3-large", idx.EmbeddingModel())
	assert.Same(t, embedder, idx.Embedder())

	_, err = New("", "ns", embedder, store)
	assert.ErrorIs(t, err, ErrCollectionRequired)
	_, err = New("reviews", "ns", nil, store)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = New("reviews", "ns", embedder, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestNew_InvalidOptions(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	store := &recordingStore{}

	for name, opt := range map[string]Option{
		"batch size":  WithBatchSize(0),
		"concurrency": WithConcurrency(0),
		"progress":    WithProgress(&bytes.Buffer{}, 0),
	} {
		_, err := New("reviews", "ns", embedder, store, opt)
		assert.Error(t, err, name)
	}
}

func TestEmbed_PreservesOrderAcrossBatches(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			idx, err := New("reviews", "ns", embedder, &recordingStore{},
				WithBatchSize(3), WithConcurrency(concurrency))
			require.NoError(t, err)

			input := docs(10)
			records, err := idx.Embed(context.Background(), input)
			require.NoError(t, err)
			require.Len(t, records, len(input))

			for i, record := range records {
				assert.Equal(t, input[i].Content, record.Content)
				assert.Equal(t, input[i].Metadata, record.Metadata)
				assert.Equal(t, "ns", record.Namespace)
				assert.Equal(t, core.DocumentID(input[i], 0), record.Id)
				assert.Equal(t, mock.DeterministicVector(input[i].Content, mock.Dimensions), record.Vector)
			}
			assert.Equal(t, 4, embedder.CallCount(), "10 documents in batches of 3")
		})
	}
}

func TestEmbed_NoWrites(t *testing.T) {
	store := &recordingStore{}
	idx, err := New("reviews", "ns", mock.NewMockEmbedder(), store)
	require.NoError(t, err)

	_, err = idx.Embed(context.Background(), docs(3))
	require.NoError(t, err)
	assert.Empty(t, store.upserts)
}

func TestEmbed_EmptyContent(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	idx, err := New("reviews", "ns", embedder, &recordingStore{})
	require.NoError(t, err)

	_, err = idx.Embed(context.Background(), []core.Document{{Content: "ok"}, {Content: "  "}})
	assert.ErrorIs(t, err, core.ErrEmptyContent)
	assert.Zero(t, embedder.CallCount())
}

func TestEmbed_CountMismatch(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	idx, err := New("reviews", "ns", embedder, &recordingStore{})
	require.NoError(t, err)

	_, err = idx.Embed(context.Background(), docs(2))
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestEmbed_ErrorStopsConcurrentBatches(t *testing.T) {
	boom := errors.New("quota exceeded")
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}
	idx, err := New("reviews", "ns", embedder, &recordingStore{},
		WithBatchSize(1), WithConcurrency(3))
	require.NoError(t, err)

	_, err = idx.Embed(context.Background(), docs(6))
	assert.ErrorIs(t, err, boom)
}

func TestEmbed_Progress(t *testing.T) {
	var buf bytes.Buffer
	idx, err := New("reviews", "ns", mock.NewMockEmbedder(), &recordingStore{},
		WithBatchSize(2), WithProgress(&buf, 2))
	require.NoError(t, err)

	_, err = idx.Embed(context.Background(), docs(4))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "4/4")
	assert.Contains(t, buf.String(), "100.0%")
}

func TestAddDocuments_SingleUpsertInOrder(t *testing.T) {
	store := &recordingStore{}
	idx, err := New("reviews", "ns", mock.NewMockEmbedder(), store, WithBatchSize(2))
	require.NoError(t, err)

	input := docs(5)
	ids, err := idx.AddDocuments(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, ids, 5)

	require.Len(t, store.upserts, 1)
	upserted := store.upserts[0]
	require.Len(t, upserted, 5)
	for i, record := range upserted {
		assert.Equal(t, input[i].Content, record.Content)
		assert.Equal(t, ids[i], record.Id)
	}
}

func TestAddDocuments_Empty(t *testing.T) {
	store := &recordingStore{}
	embedder := mock.NewMockEmbedder()
	idx, err := New("reviews", "ns", embedder, store)
	require.NoError(t, err)

	ids, err := idx.AddDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, store.upserts)
	assert.Zero(t, embedder.CallCount())
}

func TestAddDocuments_EmbeddingFailureWritesNothing(t *testing.T) {
	store := &recordingStore{}
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("unauthorized")
	}
	idx, err := New("reviews", "ns", embedder, store)
	require.NoError(t, err)

	_, err = idx.AddDocuments(context.Background(), docs(2))
	assert.Error(t, err)
	assert.Empty(t, store.upserts)
}

func TestAddDocuments_UpsertFailure(t *testing.T) {
	store := &recordingStore{upsertErr: storage.ErrStorageClosed}
	idx, err := New("reviews", "ns", mock.NewMockEmbedder(), store)
	require.NoError(t, err)

	ids, err := idx.AddDocuments(context.Background(), docs(2))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.Nil(t, ids)
	assert.Len(t, store.upserts, 1)
}

func TestSimilaritySearchAndCount(t *testing.T) {
	ctx := context.Background()
	store, err := badger.NewMemoryVectorStore("reviews")
	require.NoError(t, err)
	defer store.Close()

	idx, err := New("reviews", "ns", mock.NewMockEmbedder(), store)
	require.NoError(t, err)

	input := docs(3)
	_, err = idx.AddDocuments(ctx, input)
	require.NoError(t, err)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := idx.SimilaritySearch(ctx, input[1].Content, 1, 0.99)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, input[1].Content, results[0].Record.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}
