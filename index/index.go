package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vecingest/ai"
	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/storage"
)

// Index is a handle to one namespace of a vector store collection together
// with the embedder its vectors come from. It has no exported mutators.
type Index struct {
	collection       string
	namespace        string
	embedder         ai.Embedder
	store            storage.VectorStore
	embeddingModel   string
	batchSize        int
	concurrency      int
	progressWriter   io.Writer
	progressInterval int
	logger           *slog.Logger
}

// New creates an index handle. An empty namespace selects DefaultNamespace.
func New(collection, namespace string, embedder ai.Embedder, store storage.VectorStore, opts ...Option) (*Index, error) {
	if collection == "" {
		return nil, ErrCollectionRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	idx := &Index{
		collection:  collection,
		namespace:   namespace,
		embedder:    embedder,
		store:       store,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	idx.logger = idx.logger.With("component", "index", "collection", collection, "namespace", namespace)
	return idx, nil
}

// Collection returns the collection name.
func (idx *Index) Collection() string {
	return idx.collection
}

// Namespace returns the namespace the handle reads and writes.
func (idx *Index) Namespace() string {
	return idx.namespace
}

// EmbeddingModel names the model the vectors come from, if known.
// Query-time callers should compare it with their own embedder's model.
func (idx *Index) EmbeddingModel() string {
	return idx.embeddingModel
}

// Embedder returns the embedder bound to the index.
func (idx *Index) Embedder() ai.Embedder {
	return idx.embedder
}

// Embed turns documents into records for the index namespace without
// writing anything. Records are returned in input order.
func (idx *Index) Embed(ctx context.Context, docs []core.Document) ([]*core.Record, error) {
	return idx.embed(ctx, idx.namespace, docs)
}

func (idx *Index) embed(ctx context.Context, namespace string, docs []core.Document) ([]*core.Record, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	for i, doc := range docs {
		if err := core.ValidateDocument(doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	var progress *ProgressTracker
	if idx.progressWriter != nil {
		progress = NewProgressTracker(idx.progressWriter, len(docs), idx.progressInterval)
		progress.Start()
	}

	idx.logger.Debug("embedding documents", "documents", len(docs), "batch_size", idx.batchSize)
	vectors, err := idx.embedBatches(ctx, texts, progress)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress.Finish()
	}

	records := make([]*core.Record, len(docs))
	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		fingerprint := doc.Fingerprint()
		occurrence := seen[fingerprint]
		seen[fingerprint]++
		records[i] = &core.Record{
			Id:        core.DocumentID(doc, occurrence),
			Namespace: namespace,
			Content:   doc.Content,
			Metadata:  maps.Clone(doc.Metadata),
			Vector:    vectors[i],
		}
	}
	return records, nil
}

// embedBatches embeds texts batch by batch and returns one vector per text.
func (idx *Index) embedBatches(ctx context.Context, texts []string, progress *ProgressTracker) ([][]float32, error) {
	var batches [][2]int
	for start := 0; start < len(texts); start += idx.batchSize {
		batches = append(batches, [2]int{start, min(start+idx.batchSize, len(texts))})
	}

	vectors := make([][]float32, len(texts))
	embedOne := func(ctx context.Context, b [2]int) error {
		batch := texts[b[0]:b[1]]
		embeddings, err := idx.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			idx.logger.Error("error generating embeddings", "offset", b[0], "err", err)
			return err
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(batch), len(embeddings))
		}
		copy(vectors[b[0]:b[1]], embeddings)
		if progress != nil {
			progress.Increment(len(batch))
		}
		return nil
	}

	if idx.concurrency == 1 || len(batches) == 1 {
		for _, b := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := embedOne(ctx, b); err != nil {
				return nil, err
			}
		}
		return vectors, nil
	}

	pool, err := ants.NewPool(min(idx.concurrency, len(batches)))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, b := range batches {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := embedOne(ctx, b); err != nil {
				fail(err)
			}
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Upsert writes records with exactly one store call.
func (idx *Index) Upsert(ctx context.Context, records []*core.Record) error {
	if err := idx.store.Upsert(ctx, records...); err != nil {
		idx.logger.Error("upsert failed", "records", len(records), "err", err)
		return err
	}
	idx.logger.Info("upserted records", "records", len(records))
	return nil
}

// AddDocuments embeds docs and upserts them in one store call.
// Nothing is written if embedding fails. An empty slice is a no-op.
func (idx *Index) AddDocuments(ctx context.Context, docs []core.Document) ([]core.ID, error) {
	return idx.addDocuments(ctx, idx.namespace, docs)
}

func (idx *Index) addDocuments(ctx context.Context, namespace string, docs []core.Document) ([]core.ID, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	records, err := idx.embed(ctx, namespace, docs)
	if err != nil {
		return nil, err
	}
	if err := idx.Upsert(ctx, records); err != nil {
		return nil, err
	}

	ids := make([]core.ID, len(records))
	for i, record := range records {
		ids[i] = record.Id
	}
	return ids, nil
}

// SimilaritySearch embeds query and returns up to k records scoring at least minScore.
func (idx *Index) SimilaritySearch(ctx context.Context, query string, k int, minScore float32) ([]*core.SearchResult, error) {
	return idx.similaritySearch(ctx, idx.namespace, query, k, minScore)
}

func (idx *Index) similaritySearch(ctx context.Context, namespace, query string, k int, minScore float32) ([]*core.SearchResult, error) {
	vector, err := idx.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	return idx.store.FindSimilar(ctx, namespace, vector, minScore, k)
}

// Count returns the number of records in the index namespace.
func (idx *Index) Count(ctx context.Context) (int, error) {
	return idx.store.Count(ctx, idx.namespace)
}
