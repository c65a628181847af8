package index

import (
	"context"
	"fmt"
	"strconv"

	"github.com/poiesic/vecingest/core"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// VectorStore adapts an Index to langchaingo's vectorstores.VectorStore.
//
// Supported options: vectorstores.WithNameSpace selects another namespace of
// the same collection; vectorstores.WithScoreThreshold sets the minimum
// score. Embedder overrides and filters are rejected because they would
// break the one-embedder-per-index contract.
type VectorStore struct {
	idx *Index
}

var _ vectorstores.VectorStore = VectorStore{}

// AsVectorStore returns the langchaingo view of the index.
func (idx *Index) AsVectorStore() VectorStore {
	return VectorStore{idx: idx}
}

func (v VectorStore) options(opts []vectorstores.Option) (vectorstores.Options, string, error) {
	var o vectorstores.Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Embedder != nil {
		return o, "", fmt.Errorf("index: embedder override is not supported")
	}
	if o.Filters != nil {
		return o, "", fmt.Errorf("index: filters are not supported")
	}
	namespace := o.NameSpace
	if namespace == "" {
		namespace = v.idx.namespace
	}
	return o, namespace, nil
}

// AddDocuments embeds and upserts docs, returning their IDs as decimal strings.
// Metadata values are converted to strings.
func (v VectorStore) AddDocuments(ctx context.Context, docs []schema.Document, opts ...vectorstores.Option) ([]string, error) {
	_, namespace, err := v.options(opts)
	if err != nil {
		return nil, err
	}

	converted := make([]core.Document, len(docs))
	for i, doc := range docs {
		converted[i] = fromSchemaDocument(doc)
	}

	ids, err := v.idx.addDocuments(ctx, namespace, converted)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatUint(uint64(id), 10)
	}
	return out, nil
}

// SimilaritySearch returns up to numDocuments documents, best match first,
// with Score set.
func (v VectorStore) SimilaritySearch(ctx context.Context, query string, numDocuments int, opts ...vectorstores.Option) ([]schema.Document, error) {
	o, namespace, err := v.options(opts)
	if err != nil {
		return nil, err
	}

	results, err := v.idx.similaritySearch(ctx, namespace, query, numDocuments, o.ScoreThreshold)
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, len(results))
	for i, result := range results {
		docs[i] = toSchemaDocument(result)
	}
	return docs, nil
}

func fromSchemaDocument(doc schema.Document) core.Document {
	var metadata map[string]string
	if len(doc.Metadata) > 0 {
		metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = fmt.Sprint(v)
		}
	}
	return core.Document{Content: doc.PageContent, Metadata: metadata}
}

func toSchemaDocument(result *core.SearchResult) schema.Document {
	metadata := make(map[string]any, len(result.Record.Metadata))
	for k, v := range result.Record.Metadata {
		metadata[k] = v
	}
	return schema.Document{
		PageContent: result.Record.Content,
		Metadata:    metadata,
		Score:       result.Score,
	}
}
