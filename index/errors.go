package index

import "errors"

var (
	// ErrCollectionRequired is returned when an index is created without a collection name.
	ErrCollectionRequired = errors.New("collection is required")

	// ErrEmbedderRequired is returned when an index is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrStoreRequired is returned when an index is created without a vector store.
	ErrStoreRequired = errors.New("vector store is required")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
