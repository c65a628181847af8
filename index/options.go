package index

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding request.
	DefaultBatchSize = 100

	// DefaultNamespace is used when an index is created with an empty namespace.
	DefaultNamespace = "default"
)

// Option configures an Index.
type Option func(*Index) error

// WithBatchSize sets how many documents are embedded per request.
func WithBatchSize(size int) Option {
	return func(idx *Index) error {
		if size < 1 {
			return fmt.Errorf("batch size must be greater than 0, got %d", size)
		}
		idx.batchSize = size
		return nil
	}
}

// WithConcurrency sets how many embedding requests may be in flight at once.
// Default is 1.
func WithConcurrency(n int) Option {
	return func(idx *Index) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be greater than 0, got %d", n)
		}
		idx.concurrency = n
		return nil
	}
}

// WithEmbeddingModel records the name of the model behind the embedder.
func WithEmbeddingModel(model string) Option {
	return func(idx *Index) error {
		idx.embeddingModel = model
		return nil
	}
}

// WithProgress reports embedding progress to w every interval documents.
func WithProgress(w io.Writer, interval int) Option {
	return func(idx *Index) error {
		if interval < 1 {
			return fmt.Errorf("report interval must be greater than 0, got %d", interval)
		}
		idx.progressWriter = w
		idx.progressInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		idx.logger = logger
		return nil
	}
}
