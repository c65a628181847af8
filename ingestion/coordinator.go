package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/vecingest/index"
	"github.com/poiesic/vecingest/source"
)

// Coordinator runs ingestion for one index and one document source.
type Coordinator struct {
	index        *index.Index
	source       source.DocumentSource
	connectCheck bool
	logger       *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithConnectCheck makes connect mode count the index namespace and fail
// with ErrCollectionEmpty when it holds no records. Off by default.
func WithConnectCheck() Option {
	return func(c *Coordinator) error {
		c.connectCheck = true
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates a coordinator. Both idx and src are required.
func NewCoordinator(idx *index.Index, src source.DocumentSource, opts ...Option) (*Coordinator, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if src == nil {
		return nil, ErrSourceRequired
	}

	c := &Coordinator{
		index:  idx,
		source: src,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "ingestion",
		"collection", idx.Collection(), "namespace", idx.Namespace())
	return c, nil
}

// Connect returns the index handle without loading anything.
// It is Ingest(ctx, true), the default mode.
func (c *Coordinator) Connect(ctx context.Context) (*index.Index, error) {
	return c.Ingest(ctx, true)
}

// Ingest returns the coordinator's index handle.
//
// With loadExisting the handle is returned unchanged and nothing is written.
// Otherwise every document from the source is embedded and written with
// exactly one upsert, in source order, before the handle is returned. If the
// source fails, nothing is embedded or written. If the upsert fails, the
// error is returned and no handle is.
func (c *Coordinator) Ingest(ctx context.Context, loadExisting bool) (*index.Index, error) {
	if loadExisting {
		return c.connect(ctx)
	}
	return c.load(ctx)
}

func (c *Coordinator) connect(ctx context.Context) (*index.Index, error) {
	if !c.connectCheck {
		return c.index, nil
	}

	count, err := c.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking collection: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrCollectionEmpty, c.index.Collection(), c.index.Namespace())
	}
	c.logger.Debug("connected to existing collection", "records", count)
	return c.index, nil
}

func (c *Coordinator) load(ctx context.Context) (*index.Index, error) {
	start := time.Now()

	docs, err := c.source.Documents(ctx)
	if err != nil {
		c.logger.Error("error reading documents", "err", err)
		return nil, err
	}
	c.logger.Info("loading documents", "documents", len(docs))

	if _, err := c.index.AddDocuments(ctx, docs); err != nil {
		c.logger.Error("error loading documents", "err", err)
		return nil, err
	}

	c.logger.Info("ingestion complete", "documents", len(docs), "elapsed", time.Since(start))
	return c.index, nil
}
