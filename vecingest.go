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

// Package vecingest wires configuration, an AI provider, a vector store, a
// document source and the ingestion coordinator into one Service.
package vecingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/vecingest/ai"
	"github.com/poiesic/vecingest/ai/gemini"
	"github.com/poiesic/vecingest/ai/ollama"
	"github.com/poiesic/vecingest/ai/openai"
	"github.com/poiesic/vecingest/config"
	"github.com/poiesic/vecingest/index"
	"github.com/poiesic/vecingest/ingestion"
	"github.com/poiesic/vecingest/search"
	"github.com/poiesic/vecingest/source"
	"github.com/poiesic/vecingest/storage"
	"github.com/poiesic/vecingest/storage/badger"
	"github.com/poiesic/vecingest/storage/pgvector"
	"github.com/poiesic/vecingest/storage/qdrant"
)

// DefaultDataDir is where the badger store lives when no endpoint is configured.
const DefaultDataDir = ".vecingest"

var (
	// ErrUnknownProvider is returned for an EMBEDDING_PROVIDER value with no implementation.
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrUnknownStore is returned for a VECTOR_STORE_PROVIDER value with no implementation.
	ErrUnknownStore = errors.New("unknown vector store provider")
)

// Service owns every component built from a config.Config.
type Service struct {
	cfg         config.Config
	provider    ai.AIProvider
	store       storage.VectorStore
	index       *index.Index
	source      source.DocumentSource
	coordinator *ingestion.Coordinator
	logger      *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider        ai.AIProvider
	store           storage.VectorStore
	source          source.DocumentSource
	indexOpts       []index.Option
	coordinatorOpts []ingestion.Option
}

// WithProvider uses provider instead of building one from the config.
// The Service takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithStore uses store instead of building one from the config.
// The Service takes ownership and closes it.
func WithStore(store storage.VectorStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithSource replaces the CSV source built from Config.DataFile.
func WithSource(src source.DocumentSource) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithIndexOptions passes extra options to index.New.
func WithIndexOptions(opts ...index.Option) Option {
	return func(o *options) {
		o.indexOpts = append(o.indexOpts, opts...)
	}
}

// WithCoordinatorOptions passes extra options to ingestion.NewCoordinator.
func WithCoordinatorOptions(opts ...ingestion.Option) Option {
	return func(o *options) {
		o.coordinatorOpts = append(o.coordinatorOpts, opts...)
	}
}

// Open builds the provider, store, index, source and coordinator described
// by cfg. Missing settings surface here, from whichever constructor needs them.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := slog.Default().With("component", "vecingest")

	provider := o.provider
	if provider == nil {
		var err error
		if provider, err = NewProvider(ctx, cfg); err != nil {
			return nil, err
		}
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = NewStore(ctx, cfg, provider.Dimensions()); err != nil {
			provider.Close()
			return nil, err
		}
	}

	indexOpts := append([]index.Option{index.WithEmbeddingModel(provider.EmbeddingModel())}, o.indexOpts...)
	idx, err := index.New(cfg.Collection, cfg.StoreNamespace, provider.Embedder(), store, indexOpts...)
	if err != nil {
		store.Close()
		provider.Close()
		return nil, err
	}

	src := o.source
	if src == nil {
		src = source.NewCSV(cfg.DataFile)
	}

	coordinator, err := ingestion.NewCoordinator(idx, src, o.coordinatorOpts...)
	if err != nil {
		store.Close()
		provider.Close()
		return nil, err
	}

	logger.Debug("service ready",
		"store", cfg.StoreProvider, "collection", idx.Collection(), "namespace", idx.Namespace(),
		"embedding_model", idx.EmbeddingModel())

	return &Service{
		cfg:         cfg,
		provider:    provider,
		store:       store,
		index:       idx,
		source:      src,
		coordinator: coordinator,
		logger:      logger,
	}, nil
}

// NewProvider builds the AI provider named by cfg.EmbeddingProvider.
// The fixed model names apply to openai; ollama and gemini use their own defaults.
func NewProvider(ctx context.Context, cfg config.Config) (ai.AIProvider, error) {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "", "openai":
		return openai.NewProvider(ai.NewConfig(
			ai.WithHost(cfg.EmbeddingHost),
			ai.WithAPIKey(cfg.OpenAIAPIKey),
			ai.WithEmbeddingModel(valueOr(cfg.EmbeddingModel, ai.DefaultEmbeddingModel)),
			ai.WithGenerationModel(valueOr(cfg.GenerationModel, ai.DefaultGenerationModel)),
		))
	case "ollama":
		return ollama.NewProvider(ai.NewConfig(
			ai.WithHost(cfg.EmbeddingHost),
			ai.WithEmbeddingModel(ollama.DefaultEmbeddingModel),
			ai.WithGenerationModel(ollama.DefaultGenerationModel),
		))
	case "gemini":
		return gemini.NewProvider(ctx, ai.NewConfig(
			ai.WithHost(cfg.EmbeddingHost),
			ai.WithAPIKey(cfg.GoogleAPIKey),
			ai.WithEmbeddingModel(gemini.DefaultEmbeddingModel),
			ai.WithGenerationModel(gemini.DefaultGenerationModel),
		))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.EmbeddingProvider)
	}
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// NewStore opens the vector store named by cfg.StoreProvider for vectors of
// the given size.
func NewStore(ctx context.Context, cfg config.Config, dimensions int) (storage.VectorStore, error) {
	switch strings.ToLower(cfg.StoreProvider) {
	case "", "badger":
		path := cfg.StoreEndpoint
		if path == "" {
			path = DefaultDataDir
		}
		return badger.Open(path, cfg.Collection)
	case "qdrant":
		return qdrant.New(ctx, qdrant.Config{
			Endpoint:   cfg.StoreEndpoint,
			APIKey:     cfg.StoreToken,
			Collection: cfg.Collection,
			Dimensions: dimensions,
		})
	case "pgvector":
		return pgvector.New(ctx, pgvector.Config{
			DSN:        cfg.StoreEndpoint,
			Collection: cfg.Collection,
			Dimensions: dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.StoreProvider)
	}
}

// Config returns the configuration the service was built from.
func (s *Service) Config() config.Config {
	return s.cfg
}

// Provider returns the AI provider.
func (s *Service) Provider() ai.AIProvider {
	return s.provider
}

// Index returns the vector index handle.
func (s *Service) Index() *index.Index {
	return s.index
}

// Source returns the document source used by Ingest.
func (s *Service) Source() source.DocumentSource {
	return s.source
}

// Coordinator returns the ingestion coordinator.
func (s *Service) Coordinator() *ingestion.Coordinator {
	return s.coordinator
}

// Ingest is shorthand for Coordinator().Ingest.
func (s *Service) Ingest(ctx context.Context, loadExisting bool) (*index.Index, error) {
	return s.coordinator.Ingest(ctx, loadExisting)
}

// NewSearcher creates a searcher over the service's index using the
// provider's generation model.
func (s *Service) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(s.index, s.provider.Generator(), opts...)
}

// Close releases the provider and the store.
func (s *Service) Close() error {
	// Close AI provider first
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing vector store", "err", err)
		return err
	}
	return nil
}
