package openai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/vecingest/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrAPIKeyRequired is returned when the public OpenAI endpoint is configured without a key.
var ErrAPIKeyRequired = errors.New("openai: API key required")

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// clientOptions builds the langchaingo client options shared by embedder and generator.
// Local OpenAI-compatible services don't require authentication, so "none" is sent
// as token when a custom host is set without a key.
func clientOptions(host, apiKey string) ([]openai.Option, error) {
	token := apiKey
	if token == "" {
		if host == "" {
			return nil, ErrAPIKeyRequired
		}
		token = "none"
	}

	opts := []openai.Option{openai.WithToken(token)}
	if host != "" {
		opts = append(opts, openai.WithBaseURL(ai.OpenAIBaseURL(host)))
	}
	return opts, nil
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts, err := clientOptions(config.EmbeddingHost, config.APIKey)
	if err != nil {
		return nil, err
	}
	opts = append(opts, openai.WithEmbeddingModel(config.EmbeddingModel))

	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	// Wrap in langchaingo embedder
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a standalone embedder using the provided configuration.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	embedding, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}

	return embedding, nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	embeddings, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	return embeddings, nil
}
