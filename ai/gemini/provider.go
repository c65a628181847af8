// Package gemini provides AI services backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/vecingest/ai"
	"google.golang.org/genai"
)

const (
	// DefaultEmbeddingModel is used when the config names a model Gemini does not serve.
	DefaultEmbeddingModel = "gemini-embedding-001"

	// DefaultGenerationModel answers questions when no Gemini chat model is configured.
	DefaultGenerationModel = "gemini-2.5-flash"
)

var (
	// ErrAPIKeyRequired is returned when no Google API key is configured.
	ErrAPIKeyRequired = errors.New("gemini: API key required")

	// ErrEmptyResponse is returned when the API answers without embeddings or text.
	ErrEmptyResponse = errors.New("gemini: empty response")
)

// Provider implements ai.AIProvider with a single genai.Client shared by
// the embedder and the generator.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// Embedder implements ai.Embedder using Models.EmbedContent.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
	logger     *slog.Logger
}

// Generator implements ai.Generator using Models.GenerateContent.
type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var (
	_ ai.AIProvider = (*Provider)(nil)
	_ ai.Embedder   = (*Embedder)(nil)
	_ ai.Generator  = (*Generator)(nil)
)

// NewProvider creates a Gemini-backed provider. The API key is required.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.APIKey == "" {
		return nil, ErrAPIKeyRequired
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.EmbeddingHost != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.EmbeddingHost}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger := slog.Default()
	return &Provider{
		config: config,
		embedder: &Embedder{
			client:     client,
			model:      config.EmbeddingModel,
			dimensions: config.Dimensions,
			logger:     logger.With("component", "gemini-embedder"),
		},
		generator: &Generator{
			client: client,
			model:  config.GenerationModel,
			logger: logger.With("component", "gemini-generator"),
		},
		logger: logger.With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the text generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// EmbeddingModel names the configured embedding model.
func (p *Provider) EmbeddingModel() string {
	return p.config.EmbeddingModel
}

// Dimensions returns the configured embedding vector length.
func (p *Provider) Dimensions() int {
	return p.config.Dimensions
}

// Close is a no-op; genai.Client needs no explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return nil
}

func (e *Embedder) embedConfig() *genai.EmbedContentConfig {
	if e.dimensions <= 0 {
		return nil
	}
	dim := int32(e.dimensions)
	return &genai.EmbedContentConfig{OutputDimensionality: &dim}
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds all texts in one EmbedContent request, one Content per text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.embedConfig())
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, ErrEmptyResponse
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, embedding := range result.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, ErrEmptyResponse
		}
		vectors[i] = embedding.Values
	}
	return vectors, nil
}

// Generate sends prompt to the chat model and returns the concatenated text parts
// of the first candidate that has any.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.2)),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, config)
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}
