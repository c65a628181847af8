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

// Package ollama provides AI services backed by a local Ollama server through langchaingo.
package ollama

import (
	"context"
	"log/slog"

	"github.com/poiesic/vecingest/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	// DefaultHost is the Ollama API URL used when none is configured.
	DefaultHost = "http://localhost:11434"

	// DefaultEmbeddingModel is a local embedding model with 768 dimensions.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultGenerationModel is the local chat model used for answers.
	DefaultGenerationModel = "llama3.2"
)

// Provider implements ai.AIProvider on Ollama.
// Ollama binds one model per client, so embedding and generation use separate clients.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// Embedder implements ai.Embedder on an Ollama embedding model.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// Generator implements ai.Generator on an Ollama chat model.
type Generator struct {
	client llms.Model
	logger *slog.Logger
}

var (
	_ ai.AIProvider = (*Provider)(nil)
	_ ai.Embedder   = (*Embedder)(nil)
	_ ai.Generator  = (*Generator)(nil)
)

func serverURL(host string) string {
	if host == "" {
		return DefaultHost
	}
	return host
}

// NewProvider creates a new AI provider talking to Ollama.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(serverURL(config.EmbeddingHost)),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(embedClient, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	genClient, err := ollama.New(
		ollama.WithServerURL(serverURL(config.GenerationHost)),
		ollama.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	return &Provider{
		config: config,
		embedder: &Embedder{
			embedder: embedder,
			logger:   logger.With("component", "ollama-embedder"),
		},
		generator: &Generator{
			client: genClient,
			logger: logger.With("component", "ollama-generator"),
		},
		logger: logger.With("component", "ollama-provider"),
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

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing Ollama provider")
	return nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
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

// Generate sends prompt to the chat model and returns the reply text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, llms.WithTemperature(0.2))
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", err
	}
	return reply, nil
}
