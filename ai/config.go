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

package ai

import (
	"errors"
	"strings"
)

const (
	// DefaultEmbeddingModel is the embedding model used when none is configured.
	DefaultEmbeddingModel = "text-embedding-3-large"

	// DefaultGenerationModel is the chat model used for answers when none is configured.
	DefaultGenerationModel = "gpt-3.5-turbo"

	// fallbackDimensions applies to models missing from modelDimensions.
	fallbackDimensions = 1536
)

// Vector sizes of well-known embedding models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"embeddinggemma":         768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"gemini-embedding-001":   3072,
	"text-embedding-004":     768,
}

// ModelDimensions returns the vector size produced by model.
// Unknown models report 1536.
func ModelDimensions(model string) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	return fallbackDimensions
}

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Empty means the provider's public endpoint.
	EmbeddingHost string

	// GenerationHost is the base URL for the generation service API.
	// Empty means the provider's public endpoint.
	GenerationHost string

	// APIKey authenticates against hosted providers.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-large", "nomic-embed-text"
	EmbeddingModel string

	// GenerationModel is the model identifier to use for answers.
	// Example: "gpt-3.5-turbo", "qwen2.5:3b"
	GenerationModel string

	// Dimensions is the embedding vector length.
	// Zero means "look it up from EmbeddingModel".
	Dimensions int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the generation service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithHost sets both embedding and generation hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithAPIKey sets the credential sent to hosted providers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGenerationModel sets the generation model identifier.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithDimensions overrides the embedding vector length.
func WithDimensions(dimensions int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dimensions
	}
}

// DefaultConfig returns a Config for the OpenAI public API.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingModel:  DefaultEmbeddingModel,
		GenerationModel: DefaultGenerationModel,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// Trailing slashes are removed from hosts and Dimensions is filled from the model table.
func (c *Config) Normalize() {
	c.EmbeddingHost = strings.TrimRight(strings.TrimSpace(c.EmbeddingHost), "/")
	c.GenerationHost = strings.TrimRight(strings.TrimSpace(c.GenerationHost), "/")
	if c.Dimensions == 0 && c.EmbeddingModel != "" {
		c.Dimensions = ModelDimensions(c.EmbeddingModel)
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.GenerationModel == "" {
		return errors.New("ai config: GenerationModel is required")
	}
	if c.Dimensions < 0 {
		return errors.New("ai config: Dimensions must not be negative")
	}
	return nil
}

// OpenAIBaseURL returns host with the /v1 suffix OpenAI-compatible servers
// (OpenAI, Ollama, LocalAI, vLLM) expect. An empty host stays empty.
func OpenAIBaseURL(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}
