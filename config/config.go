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

// Package config loads vecingest settings from the process environment and an
// optional dotenv file.
//
// Precedence (highest to lowest):
//  1. Environment variables (OPENAI_API_KEY, VECTOR_STORE_ENDPOINT, etc.)
//  2. Values from the dotenv file, when present
//  3. Built-in defaults
//
// Load never validates. A missing setting is an empty string; the component
// that needs it reports the problem when it is constructed.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// DefaultEnvFile is the dotenv file read from the working directory.
const DefaultEnvFile = ".env"

// Fixed model identifiers. These are not read from the environment.
const (
	EmbeddingModel  = "text-embedding-3-large"
	GenerationModel = "gpt-3.5-turbo"
)

// Environment keys.
const (
	KeyStoreProvider     = "VECTOR_STORE_PROVIDER"
	KeyStoreEndpoint     = "VECTOR_STORE_ENDPOINT"
	KeyStoreToken        = "VECTOR_STORE_TOKEN"
	KeyStoreNamespace    = "VECTOR_STORE_NAMESPACE"
	KeyStoreCollection   = "VECTOR_STORE_COLLECTION"
	KeyEmbeddingProvider = "EMBEDDING_PROVIDER"
	KeyEmbeddingHost     = "EMBEDDING_HOST"
	KeyOpenAIAPIKey      = "OPENAI_API_KEY"
	KeyGoogleAPIKey      = "GOOGLE_API_KEY"
	KeyDataFile          = "DATA_FILE"
)

// Config is the settings snapshot produced by Load.
type Config struct {
	// StoreProvider selects the vector store backend: badger, qdrant or pgvector.
	StoreProvider string
	// StoreEndpoint is the backend address: a directory for badger, a URL for
	// qdrant, a DSN for pgvector.
	StoreEndpoint string
	// StoreToken authenticates against the vector store.
	StoreToken string
	// StoreNamespace partitions the collection.
	StoreNamespace string
	// Collection names the vector collection documents are written to.
	Collection string

	// EmbeddingProvider selects the AI backend: openai, ollama or gemini.
	EmbeddingProvider string
	// EmbeddingHost overrides the provider's API base URL.
	EmbeddingHost string
	OpenAIAPIKey  string
	GoogleAPIKey  string

	// EmbeddingModel and GenerationModel are always the fixed values above.
	EmbeddingModel  string
	GenerationModel string

	// DataFile is the CSV file ingested by default.
	DataFile string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		StoreProvider:     "badger",
		Collection:        "flipkart_database",
		EmbeddingProvider: "openai",
		EmbeddingModel:    EmbeddingModel,
		GenerationModel:   GenerationModel,
		DataFile:          "data/flipkart_product_review.csv",
	}
}

type loadOptions struct {
	envFile string
}

// Option configures Load.
type Option func(*loadOptions)

// WithEnvFile reads dotenv values from path instead of DefaultEnvFile.
// An empty path disables the dotenv file.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// Load reads the configuration. It fails only when the dotenv file exists but
// cannot be read or parsed.
func Load(opts ...Option) (Config, error) {
	o := loadOptions{envFile: DefaultEnvFile}
	for _, opt := range opts {
		opt(&o)
	}

	v, err := newViper(o.envFile)
	if err != nil {
		return Config{}, err
	}

	return Config{
		StoreProvider:     v.GetString(KeyStoreProvider),
		StoreEndpoint:     v.GetString(KeyStoreEndpoint),
		StoreToken:        v.GetString(KeyStoreToken),
		StoreNamespace:    v.GetString(KeyStoreNamespace),
		Collection:        v.GetString(KeyStoreCollection),
		EmbeddingProvider: v.GetString(KeyEmbeddingProvider),
		EmbeddingHost:     v.GetString(KeyEmbeddingHost),
		OpenAIAPIKey:      v.GetString(KeyOpenAIAPIKey),
		GoogleAPIKey:      v.GetString(KeyGoogleAPIKey),
		EmbeddingModel:    EmbeddingModel,
		GenerationModel:   GenerationModel,
		DataFile:          v.GetString(KeyDataFile),
	}, nil
}

// newViper builds a dedicated viper instance so Load never touches global state.
func newViper(envFile string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", envFile, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", envFile, err)
		}
	}

	// Keys are looked up upper-cased, so AutomaticEnv maps them straight to
	// the variable names.
	v.AutomaticEnv()
	return v, nil
}

func setViperDefaults(v *viper.Viper) {
	d := Defaults()

	v.SetDefault(KeyStoreProvider, d.StoreProvider)
	v.SetDefault(KeyStoreCollection, d.Collection)
	v.SetDefault(KeyEmbeddingProvider, d.EmbeddingProvider)
	v.SetDefault(KeyDataFile, d.DataFile)
}
