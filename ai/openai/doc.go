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

// Package openai implements ai.AIProvider for OpenAI and servers that speak
// its API (LocalAI, vLLM, Ollama's /v1 endpoint), through langchaingo.
//
// The hosted API needs a key. When EmbeddingHost is set the key is optional
// and /v1 is appended to the host if missing:
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithAPIKey(cfg.OpenAIAPIKey),
//	))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, reviews)
//	answer, err := provider.Generator().Generate(ctx, prompt)
package openai
