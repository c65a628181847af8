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

// Package ai provides abstractions for the model services used by vecingest.
//
// Two capabilities are modelled:
//
//   - Embedder: turns text into fixed-length vectors
//   - Generator: turns a prompt into text (used for retrieval-augmented answers)
//
// AIProvider aggregates both so that they are created from one Config and
// closed together.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI and OpenAI-compatible APIs through langchaingo
//   - ai/ollama: local Ollama models through langchaingo
//   - ai/gemini: Google Gemini through google.golang.org/genai
//   - ai/mock: deterministic test doubles
//
// Public constructors return interface types. The mock package returns
// concrete types so tests can inject behavior and inspect call counts:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("quota exceeded")
//	}
//
// The embedder used to write a collection must be the one used to query it.
// Vectors from different models (or different dimensions) are not comparable.
package ai
