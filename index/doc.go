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

// Package index provides the vector index handle used by ingestion and search.
//
// An Index binds a collection and namespace of a storage.VectorStore to the
// ai.Embedder that produced (and must keep producing) its vectors. Embedding
// and writing are separate, explicit steps:
//
//	records, err := idx.Embed(ctx, docs)   // documents -> vectors, no writes
//	err = idx.Upsert(ctx, records)         // exactly one store write
//
// AddDocuments runs both steps. AsVectorStore exposes the handle as a
// langchaingo vectorstores.VectorStore so it plugs into retrievers and chains.
//
// # Concurrency
//
// Embed splits documents into batches (WithBatchSize). With WithConcurrency
// greater than one, batches are embedded on an ants worker pool; results are
// reassembled in input order before anything is written.
package index
