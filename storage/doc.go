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

// Package storage provides the vector store abstraction for vecingest.
//
// The VectorStore interface decouples ingestion and search from the engine
// that holds the vectors. Three backends are provided:
//
//   - storage/badger: embedded, file or in-memory, brute-force dot product
//   - storage/qdrant: Qdrant collections over gRPC
//   - storage/pgvector: PostgreSQL tables with the pgvector extension
//
// # Constructor Return Type Pattern
//
// Public constructors return the storage.VectorStore interface:
//
//	store, err := badger.NewVectorStore(backend, "flipkart_database")
//
// Internal constructors may return concrete types.
//
// # Records
//
// A record is addressed by (namespace, id). Ids are derived from document
// content, so writing the same document twice updates one record.
//
// # Usage
//
//	backend, err := badger.NewMemoryBackend()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := badger.NewVectorStore(backend, "flipkart_database")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Context Support
//
// Every method that talks to the backend takes a context.Context for
// cancellation and timeouts.
package storage
