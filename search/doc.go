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

// Package search provides query-time access to an ingested index.
//
// A Searcher runs two kinds of query against the same index.Index that was
// used for ingestion:
//   - FindSimilar embeds the query, keeps matches at or above the minimum
//     score and boosts reviews that contain every significant query word.
//   - Answer retrieves the top reviews through a langchaingo retriever,
//     renders them into a prompt and asks the generation model.
package search
