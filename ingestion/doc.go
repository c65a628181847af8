// Package ingestion loads documents from a source into a vector index.
//
// A Coordinator owns one index.Index and one source.DocumentSource and
// exposes a single operation, Ingest, with two modes:
//
//   - connect (loadExisting == true): return the index handle as is. No
//     documents are read and nothing is written.
//   - load (loadExisting == false): read every document from the source,
//     embed them, write them with one bulk upsert, return the handle.
//
// Failures are returned to the caller unchanged in meaning. Nothing is
// retried and a failed upsert is not rolled back.
//
// A Coordinator is not safe for concurrent use. Two overlapping loads may
// write the same documents twice; because record IDs are derived from
// document content, the second write replaces the first.
package ingestion
