package core

import (
	"encoding/binary"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored records.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is a unit of ingestible content: a free-text body plus metadata.
// Documents are produced by a document source and are not modified afterwards.
type Document struct {
	Content  string
	Metadata map[string]string // e.g. "product_name", "rating"
}

// Fingerprint returns the canonical text used to derive the document ID.
// Metadata keys are sorted so map iteration order never changes the result.
func (d Document) Fingerprint() string {
	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString(d.Content)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(d.Metadata[k])
	}
	return b.String()
}

// DocumentID returns the deterministic ID for a document.
// occurrence counts earlier identical documents in the same load, so
// duplicate rows get distinct IDs while re-ingesting the same source
// overwrites the stored records instead of duplicating them.
func DocumentID(doc Document, occurrence int) ID {
	if occurrence == 0 {
		return IDFromContent(doc.Fingerprint())
	}
	return IDFromContent(doc.Fingerprint() + "\x00#" + strconv.Itoa(occurrence))
}

// Record is a document after embedding, as held by a vector store.
type Record struct {
	Id         ID
	Namespace  string
	Content    string
	Metadata   map[string]string
	Vector     []float32 // Embedding of Content (populated by the index)
	InsertedAt time.Time // When the record was first written
	UpdatedAt  time.Time // When the record was last written
}

// Document returns the document the record was built from.
func (r *Record) Document() Document {
	return Document{
		Content:  r.Content,
		Metadata: r.Metadata,
	}
}

// SearchResult represents a search result with the full record and relevance score.
type SearchResult struct {
	Record *Record
	Score  float32
}
