// Package source produces the documents fed to ingestion.
//
// A DocumentSource is a collaborator with its own contract: it returns the
// complete sequence of documents or an error. Three implementations exist:
// CSV for review exports, Loader for any langchaingo document loader, and
// Static for fixed slices.
package source

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/vecingest/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// ErrMissingColumn is returned when a CSV header lacks a configured column.
var ErrMissingColumn = errors.New("missing column")

// DocumentSource yields the documents to ingest, in a stable order.
type DocumentSource interface {
	Documents(ctx context.Context) ([]core.Document, error)
}

// Static is a DocumentSource over a fixed slice.
type Static []core.Document

// Documents returns a copy of the slice.
func (s Static) Documents(ctx context.Context) ([]core.Document, error) {
	return slices.Clone([]core.Document(s)), nil
}

// Loader adapts a langchaingo document loader. Metadata values are
// converted to strings.
type Loader struct {
	loader documentloaders.Loader
}

// NewLoader wraps l.
func NewLoader(l documentloaders.Loader) *Loader {
	return &Loader{loader: l}
}

// Documents loads every document from the wrapped loader.
func (l *Loader) Documents(ctx context.Context) ([]core.Document, error) {
	loaded, err := l.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]core.Document, len(loaded))
	for i, doc := range loaded {
		var metadata map[string]string
		if len(doc.Metadata) > 0 {
			metadata = make(map[string]string, len(doc.Metadata))
			for k, v := range doc.Metadata {
				metadata[k] = fmt.Sprint(v)
			}
		}
		docs[i] = core.Document{Content: doc.PageContent, Metadata: metadata}
	}
	return docs, nil
}
