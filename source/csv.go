package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/vecingest/core"
)

const (
	// DefaultContentColumn holds the review text.
	DefaultContentColumn = "review"
)

// DefaultMetadataColumns maps CSV columns to document metadata keys.
func DefaultMetadataColumns() map[string]string {
	return map[string]string{"product_title": "product_name"}
}

// CSV reads one document per row of a CSV file with a header row.
type CSV struct {
	path            string
	contentColumn   string
	metadataColumns map[string]string
	logger          *slog.Logger
}

// CSVOption configures a CSV source.
type CSVOption func(*CSV)

// WithContentColumn selects the column used as document content.
func WithContentColumn(column string) CSVOption {
	return func(c *CSV) {
		c.contentColumn = column
	}
}

// WithMetadataColumns replaces the column to metadata key mapping.
// A nil or empty map disables metadata.
func WithMetadataColumns(columns map[string]string) CSVOption {
	return func(c *CSV) {
		c.metadataColumns = columns
	}
}

// NewCSV creates a source reading path.
func NewCSV(path string, opts ...CSVOption) *CSV {
	c := &CSV{
		path:            path,
		contentColumn:   DefaultContentColumn,
		metadataColumns: DefaultMetadataColumns(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = slog.Default().With("component", "csv-source", "path", path)
	return c
}

// Path returns the file the source reads.
func (c *CSV) Path() string {
	return c.path
}

// Documents reads the whole file. Rows whose content is blank are skipped.
func (c *CSV) Documents(ctx context.Context) ([]core.Document, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := c.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}
	return docs, nil
}

func (c *CSV) read(ctx context.Context, r io.Reader) ([]core.Document, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[strings.TrimSpace(name)] = i
	}

	contentIdx, ok := columns[c.contentColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c.contentColumn)
	}
	metadataIdx := make(map[string]int, len(c.metadataColumns))
	for column, key := range c.metadataColumns {
		i, ok := columns[column]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, column)
		}
		metadataIdx[key] = i
	}

	var (
		docs    []core.Document
		skipped int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		content := strings.TrimSpace(row[contentIdx])
		if content == "" {
			skipped++
			continue
		}

		doc := core.Document{Content: content}
		if len(metadataIdx) > 0 {
			doc.Metadata = make(map[string]string, len(metadataIdx))
			for key, i := range metadataIdx {
				doc.Metadata[key] = strings.TrimSpace(row[i])
			}
		}
		docs = append(docs, doc)
	}

	c.logger.Info("read documents", "documents", len(docs), "skipped", skipped)
	return docs, nil
}
