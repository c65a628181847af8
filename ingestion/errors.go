package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when a coordinator is created without an index.
	ErrIndexRequired = errors.New("index required")

	// ErrSourceRequired is returned when a coordinator is created without a document source.
	ErrSourceRequired = errors.New("document source required")

	// ErrCollectionEmpty is returned in connect mode by a coordinator created
	// WithConnectCheck when the index namespace holds no records.
	ErrCollectionEmpty = errors.New("collection is empty")
)
