// Package qdrant implements storage.VectorStore on a Qdrant collection.
//
// Records become points whose payload carries the namespace, content,
// metadata and timestamps. Namespaces share one collection and are
// separated by a payload filter.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/poiesic/vecingest/core"
	"github.com/poiesic/vecingest/storage"
	qc "github.com/qdrant/go-client/qdrant"
)

// DefaultPort is Qdrant's gRPC port.
const DefaultPort = 6334

// Payload field names.
const (
	fieldNamespace  = "namespace"
	fieldRecordID   = "record_id"
	fieldContent    = "content"
	fieldMetadata   = "metadata"
	fieldInsertedAt = "inserted_at"
	fieldUpdatedAt  = "updated_at"
)

// Config describes the Qdrant collection to use.
type Config struct {
	// Endpoint is a URL such as "https://xyz.cloud.qdrant.io:6334" or a bare "host[:port]".
	Endpoint   string
	APIKey     string
	Collection string
	// Dimensions is the vector length used when the collection is created.
	Dimensions int
}

// VectorStore implements storage.VectorStore using the Qdrant gRPC client.
type VectorStore struct {
	client     *qc.Client
	collection string
	dimensions int
	closed     atomic.Bool
	logger     *slog.Logger
}

var _ storage.VectorStore = (*VectorStore)(nil)

// New connects to Qdrant and creates the collection (cosine distance) if it
// does not exist yet.
func New(ctx context.Context, cfg Config) (storage.VectorStore, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", storage.ErrInvalidQuery)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", storage.ErrInvalidQuery)
	}
	clientCfg, err := clientConfig(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	client, err := qc.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &VectorStore{
		client:     client,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		logger:     slog.Default().With("component", "qdrant-vector-store", "collection", cfg.Collection),
	}
	if err := s.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// clientConfig turns an endpoint string into client settings.
// https URLs enable TLS; the port defaults to DefaultPort.
func clientConfig(endpoint, apiKey string) (*qc.Config, error) {
	cfg := &qc.Config{Host: "localhost", Port: DefaultPort, APIKey: apiKey}
	if endpoint == "" {
		return cfg, nil
	}

	hostport := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		switch u.Scheme {
		case "https", "grpcs":
			cfg.UseTLS = true
		case "http", "grpc":
		default:
			return nil, fmt.Errorf("qdrant: unsupported endpoint scheme %q", u.Scheme)
		}
		hostport = u.Host
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port present.
		cfg.Host = hostport
		return cfg, nil
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return nil, fmt.Errorf("qdrant: invalid port in endpoint %q", endpoint)
	}
	cfg.Host = host
	cfg.Port = p
	return cfg, nil
}

func (s *VectorStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	s.logger.Info("creating collection", "dimensions", s.dimensions)
	err = s.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func (s *VectorStore) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// pointID maps (namespace, record id) to a Qdrant point id so the same
// document may live in several namespaces of one collection.
func pointID(namespace string, id core.ID) uint64 {
	return uint64(core.IDFromContent(namespace + "\x00" + strconv.FormatUint(uint64(id), 10)))
}

// Upsert writes all records in one Upsert request and waits for it to be applied.
func (s *VectorStore) Upsert(ctx context.Context, records ...*core.Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateRecord(record); err != nil {
			return err
		}
		if len(record.Vector) != s.dimensions {
			return fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, len(record.Vector), s.dimensions)
		}
	}

	existing, err := s.insertedAt(ctx, records)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	points := make([]*qc.PointStruct, len(records))
	for i, record := range records {
		pid := pointID(record.Namespace, record.Id)
		insertedAt, ok := existing[pid]
		if !ok {
			insertedAt = now
		}
		record.InsertedAt = insertedAt
		record.UpdatedAt = now

		points[i] = &qc.PointStruct{
			Id:      qc.NewIDNum(pid),
			Vectors: qc.NewVectors(record.Vector...),
			Payload: qc.NewValueMap(recordPayload(record)),
		}
	}

	_, err = s.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qc.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	s.logger.Debug("upserted records", "count", len(records))
	return nil
}

// insertedAt fetches the first-write time of records that already exist.
func (s *VectorStore) insertedAt(ctx context.Context, records []*core.Record) (map[uint64]time.Time, error) {
	ids := make([]*qc.PointId, len(records))
	for i, record := range records {
		ids[i] = qc.NewIDNum(pointID(record.Namespace, record.Id))
	}

	points, err := s.client.Get(ctx, &qc.GetPoints{
		CollectionName: s.collection,
		Ids:            ids,
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read existing points: %w", err)
	}

	found := make(map[uint64]time.Time, len(points))
	for _, p := range points {
		if t := parseTime(p.GetPayload()[fieldInsertedAt]); !t.IsZero() {
			found[p.GetId().GetNum()] = t
		}
	}
	return found, nil
}

// FindSimilar runs a filtered nearest-neighbour query. Scores are cosine
// similarities. Returned records carry no vectors.
func (s *VectorStore) FindSimilar(ctx context.Context, namespace string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if len(vector) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, collection has %d", storage.ErrDimensionMismatch, len(vector), s.dimensions)
	}

	points, err := s.client.Query(ctx, &qc.QueryPoints{
		CollectionName: s.collection,
		Query:          qc.NewQuery(vector...),
		Filter:         namespaceFilter(namespace),
		ScoreThreshold: qc.PtrOf(minSimilarity),
		Limit:          qc.PtrOf(uint64(limit)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}

	results := make([]*core.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, &core.SearchResult{
			Record: payloadRecord(p.GetPayload()),
			Score:  p.GetScore(),
		})
	}
	return results, nil
}

// Count returns the exact number of points in namespace.
func (s *VectorStore) Count(ctx context.Context, namespace string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	n, err := s.client.Count(ctx, &qc.CountPoints{
		CollectionName: s.collection,
		Filter:         namespaceFilter(namespace),
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return int(n), nil
}

// Close closes the gRPC connection.
func (s *VectorStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

func namespaceFilter(namespace string) *qc.Filter {
	return &qc.Filter{
		Must: []*qc.Condition{qc.NewMatch(fieldNamespace, namespace)},
	}
}

func recordPayload(record *core.Record) map[string]any {
	metadata := make(map[string]any, len(record.Metadata))
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	return map[string]any{
		fieldNamespace:  record.Namespace,
		fieldRecordID:   strconv.FormatUint(uint64(record.Id), 10),
		fieldContent:    record.Content,
		fieldMetadata:   metadata,
		fieldInsertedAt: record.InsertedAt.Format(time.RFC3339Nano),
		fieldUpdatedAt:  record.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func payloadRecord(payload map[string]*qc.Value) *core.Record {
	record := &core.Record{
		Namespace:  payload[fieldNamespace].GetStringValue(),
		Content:    payload[fieldContent].GetStringValue(),
		InsertedAt: parseTime(payload[fieldInsertedAt]),
		UpdatedAt:  parseTime(payload[fieldUpdatedAt]),
	}
	if id, err := strconv.ParseUint(payload[fieldRecordID].GetStringValue(), 10, 64); err == nil {
		record.Id = core.ID(id)
	}
	if fields := payload[fieldMetadata].GetStructValue().GetFields(); len(fields) > 0 {
		record.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			record.Metadata[k] = v.GetStringValue()
		}
	}
	return record
}

func parseTime(v *qc.Value) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return time.Time{}
	}
	return t
}
