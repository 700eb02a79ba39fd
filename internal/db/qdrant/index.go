// Package qdrant is an index gateway backed by a Qdrant collection.
// One collection per index; the namespace is a keyword payload filter.
package qdrant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// Payload keys.
const (
	payloadID        = "id"
	payloadNamespace = "namespace"
	payloadFilename  = "filename"
	payloadText      = "text"
)

const defaultMaxMessageSize = 50 * 1024 * 1024

// client is the consumer interface over *qd.Client (ISP).
type client interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	GetCollectionInfo(ctx context.Context, name string) (*qd.CollectionInfo, error)
	CreateCollection(ctx context.Context, req *qd.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qd.CreateFieldIndexCollection) (*qd.UpdateResult, error)
	Upsert(ctx context.Context, req *qd.UpsertPoints) (*qd.UpdateResult, error)
	Query(ctx context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error)
	Count(ctx context.Context, req *qd.CountPoints) (uint64, error)
	HealthCheck(ctx context.Context) (*qd.HealthCheckReply, error)
	Close() error
}

// Config holds Qdrant gRPC connection parameters.
type Config struct {
	Host           string
	Port           int // gRPC port, 6334 by default
	UseTLS         bool
	APIKey         string
	RequestTimeout time.Duration
}

// Index implements the index gateway over Qdrant.
type Index struct {
	client  client
	spec    domain.IndexSpec
	timeout time.Duration
	logger  *zap.Logger
}

// Dial connects to Qdrant and returns an Index bound to spec.
func Dial(cfg Config, spec domain.IndexSpec, logger *zap.Logger) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	opts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(defaultMaxMessageSize),
			grpc.MaxCallSendMsgSize(defaultMaxMessageSize),
		),
	}
	if !cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	c, err := qd.NewClient(&qd.Config{
		Host:        cfg.Host,
		Port:        cfg.Port,
		UseTLS:      cfg.UseTLS,
		APIKey:      cfg.APIKey,
		GrpcOptions: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	logger.Info("qdrant client created",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)
	return newIndex(c, spec, logger).withTimeout(cfg.RequestTimeout), nil
}

func newIndex(c client, spec domain.IndexSpec, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{client: c, spec: spec, timeout: 30 * time.Second, logger: logger}
}

func (x *Index) withTimeout(d time.Duration) *Index {
	if d > 0 {
		x.timeout = d
	}
	return x
}

// Spec returns the index the gateway writes to.
func (x *Index) Spec() domain.IndexSpec { return x.spec }

// EnsureIndex creates the collection and its namespace payload index.
// An existing collection of another size or distance is ErrIndexDimensionMismatch.
func (x *Index) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if spec.Metric != "" && !strings.EqualFold(spec.Metric, domain.MetricCosine) {
		return fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, spec.Metric)
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	exists, err := x.client.CollectionExists(ctx, spec.Name)
	if err != nil {
		return fmt.Errorf("%w: collection exists %s: %w", domain.ErrIndexService, spec.Name, err)
	}

	if exists {
		info, err := x.client.GetCollectionInfo(ctx, spec.Name)
		if err != nil {
			return fmt.Errorf("%w: collection info %s: %w", domain.ErrIndexService, spec.Name, err)
		}
		params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
		if params.GetSize() != uint64(spec.Dimension) || params.GetDistance() != qd.Distance_Cosine {
			return fmt.Errorf("%w: collection %s has size %d/%s, configured %d/%s",
				domain.ErrIndexDimensionMismatch, spec.Name,
				params.GetSize(), params.GetDistance(), spec.Dimension, domain.MetricCosine)
		}
		return nil
	}

	err = x.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     uint64(spec.Dimension),
			Distance: qd.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: create collection %s: %w", domain.ErrIndexService, spec.Name, err)
	}

	_, err = x.client.CreateFieldIndex(ctx, &qd.CreateFieldIndexCollection{
		CollectionName: spec.Name,
		FieldName:      payloadNamespace,
		FieldType:      qd.PtrOf(qd.FieldType_FieldTypeKeyword),
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: create payload index %s: %w", domain.ErrIndexService, spec.Name, err)
	}

	x.logger.Info("qdrant collection created",
		zap.String("collection", spec.Name),
		zap.Int("dimension", spec.Dimension),
	)
	return nil
}

// Upsert writes records into ns. Point ids derive from (ns, id), so rewrites overwrite.
func (x *Index) Upsert(ctx context.Context, ns namespace.Namespace, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qd.PointStruct, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != x.spec.Dimension {
			return fmt.Errorf("%w: record %s: %w: got %d, want %d", domain.ErrIndexService,
				rec.ID, domain.ErrVectorDimMismatch, len(rec.Embedding), x.spec.Dimension)
		}
		points[i] = toPoint(ns, rec)
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	_, err := x.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: x.spec.Name,
		Points:         points,
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %d points: %w", domain.ErrIndexService, len(points), err)
	}
	return nil
}

// Query returns up to topK points of ns closest to vec, best first.
func (x *Index) Query(ctx context.Context, ns namespace.Namespace, vec []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	points, err := x.client.Query(ctx, &qd.QueryPoints{
		CollectionName: x.spec.Name,
		Query:          qd.NewQuery(vec...),
		Filter:         namespaceFilter(ns),
		Limit:          qd.PtrOf(uint64(topK)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrIndexService, ns, err)
	}

	matches := make([]domain.Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, fromScoredPoint(p))
	}
	return matches, nil
}

// Count returns the number of points stored in ns.
func (x *Index) Count(ctx context.Context, ns namespace.Namespace) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	n, err := x.client.Count(ctx, &qd.CountPoints{
		CollectionName: x.spec.Name,
		Filter:         namespaceFilter(ns),
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", domain.ErrIndexService, ns, err)
	}
	return int(n), nil //nolint:gosec // point counts fit in int
}

// Ping checks that the Qdrant server answers.
func (x *Index) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	if _, err := x.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: health check: %w", domain.ErrIndexService, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

// PointID maps a record id inside ns to a stable Qdrant UUID.
func PointID(ns namespace.Namespace, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(ns)+"/"+id)).String()
}

func toPoint(ns namespace.Namespace, rec domain.VectorRecord) *qd.PointStruct {
	return &qd.PointStruct{
		Id:      qd.NewIDUUID(PointID(ns, rec.ID)),
		Vectors: qd.NewVectors(rec.Embedding...),
		Payload: map[string]*qd.Value{
			payloadID:        stringValue(rec.ID),
			payloadNamespace: stringValue(string(ns)),
			payloadFilename:  stringValue(rec.Metadata.Filename),
			payloadText:      stringValue(rec.Metadata.Text),
		},
	}
}

func fromScoredPoint(p *qd.ScoredPoint) domain.Match {
	payload := p.GetPayload()
	return domain.Match{
		ID:       payload[payloadID].GetStringValue(),
		Text:     payload[payloadText].GetStringValue(),
		Filename: payload[payloadFilename].GetStringValue(),
		Score:    float64(p.GetScore()),
	}
}

func namespaceFilter(ns namespace.Namespace) *qd.Filter {
	return &qd.Filter{
		Must: []*qd.Condition{{
			ConditionOneOf: &qd.Condition_Field{
				Field: &qd.FieldCondition{
					Key: payloadNamespace,
					Match: &qd.Match{
						MatchValue: &qd.Match_Keyword{Keyword: string(ns)},
					},
				},
			},
		}},
	}
}

func stringValue(s string) *qd.Value {
	return &qd.Value{Kind: &qd.Value_StringValue{StringValue: s}}
}
