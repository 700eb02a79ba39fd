package qdrant

import (
	"context"
	"errors"
	"testing"

	qd "github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

var testSpec = domain.IndexSpec{Name: "docs", Dimension: 3, Metric: domain.MetricCosine}

func TestEnsureIndex_CreatesCollection(t *testing.T) {
	var fieldIndexed string
	m := &mockClient{
		createFn: func(_ context.Context, req *qd.CreateCollection) error {
			p := req.GetVectorsConfig().GetParams()
			if p.GetSize() != 3 || p.GetDistance() != qd.Distance_Cosine {
				t.Errorf("unexpected vector params: %v", p)
			}
			return nil
		},
		fieldIndexFn: func(_ context.Context, req *qd.CreateFieldIndexCollection) (*qd.UpdateResult, error) {
			fieldIndexed = req.GetFieldName()
			return &qd.UpdateResult{}, nil
		},
	}
	x := newIndex(m, testSpec, nil)

	if err := x.EnsureIndex(context.Background(), testSpec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.createCalls != 1 {
		t.Errorf("expected 1 create, got %d", m.createCalls)
	}
	if fieldIndexed != payloadNamespace {
		t.Errorf("payload index on %q", fieldIndexed)
	}
}

func TestEnsureIndex_ExistingMatches(t *testing.T) {
	m := &mockClient{
		existsFn: func(context.Context, string) (bool, error) { return true, nil },
		infoFn: func(context.Context, string) (*qd.CollectionInfo, error) {
			return collectionInfo(3, qd.Distance_Cosine), nil
		},
	}
	x := newIndex(m, testSpec, nil)

	if err := x.EnsureIndex(context.Background(), testSpec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.createCalls != 0 {
		t.Errorf("expected no create, got %d", m.createCalls)
	}
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	m := &mockClient{
		existsFn: func(context.Context, string) (bool, error) { return true, nil },
		infoFn: func(context.Context, string) (*qd.CollectionInfo, error) {
			return collectionInfo(768, qd.Distance_Cosine), nil
		},
	}
	x := newIndex(m, testSpec, nil)

	err := x.EnsureIndex(context.Background(), testSpec)
	if !errors.Is(err, domain.ErrIndexDimensionMismatch) {
		t.Fatalf("expected ErrIndexDimensionMismatch, got %v", err)
	}
}

func TestEnsureIndex_ServiceError(t *testing.T) {
	m := &mockClient{
		existsFn: func(context.Context, string) (bool, error) { return false, errors.New("unavailable") },
	}
	x := newIndex(m, testSpec, nil)

	if err := x.EnsureIndex(context.Background(), testSpec); !errors.Is(err, domain.ErrIndexService) {
		t.Fatalf("expected ErrIndexService, got %v", err)
	}
}

func TestUpsert_BuildsPoints(t *testing.T) {
	m := &mockClient{}
	x := newIndex(m, testSpec, nil)
	ns := namespace.Derive("a.txt")

	err := x.Upsert(context.Background(), ns, []domain.VectorRecord{{
		ID:        "0-abc",
		Embedding: []float32{1, 0, 0},
		Metadata:  domain.RecordMetadata{Text: "hello", Filename: "a.txt"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.upsertedBatch) != 1 {
		t.Fatalf("expected 1 point, got %d", len(m.upsertedBatch))
	}
	p := m.upsertedBatch[0]
	if p.GetId().GetUuid() != PointID(ns, "0-abc") {
		t.Errorf("point id = %q", p.GetId().GetUuid())
	}
	if p.GetPayload()[payloadNamespace].GetStringValue() != string(ns) {
		t.Error("namespace payload missing")
	}
	if p.GetPayload()[payloadText].GetStringValue() != "hello" {
		t.Error("text payload missing")
	}
}

func TestUpsert_WrongDimension(t *testing.T) {
	x := newIndex(&mockClient{}, testSpec, nil)

	err := x.Upsert(context.Background(), namespace.Derive("a"), []domain.VectorRecord{{ID: "x", Embedding: []float32{1}}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) || !errors.Is(err, domain.ErrIndexService) {
		t.Fatalf("expected dimension error, got %v", err)
	}
}

func TestQuery_FiltersByNamespace(t *testing.T) {
	ns := namespace.Derive("a.txt")
	m := &mockClient{
		queryFn: func(_ context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error) {
			if req.GetLimit() != 2 {
				t.Errorf("limit = %d", req.GetLimit())
			}
			kw := req.GetFilter().GetMust()[0].GetField().GetMatch().GetKeyword()
			if kw != string(ns) {
				t.Errorf("filter keyword = %q", kw)
			}
			return []*qd.ScoredPoint{{
				Score: 0.9,
				Payload: map[string]*qd.Value{
					payloadID:       stringValue("0-abc"),
					payloadText:     stringValue("hello"),
					payloadFilename: stringValue("a.txt"),
				},
			}}, nil
		},
	}
	x := newIndex(m, testSpec, nil)

	got, err := x.Query(context.Background(), ns, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hello" || got[0].Filename != "a.txt" || got[0].ID != "0-abc" {
		t.Errorf("unexpected matches: %+v", got)
	}
}

func TestCount(t *testing.T) {
	m := &mockClient{
		countFn: func(context.Context, *qd.CountPoints) (uint64, error) { return 7, nil },
	}
	x := newIndex(m, testSpec, nil)

	n, err := x.Count(context.Background(), namespace.Derive("a"))
	if err != nil || n != 7 {
		t.Fatalf("count = %d, %v", n, err)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	ns := namespace.Derive("a.txt")
	if PointID(ns, "1") != PointID(ns, "1") {
		t.Error("point id not deterministic")
	}
	if PointID(ns, "1") == PointID(namespace.Derive("b.txt"), "1") {
		t.Error("namespaces collide")
	}
}

func TestPing(t *testing.T) {
	x := newIndex(&mockClient{}, testSpec, nil)
	if err := x.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	x = newIndex(&mockClient{healthErr: errors.New("down")}, testSpec, nil)
	if err := x.Ping(context.Background()); !errors.Is(err, domain.ErrIndexService) {
		t.Fatalf("expected ErrIndexService, got %v", err)
	}
}
