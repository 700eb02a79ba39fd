package qdrant

import (
	"context"

	qd "github.com/qdrant/go-client/qdrant"
)

type mockClient struct {
	existsFn      func(ctx context.Context, name string) (bool, error)
	infoFn        func(ctx context.Context, name string) (*qd.CollectionInfo, error)
	createFn      func(ctx context.Context, req *qd.CreateCollection) error
	fieldIndexFn  func(ctx context.Context, req *qd.CreateFieldIndexCollection) (*qd.UpdateResult, error)
	upsertFn      func(ctx context.Context, req *qd.UpsertPoints) (*qd.UpdateResult, error)
	queryFn       func(ctx context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error)
	countFn       func(ctx context.Context, req *qd.CountPoints) (uint64, error)
	healthErr     error
	createCalls   int
	upsertedBatch []*qd.PointStruct
}

func (m *mockClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return false, nil
}

func (m *mockClient) GetCollectionInfo(ctx context.Context, name string) (*qd.CollectionInfo, error) {
	if m.infoFn != nil {
		return m.infoFn(ctx, name)
	}
	return &qd.CollectionInfo{}, nil
}

func (m *mockClient) CreateCollection(ctx context.Context, req *qd.CreateCollection) error {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil
}

func (m *mockClient) CreateFieldIndex(ctx context.Context, req *qd.CreateFieldIndexCollection) (*qd.UpdateResult, error) {
	if m.fieldIndexFn != nil {
		return m.fieldIndexFn(ctx, req)
	}
	return &qd.UpdateResult{}, nil
}

func (m *mockClient) Upsert(ctx context.Context, req *qd.UpsertPoints) (*qd.UpdateResult, error) {
	m.upsertedBatch = req.GetPoints()
	if m.upsertFn != nil {
		return m.upsertFn(ctx, req)
	}
	return &qd.UpdateResult{}, nil
}

func (m *mockClient) Query(ctx context.Context, req *qd.QueryPoints) ([]*qd.ScoredPoint, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, req)
	}
	return nil, nil
}

func (m *mockClient) Count(ctx context.Context, req *qd.CountPoints) (uint64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, req)
	}
	return 0, nil
}

func (m *mockClient) Close() error { return nil }

func collectionInfo(size uint64, dist qd.Distance) *qd.CollectionInfo {
	return &qd.CollectionInfo{
		Config: &qd.CollectionConfig{
			Params: &qd.CollectionParams{
				VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{Size: size, Distance: dist}),
			},
		},
	}
}

func (m *mockClient) HealthCheck(context.Context) (*qd.HealthCheckReply, error) {
	if m.healthErr != nil {
		return nil, m.healthErr
	}
	return &qd.HealthCheckReply{Title: "qdrant"}, nil
}
