package testutils

import (
	"context"

	"github.com/bindery/shelf/pkg/vector"
)

// EnsureCall records one EnsureCollection invocation.
type EnsureCall struct {
	Name      string
	Dimension uint64
}

// UpsertCall records one Upsert invocation.
type UpsertCall struct {
	Collection string
	Points     []vector.Point
}

// QueryCall records one Query invocation.
type QueryCall struct {
	Collection string
	Vector     []float32
	Limit      int
	Threshold  float32
}

// MockVectorDriver is a test vector driver with recorded calls and
// configurable responses.
type MockVectorDriver struct {
	Ensures []EnsureCall
	Upserts []UpsertCall
	Queries []QueryCall
	Deletes []string

	Hits        []vector.SearchHit
	Collections []vector.CollectionInfo

	EnsureErr error
	UpsertErr error
	QueryErr  error
	ListErr   error
	DeleteErr error
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) EnsureCollection(_ context.Context, name string, dimension uint64) error {
	m.Ensures = append(m.Ensures, EnsureCall{Name: name, Dimension: dimension})
	return m.EnsureErr
}

func (m *MockVectorDriver) Upsert(_ context.Context, collection string, points []vector.Point) error {
	m.Upserts = append(m.Upserts, UpsertCall{Collection: collection, Points: points})
	return m.UpsertErr
}

func (m *MockVectorDriver) Query(_ context.Context, collection string, queryVector []float32, limit int, scoreThreshold float32) ([]vector.SearchHit, error) {
	m.Queries = append(m.Queries, QueryCall{
		Collection: collection,
		Vector:     queryVector,
		Limit:      limit,
		Threshold:  scoreThreshold,
	})
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(m.Hits) > limit {
		return m.Hits[:limit], nil
	}
	return m.Hits, nil
}

func (m *MockVectorDriver) ListCollections(_ context.Context) ([]vector.CollectionInfo, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Collections, nil
}

func (m *MockVectorDriver) DeleteCollection(_ context.Context, name string) error {
	m.Deletes = append(m.Deletes, name)
	return m.DeleteErr
}

func (m *MockVectorDriver) Close() error {
	return nil
}
