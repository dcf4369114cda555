package testutils

import (
	"context"

	"github.com/bindery/shelf/pkg/eventstream"
)

// MockPublisher is a test eventstream publisher that records events.
type MockPublisher struct {
	Ingested []*eventstream.DocumentsIngestedEvent
	Deleted  []*eventstream.CollectionDeletedEvent

	IngestErr error
	DeleteErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishDocumentsIngested(_ context.Context, event *eventstream.DocumentsIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	m.Ingested = append(m.Ingested, event)
	return m.IngestErr
}

func (m *MockPublisher) PublishCollectionDeleted(_ context.Context, event *eventstream.CollectionDeletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	m.Deleted = append(m.Deleted, event)
	return m.DeleteErr
}

func (m *MockPublisher) Close() error {
	return nil
}
