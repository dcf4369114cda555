package nop

import (
	"context"

	"github.com/bindery/shelf/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishDocumentsIngested validates input and otherwise does nothing.
func (p *Publisher) PublishDocumentsIngested(_ context.Context, event *eventstream.DocumentsIngestedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// PublishCollectionDeleted validates input and otherwise does nothing.
func (p *Publisher) PublishCollectionDeleted(_ context.Context, event *eventstream.CollectionDeletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
