package eventstream

import "context"

// Publisher publishes ingest lifecycle events to an event stream backend.
type Publisher interface {
	PublishDocumentsIngested(ctx context.Context, event *DocumentsIngestedEvent) error
	PublishCollectionDeleted(ctx context.Context, event *CollectionDeletedEvent) error
	Close() error
}
