package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentsIngested is emitted after a batch of documents is
	// embedded and stored.
	EventTypeDocumentsIngested = "shelf.documents.ingested"

	// EventTypeCollectionDeleted is emitted after a collection is removed.
	EventTypeCollectionDeleted = "shelf.collection.deleted"
)

// EventSource identifies the embedding provider that produced the vectors.
type EventSource struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// DocumentsIngestedEvent is a transport-neutral event payload for an
// ingested document batch.
type DocumentsIngestedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Collection    string      `json:"collection"`
	Count         int         `json:"count"`
}

// CollectionDeletedEvent is a transport-neutral event payload for a
// deleted collection.
type CollectionDeletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Collection    string    `json:"collection"`
}
