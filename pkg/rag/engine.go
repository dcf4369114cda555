// Package rag composes an embedding provider and a vector store into a
// retrieval engine.
//
// The engine owns the write path (embed documents, ensure the collection,
// upsert points) and the read path (embed the query, run a similarity
// search). Collections are created lazily on first write with the
// dimension the embedder actually produced; the vector driver rejects
// later writes that disagree.
//
// Searching a collection that was never created is not an error: callers
// asking an empty library a question get an empty answer. Every other
// failure surfaces.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bindery/shelf/pkg/embeddings"
	"github.com/bindery/shelf/pkg/eventstream"
	"github.com/bindery/shelf/pkg/eventstream/nop"
	"github.com/bindery/shelf/pkg/vector"
)

const (
	// DefaultCollection is used when a request names no collection.
	DefaultCollection = "documents"

	// DefaultLimit is the number of hits returned when a search names no limit.
	DefaultLimit = 5

	// DefaultThreshold keeps every non-negative similarity.
	DefaultThreshold = 0.0
)

// Document is a single piece of content to ingest, with optional metadata
// carried alongside it into the vector store.
type Document struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Config holds the engine's dependencies.
type Config struct {
	// Embedder generates vectors for documents and queries.
	Embedder embeddings.Embedder

	// Driver is the vector store backend.
	Driver vector.Driver

	// Publisher receives ingest lifecycle events. If nil, events are
	// disabled.
	Publisher eventstream.Publisher

	// Source identifies the embedding provider on emitted events.
	Source eventstream.EventSource

	// DefaultCollection is used when a request names no collection.
	// Defaults to the DefaultCollection constant.
	DefaultCollection string

	Logger *slog.Logger
}

// Engine is the retrieval engine backing every transport surface.
type Engine struct {
	embedder          embeddings.Embedder
	driver            vector.Driver
	publisher         eventstream.Publisher
	source            eventstream.EventSource
	defaultCollection string
	logger            *slog.Logger
}

// NewEngine creates a retrieval engine from the given dependencies.
func NewEngine(c Config) (*Engine, error) {
	if c.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Driver == nil {
		return nil, fmt.Errorf("vector driver is required")
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	defaultCollection := c.DefaultCollection
	if defaultCollection == "" {
		defaultCollection = DefaultCollection
	}

	return &Engine{
		embedder:          c.Embedder,
		driver:            c.Driver,
		publisher:         publisher,
		source:            c.Source,
		defaultCollection: defaultCollection,
		logger:            c.Logger,
	}, nil
}

// DefaultCollection returns the collection used when a request names none.
func (e *Engine) DefaultCollection() string {
	return e.defaultCollection
}

// AddDocuments embeds the batch and stores one point per document in the
// collection, creating it on first use. The batch is all-or-nothing: if
// any document fails to embed, nothing is stored. Returns the number of
// documents stored.
func (e *Engine) AddDocuments(ctx context.Context, collection string, docs []Document) (int, error) {
	if collection == "" {
		collection = e.defaultCollection
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("%w: documents must not be empty", ErrInvalidInput)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		if doc.Content == "" {
			return 0, fmt.Errorf("%w: document %d has empty content", ErrInvalidInput, i)
		}
		texts[i] = doc.Content
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts, embeddings.RoleDocument)
	if err != nil {
		return 0, fmt.Errorf("embedding documents: %w", err)
	}

	dimension := uint64(len(vectors[0]))
	if err := e.driver.EnsureCollection(ctx, collection, dimension); err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}

	points := make([]vector.Point, len(docs))
	for i, doc := range docs {
		points[i] = vector.Point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: vector.Payload{
				Content:  doc.Content,
				Metadata: doc.Metadata,
			},
		}
	}

	if err := e.driver.Upsert(ctx, collection, points); err != nil {
		return 0, fmt.Errorf("storing documents: %w", err)
	}

	e.logger.Debug("added documents",
		"collection", collection,
		"count", len(docs),
	)

	// Events are best effort: a broken stream never fails the write.
	event := &eventstream.DocumentsIngestedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeDocumentsIngested,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        e.source,
		Collection:    collection,
		Count:         len(docs),
	}
	if err := e.publisher.PublishDocumentsIngested(ctx, event); err != nil {
		e.logger.Warn("publishing ingest event failed", "error", err)
	}

	return len(docs), nil
}

// Search embeds the query and returns the most similar documents in the
// collection, ordered by descending similarity. Searching a collection
// that does not exist returns no hits.
func (e *Engine) Search(ctx context.Context, collection, query string, limit int, scoreThreshold float32) ([]vector.SearchHit, error) {
	if collection == "" {
		collection = e.defaultCollection
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	queryVector, err := e.embedder.Embed(ctx, query, embeddings.RoleQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.driver.Query(ctx, collection, queryVector, limit, scoreThreshold)
	if err != nil {
		if errors.Is(err, vector.ErrCollectionNotFound) {
			e.logger.Debug("search on missing collection", "collection", collection)
			return []vector.SearchHit{}, nil
		}
		return nil, fmt.Errorf("searching collection: %w", err)
	}

	e.logger.Debug("searched collection",
		"collection", collection,
		"hits", len(hits),
	)

	return hits, nil
}

// ListCollections returns every collection in the vector store.
func (e *Engine) ListCollections(ctx context.Context) ([]vector.CollectionInfo, error) {
	infos, err := e.driver.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return infos, nil
}

// DeleteCollection removes the collection and all its documents. Deleting
// a collection that does not exist succeeds.
func (e *Engine) DeleteCollection(ctx context.Context, collection string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidInput)
	}

	if err := e.driver.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}

	e.logger.Debug("deleted collection", "collection", collection)

	event := &eventstream.CollectionDeletedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeCollectionDeleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Collection:    collection,
	}
	if err := e.publisher.PublishCollectionDeleted(ctx, event); err != nil {
		e.logger.Warn("publishing delete event failed", "error", err)
	}

	return nil
}

// Close releases the engine's embedder, vector driver, and publisher.
func (e *Engine) Close() error {
	return errors.Join(
		e.embedder.Close(),
		e.driver.Close(),
		e.publisher.Close(),
	)
}
