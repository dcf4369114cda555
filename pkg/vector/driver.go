// Package vector defines the vector store abstraction behind the retrieval
// pipeline.
//
// A Driver owns collection lifecycle and point storage against one vector
// database. Implementations live in subpackages (qdrant, sqlitevec) and are
// selected once at startup via the utils.New factory. All scoring is cosine
// similarity normalized to [0,1].
package vector

import "context"

// Limit bounds for Query. Requests outside the range are clamped, not
// rejected.
const (
	MinLimit = 1
	MaxLimit = 50
)

// Payload is what a point carries besides its vector: the original text and
// caller metadata, so a hit is usable without a second lookup.
type Payload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Point is the storage unit: a collection-unique ID, the embedding vector,
// and the payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchHit is one ranked query result. Score is cosine similarity in [0,1],
// never a raw database distance.
type SearchHit struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// CollectionInfo describes one collection in a listing.
type CollectionInfo struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
}

// Driver is the vector store contract the retrieval engine builds on.
type Driver interface {
	// EnsureCollection creates the collection with cosine distance and the
	// given dimension when absent. It is idempotent: an existing collection
	// with the same dimension is success, one with a different dimension is
	// ErrSchemaConflict. Concurrent creation races resolve to success.
	EnsureCollection(ctx context.Context, name string, dimension uint64) error

	// Upsert writes points into an existing collection, replacing any point
	// with the same ID. An absent collection is ErrCollectionNotFound.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns hits ordered by descending similarity, at most limit
	// (clamped to [MinLimit, MaxLimit]), excluding scores below the
	// threshold (clamped to [0,1]). Querying an absent collection is
	// ErrCollectionNotFound; an empty collection yields an empty slice.
	Query(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchHit, error)

	// ListCollections names every collection with its point count.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// DeleteCollection removes a collection and all its points. Deleting an
	// absent collection is success.
	DeleteCollection(ctx context.Context, name string) error

	// Close releases resources held by the driver.
	Close() error
}

// ClampLimit forces a query limit into [MinLimit, MaxLimit].
func ClampLimit(limit int) int {
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ClampThreshold forces a score threshold into [0,1].
func ClampThreshold(threshold float32) float32 {
	if threshold < 0 {
		return 0
	}
	if threshold > 1 {
		return 1
	}
	return threshold
}
