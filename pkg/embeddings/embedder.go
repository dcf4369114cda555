// Package embeddings defines the embedding provider abstraction used by the
// retrieval pipeline.
//
// An Embedder turns text into a fixed-length vector. Implementations live in
// subpackages (ollama, lmstudio) and are selected once at startup via the
// utils.New factory. Providers are stateless beyond their configuration and a
// latched vector dimensionality, so a single instance is safe for concurrent
// use.
package embeddings

import "context"

// Role describes what a piece of text is being embedded for. Some models
// distinguish indexed content from search queries via instruction prefixes,
// so the role must travel with every embed call.
type Role string

const (
	// RoleDocument marks text that is being indexed.
	RoleDocument Role = "document"

	// RoleQuery marks text that is being searched for.
	RoleQuery Role = "query"
)

// Embedder produces fixed-length embedding vectors for text.
type Embedder interface {
	// Embed returns the embedding vector for a single text. The text must
	// be non-empty after trimming. The role selects the instruction prefix
	// applied before the provider call.
	Embed(ctx context.Context, text string, role Role) ([]float32, error)

	// EmbedBatch embeds several texts in one call, returning vectors in
	// input order. The batch is all-or-nothing: any failure means no
	// vectors are returned.
	EmbedBatch(ctx context.Context, texts []string, role Role) ([][]float32, error)

	// Close releases resources held by the embedder.
	Close() error
}
