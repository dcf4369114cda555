package embeddings

import "errors"

var (
	// ErrUnavailable indicates the embedding service could not be reached
	// or returned a non-success status.
	ErrUnavailable = errors.New("embedding provider unavailable")

	// ErrDimensionMismatch indicates a response vector's length disagrees
	// with the dimensionality previously established for the active model.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyText indicates the caller asked to embed text that is empty
	// after trimming.
	ErrEmptyText = errors.New("text must not be empty")
)
