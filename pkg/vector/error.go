package vector

import "errors"

var (
	// ErrUnavailable indicates the vector database could not be reached or
	// failed the call.
	ErrUnavailable = errors.New("vector store unavailable")

	// ErrCollectionNotFound indicates an operation addressed a collection
	// that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrSchemaConflict indicates a collection already exists with a
	// different vector dimensionality. Stored points cannot be
	// reinterpreted under a different model; delete the collection first.
	ErrSchemaConflict = errors.New("collection schema conflict")

	// ErrInvalidCollectionName indicates a collection name the driver
	// cannot represent.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)
