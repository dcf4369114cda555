package rag

import "errors"

// ErrInvalidInput indicates a request the engine refuses to process,
// such as an empty document batch or a blank query.
var ErrInvalidInput = errors.New("invalid input")
