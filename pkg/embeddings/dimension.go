package embeddings

import (
	"fmt"
	"sync"
)

// DimensionGuard latches the vector length of the first successful response
// and rejects later drift. A configured dimensionality can seed the latch so
// config-vs-model disagreement is caught on the very first call.
//
// Safe for concurrent use; providers share one guard across all calls.
type DimensionGuard struct {
	mu  sync.Mutex
	dim int
}

// NewDimensionGuard returns a guard seeded with the expected dimension.
// Zero means the dimension is unknown until the first response.
func NewDimensionGuard(expected uint) *DimensionGuard {
	return &DimensionGuard{dim: int(expected)}
}

// Check validates a batch of vectors against the latched dimension, latching
// it from the first vector when unset.
func (g *DimensionGuard) Check(vectors [][]float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: provider returned an empty vector", ErrUnavailable)
		}
		if g.dim == 0 {
			g.dim = len(v)
		}
		if len(v) != g.dim {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, g.dim, len(v))
		}
	}

	return nil
}

// Dim returns the latched dimension, or 0 when nothing has been embedded yet.
func (g *DimensionGuard) Dim() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dim
}
