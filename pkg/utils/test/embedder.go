package testutils

import (
	"context"
	"fmt"

	"github.com/bindery/shelf/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// FailOn causes embedding to return an error when an input text matches
	FailOn string

	// Roles records the role passed to each call
	Roles []embeddings.Role

	// Batches records the texts passed to each call
	Batches [][]string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string, role embeddings.Role) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string, role embeddings.Role) ([][]float32, error) {
	m.Roles = append(m.Roles, role)
	m.Batches = append(m.Batches, texts)

	vecs := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if m.FailOn != "" && text == m.FailOn {
			return nil, fmt.Errorf("mock embedding failure for: %s", text)
		}

		if emb, ok := m.Embeddings[text]; ok {
			vecs = append(vecs, emb)
			continue
		}

		// Return a default embedding for any text
		vecs = append(vecs, []float32{0.1, 0.2, 0.3})
	}
	return vecs, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}
