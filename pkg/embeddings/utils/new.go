// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"log/slog"

	"github.com/bindery/shelf/pkg/embeddings"
	"github.com/bindery/shelf/pkg/embeddings/lmstudio"
	"github.com/bindery/shelf/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint
	Prefixes     embeddings.PrefixTable
	Logger       *slog.Logger
}

// NewEmbedder constructs the embedding provider selected by ProviderType.
// Provider choice happens once at startup; everything downstream sees only
// the embeddings.Embedder interface.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewEmbedder(ollama.Config{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Prefixes:   o.Prefixes,
		}, o.Logger)
	case "lmstudio":
		return lmstudio.NewEmbedder(lmstudio.Config{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
			Prefixes:   o.Prefixes,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
