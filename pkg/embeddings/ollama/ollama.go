// Package ollama provides an Embedder backed by an Ollama server's native
// batch embedding endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bindery/shelf/pkg/embeddings"
	"github.com/bindery/shelf/pkg/utils"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultTimeout = 30 * time.Second
)

// Config holds the settings for an Ollama embedder.
type Config struct {
	// BaseURL is the Ollama server address.
	// Defaults to http://localhost:11434.
	BaseURL string

	// Model is the embedding model identifier. Required.
	Model string

	// Dimensions, when non-zero, pins the expected vector length up front.
	// Zero means the length is latched from the first response.
	Dimensions uint

	// Prefixes maps model families to instruction prefixes.
	// Defaults to embeddings.DefaultPrefixTable().
	Prefixes embeddings.PrefixTable

	// Timeout bounds each HTTP call. Defaults to 30s.
	Timeout time.Duration
}

// Embedder calls POST {base}/api/embed, which accepts a batch of inputs and
// returns one embedding per input.
type Embedder struct {
	baseURL  string
	model    string
	prefixes embeddings.PrefixTable
	guard    *embeddings.DimensionGuard
	client   *http.Client
	logger   *slog.Logger
}

var _ embeddings.Embedder = (*Embedder)(nil)

// NewEmbedder creates an Ollama embedder from the given config.
func NewEmbedder(config Config, logger *slog.Logger) (*Embedder, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	prefixes := config.Prefixes
	if prefixes == nil {
		prefixes = embeddings.DefaultPrefixTable()
	}

	return &Embedder{
		baseURL:  baseURL,
		model:    config.Model,
		prefixes: prefixes,
		guard:    embeddings.NewDimensionGuard(config.Dimensions),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string, role embeddings.Role) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request. Vectors come back in input
// order. Any failure returns zero vectors.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, role embeddings.Role) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty batch", embeddings.ErrEmptyText)
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, embeddings.ErrEmptyText
		}
		input[i] = e.prefixes.Apply(e.model, role, text)
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: unexpected status %d: %s",
			embeddings.ErrUnavailable, resp.StatusCode, utils.Truncate(string(msg), 200))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrUnavailable, err)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			embeddings.ErrUnavailable, len(texts), len(parsed.Embeddings))
	}

	if err := e.guard.Check(parsed.Embeddings); err != nil {
		return nil, err
	}

	e.logger.Debug("embedded batch via ollama",
		"model", e.model,
		"count", len(texts),
		"dimensions", e.guard.Dim(),
	)

	return parsed.Embeddings, nil
}

// Close releases idle connections held by the HTTP client.
func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
