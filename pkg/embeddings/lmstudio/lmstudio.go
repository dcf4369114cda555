// Package lmstudio provides an Embedder backed by LM Studio's
// OpenAI-compatible embeddings endpoint.
package lmstudio

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
	defaultBaseURL = "http://localhost:1234"
	defaultTimeout = 30 * time.Second
)

// Config holds the settings for an LM Studio embedder.
type Config struct {
	// BaseURL is the LM Studio server address.
	// Defaults to http://localhost:1234.
	BaseURL string

	// Model is the embedding model identifier. Required.
	Model string

	// Dimensions, when non-zero, pins the expected vector length up front.
	Dimensions uint

	// Prefixes maps model families to instruction prefixes.
	// Defaults to embeddings.DefaultPrefixTable().
	Prefixes embeddings.PrefixTable

	// Timeout bounds each HTTP call. Defaults to 30s.
	Timeout time.Duration
}

// Embedder calls POST {base}/v1/embeddings with the OpenAI request shape.
type Embedder struct {
	baseURL  string
	model    string
	prefixes embeddings.PrefixTable
	guard    *embeddings.DimensionGuard
	client   *http.Client
	logger   *slog.Logger
}

var _ embeddings.Embedder = (*Embedder)(nil)

// NewEmbedder creates an LM Studio embedder from the given config.
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

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string, role embeddings.Role) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text}, role)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds all texts in one request. The response's data entries
// are reassembled by index so output order always matches input order.
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

	body, err := json.Marshal(embeddingsRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshaling embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embeddings request: %w", err)
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

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrUnavailable, err)
	}

	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			embeddings.ErrUnavailable, len(texts), len(parsed.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range",
				embeddings.ErrUnavailable, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("%w: no embedding returned for input %d",
				embeddings.ErrUnavailable, i)
		}
	}

	if err := e.guard.Check(vectors); err != nil {
		return nil, err
	}

	e.logger.Debug("embedded batch via lmstudio",
		"model", e.model,
		"count", len(texts),
		"dimensions", e.guard.Dim(),
	)

	return vectors, nil
}

// Close releases idle connections held by the HTTP client.
func (e *Embedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
