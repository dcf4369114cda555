package lmstudio_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bindery/shelf/pkg/embeddings"
	"github.com/bindery/shelf/pkg/embeddings/lmstudio"
	shelflogger "github.com/bindery/shelf/pkg/logger"
)

type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// openAIRecorder captures /v1/embeddings requests and serves canned data
// entries, optionally out of index order.
type openAIRecorder struct {
	mu       sync.Mutex
	requests []openAIRequest
	respond  func(inputs []string) []openAIData
}

func (rec *openAIRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		respond := rec.respond
		rec.mu.Unlock()

		var data []openAIData
		if respond != nil {
			data = respond(req.Input)
		} else {
			for i := range req.Input {
				data = append(data, openAIData{Index: i, Embedding: []float32{float32(i), 0.5}})
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

func (rec *openAIRecorder) last() openAIRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	Expect(rec.requests).NotTo(BeEmpty())
	return rec.requests[len(rec.requests)-1]
}

var _ = Describe("Embedder", func() {
	var (
		logger   *slog.Logger
		recorder *openAIRecorder
		server   *httptest.Server
		ctx      context.Context
	)

	BeforeEach(func() {
		logger = shelflogger.Nop()
		recorder = &openAIRecorder{}
		server = httptest.NewServer(recorder.handler())
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func(config lmstudio.Config) *lmstudio.Embedder {
		if config.BaseURL == "" {
			config.BaseURL = server.URL
		}
		if config.Model == "" {
			config.Model = "text-embedding-nomic-embed-text-v1.5"
		}
		e, err := lmstudio.NewEmbedder(config, logger)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	Describe("NewEmbedder", func() {
		It("requires a logger", func() {
			_, err := lmstudio.NewEmbedder(lmstudio.Config{Model: "m"}, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("requires a model", func() {
			_, err := lmstudio.NewEmbedder(lmstudio.Config{}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("model is required"))
		})
	})

	Describe("Interface compliance", func() {
		It("implements embeddings.Embedder", func() {
			var _ embeddings.Embedder = (*lmstudio.Embedder)(nil)
		})
	})

	Describe("Embed", func() {
		It("returns the embedding for a single text", func() {
			e := newEmbedder(lmstudio.Config{})
			defer e.Close()

			vec, err := e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(HaveLen(2))
		})

		It("applies nomic prefixes when the model name contains the family", func() {
			e := newEmbedder(lmstudio.Config{Model: "text-embedding-nomic-embed-text-v1.5"})
			defer e.Close()

			_, err := e.Embed(ctx, "hello", embeddings.RoleQuery)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.last().Input).To(Equal([]string{"search_query: hello"}))
		})

		It("rejects empty text", func() {
			e := newEmbedder(lmstudio.Config{})
			defer e.Close()

			_, err := e.Embed(ctx, "", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrEmptyText)).To(BeTrue())
		})
	})

	Describe("EmbedBatch", func() {
		It("reassembles vectors by index when the response is out of order", func() {
			recorder.respond = func(inputs []string) []openAIData {
				data := make([]openAIData, 0, len(inputs))
				for i := len(inputs) - 1; i >= 0; i-- {
					data = append(data, openAIData{Index: i, Embedding: []float32{float32(i + 1), 0}})
				}
				return data
			}

			e := newEmbedder(lmstudio.Config{})
			defer e.Close()

			vectors, err := e.EmbedBatch(ctx, []string{"a", "b", "c"}, embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors[0][0]).To(BeNumerically("==", 1))
			Expect(vectors[1][0]).To(BeNumerically("==", 2))
			Expect(vectors[2][0]).To(BeNumerically("==", 3))
		})

		It("fails when an index is missing from the response", func() {
			recorder.respond = func(inputs []string) []openAIData {
				return []openAIData{
					{Index: 0, Embedding: []float32{0.1, 0.2}},
					{Index: 0, Embedding: []float32{0.3, 0.4}},
				}
			}

			e := newEmbedder(lmstudio.Config{})
			defer e.Close()

			_, err := e.EmbedBatch(ctx, []string{"a", "b"}, embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
		})

		It("fails when the response count disagrees with the input count", func() {
			recorder.respond = func(inputs []string) []openAIData {
				return []openAIData{{Index: 0, Embedding: []float32{0.1}}}
			}

			e := newEmbedder(lmstudio.Config{})
			defer e.Close()

			_, err := e.EmbedBatch(ctx, []string{"a", "b"}, embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
		})
	})

	Describe("failure classification", func() {
		It("classifies non-2xx responses as provider unavailable", func() {
			failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no model loaded", http.StatusServiceUnavailable)
			}))
			defer failing.Close()

			e, err := lmstudio.NewEmbedder(lmstudio.Config{BaseURL: failing.URL, Model: "m"}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer e.Close()

			_, err = e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
		})
	})

	Describe("dimension contract", func() {
		It("rejects a response that drifts from the first call's length", func() {
			dims := 2
			recorder.respond = func(inputs []string) []openAIData {
				data := make([]openAIData, len(inputs))
				for i := range inputs {
					data[i] = openAIData{Index: i, Embedding: make([]float32, dims)}
				}
				return data
			}

			e := newEmbedder(lmstudio.Config{})
			defer e.Close()

			_, err := e.Embed(ctx, "first", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())

			dims = 4
			_, err = e.Embed(ctx, "second", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
		})
	})
})
