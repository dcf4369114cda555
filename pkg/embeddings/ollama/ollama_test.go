package ollama_test

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
	"github.com/bindery/shelf/pkg/embeddings/ollama"
	shelflogger "github.com/bindery/shelf/pkg/logger"
)

// embedRecorder captures /api/embed requests and serves canned vectors.
type embedRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest

	// vectors returned per input, keyed by position; when nil, a default
	// 3-dim vector is returned for every input.
	respond func(inputs []string) [][]float32
}

type recordedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func (rec *embedRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}

		var req recordedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		respond := rec.respond
		rec.mu.Unlock()

		var vectors [][]float32
		if respond != nil {
			vectors = respond(req.Input)
		} else {
			vectors = make([][]float32, len(req.Input))
			for i := range vectors {
				vectors[i] = []float32{float32(i), 0.5, 0.25}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}
}

func (rec *embedRecorder) last() recordedRequest {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	Expect(rec.requests).NotTo(BeEmpty())
	return rec.requests[len(rec.requests)-1]
}

var _ = Describe("Embedder", func() {
	var (
		logger   *slog.Logger
		recorder *embedRecorder
		server   *httptest.Server
		ctx      context.Context
	)

	BeforeEach(func() {
		logger = shelflogger.Nop()
		recorder = &embedRecorder{}
		server = httptest.NewServer(recorder.handler())
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func(config ollama.Config) *ollama.Embedder {
		if config.BaseURL == "" {
			config.BaseURL = server.URL
		}
		if config.Model == "" {
			config.Model = "nomic-embed-text"
		}
		e, err := ollama.NewEmbedder(config, logger)
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	Describe("NewEmbedder", func() {
		It("requires a logger", func() {
			_, err := ollama.NewEmbedder(ollama.Config{Model: "m"}, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("requires a model", func() {
			_, err := ollama.NewEmbedder(ollama.Config{}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("model is required"))
		})
	})

	Describe("Interface compliance", func() {
		It("implements embeddings.Embedder", func() {
			var _ embeddings.Embedder = (*ollama.Embedder)(nil)
		})
	})

	Describe("Embed", func() {
		It("returns the embedding for a single text", func() {
			e := newEmbedder(ollama.Config{})
			defer e.Close()

			vec, err := e.Embed(ctx, "hello world", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(HaveLen(3))
		})

		It("sends the configured model", func() {
			e := newEmbedder(ollama.Config{Model: "nomic-embed-text"})
			defer e.Close()

			_, err := e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.last().Model).To(Equal("nomic-embed-text"))
		})

		It("applies the document prefix for nomic models", func() {
			e := newEmbedder(ollama.Config{Model: "nomic-embed-text"})
			defer e.Close()

			_, err := e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.last().Input).To(Equal([]string{"search_document: hello"}))
		})

		It("applies the query prefix for nomic models", func() {
			e := newEmbedder(ollama.Config{Model: "nomic-embed-text"})
			defer e.Close()

			_, err := e.Embed(ctx, "hello", embeddings.RoleQuery)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.last().Input).To(Equal([]string{"search_query: hello"}))
		})

		It("passes text through unprefixed for unrecognized models", func() {
			e := newEmbedder(ollama.Config{Model: "all-minilm"})
			defer e.Close()

			_, err := e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(recorder.last().Input).To(Equal([]string{"hello"}))
		})

		It("rejects empty text", func() {
			e := newEmbedder(ollama.Config{})
			defer e.Close()

			_, err := e.Embed(ctx, "   ", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrEmptyText)).To(BeTrue())
		})
	})

	Describe("EmbedBatch", func() {
		It("returns vectors in input order", func() {
			recorder.respond = func(inputs []string) [][]float32 {
				vectors := make([][]float32, len(inputs))
				for i := range inputs {
					vectors[i] = []float32{float32(i + 1), 0, 0}
				}
				return vectors
			}

			e := newEmbedder(ollama.Config{})
			defer e.Close()

			vectors, err := e.EmbedBatch(ctx, []string{"a", "b", "c"}, embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(HaveLen(3))
			Expect(vectors[0][0]).To(BeNumerically("==", 1))
			Expect(vectors[1][0]).To(BeNumerically("==", 2))
			Expect(vectors[2][0]).To(BeNumerically("==", 3))
		})

		It("sends all texts in a single request", func() {
			e := newEmbedder(ollama.Config{Model: "all-minilm"})
			defer e.Close()

			_, err := e.EmbedBatch(ctx, []string{"a", "b"}, embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())

			recorder.mu.Lock()
			defer recorder.mu.Unlock()
			Expect(recorder.requests).To(HaveLen(1))
			Expect(recorder.requests[0].Input).To(Equal([]string{"a", "b"}))
		})

		It("rejects an empty batch", func() {
			e := newEmbedder(ollama.Config{})
			defer e.Close()

			_, err := e.EmbedBatch(ctx, nil, embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrEmptyText)).To(BeTrue())
		})

		It("rejects a batch containing empty text", func() {
			e := newEmbedder(ollama.Config{})
			defer e.Close()

			_, err := e.EmbedBatch(ctx, []string{"ok", ""}, embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrEmptyText)).To(BeTrue())
		})

		It("fails when the response count disagrees with the input count", func() {
			recorder.respond = func(inputs []string) [][]float32 {
				return [][]float32{{0.1, 0.2, 0.3}}
			}

			e := newEmbedder(ollama.Config{})
			defer e.Close()

			_, err := e.EmbedBatch(ctx, []string{"a", "b"}, embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
		})
	})

	Describe("failure classification", func() {
		It("classifies non-2xx responses as provider unavailable", func() {
			failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			}))
			defer failing.Close()

			e, err := ollama.NewEmbedder(ollama.Config{BaseURL: failing.URL, Model: "m"}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer e.Close()

			_, err = e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("404"))
		})

		It("classifies connection failures as provider unavailable", func() {
			dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			dead.Close()

			e, err := ollama.NewEmbedder(ollama.Config{BaseURL: dead.URL, Model: "m"}, logger)
			Expect(err).NotTo(HaveOccurred())
			defer e.Close()

			_, err = e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
		})
	})

	Describe("dimension contract", func() {
		It("rejects a response that drifts from the first call's length", func() {
			dims := 3
			recorder.respond = func(inputs []string) [][]float32 {
				vectors := make([][]float32, len(inputs))
				for i := range inputs {
					vectors[i] = make([]float32, dims)
				}
				return vectors
			}

			e := newEmbedder(ollama.Config{})
			defer e.Close()

			_, err := e.Embed(ctx, "first", embeddings.RoleDocument)
			Expect(err).NotTo(HaveOccurred())

			dims = 5
			_, err = e.Embed(ctx, "second", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
		})

		It("enforces configured dimensions on the first call", func() {
			e := newEmbedder(ollama.Config{Dimensions: 8})
			defer e.Close()

			_, err := e.Embed(ctx, "hello", embeddings.RoleDocument)
			Expect(errors.Is(err, embeddings.ErrDimensionMismatch)).To(BeTrue())
		})
	})
})
