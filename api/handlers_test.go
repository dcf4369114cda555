package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	shelflogger "github.com/bindery/shelf/pkg/logger"
	"github.com/bindery/shelf/pkg/rag"
	testutils "github.com/bindery/shelf/pkg/utils/test"
	"github.com/bindery/shelf/pkg/vector"
)

var _ = Describe("API Handlers", func() {
	var (
		server   *Server
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
	)

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()

		engine, err := rag.NewEngine(rag.Config{
			Embedder: embedder,
			Driver:   driver,
			Logger:   shelflogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0"}, engine, shelflogger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	decode := func(resp *http.Response, target any) {
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, target)).To(Succeed())
	}

	Describe("NewServer", func() {
		It("requires an engine", func() {
			_, err := NewServer(Config{}, nil, shelflogger.Nop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("engine is required"))
		})

		It("requires a logger", func() {
			engine, err := rag.NewEngine(rag.Config{
				Embedder: embedder,
				Driver:   driver,
				Logger:   shelflogger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = NewServer(Config{}, engine, nil)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("pong"))
		})
	})

	Describe("POST /v1/documents", func() {
		postDocuments := func(payload AddDocumentsRequest) *http.Response {
			body, err := json.Marshal(payload)
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("stores documents and returns 201", func() {
			resp := postDocuments(AddDocumentsRequest{
				Documents: []DocumentPayload{
					{Content: "first"},
					{Content: "second", Metadata: map[string]any{"source": "readme.md"}},
				},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var result AddDocumentsResponse
			decode(resp, &result)
			Expect(result.Count).To(Equal(2))
			Expect(result.Collection).To(Equal(rag.DefaultCollection))

			Expect(driver.Upserts).To(HaveLen(1))
			Expect(driver.Upserts[0].Points).To(HaveLen(2))
		})

		It("honors an explicit collection", func() {
			resp := postDocuments(AddDocumentsRequest{
				Documents:  []DocumentPayload{{Content: "hello"}},
				Collection: "notes",
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var result AddDocumentsResponse
			decode(resp, &result)
			Expect(result.Collection).To(Equal("notes"))
			Expect(driver.Upserts[0].Collection).To(Equal("notes"))
		})

		It("returns 400 for a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/documents", bytes.NewReader([]byte("{not json")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for an empty document batch", func() {
			resp := postDocuments(AddDocumentsRequest{})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var result ErrorResponse
			decode(resp, &result)
			Expect(result.Error).To(ContainSubstring("documents must not be empty"))
		})

		It("returns 502 when the vector store is unavailable", func() {
			driver.UpsertErr = fmt.Errorf("upserting: %w", vector.ErrUnavailable)

			resp := postDocuments(AddDocumentsRequest{
				Documents: []DocumentPayload{{Content: "hello"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})

		It("returns 409 for a dimension conflict", func() {
			driver.EnsureErr = fmt.Errorf("ensuring: %w", vector.ErrSchemaConflict)

			resp := postDocuments(AddDocumentsRequest{
				Documents: []DocumentPayload{{Content: "hello"}},
			})
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		})
	})

	Describe("GET /v1/search", func() {
		search := func(path string) *http.Response {
			req, err := http.NewRequest(http.MethodGet, path, nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		BeforeEach(func() {
			driver.Hits = []vector.SearchHit{
				{Content: "shelf is a rag backend", Score: 0.92},
			}
		})

		It("returns scored results", func() {
			resp := search("/v1/search?query=what+is+shelf")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result SearchResponse
			decode(resp, &result)
			Expect(result.Query).To(Equal("what is shelf"))
			Expect(result.Collection).To(Equal(rag.DefaultCollection))
			Expect(result.Count).To(Equal(1))
			Expect(result.Results[0].Content).To(Equal("shelf is a rag backend"))
		})

		It("requires a query parameter", func() {
			resp := search("/v1/search")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("passes limit and threshold through", func() {
			resp := search("/v1/search?query=hello&collection=notes&limit=7&score_threshold=0.4")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			Expect(driver.Queries).To(HaveLen(1))
			Expect(driver.Queries[0].Collection).To(Equal("notes"))
			Expect(driver.Queries[0].Limit).To(Equal(7))
			Expect(driver.Queries[0].Threshold).To(BeNumerically("~", 0.4, 0.001))
		})

		It("returns an empty result set for a missing collection", func() {
			driver.QueryErr = fmt.Errorf("querying: %w", vector.ErrCollectionNotFound)

			resp := search("/v1/search?query=hello&collection=missing")
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result SearchResponse
			decode(resp, &result)
			Expect(result.Count).To(BeZero())
			Expect(result.Results).To(BeEmpty())
		})

		It("returns 502 when the vector store is unavailable", func() {
			driver.QueryErr = fmt.Errorf("querying: %w", vector.ErrUnavailable)

			resp := search("/v1/search?query=hello")
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("GET /v1/collections", func() {
		It("lists collections with point counts", func() {
			driver.Collections = []vector.CollectionInfo{
				{Name: "documents", PointsCount: 12},
				{Name: "notes", PointsCount: 3},
			}

			req, err := http.NewRequest(http.MethodGet, "/v1/collections", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result ListCollectionsResponse
			decode(resp, &result)
			Expect(result.Count).To(Equal(2))
			Expect(result.Collections[0].Name).To(Equal("documents"))
			Expect(result.Collections[0].PointsCount).To(Equal(uint64(12)))
		})

		It("returns 502 when the vector store is unavailable", func() {
			driver.ListErr = fmt.Errorf("listing: %w", vector.ErrUnavailable)

			req, err := http.NewRequest(http.MethodGet, "/v1/collections", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("DELETE /v1/collections/:name", func() {
		It("deletes the collection", func() {
			req, err := http.NewRequest(http.MethodDelete, "/v1/collections/notes", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var result DeleteCollectionResponse
			decode(resp, &result)
			Expect(result.Collection).To(Equal("notes"))
			Expect(result.Deleted).To(BeTrue())
			Expect(driver.Deletes).To(Equal([]string{"notes"}))
		})

		It("returns 500 for an unclassified failure", func() {
			driver.DeleteErr = fmt.Errorf("disk on fire")

			req, err := http.NewRequest(http.MethodDelete, "/v1/collections/notes", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("MCP mount", func() {
		It("routes /mcp to the configured handler", func() {
			engine, err := rag.NewEngine(rag.Config{
				Embedder: embedder,
				Driver:   driver,
				Logger:   shelflogger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			mcpStub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})

			mounted, err := NewServer(Config{ListenAddr: ":0", MCPHandler: mcpStub}, engine, shelflogger.Nop())
			Expect(err).NotTo(HaveOccurred())

			req, err := http.NewRequest(http.MethodPost, "/mcp", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := mounted.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusTeapot))
		})

		It("leaves /mcp unrouted when no handler is configured", func() {
			req, err := http.NewRequest(http.MethodPost, "/mcp", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})
})
