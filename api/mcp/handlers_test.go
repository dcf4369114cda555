package mcp

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	shelflogger "github.com/bindery/shelf/pkg/logger"
	"github.com/bindery/shelf/pkg/rag"
	testutils "github.com/bindery/shelf/pkg/utils/test"
	"github.com/bindery/shelf/pkg/vector"
)

func textOf(result *sdk.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*sdk.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("Tool handlers", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
		server   *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()

		engine, err := rag.NewEngine(rag.Config{
			Embedder: embedder,
			Driver:   driver,
			Logger:   shelflogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{
			Engine: engine,
			Logger: shelflogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("add_documents", func() {
		It("stores documents and reports the count", func() {
			result, output, err := server.handleAddDocuments(ctx, nil, AddDocumentsInput{
				Documents: []DocumentInput{
					{Content: "first"},
					{Content: "second", Metadata: map[string]any{"source": "readme.md"}},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Count).To(Equal(2))
			Expect(output.Collection).To(Equal(rag.DefaultCollection))
			Expect(output.Message).To(ContainSubstring("Successfully added 2 documents"))
			Expect(textOf(result)).To(ContainSubstring(`"count":2`))

			Expect(driver.Upserts).To(HaveLen(1))
			Expect(driver.Upserts[0].Points[1].Payload.Metadata).To(
				HaveKeyWithValue("source", "readme.md"),
			)
		})

		It("honors an explicit collection", func() {
			_, output, err := server.handleAddDocuments(ctx, nil, AddDocumentsInput{
				Documents:  []DocumentInput{{Content: "hello"}},
				Collection: "notes",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Collection).To(Equal("notes"))
			Expect(driver.Upserts[0].Collection).To(Equal("notes"))
		})

		It("reports an empty batch as an in-band error", func() {
			result, _, err := server.handleAddDocuments(ctx, nil, AddDocumentsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Failed to add documents"))
		})

		It("reports an unavailable store as an in-band error", func() {
			driver.UpsertErr = fmt.Errorf("upserting: %w", vector.ErrUnavailable)

			result, _, err := server.handleAddDocuments(ctx, nil, AddDocumentsInput{
				Documents: []DocumentInput{{Content: "hello"}},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Failed to add documents"))
		})
	})

	Describe("search", func() {
		BeforeEach(func() {
			driver.Hits = []vector.SearchHit{
				{Content: "shelf is a rag backend", Score: 0.92},
			}
		})

		It("returns scored results", func() {
			result, output, err := server.handleSearch(ctx, nil, SearchInput{
				Query: "what is shelf?",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Query).To(Equal("what is shelf?"))
			Expect(output.Collection).To(Equal(rag.DefaultCollection))
			Expect(output.Count).To(Equal(1))
			Expect(output.Results[0].Content).To(Equal("shelf is a rag backend"))
			Expect(output.Results[0].Score).To(BeNumerically("~", 0.92, 0.001))
		})

		It("applies the default limit", func() {
			_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Queries[0].Limit).To(Equal(rag.DefaultLimit))
		})

		It("passes limit and threshold through", func() {
			_, _, err := server.handleSearch(ctx, nil, SearchInput{
				Query:          "hello",
				Limit:          12,
				ScoreThreshold: 0.6,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Queries[0].Limit).To(Equal(12))
			Expect(driver.Queries[0].Threshold).To(Equal(float32(0.6)))
		})

		It("returns an empty result set for a missing collection", func() {
			driver.QueryErr = fmt.Errorf("querying: %w", vector.ErrCollectionNotFound)

			result, output, err := server.handleSearch(ctx, nil, SearchInput{
				Query:      "hello",
				Collection: "missing",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(BeZero())
			Expect(output.Results).To(BeEmpty())
		})

		It("reports an empty query as an in-band error", func() {
			result, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Failed to search"))
		})

		It("reports an unavailable store as an in-band error", func() {
			driver.QueryErr = fmt.Errorf("querying: %w", vector.ErrUnavailable)

			result, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("list_collections", func() {
		It("lists collections with point counts", func() {
			driver.Collections = []vector.CollectionInfo{
				{Name: "documents", PointsCount: 12},
				{Name: "notes", PointsCount: 3},
			}

			result, output, err := server.handleListCollections(ctx, nil, ListCollectionsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Count).To(Equal(2))
			Expect(output.Collections[0].Name).To(Equal("documents"))
			Expect(output.Collections[0].PointsCount).To(Equal(uint64(12)))
			Expect(textOf(result)).To(ContainSubstring(`"points_count":12`))
		})

		It("returns an empty list when the store is empty", func() {
			_, output, err := server.handleListCollections(ctx, nil, ListCollectionsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(BeZero())
		})

		It("reports an unavailable store as an in-band error", func() {
			driver.ListErr = fmt.Errorf("listing: %w", vector.ErrUnavailable)

			result, _, err := server.handleListCollections(ctx, nil, ListCollectionsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Failed to list collections"))
		})
	})

	Describe("delete_collection", func() {
		It("deletes the collection", func() {
			result, output, err := server.handleDeleteCollection(ctx, nil, DeleteCollectionInput{
				Collection: "notes",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Deleted).To(BeTrue())
			Expect(output.Collection).To(Equal("notes"))
			Expect(driver.Deletes).To(Equal([]string{"notes"}))
		})

		It("requires a collection name", func() {
			result, _, err := server.handleDeleteCollection(ctx, nil, DeleteCollectionInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Failed to delete collection"))
		})

		It("reports an unavailable store as an in-band error", func() {
			driver.DeleteErr = fmt.Errorf("deleting: %w", vector.ErrUnavailable)

			result, _, err := server.handleDeleteCollection(ctx, nil, DeleteCollectionInput{
				Collection: "notes",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})
})
