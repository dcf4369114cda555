package embeddings_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bindery/shelf/pkg/embeddings"
)

var _ = Describe("PrefixTable", func() {
	Describe("DefaultPrefixTable", func() {
		var table embeddings.PrefixTable

		BeforeEach(func() {
			table = embeddings.DefaultPrefixTable()
		})

		It("matches the nomic family", func() {
			p := table.Lookup("nomic-embed-text")
			Expect(p.Document).To(Equal("search_document: "))
			Expect(p.Query).To(Equal("search_query: "))
		})

		It("matches nomic variants by substring", func() {
			p := table.Lookup("nomic-embed-text-v1.5")
			Expect(p.Document).To(Equal("search_document: "))
		})

		It("matches case-insensitively", func() {
			p := table.Lookup("Nomic-Embed-Text")
			Expect(p.Query).To(Equal("search_query: "))
		})

		It("returns empty prefixes for unrecognized models", func() {
			p := table.Lookup("text-embedding-3-small")
			Expect(p.Document).To(BeEmpty())
			Expect(p.Query).To(BeEmpty())
		})
	})

	Describe("Apply", func() {
		var table embeddings.PrefixTable

		BeforeEach(func() {
			table = embeddings.DefaultPrefixTable()
		})

		It("prepends the document prefix for document role", func() {
			out := table.Apply("nomic-embed-text", embeddings.RoleDocument, "hello world")
			Expect(out).To(Equal("search_document: hello world"))
		})

		It("prepends the query prefix for query role", func() {
			out := table.Apply("nomic-embed-text", embeddings.RoleQuery, "hello world")
			Expect(out).To(Equal("search_query: hello world"))
		})

		It("passes text through unmodified for unrecognized models", func() {
			out := table.Apply("all-minilm", embeddings.RoleDocument, "hello world")
			Expect(out).To(Equal("hello world"))
		})
	})

	Describe("custom rules", func() {
		It("honors caller-supplied rules ahead of nothing", func() {
			table := embeddings.PrefixTable{
				{
					Pattern: "custom-model",
					Prefix:  embeddings.Prefix{Document: "doc: ", Query: "qry: "},
				},
			}

			Expect(table.Apply("custom-model-v2", embeddings.RoleDocument, "x")).To(Equal("doc: x"))
			Expect(table.Apply("custom-model-v2", embeddings.RoleQuery, "x")).To(Equal("qry: x"))
			Expect(table.Apply("other", embeddings.RoleQuery, "x")).To(Equal("x"))
		})

		It("uses the first matching rule when several match", func() {
			table := embeddings.PrefixTable{
				{Pattern: "embed", Prefix: embeddings.Prefix{Document: "first: "}},
				{Pattern: "nomic", Prefix: embeddings.Prefix{Document: "second: "}},
			}

			Expect(table.Apply("nomic-embed-text", embeddings.RoleDocument, "x")).To(Equal("first: x"))
		})
	})
})
