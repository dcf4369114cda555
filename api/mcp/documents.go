package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bindery/shelf/pkg/rag"
)

var (
	addDocumentsToolName    = "add_documents"
	addDocumentsDescription = "Add documents to the knowledge base for semantic search. Each document is embedded and stored with its metadata. Creates the collection on first use."
)

// DocumentInput is a single document in an add_documents request.
type DocumentInput struct {
	Content  string         `json:"content" jsonschema:"the document text to embed and store"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"optional key/value metadata stored with the document"`
}

// AddDocumentsInput represents the input arguments for the add_documents tool.
type AddDocumentsInput struct {
	Documents  []DocumentInput `json:"documents" jsonschema:"the documents to embed and store"`
	Collection string          `json:"collection,omitempty" jsonschema:"collection to store the documents in (default: documents)"`
}

// AddDocumentsOutput represents the output of the add_documents tool.
type AddDocumentsOutput struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Message    string `json:"message"`
}

// handleAddDocuments processes an add_documents request.
func (s *Server) handleAddDocuments(ctx context.Context, _ *mcp.CallToolRequest, input AddDocumentsInput) (*mcp.CallToolResult, AddDocumentsOutput, error) {
	logger := s.config.Logger

	collection := input.Collection
	if collection == "" {
		collection = s.config.Engine.DefaultCollection()
	}

	logger.Debug("MCP add_documents request",
		"collection", collection,
		"count", len(input.Documents),
	)

	docs := make([]rag.Document, len(input.Documents))
	for i, doc := range input.Documents {
		docs[i] = rag.Document{
			Content:  doc.Content,
			Metadata: doc.Metadata,
		}
	}

	count, err := s.config.Engine.AddDocuments(ctx, collection, docs)
	if err != nil {
		logger.Error("failed to add documents", "error", err)
		return errorResult(fmt.Sprintf("Failed to add documents: %v", err)), AddDocumentsOutput{}, nil
	}

	output := AddDocumentsOutput{
		Collection: collection,
		Count:      count,
		Message:    fmt.Sprintf("Successfully added %d documents to collection %q", count, collection),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal add_documents output", "error", err)
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), AddDocumentsOutput{}, nil
	}

	return jsonResult(jsonBytes), output, nil
}
