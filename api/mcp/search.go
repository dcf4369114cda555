package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bindery/shelf/pkg/rag"
)

var (
	searchToolName    = "search"
	searchDescription = "Search the knowledge base using semantic similarity. Returns the most relevant documents for the query text, best first. Searching a collection that does not exist returns no results."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query          string  `json:"query" jsonschema:"the search query text to find relevant documents"`
	Collection     string  `json:"collection,omitempty" jsonschema:"collection to search (default: documents)"`
	Limit          int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default: 5, max: 50)"`
	ScoreThreshold float32 `json:"score_threshold,omitempty" jsonschema:"minimum similarity score between 0 and 1 (default: 0)"`
}

// SearchResult represents a single search result.
type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query      string         `json:"query"`
	Collection string         `json:"collection"`
	Results    []SearchResult `json:"results"`
	Count      int            `json:"count"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	collection := input.Collection
	if collection == "" {
		collection = s.config.Engine.DefaultCollection()
	}

	// Default limit if not specified
	limit := input.Limit
	if limit <= 0 {
		limit = rag.DefaultLimit
	}

	logger.Debug("MCP search request",
		"query", input.Query,
		"collection", collection,
		"limit", limit,
	)

	hits, err := s.config.Engine.Search(ctx, collection, input.Query, limit, input.ScoreThreshold)
	if err != nil {
		logger.Error("failed to search collection", "error", err)
		return errorResult(fmt.Sprintf("Failed to search: %v", err)), SearchOutput{}, nil
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{
			Content:  hit.Content,
			Metadata: hit.Metadata,
			Score:    hit.Score,
		}
	}

	output := SearchOutput{
		Query:      input.Query,
		Collection: collection,
		Results:    results,
		Count:      len(results),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), SearchOutput{}, nil
	}

	return jsonResult(jsonBytes), output, nil
}
