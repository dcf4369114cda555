package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	listCollectionsToolName    = "list_collections"
	listCollectionsDescription = "List all collections in the knowledge base with their document counts."

	deleteCollectionToolName    = "delete_collection"
	deleteCollectionDescription = "Delete a collection and all its documents. Deleting a collection that does not exist succeeds."
)

// CollectionSummary describes one collection in a list_collections result.
type CollectionSummary struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
}

// ListCollectionsInput represents the input arguments for the
// list_collections tool. The tool takes no arguments.
type ListCollectionsInput struct{}

// ListCollectionsOutput represents the output of the list_collections tool.
type ListCollectionsOutput struct {
	Collections []CollectionSummary `json:"collections"`
	Count       int                 `json:"count"`
}

// handleListCollections processes a list_collections request.
func (s *Server) handleListCollections(ctx context.Context, _ *mcp.CallToolRequest, _ ListCollectionsInput) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP list_collections request")

	infos, err := s.config.Engine.ListCollections(ctx)
	if err != nil {
		logger.Error("failed to list collections", "error", err)
		return errorResult(fmt.Sprintf("Failed to list collections: %v", err)), ListCollectionsOutput{}, nil
	}

	collections := make([]CollectionSummary, len(infos))
	for i, info := range infos {
		collections[i] = CollectionSummary{
			Name:        info.Name,
			PointsCount: info.PointsCount,
		}
	}

	output := ListCollectionsOutput{
		Collections: collections,
		Count:       len(collections),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal list_collections output", "error", err)
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), ListCollectionsOutput{}, nil
	}

	return jsonResult(jsonBytes), output, nil
}

// DeleteCollectionInput represents the input arguments for the
// delete_collection tool.
type DeleteCollectionInput struct {
	Collection string `json:"collection" jsonschema:"the collection to delete"`
}

// DeleteCollectionOutput represents the output of the delete_collection tool.
type DeleteCollectionOutput struct {
	Collection string `json:"collection"`
	Deleted    bool   `json:"deleted"`
	Message    string `json:"message"`
}

// handleDeleteCollection processes a delete_collection request.
func (s *Server) handleDeleteCollection(ctx context.Context, _ *mcp.CallToolRequest, input DeleteCollectionInput) (*mcp.CallToolResult, DeleteCollectionOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP delete_collection request", "collection", input.Collection)

	if err := s.config.Engine.DeleteCollection(ctx, input.Collection); err != nil {
		logger.Error("failed to delete collection", "error", err)
		return errorResult(fmt.Sprintf("Failed to delete collection: %v", err)), DeleteCollectionOutput{}, nil
	}

	output := DeleteCollectionOutput{
		Collection: input.Collection,
		Deleted:    true,
		Message:    fmt.Sprintf("Successfully deleted collection %q", input.Collection),
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal delete_collection output", "error", err)
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), DeleteCollectionOutput{}, nil
	}

	return jsonResult(jsonBytes), output, nil
}
