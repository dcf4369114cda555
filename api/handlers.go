package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/bindery/shelf/pkg/embeddings"
	"github.com/bindery/shelf/pkg/rag"
	"github.com/bindery/shelf/pkg/vector"
)

// ErrorResponse is the JSON error envelope for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DocumentPayload is a single document in an add request.
type DocumentPayload struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddDocumentsRequest is the body of POST /v1/documents.
type AddDocumentsRequest struct {
	Documents  []DocumentPayload `json:"documents"`
	Collection string            `json:"collection,omitempty"`
}

// AddDocumentsResponse reports what an add stored.
type AddDocumentsResponse struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
}

// SearchResult is a single hit in a search response.
type SearchResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

// SearchResponse is the body of a successful GET /v1/search.
type SearchResponse struct {
	Query      string         `json:"query"`
	Collection string         `json:"collection"`
	Results    []SearchResult `json:"results"`
	Count      int            `json:"count"`
}

// CollectionSummary describes one collection in a list response.
type CollectionSummary struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
}

// ListCollectionsResponse is the body of GET /v1/collections.
type ListCollectionsResponse struct {
	Collections []CollectionSummary `json:"collections"`
	Count       int                 `json:"count"`
}

// DeleteCollectionResponse acknowledges a collection delete.
type DeleteCollectionResponse struct {
	Collection string `json:"collection"`
	Deleted    bool   `json:"deleted"`
}

// respondError maps engine errors onto HTTP statuses: client mistakes are
// 400s, missing collections 404, dimension conflicts 409, unreachable
// dependencies 502, anything else 500.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, rag.ErrInvalidInput),
		errors.Is(err, vector.ErrInvalidCollectionName),
		errors.Is(err, embeddings.ErrEmptyText):
		status = fiber.StatusBadRequest
	case errors.Is(err, vector.ErrCollectionNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, vector.ErrSchemaConflict):
		status = fiber.StatusConflict
	case errors.Is(err, vector.ErrUnavailable),
		errors.Is(err, embeddings.ErrUnavailable):
		status = fiber.StatusBadGateway
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAddDocuments handles POST /v1/documents.
func (s *Server) handleAddDocuments(c *fiber.Ctx) error {
	var req AddDocumentsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body",
		})
	}

	collection := req.Collection
	if collection == "" {
		collection = s.engine.DefaultCollection()
	}

	docs := make([]rag.Document, len(req.Documents))
	for i, doc := range req.Documents {
		docs[i] = rag.Document{
			Content:  doc.Content,
			Metadata: doc.Metadata,
		}
	}

	count, err := s.engine.AddDocuments(c.Context(), collection, docs)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(AddDocumentsResponse{
		Collection: collection,
		Count:      count,
	})
}

// handleSearch handles GET /v1/search.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	collection := c.Query("collection")
	if collection == "" {
		collection = s.engine.DefaultCollection()
	}

	limit := c.QueryInt("limit", rag.DefaultLimit)
	threshold := float32(c.QueryFloat("score_threshold", rag.DefaultThreshold))

	hits, err := s.engine.Search(c.Context(), collection, query, limit, threshold)
	if err != nil {
		return s.respondError(c, err)
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{
			Content:  hit.Content,
			Metadata: hit.Metadata,
			Score:    hit.Score,
		}
	}

	return c.JSON(SearchResponse{
		Query:      query,
		Collection: collection,
		Results:    results,
		Count:      len(results),
	})
}

// handleListCollections handles GET /v1/collections.
func (s *Server) handleListCollections(c *fiber.Ctx) error {
	infos, err := s.engine.ListCollections(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	collections := make([]CollectionSummary, len(infos))
	for i, info := range infos {
		collections[i] = CollectionSummary{
			Name:        info.Name,
			PointsCount: info.PointsCount,
		}
	}

	return c.JSON(ListCollectionsResponse{
		Collections: collections,
		Count:       len(collections),
	})
}

// handleDeleteCollection handles DELETE /v1/collections/:name.
func (s *Server) handleDeleteCollection(c *fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "collection name is required",
		})
	}

	if err := s.engine.DeleteCollection(c.Context(), name); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(DeleteCollectionResponse{
		Collection: name,
		Deleted:    true,
	})
}
