package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/bindery/shelf/pkg/rag"
)

// Server is the HTTP API server for managing and querying the Shelf system
type Server struct {
	config Config
	engine *rag.Engine
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The engine is injected to allow sharing with other transports
// (e.g., the stdio MCP server).
func NewServer(config Config, engine *rag.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		engine: engine,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/documents", s.handleAddDocuments)
	v1.Get("/search", s.handleSearch)
	v1.Get("/collections", s.handleListCollections)
	v1.Delete("/collections/:name", s.handleDeleteCollection)

	if config.MCPHandler != nil {
		mcpHandler := adaptor.HTTPHandler(config.MCPHandler)
		app.All("/mcp", mcpHandler)
		app.All("/mcp/*", mcpHandler)
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
