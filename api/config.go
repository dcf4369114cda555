// Package api provides an HTTP API server for the Shelf retrieval engine.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// MCPHandler, when set, is mounted at /mcp so MCP clients can reach
	// the tools over streamable HTTP.
	MCPHandler http.Handler
}
