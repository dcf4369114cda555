// Package shelfcmder
package shelfcmder

import (
	"github.com/spf13/cobra"

	addcmder "github.com/bindery/shelf/cmd/shelf/add"
	collectionscmder "github.com/bindery/shelf/cmd/shelf/collections"
	configcmder "github.com/bindery/shelf/cmd/shelf/config"
	initcmder "github.com/bindery/shelf/cmd/shelf/init"
	searchcmder "github.com/bindery/shelf/cmd/shelf/search"
	servecmder "github.com/bindery/shelf/cmd/shelf/serve"
	versioncmder "github.com/bindery/shelf/cmd/version"
)

const shelfLongDesc string = `Shelf is a retrieval backend for your agents.

Documents go in, semantically relevant context comes out. Shelf embeds
documents with a local embedding provider, stores the vectors in a vector
store, and answers similarity queries over MCP, HTTP, or the CLI.

Common workflows:
  shelf serve                  Run the MCP server on stdio (for agent clients)
  shelf serve --listen :8080   Run the HTTP API with MCP mounted at /mcp
  shelf add notes.md           Embed and store documents
  shelf search "query"         Search stored documents`

const shelfShortDesc string = "Shelf - Retrieval for agents"

func NewShelfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelf",
		Short: shelfShortDesc,
		Long:  shelfLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .shelf/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(addcmder.NewAddCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(collectionscmder.NewCollectionsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
