// Package servecmder provides the serve command for running the shelf server.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bindery/shelf/api"
	mcpserver "github.com/bindery/shelf/api/mcp"
	"github.com/bindery/shelf/pkg/config"
	"github.com/bindery/shelf/pkg/dotdir"
	embeddingutils "github.com/bindery/shelf/pkg/embeddings/utils"
	"github.com/bindery/shelf/pkg/eventstream"
	eventskafka "github.com/bindery/shelf/pkg/eventstream/kafka"
	"github.com/bindery/shelf/pkg/logger"
	"github.com/bindery/shelf/pkg/rag"
	"github.com/bindery/shelf/pkg/vector"
	vectorutils "github.com/bindery/shelf/pkg/vector/utils"
)

// sqliteDBFile is the database filename used when the sqlite provider is
// selected without an explicit path. It lives in the resolved .shelf/ dir.
const sqliteDBFile = "shelf.db"

type ServeCommander struct {
	listen            string
	vectorProvider    string
	vectorTarget      string
	vectorAPIKey      string
	sqlitePath        string
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	embeddingDims     uint
	eventsEnabled     bool
	eventsBrokers     []string
	eventsTopic       string
	logFile           string

	configDir string
	httpMode  bool
	debug     bool

	v      *viper.Viper
	logger *slog.Logger
}

// serveRegistryKeys are the flags serve binds into the viper precedence chain.
var serveRegistryKeys = []string{
	config.FlagListen,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagVectorStoreKey,
	config.FlagSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsEnabled,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

const serveLongDesc string = `Run the shelf server.

By default shelf serve speaks the Model Context Protocol over stdio, which
is how agent clients (Claude Desktop, editors) launch it. Pass --listen to
run the HTTP API instead; the MCP endpoint is then mounted at /mcp using
the streamable HTTP transport.

Configuration is resolved in order: flags, SHELF_* environment variables,
config.toml in the .shelf/ directory, built-in defaults.

Examples:
  shelf serve
  shelf serve --listen :8080
  shelf serve --vector-store-provider sqlite --sqlite ./shelf.db
  shelf serve --embedding-provider lmstudio --embedding-target http://localhost:1234`

const serveShortDesc string = "Run the shelf server (MCP on stdio, or HTTP with --listen)"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveRegistryKeys)
			cmder.v = v

			// HTTP mode is selected by passing --listen; the effective
			// address still follows the config precedence chain.
			cmder.httpMode = cmd.Flags().Changed("listen")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreKey, &cmder.vectorAPIKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddBoolFlag(cmd, config.Flags, config.FlagEventsEnabled, &cmder.eventsEnabled)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Append logs to this file in addition to stderr")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if err := c.newLogger(); err != nil {
		return err
	}

	engine, err := c.newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	mcpSrv, err := mcpserver.NewServer(mcpserver.Config{
		Engine: engine,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !c.httpMode {
		c.logger.Info("starting MCP server on stdio",
			"embedding_provider", c.v.GetString("embedding.provider"),
			"vector_store", c.v.GetString("vector_store.provider"),
		)
		return mcpSrv.Run(ctx)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: c.v.GetString("server.listen"),
		MCPHandler: mcpSrv.Handler(),
	}, engine, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return apiServer.Shutdown()
	}
}

// newLogger builds the server logger. Logs always go to stderr: in stdio
// mode stdout carries the MCP protocol stream and must stay clean.
func (c *ServeCommander) newLogger() error {
	writers := []io.Writer{os.Stderr}

	if c.logFile != "" {
		f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriters(writers...),
	)
	return nil
}

func (c *ServeCommander) newEngine() (*rag.Engine, error) {
	var prefixRules config.PrefixRules
	if err := c.v.UnmarshalKey("embedding.prefixes", &prefixRules); err != nil {
		return nil, fmt.Errorf("parsing embedding prefixes: %w", err)
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.v.GetString("embedding.provider"),
		TargetURL:    c.v.GetString("embedding.target"),
		Model:        c.v.GetString("embedding.model"),
		Dimensions:   c.v.GetUint("embedding.dimensions"),
		Prefixes:     prefixRules.Table(),
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := c.newVectorDriver()
	if err != nil {
		embedder.Close()
		return nil, err
	}

	publisher, err := c.newPublisher()
	if err != nil {
		embedder.Close()
		driver.Close()
		return nil, err
	}

	engine, err := rag.NewEngine(rag.Config{
		Embedder:  embedder,
		Driver:    driver,
		Publisher: publisher,
		Source: eventstream.EventSource{
			Provider: c.v.GetString("embedding.provider"),
			Model:    c.v.GetString("embedding.model"),
		},
		DefaultCollection: c.v.GetString("server.default_collection"),
		Logger:            c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return engine, nil
}

func (c *ServeCommander) newVectorDriver() (vector.Driver, error) {
	provider := c.v.GetString("vector_store.provider")

	dbPath := c.v.GetString("vector_store.sqlite_path")
	if provider == "sqlite" && dbPath == "" {
		target, err := dotdir.NewManager().Target(c.configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		dbPath = filepath.Join(target, sqliteDBFile)
		c.logger.Info("using default SQLite database", "path", dbPath)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: provider,
		Target:       c.v.GetString("vector_store.target"),
		APIKey:       c.v.GetString("vector_store.api_key"),
		DBPath:       dbPath,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	return driver, nil
}

// newPublisher returns a Kafka publisher when events are enabled, nil
// otherwise. A nil publisher leaves the engine on its no-op stream.
func (c *ServeCommander) newPublisher() (eventstream.Publisher, error) {
	if !c.v.GetBool("events.enabled") {
		return nil, nil
	}

	publisher, err := eventskafka.NewPublisher(eventskafka.Config{
		Brokers: c.v.GetStringSlice("events.brokers"),
		Topic:   c.v.GetString("events.topic"),
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	c.logger.Info("publishing lifecycle events",
		"brokers", c.v.GetStringSlice("events.brokers"),
		"topic", c.v.GetString("events.topic"),
	)
	return publisher, nil
}
