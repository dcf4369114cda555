// Package addcmder provides the add command for embedding and storing documents.
package addcmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bindery/shelf/pkg/cliui"
	"github.com/bindery/shelf/pkg/config"
	"github.com/bindery/shelf/pkg/dotdir"
	embeddingutils "github.com/bindery/shelf/pkg/embeddings/utils"
	"github.com/bindery/shelf/pkg/eventstream"
	eventskafka "github.com/bindery/shelf/pkg/eventstream/kafka"
	"github.com/bindery/shelf/pkg/logger"
	"github.com/bindery/shelf/pkg/rag"
	vectorutils "github.com/bindery/shelf/pkg/vector/utils"
)

const sqliteDBFile = "shelf.db"

type addCommander struct {
	collection        string
	meta              []string
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

	configDir string
	debug     bool

	v      *viper.Viper
	logger *slog.Logger
}

var addRegistryKeys = []string{
	config.FlagCollection,
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

const addLongDesc string = `Embed files and store them as documents.

Each file becomes one document; its path is recorded as "source" metadata.
With no file arguments the document content is read from stdin. Documents
are embedded with the configured provider and stored in the vector store,
creating the collection on first use.

Use --meta to attach additional metadata as key=value pairs.

Examples:
  shelf add notes.md
  shelf add docs/*.md --collection handbook
  shelf add runbook.md --meta team=platform --meta tier=1
  cat summary.txt | shelf add --collection reports`

const addShortDesc string = "Embed and store documents"

func NewAddCmd() *cobra.Command {
	cmder := &addCommander{}

	cmd := &cobra.Command{
		Use:   "add [files...]",
		Short: addShortDesc,
		Long:  addLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, addRegistryKeys)
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context(), args)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagCollection, &cmder.collection)
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
	cmd.Flags().StringArrayVarP(&cmder.meta, "meta", "m", nil, "Metadata key=value pair (repeatable)")

	return cmd
}

func (c *addCommander) run(ctx context.Context, files []string) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)

	meta, err := parseMeta(c.meta)
	if err != nil {
		return err
	}

	docs, err := loadDocuments(files, meta)
	if err != nil {
		return err
	}

	engine, err := c.newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	collection := c.v.GetString("server.default_collection")

	var count int
	err = cliui.Step(os.Stdout, fmt.Sprintf("Adding %d document(s) to %q", len(docs), collection), func() error {
		var stepErr error
		count, stepErr = engine.AddDocuments(ctx, collection, docs)
		return stepErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Added %d document(s) to %s\n\n",
		cliui.SuccessMark,
		count,
		cliui.KeyStyle.Render(collection),
	)
	return nil
}

// parseMeta converts repeated key=value flags into a metadata map.
func parseMeta(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --meta value %q (expected key=value)", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

// loadDocuments reads each file into a document, or stdin when no files are
// given. File documents record their path as "source" metadata; --meta pairs
// are merged on top so callers can override it.
func loadDocuments(files []string, meta map[string]any) ([]rag.Document, error) {
	if len(files) == 0 {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		if len(content) == 0 {
			return nil, fmt.Errorf("no files given and stdin is empty")
		}
		return []rag.Document{{Content: string(content), Metadata: mergeMeta("stdin", meta)}}, nil
	}

	docs := make([]rag.Document, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		docs = append(docs, rag.Document{
			Content:  string(content),
			Metadata: mergeMeta(filepath.ToSlash(file), meta),
		})
	}
	return docs, nil
}

func mergeMeta(source string, meta map[string]any) map[string]any {
	merged := map[string]any{"source": source}
	for k, v := range meta {
		merged[k] = v
	}
	return merged
}

func (c *addCommander) newEngine() (*rag.Engine, error) {
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

	provider := c.v.GetString("vector_store.provider")
	dbPath := c.v.GetString("vector_store.sqlite_path")
	if provider == "sqlite" && dbPath == "" {
		target, err := dotdir.NewManager().Target(c.configDir)
		if err != nil {
			embedder.Close()
			return nil, fmt.Errorf("resolving database path: %w", err)
		}
		dbPath = filepath.Join(target, sqliteDBFile)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: provider,
		Target:       c.v.GetString("vector_store.target"),
		APIKey:       c.v.GetString("vector_store.api_key"),
		DBPath:       dbPath,
		Logger:       c.logger,
	})
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	var publisher eventstream.Publisher
	if c.v.GetBool("events.enabled") {
		publisher, err = eventskafka.NewPublisher(eventskafka.Config{
			Brokers: c.v.GetStringSlice("events.brokers"),
			Topic:   c.v.GetString("events.topic"),
		}, c.logger)
		if err != nil {
			embedder.Close()
			driver.Close()
			return nil, fmt.Errorf("creating event publisher: %w", err)
		}
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
