// Package searchcmder provides the search command for semantic search over documents.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bindery/shelf/api"
	"github.com/bindery/shelf/pkg/cliui"
	"github.com/bindery/shelf/pkg/config"
	"github.com/bindery/shelf/pkg/logger"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	queryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type searchCommander struct {
	query      string
	collection string
	limit      int
	threshold  float32
	jsonOut    bool

	apiTarget string

	debug  bool
	logger *slog.Logger
}

const searchLongDesc string = `Search stored documents via the shelf API.

Runs a semantic search over a collection, returning the most relevant
documents for the query text. Requires a running shelf server
(shelf serve --listen).

The collection defaults to the server's configured default collection;
pass --collection to search a different one. Results below --threshold
are filtered out.

Use --json to print the raw API response, for piping into jq or other
tools.

Example:
  shelf search "how do I rotate credentials"
  shelf search "rate limiting" --collection handbook --limit 10
  shelf search "deploy checklist" --threshold 0.6
  shelf search "onboarding" --json | jq '.results[].metadata.source'`

const searchShortDesc string = "Search stored documents"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.collection, "collection", "c", "", "Collection to search (server default when empty)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 5, "Number of results to return")
	cmd.Flags().Float32Var(&cmder.threshold, "threshold", 0, "Minimum similarity score, 0 to 1")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw API response")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Shelf API server URL")

	return cmd
}

func (c *searchCommander) run() error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
	c.logger.Debug("querying search API",
		"target", c.apiTarget,
		"collection", c.collection,
		"limit", c.limit,
	)

	output, err := SearchAPI(c.apiTarget, c.query, c.collection, c.limit, c.threshold)
	if err != nil {
		return err
	}

	if c.jsonOut {
		raw, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		fmt.Println(string(raw))
		return nil
	}

	if output.Count == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("\n%s %s %s\n\n",
		headerStyle.Render("Search results for:"),
		queryStyle.Render(fmt.Sprintf("%q", output.Query)),
		dimStyle.Render("in "+output.Collection),
	)

	for i, result := range output.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result api.SearchResult) {
	fmt.Printf("  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
	)

	if source, ok := result.Metadata["source"].(string); ok && source != "" {
		fmt.Printf("  %s\n", sourceStyle.Render(source))
	}

	fmt.Printf("  %s\n\n", previewStyle.Render(cliui.Preview(result.Content, 160)))
}

// SearchAPI calls the shelf search API and returns the parsed response.
// Exported so scripts built on this package can reuse the client.
func SearchAPI(apiTarget, query, collection string, limit int, threshold float32) (*api.SearchResponse, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	if collection != "" {
		q.Set("collection", collection)
	}
	if threshold > 0 {
		q.Set("score_threshold", strconv.FormatFloat(float64(threshold), 'f', -1, 32))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to shelf API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.SearchResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
