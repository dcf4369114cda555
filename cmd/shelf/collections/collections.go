// Package collectionscmder provides commands for listing and deleting collections.
package collectionscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bindery/shelf/api"
	"github.com/bindery/shelf/pkg/cliui"
	"github.com/bindery/shelf/pkg/config"
)

var (
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type collectionsCommander struct {
	apiTarget string
	jsonOut   bool
}

const collectionsLongDesc string = `List collections on the shelf server.

Shows every collection in the vector store along with its stored point
count. Requires a running shelf server (shelf serve --listen).

Use the delete subcommand to remove a collection and all of its
documents.

Example:
  shelf collections
  shelf collections --json
  shelf collections delete scratch`

const collectionsShortDesc string = "List collections"

func NewCollectionsCmd() *cobra.Command {
	cmder := &collectionsCommander{}

	cmd := &cobra.Command{
		Use:   "collections",
		Short: collectionsShortDesc,
		Long:  collectionsLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
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
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.runList()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.PersistentFlags().StringVar(&cmder.apiTarget, "api-target", defaults.Client.APITarget, "Shelf API server URL")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw API response")

	cmd.AddCommand(newDeleteCmd(cmder))

	return cmd
}

const deleteLongDesc string = `Delete a collection and all of its documents.

Deleting a collection that does not exist succeeds without error, so
this is safe to run in cleanup scripts.

Example:
  shelf collections delete scratch`

func newDeleteCmd(cmder *collectionsCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection",
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			output, err := DeleteCollectionAPI(cmder.apiTarget, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n  %s Deleted collection %s\n\n",
				cliui.SuccessMark,
				nameStyle.Render(output.Collection),
			)
			return nil
		},
	}
}

func (c *collectionsCommander) runList() error {
	output, err := ListCollectionsAPI(c.apiTarget)
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
		fmt.Println("No collections found.")
		return nil
	}

	fmt.Printf("\n%s\n\n", headerStyle.Render("Collections"))
	for _, col := range output.Collections {
		fmt.Printf("  %s %s\n",
			nameStyle.Render(col.Name),
			dimStyle.Render(fmt.Sprintf("(%d points)", col.PointsCount)),
		)
	}
	fmt.Println()

	return nil
}

// ListCollectionsAPI calls the shelf collections API and returns the parsed
// response.
func ListCollectionsAPI(apiTarget string) (*api.ListCollectionsResponse, error) {
	listURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	listURL.Path = "/v1/collections"

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, listURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating collections request: %w", err)
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
		return nil, fmt.Errorf("collections request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.ListCollectionsResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse collections response: %w", err)
	}

	return &output, nil
}

// DeleteCollectionAPI deletes a collection through the shelf API and returns
// the parsed response.
func DeleteCollectionAPI(apiTarget, name string) (*api.DeleteCollectionResponse, error) {
	deleteURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	deleteURL.Path = "/v1/collections/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, deleteURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating delete request: %w", err)
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
		return nil, fmt.Errorf("delete request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output api.DeleteCollectionResponse
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse delete response: %w", err)
	}

	return &output, nil
}
