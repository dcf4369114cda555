// Package initcmder provides the init command for initializing a local .shelf
// directory in the current working directory.
package initcmder

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bindery/shelf/pkg/config"
)

const (
	dirName = ".shelf"
)

const initLongDesc string = `Initialize a new .shelf/ directory in the current working directory.

Creates a local .shelf/ directory that takes precedence over the default
~/.shelf/ directory for configuration, the SQLite vector store, and other
shelf operations, then writes a default config.toml if none exists.

This is useful for maintaining separate shelf state per project or directory.

Pass --preset to write a config.toml for a known local embedding provider
(ollama, lmstudio), or give a URL to fetch a shared config.toml from.
Re-running init with --preset overwrites the existing config.toml.

Examples:
  shelf init
  shelf init --preset ollama
  shelf init --preset lmstudio
  shelf init --preset https://configs.example.com/shelf/config.toml`

const initShortDesc string = "Initialize a local .shelf/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit(preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Config preset name (ollama, lmstudio) or URL of a config.toml to fetch")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(preset string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .shelf directory: %w", err)
		}
		fmt.Printf("Initialized .shelf directory: %s\n", dir)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if preset == "" {
		// Keep an existing config.toml; only write defaults when missing.
		if _, err := os.Stat(cfger.GetTarget()); err == nil {
			return nil
		}
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("Wrote default config: %s\n", cfger.GetTarget())
		return nil
	}

	cfg, err := resolvePreset(preset)
	if err != nil {
		return err
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Printf("Wrote config: %s\n", cfger.GetTarget())
	return nil
}

// resolvePreset turns a preset name or URL into a Config. URLs are fetched
// and parsed as TOML so teams can share one canonical config.
func resolvePreset(preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		return fetchRemoteConfig(preset)
	}
	return config.PresetConfig(preset)
}

func fetchRemoteConfig(rawURL string) (*config.Config, error) {
	resp, err := http.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}
