package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/iksnae/vault-agent/internal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configCmd groups the config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the config file",
	Long: `vault-agent reads settings from a YAML config file, then from
VAULT_AGENT_* environment variables, then from flags.

Example config:
  api_url: http://127.0.0.1:8001
  vault_path: ~/Notes
  conversation_context: true
  llm:
    provider: ollama
    model: qwen3:1.7b`,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a config file with default settings",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = internal.DefaultConfigPath()
		}
		if err := internal.WriteDefaultConfig(path, configForce); err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓"), "Wrote", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings with secrets masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg.Redacted()); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
}
