package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/gateway"
	"github.com/iksnae/vault-agent/internal/vault"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	apiURL     string
	apiKey     string
	vaultPath  string
	ledgerPath string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// cfg is loaded once per invocation by PersistentPreRunE
var cfg *internal.Config

// skipConfig marks commands that must run even when the config is unreadable
const skipConfig = "skip-config"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vault-agent",
	Short: "Talk to a local AI agent service from your notes vault",
	Long: `A CLI client for a local AI agent service that works on a notes vault.

The agent service runs separately over HTTP. vault-agent chats with it,
batch-converts office documents into notes, and keeps a local history of
conversion runs.

Features:
  • Interactive chat with stop, supersede and conversation continuity
  • Batch conversion of PDF, Office, OpenDocument, HTML, RTF and text files
  • Collision-free output naming alongside sources or in a dedicated folder
  • Conversion history stored in a local SQLite ledger
  • LLM provider configuration pushed to the agent

Quick Start:
  vault-agent healthcheck                     # Is the agent ready?
  vault-agent chat                            # Start chatting
  vault-agent convert --folder Inbox          # Convert every document in Inbox
  vault-agent convert report.pdf --format text --out-dir Converted`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		internal.SetVerbose(verbose)
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		loaded, err := internal.LoadConfig(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		if verbose {
			internal.SetVerbose(true)
		} else {
			internal.SetLogLevel(internal.ParseLogLevel(cfg.Log.Level))
		}
		internal.LogDebug("Using agent at %s, vault %s", cfg.APIURL, cfg.VaultPath)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		internal.PrintError(fmt.Sprintf("Error: %v", err))
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newClient() *gateway.Client {
	return gateway.NewClient(cfg.APIURL, cfg.APIKey)
}

func openVault() (*vault.Vault, error) {
	v, err := vault.New(cfg.VaultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	return v, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/vault-agent/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Agent service base URL (default "+internal.DefaultAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Bearer token for the agent service")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault root directory (default current directory)")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "Conversion history database")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
